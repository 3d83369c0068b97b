package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/code-executor/internal/handler"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		ping       func() error
		wantStatus int
		wantBody   string
	}{
		{name: "no store", ping: nil, wantStatus: http.StatusOK, wantBody: `{"status":"ok","backend":"process"}`},
		{name: "store up", ping: func() error { return nil }, wantStatus: http.StatusOK, wantBody: `{"status":"ok","backend":"process"}`},
		{name: "store down", ping: func() error { return errors.New("closed") }, wantStatus: http.StatusServiceUnavailable, wantBody: `{"status":"degraded","backend":"process"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler("process", tt.ping, discardLogger())
			rr := httptest.NewRecorder()
			h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}

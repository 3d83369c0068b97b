package handler

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sakif/code-executor/internal/apperror"
	"github.com/sakif/code-executor/internal/auth"
	"github.com/sakif/code-executor/internal/executor"
	"github.com/sakif/code-executor/internal/model"
)

// ExecutionService is the part of service.ExecutionService the handlers use.
type ExecutionService interface {
	Execute(ctx context.Context, code string, timeout time.Duration, subject string) (executor.ExecutionResult, error)
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	List(ctx context.Context, limit, offset int) ([]model.Execution, error)
}

// ExecuteHandler serves the execute endpoint and the execution history.
type ExecuteHandler struct {
	svc    ExecutionService
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(svc ExecutionService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		svc:    svc,
		logger: logger,
	}
}

// executeRequest uses pointers so an absent field can be told apart from a
// zero value: no "code" key is a missing-code request, "" is code to run.
type executeRequest struct {
	Code    *string  `json:"code"`
	Timeout *float64 `json:"timeout"` // seconds
}

// HandleExecute runs the submitted code and returns its result record.
//
// HTTP: POST /api/execute
//
// Every request that reaches the executor gets a 200, whatever the child did;
// the record's status and exit code carry the outcome.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if req.Code == nil {
		writeJSON(w, http.StatusBadRequest, executor.NoCode())
		return
	}

	var timeout time.Duration
	if req.Timeout != nil {
		// Sub-nanosecond values truncate to zero, which would mean "default".
		timeout = secondsToDuration(*req.Timeout)
		if timeout <= 0 {
			writeError(w, apperror.ValidationFailed("timeout", "timeout must be positive"))
			return
		}
	}

	subject, _ := auth.SubjectFromContext(r.Context())

	result, err := h.svc.Execute(r.Context(), *req.Code, timeout, subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// secondsToDuration converts fractional seconds, saturating instead of
// overflowing for absurd values.
func secondsToDuration(s float64) time.Duration {
	if s >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s * float64(time.Second))
}

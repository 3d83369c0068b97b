package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/code-executor/internal/apperror"
)

// Authenticator exchanges the operator password for a token.
type Authenticator interface {
	Login(password string) (token string, expiresAt time.Time, err error)
}

// TokenHandler serves password logins.
type TokenHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewTokenHandler(auth Authenticator, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{auth: auth, logger: logger}
}

type tokenRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleToken issues a bearer token and mirrors it in an HttpOnly cookie.
//
// HTTP: POST /auth/token
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Password == "" {
		writeError(w, apperror.ValidationFailed("password", "password is required"))
		return
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

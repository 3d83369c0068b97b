package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/code-executor/internal/apperror"
	"github.com/sakif/code-executor/internal/auth"
)

// OperatorSubject is the token subject issued for password logins.
const OperatorSubject = "operator"

// AuthService exchanges the operator password for an API token.
type AuthService struct {
	tokens       *auth.TokenService
	passwords    *auth.PasswordService
	passwordHash string
	logger       *slog.Logger
}

// NewAuthService creates an AuthService. passwordHash is the bcrypt hash from
// ADMIN_PASSWORD_HASH; when empty, Login always reports Unavailable.
func NewAuthService(tokens *auth.TokenService, passwords *auth.PasswordService, passwordHash string, logger *slog.Logger) *AuthService {
	return &AuthService{
		tokens:       tokens,
		passwords:    passwords,
		passwordHash: passwordHash,
		logger:       logger,
	}
}

// Login verifies password and returns a signed token and its expiry.
func (s *AuthService) Login(password string) (string, time.Time, error) {
	if s.tokens == nil || s.passwordHash == "" {
		return "", time.Time{}, apperror.Unavailable("password login is not configured")
	}

	if err := s.passwords.Verify(s.passwordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("operator login rejected")
			return "", time.Time{}, apperror.Unauthorized("invalid password")
		}
		s.logger.Error("failed to verify operator password", slog.String("error", err.Error()))
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(s.tokens.TTL())
	token, err := s.tokens.Generate(OperatorSubject)
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info("operator token issued", slog.Time("expiresAt", expiresAt))
	return token, expiresAt, nil
}

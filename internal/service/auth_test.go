package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/code-executor/internal/apperror"
	"github.com/sakif/code-executor/internal/auth"
	"github.com/sakif/code-executor/internal/service"
)

func newAuthService(t *testing.T, password string) (*service.AuthService, *auth.TokenService) {
	t.Helper()

	tokens, err := auth.NewTokenService("a-test-secret-that-is-at-least-32-bytes")
	require.NoError(t, err)

	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	hash := ""
	if password != "" {
		hash, err = passwords.Hash(password)
		require.NoError(t, err)
	}
	return service.NewAuthService(tokens, passwords, hash, discardLogger()), tokens
}

func TestLogin_IssuesOperatorToken(t *testing.T) {
	svc, tokens := newAuthService(t, "hunter2")

	token, expiresAt, err := svc.Login("hunter2")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(tokens.TTL()), expiresAt, 5*time.Second)

	subject, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, service.OperatorSubject, subject)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newAuthService(t, "hunter2")

	_, _, err := svc.Login("hunter3")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestLogin_NotConfigured(t *testing.T) {
	svc, _ := newAuthService(t, "")

	_, _, err := svc.Login("anything")
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))
}

// Package service contains the business logic between the HTTP handlers and
// the executor and repository layers. Nothing here knows about HTTP; rule
// violations come back as apperror values.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/code-executor/internal/apperror"
	"github.com/sakif/code-executor/internal/executor"
	"github.com/sakif/code-executor/internal/model"
	"github.com/sakif/code-executor/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Limits bounds what a single request may ask for.
type Limits struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	MaxCodeBytes   int
	// MaxConcurrent caps simultaneous executions across all callers.
	MaxConcurrent int
}

// ExecutionService validates execution requests, runs them on an executor
// and records every run in the history repository.
type ExecutionService struct {
	exec   executor.Executor
	repo   repository.ExecutionRepository
	limits Limits
	slots  chan struct{}
	logger *slog.Logger
}

// NewExecutionService creates an ExecutionService. Zero limits fall back to
// a 10s default timeout, 60s max, 100000 bytes of code and 4 slots.
func NewExecutionService(exec executor.Executor, repo repository.ExecutionRepository, limits Limits, logger *slog.Logger) *ExecutionService {
	if limits.DefaultTimeout <= 0 {
		limits.DefaultTimeout = executor.DefaultTimeout
	}
	if limits.MaxTimeout <= 0 {
		limits.MaxTimeout = time.Minute
	}
	if limits.MaxCodeBytes <= 0 {
		limits.MaxCodeBytes = 100000
	}
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = 4
	}
	return &ExecutionService{
		exec:   exec,
		repo:   repo,
		limits: limits,
		slots:  make(chan struct{}, limits.MaxConcurrent),
		logger: logger,
	}
}

// Execute runs code with the given timeout (zero means the default).
//
// Any result the executor produces, including child failures and timeouts,
// is returned with a nil error. Errors are reserved for requests that were
// never run: invalid input, or a caller that gave up waiting for a slot.
func (s *ExecutionService) Execute(ctx context.Context, code string, timeout time.Duration, subject string) (executor.ExecutionResult, error) {
	if len(code) > s.limits.MaxCodeBytes {
		return executor.ExecutionResult{}, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", s.limits.MaxCodeBytes))
	}
	switch {
	case timeout < 0:
		return executor.ExecutionResult{}, apperror.ValidationFailed("timeout", "timeout must be positive")
	case timeout == 0:
		timeout = s.limits.DefaultTimeout
	case timeout > s.limits.MaxTimeout:
		return executor.ExecutionResult{}, apperror.ValidationFailed("timeout",
			fmt.Sprintf("timeout must be %s or less", s.limits.MaxTimeout))
	}

	res, err := s.runInSlot(ctx, code, timeout)
	if err != nil {
		return executor.ExecutionResult{}, err
	}

	s.logger.Info("execution finished",
		slog.Bool("ok", res.OK()),
		slog.String("status", string(res.Status)),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
		slog.Duration("timeout", timeout),
	)

	// Record even when the client has gone away.
	s.record(context.WithoutCancel(ctx), code, timeout, subject, res)

	return res, nil
}

// runInSlot holds one of the MaxConcurrent slots for the duration of the
// run. The slot is released even if the executor panics.
func (s *ExecutionService) runInSlot(ctx context.Context, code string, timeout time.Duration) (executor.ExecutionResult, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return executor.ExecutionResult{}, apperror.Unavailable("gave up waiting for a free execution slot")
	}
	defer func() { <-s.slots }()

	return s.exec.Execute(ctx, executor.ExecutionRequest{Code: code, Timeout: timeout}), nil
}

func (s *ExecutionService) record(ctx context.Context, code string, timeout time.Duration, subject string, res executor.ExecutionResult) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	e := &model.Execution{
		Code:       code,
		TimeoutMS:  timeout.Milliseconds(),
		Status:     string(res.Status),
		Output:     res.Output,
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration.Milliseconds(),
		Subject:    subject,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error("failed to record execution", slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("execution recorded", slog.String("id", e.ID))
}

// GetByID retrieves a recorded execution.
// Returns apperror.ErrNotFound if it doesn't exist.
func (s *ExecutionService) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "execution ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns recorded executions newest first, clamping limit to 1..100
// and offset to >= 0.
func (s *ExecutionService) List(ctx context.Context, limit, offset int) ([]model.Execution, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	execs, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list executions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	return execs, nil
}

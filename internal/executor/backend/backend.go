// Package backend builds the executor selected by EXECUTOR_BACKEND.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/sakif/code-executor/internal/config"
	"github.com/sakif/code-executor/internal/executor"
	"github.com/sakif/code-executor/internal/executor/docker"
	"github.com/sakif/code-executor/internal/executor/process"
)

// Open returns the configured executor and a function releasing whatever it
// holds. The release function is never nil.
func Open(cfg config.Config, logger *slog.Logger) (executor.Executor, func(), error) {
	switch cfg.Backend {
	case config.BackendProcess, "":
		exec, err := process.New(cfg.Process, logger)
		if err != nil {
			return nil, func() {}, fmt.Errorf("process backend: %w", err)
		}
		return exec, func() {}, nil

	case config.BackendDocker:
		exec, err := docker.New(cfg.Docker, logger)
		if err != nil {
			return nil, func() {}, fmt.Errorf("docker backend: %w", err)
		}
		return exec, func() {
			if err := exec.Close(); err != nil {
				logger.Error("failed to close docker executor", slog.String("error", err.Error()))
			}
		}, nil

	default:
		return nil, func() {}, fmt.Errorf("unknown executor backend %q", cfg.Backend)
	}
}

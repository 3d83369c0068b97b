package backend

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-executor/internal/config"
	"github.com/sakif/code-executor/internal/executor/process"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_Process(t *testing.T) {
	cfg := config.Config{Backend: config.BackendProcess, Process: process.DefaultConfig()}

	exec, release, err := Open(cfg, discardLogger())
	require.NoError(t, err)
	defer release()

	_, ok := exec.(*process.Executor)
	assert.True(t, ok, "got %T", exec)
}

func TestOpen_Errors(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		_, release, err := Open(config.Config{Backend: "firecracker"}, discardLogger())
		assert.Error(t, err)
		assert.NotNil(t, release)
	})

	t.Run("invalid process config", func(t *testing.T) {
		cfg := config.Config{Backend: config.BackendProcess, Process: process.DefaultConfig()}
		cfg.Process.Interpreter = ""
		_, release, err := Open(cfg, discardLogger())
		assert.Error(t, err)
		assert.NotNil(t, release)
	})
}

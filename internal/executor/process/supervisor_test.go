package process

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-executor/internal/executor"
)

func shellConfig(t *testing.T) Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	cfg := DefaultConfig()
	cfg.Interpreter = "/bin/sh"
	cfg.ScriptExt = ".sh"
	cfg.WorkDir = t.TempDir()
	cfg.JoinGrace = 300 * time.Millisecond
	return cfg
}

// A child that dies on SIGTERM must not cost a second KillGrace wait.
func TestTerminate_SIGTERMHonouredReturnsPromptly(t *testing.T) {
	cfg := shellConfig(t)
	cfg.KillGrace = 2 * time.Second

	var logs bytes.Buffer
	e, err := New(cfg, slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	require.NoError(t, err)

	start := time.Now()
	res := e.Execute(context.Background(), executor.ExecutionRequest{Code: "sleep 30", Timeout: 200 * time.Millisecond})
	elapsed := time.Since(start)

	assert.Equal(t, executor.ExitTimeout, res.ExitCode)
	assert.Less(t, elapsed, 1500*time.Millisecond, "took the full kill grace")
	assert.NotContains(t, logs.String(), "process not reaped after kill")
}

func TestExecute_PanicBecomesInternalResult(t *testing.T) {
	cfg := shellConfig(t)
	e, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var scriptSeen string
	e.prepared = func(ws *workspace) {
		scriptSeen = ws.script
		panic("scratch dir vanished")
	}

	res := e.Execute(context.Background(), executor.ExecutionRequest{Code: "echo unreachable", Timeout: time.Second})

	assert.Equal(t, executor.StatusError, res.Status)
	assert.Equal(t, executor.ExitInternal, res.ExitCode)
	assert.True(t, res.SupervisorFailure())
	assert.False(t, res.OK())
	assert.True(t, strings.HasPrefix(res.Output, "Execution failed: scratch dir vanished\n"), res.Output)
	assert.Contains(t, res.Output, "goroutine")

	require.NotEmpty(t, scriptSeen)
	entries, err := os.ReadDir(cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory left behind after panic")
}

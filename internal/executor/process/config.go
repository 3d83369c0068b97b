package process

import (
	"errors"
	"time"

	"github.com/sakif/code-executor/internal/executor"
)

// Config holds the configuration for local process execution.
type Config struct {
	// Interpreter is the program started for every execution, e.g. "python3".
	// It is resolved through PATH at spawn time.
	Interpreter string
	// InterpreterArgs are placed before the script path.
	InterpreterArgs []string
	// ScriptExt is the file extension of the materialized script.
	ScriptExt string
	// WorkDir is the parent directory for per-execution scratch directories.
	// Empty means the OS temp directory.
	WorkDir string
	// DefaultTimeout applies to requests without a positive timeout.
	DefaultTimeout time.Duration
	// JoinGrace bounds how long the stream readers are awaited once the
	// child has exited or been terminated.
	JoinGrace time.Duration
	// KillGrace is the delay between the polite and the forceful termination
	// signal, and the bound on waiting for the killed child to be reaped.
	KillGrace time.Duration
}

// DefaultConfig runs python3 with a 10 second default timeout.
func DefaultConfig() Config {
	return Config{
		Interpreter:    "python3",
		ScriptExt:      ".py",
		DefaultTimeout: executor.DefaultTimeout,
		JoinGrace:      500 * time.Millisecond,
		KillGrace:      500 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if c.Interpreter == "" {
		return errors.New("process: interpreter is required")
	}
	if c.DefaultTimeout < 0 || c.JoinGrace < 0 || c.KillGrace < 0 {
		return errors.New("process: durations must not be negative")
	}
	return nil
}

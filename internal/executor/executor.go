// Package executor defines the contract shared by every code execution backend.
//
// A backend receives one ExecutionRequest and produces exactly one
// ExecutionResult. Backends never return errors: every failure, including
// failures of the backend itself, is folded into a Failure result whose
// exit code tells the caller who failed.
//
// EXIT CODE RANGES:
//
//	0        the child process exited cleanly
//	1..255   the child's own exit code (or 128+signal when it was killed)
//	< 0      supervisor sentinels, see ExitTimeout, ExitInternal, ExitNoCode
package executor

import (
	"context"
	"fmt"
	"time"
)

// Status is the two-state outcome of an execution.
// Timeouts and internal errors are Failures distinguished by exit code.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Supervisor sentinel exit codes. POSIX exit codes are 0-255, so negative
// values never collide with a real process exit code.
const (
	ExitTimeout  = -1
	ExitInternal = -2
	ExitNoCode   = -3
)

// Fixed messages for sentinel results.
const (
	MsgTimedOut = "Execution timed out"
	MsgNoCode   = "No code provided"
)

// DefaultTimeout is used when a request does not carry a positive timeout.
const DefaultTimeout = 10 * time.Second

// ExecutionRequest represents a request to execute a code snippet.
// Empty Code is valid input; it is run like any other script.
type ExecutionRequest struct {
	Code    string
	Timeout time.Duration
}

// EffectiveTimeout returns the request timeout, or fallback when the request
// timeout is not positive. A non-positive fallback resolves to DefaultTimeout.
func (r ExecutionRequest) EffectiveTimeout(fallback time.Duration) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout
}

// ExecutionResult represents the outcome of one execution.
// It is built once by a constructor below and never modified afterwards.
type ExecutionResult struct {
	Status   Status `json:"status"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`

	// Duration is the wall-clock time spent in the backend. It is not part of
	// the wire record.
	Duration time.Duration `json:"-"`
}

// OK reports whether the result is a Success.
func (r ExecutionResult) OK() bool { return r.Status == StatusSuccess }

// SupervisorFailure reports whether the exit code is a supervisor sentinel
// rather than a code produced by the executed program.
func (r ExecutionResult) SupervisorFailure() bool { return r.ExitCode < 0 }

// Completed builds the result of a child that ran to exit. Status is Success
// iff exitCode is exactly 0.
func Completed(output string, exitCode int, d time.Duration) ExecutionResult {
	status := StatusError
	if exitCode == 0 {
		status = StatusSuccess
	}
	return ExecutionResult{Status: status, Output: output, ExitCode: exitCode, Duration: d}
}

// TimedOut builds the result of an execution that exceeded its deadline.
func TimedOut(d time.Duration) ExecutionResult {
	return ExecutionResult{Status: StatusError, Output: MsgTimedOut, ExitCode: ExitTimeout, Duration: d}
}

// NoCode builds the result returned when no code was supplied at all.
// Callers produce it before any backend is involved.
func NoCode() ExecutionResult {
	return ExecutionResult{Status: StatusError, Output: MsgNoCode, ExitCode: ExitNoCode}
}

// Internal builds the result of a supervisor-side failure. trace is appended
// on its own line when non-empty.
func Internal(err error, trace string, d time.Duration) ExecutionResult {
	out := fmt.Sprintf("Execution failed: %v", err)
	if trace != "" {
		out += "\n" + trace
	}
	return ExecutionResult{Status: StatusError, Output: out, ExitCode: ExitInternal, Duration: d}
}

// Executor runs code in an isolated environment.
type Executor interface {
	// Execute runs req and always returns a well-formed result.
	Execute(ctx context.Context, req ExecutionRequest) ExecutionResult
}

// Func adapts an ordinary function to the Executor interface.
type Func func(ctx context.Context, req ExecutionRequest) ExecutionResult

// Execute calls f(ctx, req).
func (f Func) Execute(ctx context.Context, req ExecutionRequest) ExecutionResult {
	return f(ctx, req)
}

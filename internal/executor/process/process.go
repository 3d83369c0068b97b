// Package process runs code as a local child process under a wall-clock
// deadline.
//
// LIFECYCLE OF ONE EXECUTION:
//  1. Write the code to a uniquely named script in a fresh scratch directory.
//  2. Start "<interpreter> <script>" with stdout and stderr on pipes owned
//     by the supervisor, in its own process group where the OS allows it.
//  3. Start one reader goroutine per pipe BEFORE waiting on the child, so a
//     child that fills a pipe buffer is always being drained.
//  4. Wait for exit, bounded by the request timeout.
//  5. On timeout: SIGTERM the group, SIGKILL it after KillGrace.
//  6. Join the readers for at most JoinGrace and assemble the result.
//  7. Remove the scratch directory, whichever path was taken.
//
// Execute never returns an error and never panics to the caller.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sakif/code-executor/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements executor.Executor by spawning local processes.
// It holds no per-execution state and is safe for concurrent use.
type Executor struct {
	config Config
	logger *slog.Logger

	// prepared, when set, runs once the script is on disk. Tests use it.
	prepared func(ws *workspace)
}

// New validates cfg and creates an Executor.
//
// A missing interpreter is not fatal here: it is reported as a warning and
// every execution will come back as a spawn failure.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = executor.DefaultTimeout
	}

	if path, err := exec.LookPath(cfg.Interpreter); err != nil {
		logger.Warn("interpreter not found, executions will fail to spawn",
			slog.String("interpreter", cfg.Interpreter),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("process executor ready",
			slog.String("interpreter", path),
			slog.Bool("groupKill", groupKill),
		)
	}

	return &Executor{config: cfg, logger: logger}, nil
}

// Execute runs req.Code with the configured interpreter.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (res executor.ExecutionResult) {
	start := time.Now()

	// Outermost guard: anything unanticipated becomes a -2 result.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("execution panicked", slog.Any("panic", r))
			res = executor.Internal(fmt.Errorf("%v", r), string(debug.Stack()), time.Since(start))
		}
	}()

	ws, err := newWorkspace(e.config.WorkDir, e.config.ScriptExt, req.Code)
	if err != nil {
		e.logger.Error("failed to prepare script", slog.String("error", err.Error()))
		return executor.Internal(err, "", time.Since(start))
	}
	defer func() {
		if err := ws.remove(); err != nil {
			e.logger.Error("failed to remove scratch dir",
				slog.String("dir", ws.dir),
				slog.String("error", err.Error()),
			)
		}
	}()

	if e.prepared != nil {
		e.prepared(ws)
	}

	return e.run(ctx, ws, req.EffectiveTimeout(e.config.DefaultTimeout), start)
}

// pipes holds both ends of the three standard streams. The child ends are
// handed to the child and closed in the parent right after spawn.
type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func openPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("process: stdin pipe: %w", err)
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("process: stderr pipe: %w", err)
	}
	return p, nil
}

func (p *pipes) closeChildEnds() {
	for _, f := range []*os.File{p.stdinR, p.stdoutW, p.stderrW} {
		if f != nil {
			f.Close()
		}
	}
}

func (p *pipes) closeAll() {
	p.closeChildEnds()
	for _, f := range []*os.File{p.stdinW, p.stdoutR, p.stderrR} {
		if f != nil {
			f.Close()
		}
	}
}

func (e *Executor) run(ctx context.Context, ws *workspace, timeout time.Duration, start time.Time) executor.ExecutionResult {
	p, err := openPipes()
	if err != nil {
		return executor.Internal(err, "", time.Since(start))
	}

	args := append(append([]string{}, e.config.InterpreterArgs...), ws.script)
	cmd := exec.Command(e.config.Interpreter, args...)
	cmd.Dir = ws.dir
	// stdin is a pipe nobody writes to: code waiting for input blocks until
	// the deadline instead of reading the supervisor's own stdin.
	cmd.Stdin = p.stdinR
	cmd.Stdout = p.stdoutW
	cmd.Stderr = p.stderrW
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		p.closeAll()
		e.logger.Error("failed to start process",
			slog.String("interpreter", e.config.Interpreter),
			slog.String("error", err.Error()),
		)
		return executor.Internal(fmt.Errorf("starting %s: %w", e.config.Interpreter, err), "", time.Since(start))
	}
	p.closeChildEnds()
	defer p.stdinW.Close()

	pid := cmd.Process.Pid
	e.logger.Debug("process started", slog.Int("pid", pid), slog.Duration("timeout", timeout))

	// Readers first, then the wait.
	stdout := startCapture(p.stdoutR)
	stderr := startCapture(p.stderrR)

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case waitErr := <-exited:
		return e.assemble(cmd.ProcessState, waitErr, stdout, stderr, start)

	case <-deadline.C:
		e.logger.Warn("execution timed out", slog.Int("pid", pid), slog.Duration("timeout", timeout))

	case <-ctx.Done():
		e.logger.Warn("execution cancelled", slog.Int("pid", pid), slog.String("reason", ctx.Err().Error()))
	}

	e.terminate(cmd.Process, exited)
	if !joinCaptures(e.config.JoinGrace, stdout, stderr) {
		e.logger.Debug("stream readers cut off after termination", slog.Int("pid", pid))
	}
	return executor.TimedOut(time.Since(start))
}

// terminate stops the process tree: SIGTERM, then SIGKILL after KillGrace.
// It waits at most 2*KillGrace in total and does not confirm that
// descendants outside the group are gone.
func (e *Executor) terminate(proc *os.Process, exited <-chan error) {
	if err := interruptTree(proc); err != nil {
		e.logger.Warn("failed to interrupt process tree",
			slog.Int("pid", proc.Pid),
			slog.String("error", err.Error()),
		)
	}

	// exited delivers a single value; remember whether it has been taken.
	reaped := false
	select {
	case <-exited:
		reaped = true
	case <-time.After(e.config.KillGrace):
	}

	// Always follow up with SIGKILL: the leader may be gone while members of
	// its group that ignored SIGTERM are still running.
	if err := killTree(proc); err != nil {
		e.logger.Warn("failed to kill process tree",
			slog.Int("pid", proc.Pid),
			slog.String("error", err.Error()),
		)
	}
	if reaped {
		return
	}

	select {
	case <-exited:
	case <-time.After(e.config.KillGrace):
		e.logger.Error("process not reaped after kill", slog.Int("pid", proc.Pid))
	}
}

// assemble builds the result for a child that exited before the deadline.
func (e *Executor) assemble(state *os.ProcessState, waitErr error, stdout, stderr *lineCapture, start time.Time) executor.ExecutionResult {
	if !joinCaptures(e.config.JoinGrace, stdout, stderr) {
		// A descendant still holds a pipe open; keep what was read so far.
		e.logger.Warn("stream readers did not finish, output may be truncated",
			slog.Duration("grace", e.config.JoinGrace),
		)
	}

	code, err := exitCode(state, waitErr)
	if err != nil {
		e.logger.Error("failed to wait for process", slog.String("error", err.Error()))
		return executor.Internal(err, "", time.Since(start))
	}

	outLines, outErr := stdout.snapshot()
	errLines, errErr := stderr.snapshot()
	if readErr := errors.Join(outErr, errErr); readErr != nil {
		e.logger.Warn("stream read failed, output may be truncated", slog.String("error", readErr.Error()))
	}

	output := strings.Join(append(outLines, errLines...), "\n")
	e.logger.Debug("process exited",
		slog.Int("exitCode", code),
		slog.Int("stdoutLines", len(outLines)),
		slog.Int("stderrLines", len(errLines)),
	)
	return executor.Completed(output, code, time.Since(start))
}

// exitCode extracts the child's exit code. A non-zero exit is reported by
// Wait as *exec.ExitError, which is not a supervisor failure.
func exitCode(state *os.ProcessState, waitErr error) (int, error) {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return 0, fmt.Errorf("waiting for process: %w", waitErr)
		}
	}
	if state == nil {
		return 0, errors.New("waiting for process: no process state")
	}
	if code, ok := signalExitCode(state); ok {
		return code, nil
	}
	return state.ExitCode(), nil
}

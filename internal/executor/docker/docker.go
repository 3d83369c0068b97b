// Package docker runs code inside pre-warmed Docker containers. It honours the
// same result contract as the process backend, with the container as the
// isolation boundary: no network, read-only root filesystem, memory and CPU
// caps.
package docker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/code-executor/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *pool
}

// New creates a new Docker Executor and initializes the connection.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = executor.DefaultTimeout
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: pulling image: %w", err)
	}
	// The pull only completes once its progress stream is consumed.
	_, err = io.Copy(io.Discard, reader)
	reader.Close()
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: pulling image: %w", err)
	}
	logger.Info("docker image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = newPool(cli, cfg, logger)
	exec.pool.start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.stop()
	return e.cli.Close()
}

// Execute runs the code in a container taken from the pool. The container is
// force-removed afterwards on every path, which also kills anything the code
// left running.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (res executor.ExecutionResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("docker execution panicked", slog.Any("panic", r))
			res = executor.Internal(fmt.Errorf("%v", r), string(debug.Stack()), time.Since(start))
		}
	}()

	timeout := req.EffectiveTimeout(e.config.DefaultTimeout)

	// The deadline covers waiting for a container as well as running the code.
	executeCtx, executeCancel := context.WithTimeout(ctx, timeout)
	defer executeCancel()

	containerID, err := e.pool.acquire(executeCtx)
	if err != nil {
		if executeCtx.Err() != nil {
			return executor.TimedOut(time.Since(start))
		}
		return executor.Internal(fmt.Errorf("getting container from pool: %w", err), "", time.Since(start))
	}

	defer e.pool.discard(containerID)

	cmd := append(append([]string{}, e.config.Command...), req.Code)
	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return e.apiFailure(executeCtx, "creating exec", err, start)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return e.apiFailure(executeCtx, "attaching to exec", err, start)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		// Exec output is one multiplexed stream.
		_, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		done <- err
	}()

	select {
	case copyErr := <-done:
		if copyErr != nil {
			e.logger.Warn("reading exec output failed", slog.String("error", copyErr.Error()))
		}
	case <-executeCtx.Done():
		e.logger.Warn("docker execution timed out",
			slog.String("container", containerID),
			slog.Duration("timeout", timeout),
		)
		return executor.TimedOut(time.Since(start))
	}

	// Inspect outside the execute deadline: the code has finished already.
	inspectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exitCode, err := awaitExitCode(inspectCtx, func(ctx context.Context) (container.ExecInspect, error) {
		return e.cli.ContainerExecInspect(ctx, execResp.ID)
	}, 50*time.Millisecond)
	if err != nil {
		return executor.Internal(err, "", time.Since(start))
	}

	output := strings.Join(append(splitLines(stdout.String()), splitLines(stderr.String())...), "\n")
	return executor.Completed(output, exitCode, time.Since(start))
}

// awaitExitCode polls inspect until the exec is no longer running. The output
// stream can reach EOF a moment before the daemon records the exit, and until
// then ExitCode reads 0.
func awaitExitCode(ctx context.Context, inspect func(context.Context) (container.ExecInspect, error), poll time.Duration) (int, error) {
	for {
		resp, err := inspect(ctx)
		if err != nil {
			return 0, fmt.Errorf("inspecting exec: %w", err)
		}
		if !resp.Running {
			return resp.ExitCode, nil
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("inspecting exec: still running after output closed: %w", ctx.Err())
		case <-time.After(poll):
		}
	}
}

func (e *Executor) apiFailure(ctx context.Context, op string, err error, start time.Time) executor.ExecutionResult {
	if ctx.Err() != nil {
		return executor.TimedOut(time.Since(start))
	}
	e.logger.Error("docker api call failed", slog.String("op", op), slog.String("error", err.Error()))
	return executor.Internal(fmt.Errorf("%s: %w", op, err), "", time.Since(start))
}

// splitLines breaks captured text into whitespace-trimmed lines, matching the
// line handling of the process backend.
func splitLines(s string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), len(s)+1)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	return lines
}

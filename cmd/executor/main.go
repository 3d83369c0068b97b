// Command executor runs a single snippet and prints its result record as
// JSON on stdout:
//
//	executor [-timeout 10s] <code>
//	executor [-timeout 10s] -        # read code from stdin
//	executor hash-password           # bcrypt the password on stdin for ADMIN_PASSWORD_HASH
//
// The backend and its settings come from the same environment variables as
// the server. Without a code argument the "No code provided" record is
// printed and the exit status is 1; otherwise the exit status is 0 and the
// outcome is in the record.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sakif/code-executor/internal/auth"
	"github.com/sakif/code-executor/internal/config"
	"github.com/sakif/code-executor/internal/executor"
	"github.com/sakif/code-executor/internal/executor/backend"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		stdin:          os.Stdin,
		stdout:         os.Stdout,
		stderr:         os.Stderr,
		defaultTimeout: cfg.Process.DefaultTimeout,
		open:           func() (executor.Executor, func(), error) { return backend.Open(cfg, logger) },
		passwords:      auth.NewPasswordService(),
	}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	defaultTimeout time.Duration
	open           func() (executor.Executor, func(), error)
	passwords      *auth.PasswordService
}

// run returns the process exit status.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) > 0 && args[0] == "hash-password" {
		return a.hashPassword()
	}

	fs := flag.NewFlagSet("executor", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	timeout := fs.Duration("timeout", a.defaultTimeout, "wall-clock limit for the run")
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "usage: executor [-timeout 10s] <code | ->")
		fmt.Fprintln(a.stderr, "       executor hash-password")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(a.stderr, "executor: -timeout must be positive")
		return 2
	}

	if fs.NArg() == 0 {
		a.print(executor.NoCode())
		return 1
	}

	code := fs.Arg(0)
	if code == "-" {
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			fmt.Fprintf(a.stderr, "executor: reading code from stdin: %v\n", err)
			return 2
		}
		code = string(b)
	}

	exec, release, err := a.open()
	if err != nil {
		a.print(executor.Internal(err, "", 0))
		return 0
	}
	defer release()

	a.print(exec.Execute(ctx, executor.ExecutionRequest{Code: code, Timeout: *timeout}))
	return 0
}

func (a *app) print(res executor.ExecutionResult) {
	if err := json.NewEncoder(a.stdout).Encode(res); err != nil {
		fmt.Fprintf(a.stderr, "executor: writing result: %v\n", err)
	}
}

// hashPassword reads one line from stdin and prints its bcrypt hash.
func (a *app) hashPassword() int {
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(a.stderr, "executor: reading password: %v\n", err)
		return 2
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(a.stderr, "executor: empty password")
		return 2
	}

	hash, err := a.passwords.Hash(password)
	if err != nil {
		fmt.Fprintf(a.stderr, "executor: %v\n", err)
		return 2
	}
	fmt.Fprintln(a.stdout, hash)
	return 0
}

// Package config loads runtime configuration from environment variables.
//
// Every setting has a default, so an empty environment yields a working
// local setup: python3 processes, history in data/executor.db, auth off.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/code-executor/internal/executor"
	"github.com/sakif/code-executor/internal/executor/docker"
	"github.com/sakif/code-executor/internal/executor/process"
)

// Backend names accepted by EXECUTOR_BACKEND.
const (
	BackendProcess = "process"
	BackendDocker  = "docker"
)

// Config is the full configuration of the HTTP server and the CLI.
type Config struct {
	Port   int
	DBPath string

	Backend string
	Process process.Config
	Docker  docker.Config

	MaxTimeout    time.Duration
	MaxConcurrent int
	MaxCodeBytes  int

	RateLimitRPS   float64
	RateLimitBurst int

	JWTSecret         string
	AdminPasswordHash string
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

// load is Load with an injectable lookup so tests need not touch the real
// environment.
func load(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []string
	intVar := func(key string, fallback int) int {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s: want a positive integer, got %q", key, raw))
			return fallback
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s: want a positive number, got %q", key, raw))
			return fallback
		}
		return v
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		v, err := time.ParseDuration(raw)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s: want a positive duration, got %q", key, raw))
			return fallback
		}
		return v
	}

	proc := process.DefaultConfig()
	proc.Interpreter = env("EXECUTOR_INTERPRETER", proc.Interpreter)
	proc.InterpreterArgs = strings.Fields(env("EXECUTOR_INTERPRETER_ARGS", ""))
	proc.ScriptExt = env("EXECUTOR_SCRIPT_EXT", proc.ScriptExt)
	proc.WorkDir = env("EXECUTOR_WORK_DIR", "")
	proc.DefaultTimeout = durationVar("EXECUTOR_DEFAULT_TIMEOUT", executor.DefaultTimeout)
	proc.JoinGrace = durationVar("EXECUTOR_JOIN_GRACE", proc.JoinGrace)
	proc.KillGrace = durationVar("EXECUTOR_KILL_GRACE", proc.KillGrace)

	dock := docker.DefaultConfig()
	dock.Image = env("DOCKER_IMAGE", dock.Image)
	dock.PoolSize = intVar("DOCKER_POOL_SIZE", dock.PoolSize)
	dock.MemoryLimit = int64(intVar("DOCKER_MEMORY_LIMIT", int(dock.MemoryLimit)))
	dock.CPULimit = floatVar("DOCKER_CPU_LIMIT", dock.CPULimit)
	dock.DefaultTimeout = proc.DefaultTimeout

	cfg := Config{
		Port:              intVar("PORT", 8080),
		DBPath:            env("DB_PATH", "data/executor.db"),
		Backend:           strings.ToLower(env("EXECUTOR_BACKEND", BackendProcess)),
		Process:           proc,
		Docker:            dock,
		MaxTimeout:        durationVar("EXECUTOR_MAX_TIMEOUT", time.Minute),
		MaxConcurrent:     intVar("EXECUTOR_MAX_CONCURRENT", 4),
		MaxCodeBytes:      intVar("EXECUTOR_MAX_CODE_BYTES", 100000),
		RateLimitRPS:      floatVar("RATE_LIMIT_RPS", 2),
		RateLimitBurst:    intVar("RATE_LIMIT_BURST", 5),
		JWTSecret:         getenv("JWT_SECRET"),
		AdminPasswordHash: strings.TrimSpace(getenv("ADMIN_PASSWORD_HASH")),
	}

	if cfg.Backend != BackendProcess && cfg.Backend != BackendDocker {
		errs = append(errs, fmt.Sprintf("EXECUTOR_BACKEND: want %q or %q, got %q", BackendProcess, BackendDocker, cfg.Backend))
	}
	if cfg.Process.DefaultTimeout > cfg.MaxTimeout {
		errs = append(errs, "EXECUTOR_DEFAULT_TIMEOUT must not exceed EXECUTOR_MAX_TIMEOUT")
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// AuthEnabled reports whether API routes require a token.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

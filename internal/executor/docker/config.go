package docker

import (
	"errors"
	"time"

	"github.com/sakif/code-executor/internal/executor"
)

// Config controls the container sandbox.
type Config struct {
	Image          string        // must provide the interpreter named in Command
	MemoryLimit    int64         // bytes per container
	CPULimit       float64       // fractional CPUs per container
	DefaultTimeout time.Duration // for requests without a positive timeout
	PoolSize       int           // idle containers kept warm
	Command        []string      // interpreter invocation; the code is the final argument
}

// DefaultConfig runs python:3.12-alpine with 128 MiB and half a CPU.
func DefaultConfig() Config {
	return Config{
		Image:          "python:3.12-alpine",
		MemoryLimit:    128 << 20,
		CPULimit:       0.5,
		DefaultTimeout: executor.DefaultTimeout,
		PoolSize:       3,
		Command:        []string{"python", "-c"},
	}
}

func (c Config) validate() error {
	switch {
	case c.Image == "":
		return errors.New("docker: image is required")
	case len(c.Command) == 0:
		return errors.New("docker: command is required")
	case c.MemoryLimit < 0 || c.CPULimit < 0:
		return errors.New("docker: resource limits must not be negative")
	}
	return nil
}

package docker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "no image", mutate: func(c *Config) { c.Image = "" }, wantErr: true},
		{name: "no command", mutate: func(c *Config) { c.Command = nil }, wantErr: true},
		{name: "negative memory", mutate: func(c *Config) { c.MemoryLimit = -1 }, wantErr: true},
		{name: "unlimited cpu", mutate: func(c *Config) { c.CPULimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "hi\n", want: []string{"hi"}},
		{in: "  a  \n\nb", want: []string{"a", "", "b"}},
		{in: "crlf\r\n", want: []string{"crlf"}},
	}

	for _, tt := range tests {
		got := splitLines(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitLines(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestAwaitExitCode(t *testing.T) {
	t.Run("waits until the exec stops running", func(t *testing.T) {
		calls := 0
		inspect := func(context.Context) (container.ExecInspect, error) {
			calls++
			if calls < 3 {
				return container.ExecInspect{Running: true, ExitCode: 0}, nil
			}
			return container.ExecInspect{Running: false, ExitCode: 3}, nil
		}

		code, err := awaitExitCode(context.Background(), inspect, time.Millisecond)
		if err != nil {
			t.Fatalf("awaitExitCode() error = %v", err)
		}
		if code != 3 || calls != 3 {
			t.Errorf("awaitExitCode() = %d after %d calls, want 3 after 3", code, calls)
		}
	})

	t.Run("gives up when the deadline passes", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		inspect := func(context.Context) (container.ExecInspect, error) {
			return container.ExecInspect{Running: true}, nil
		}

		if _, err := awaitExitCode(ctx, inspect, time.Millisecond); err == nil {
			t.Error("awaitExitCode() returned no error for an exec that never stops")
		}
	})

	t.Run("inspect failure", func(t *testing.T) {
		inspect := func(context.Context) (container.ExecInspect, error) {
			return container.ExecInspect{}, errors.New("daemon gone")
		}

		if _, err := awaitExitCode(context.Background(), inspect, time.Millisecond); err == nil {
			t.Error("awaitExitCode() swallowed the inspect error")
		}
	})
}

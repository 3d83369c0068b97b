package executor

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleted(t *testing.T) {
	tests := []struct {
		name       string
		exitCode   int
		wantStatus Status
	}{
		{name: "clean exit", exitCode: 0, wantStatus: StatusSuccess},
		{name: "explicit exit 3", exitCode: 3, wantStatus: StatusError},
		{name: "killed by signal", exitCode: 137, wantStatus: StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Completed("out", tt.exitCode, time.Second)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.exitCode, res.ExitCode)
			assert.Equal(t, "out", res.Output)
			assert.False(t, res.SupervisorFailure())
		})
	}
}

func TestSentinelResults(t *testing.T) {
	timeout := TimedOut(time.Second)
	assert.Equal(t, StatusError, timeout.Status)
	assert.Equal(t, "Execution timed out", timeout.Output)
	assert.Equal(t, -1, timeout.ExitCode)
	assert.True(t, timeout.SupervisorFailure())

	noCode := NoCode()
	assert.Equal(t, "No code provided", noCode.Output)
	assert.Equal(t, -3, noCode.ExitCode)

	internal := Internal(errors.New("boom"), "goroutine 1 [running]:", 0)
	assert.Equal(t, -2, internal.ExitCode)
	assert.True(t, strings.HasPrefix(internal.Output, "Execution failed: boom\n"))
	assert.Contains(t, internal.Output, "goroutine 1")

	bare := Internal(errors.New("boom"), "", 0)
	assert.Equal(t, "Execution failed: boom", bare.Output)
}

func TestResultWireFormat(t *testing.T) {
	raw, err := json.Marshal(Completed("hi", 0, 3*time.Second))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	// Duration stays out of the record.
	assert.Len(t, fields, 3)
	assert.Equal(t, "success", fields["status"])
	assert.Equal(t, "hi", fields["output"])
	assert.Equal(t, float64(0), fields["exit_code"])
}

func TestEffectiveTimeout(t *testing.T) {
	assert.Equal(t, 2*time.Second, ExecutionRequest{Timeout: 2 * time.Second}.EffectiveTimeout(time.Minute))
	assert.Equal(t, time.Minute, ExecutionRequest{}.EffectiveTimeout(time.Minute))
	assert.Equal(t, DefaultTimeout, ExecutionRequest{Timeout: -1}.EffectiveTimeout(0))
}

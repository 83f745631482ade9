package cmd

import (
	"encoding/json"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_JSONOutput(t *testing.T) {
	// Given: valid inputs and an evaluator that is not installed
	workspace(t, "")

	// When: running doctor --json
	out, err := execute(t, newDoctorCmd(), "--json")

	// Then: the sweep can run, with a warning for trec_eval
	require.NoError(t, err)
	var res JSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEqual(t, "failed", res.Status)
	assert.NotEmpty(t, res.Warnings)

	byName := map[string]JSONCheckResult{}
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	assert.Equal(t, "pass", byName["config"].Status)
	assert.Equal(t, "pass", byName["corpus"].Status)
	assert.Equal(t, "pass", byName["judgments"].Status)
	assert.Equal(t, "warn", byName["trec_eval"].Status)
	assert.Contains(t, byName["trec_eval"].Message, missingTool)
	assert.Contains(t, byName, "write:indexes")
}

func TestDoctorCmd_BadConfigFails(t *testing.T) {
	workspace(t, "sweep:\n  top_k: 0\n")

	out, err := execute(t, newDoctorCmd())

	require.Error(t, err)
	assert.Contains(t, out, "[FAIL] config")
	assert.Contains(t, out, "Status: FAILED")
}

func TestDoctorCmd_NoGoroutineLeak(t *testing.T) {
	workspace(t, "")
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	for i := 0; i < 5; i++ {
		_, _ = execute(t, newDoctorCmd())
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	leaked := runtime.NumGoroutine() - baseline
	assert.LessOrEqual(t, leaked, 2, "goroutine leak detected: leaked=%d", leaked)
}

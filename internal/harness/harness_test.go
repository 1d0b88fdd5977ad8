package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScenarioFile(t *testing.T, path string) *Result {
	t.Helper()
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := New().Run(context.Background(), scenario)
	require.NoError(t, err)
	return result
}

func TestRun_DebounceCoalesce(t *testing.T) {
	result := runScenarioFile(t, "testdata/scenarios/debounce-coalesce.yaml")
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	assert.Equal(t, 1, result.SaveCount)
}

func TestRun_RetryThenConverge(t *testing.T) {
	result := runScenarioFile(t, "testdata/scenarios/retry-then-converge.yaml")
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	assert.Equal(t, 2, result.SaveCount)
	assert.Nil(t, result.LastError)

	// Failed attempt at the debounce deadline, retry five seconds later.
	var persists []TraceEvent
	for _, ev := range result.Trace {
		if ev.Type == "persist" {
			persists = append(persists, ev)
		}
	}
	require.Len(t, persists, 2)
	assert.Equal(t, int64(1500), persists[0].AtMS)
	assert.True(t, persists[0].Failed)
	assert.Equal(t, int64(6500), persists[1].AtMS)
	assert.False(t, persists[1].Failed)
}

func TestRun_PermanentErrorPersists(t *testing.T) {
	result := runScenarioFile(t, "testdata/scenarios/permanent-error-persists.yaml")
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	require.Error(t, result.LastError)
	assert.Contains(t, result.LastError.Error(), "PERMANENT")
}

func TestRun_CloseFlushDirty(t *testing.T) {
	result := runScenarioFile(t, "testdata/scenarios/close-flush-dirty.yaml")
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	assert.NoError(t, result.CloseErr)
	assert.Equal(t, 1, result.SaveCount)
}

func TestRun_RevertBeforeDebounce(t *testing.T) {
	result := runScenarioFile(t, "testdata/scenarios/revert-before-debounce.yaml")
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	assert.Equal(t, 0, result.SaveCount)
	assert.Nil(t, result.Stored)
}

func TestRun_LoadThenEdit(t *testing.T) {
	result := runScenarioFile(t, "testdata/scenarios/load-then-edit.yaml")
	assert.True(t, result.Pass, "failures: %v", result.Errors)

	require.NotEmpty(t, result.Trace)
	assert.Equal(t, "load", result.Trace[0].Type)
}

func TestRun_TraceSeqIsStrictlyIncreasing(t *testing.T) {
	result := runScenarioFile(t, "testdata/scenarios/retry-then-converge.yaml")
	for i := 1; i < len(result.Trace); i++ {
		assert.Greater(t, result.Trace[i].Seq, result.Trace[i-1].Seq)
	}
}

func TestRun_FailedAssertionFailsResult(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong-count
description: "Asserts a count the run cannot produce"
steps:
  - open:
      initial: { title: "First" }
  - edit: { field: body, value: "draft" }
  - advance: 2s
assertions:
  - type: save_count
    count: 7
`))
	require.NoError(t, err)

	result, err := New().Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "save_count")
}

func TestRun_CloseFlushFailureSurfacesCloseErr(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: close-flush-fails
description: "The close flush fails and the caller learns about it"
port:
  outcomes:
    - fail: true
      message: "backend unavailable"
steps:
  - open:
      initial: { title: "First" }
  - edit: { field: body, value: "unsaved" }
  - close: true
assertions:
  - type: save_count
    count: 1
`))
	require.NoError(t, err)

	result, err := New().Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	require.Error(t, result.CloseErr)
	assert.Contains(t, result.CloseErr.Error(), "backend unavailable")
}

func TestRun_SessionSwitch(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: session-switch
description: "Opening a second record flushes and closes the first"
steps:
  - open:
      record: note-a
      initial: { title: "A" }
  - edit: { field: body, value: "from a" }
  - open:
      record: note-b
      initial: { title: "B" }
  - edit: { field: body, value: "from b" }
  - advance: 2s
assertions:
  - type: save_count
    count: 2
  - type: final_status
    status: clean
  - type: stored_field
    field: body
    value: "from b"
`))
	require.NoError(t, err)

	result, err := New().Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
}

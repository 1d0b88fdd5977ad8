package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGoldenTraces runs every scenario under testdata/scenarios and
// compares its trace against the matching golden file. Regenerate with
// go test ./internal/harness -update after an intentional change.
func TestGoldenTraces(t *testing.T) {
	entries, err := os.ReadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	h := New()
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join("testdata/scenarios", entry.Name())
		t.Run(strings.TrimSuffix(entry.Name(), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, h, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "failures: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "sample",
		Trace: []TraceEvent{
			{Type: "status", Seq: 1, AtMS: 0, Status: "clean"},
			{Type: "persist", Seq: 2, AtMS: 1500, Record: "record-1", Failed: true},
		},
	}

	a, err := marshalSnapshot(snap)
	require.NoError(t, err)
	b, err := marshalSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasSuffix(string(a), "\n"))

	// Zero-valued optionals stay out of the fixture
	assert.NotContains(t, string(a), `"error"`)
	assert.Contains(t, string(a), `"failed": true`)
}

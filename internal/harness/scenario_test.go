package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	data := []byte(`
name: basic-save
description: "Edit then advance past the debounce"
steps:
  - open:
      initial: { title: "First" }
  - edit: { field: body, value: "draft" }
  - advance: 2s
assertions:
  - type: save_count
    count: 1
`)

	scenario, err := ParseScenario(data)
	require.NoError(t, err)
	assert.Equal(t, "basic-save", scenario.Name)
	require.Len(t, scenario.Steps, 3)
	require.NotNil(t, scenario.Steps[0].Open)
	require.NotNil(t, scenario.Steps[1].Edit)
	assert.Equal(t, "body", scenario.Steps[1].Edit.Field)
	assert.Equal(t, "2s", scenario.Steps[2].Advance)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertSaveCount, scenario.Assertions[0].Type)
}

func TestParseScenario_PortOutcomes(t *testing.T) {
	data := []byte(`
name: scripted-failure
description: "First attempt fails"
port:
  outcomes:
    - fail: true
      message: "backend unavailable"
    - fail: false
steps:
  - open: {}
assertions:
  - type: final_status
    status: clean
`)

	scenario, err := ParseScenario(data)
	require.NoError(t, err)
	require.Len(t, scenario.Port.Outcomes, 2)
	assert.True(t, scenario.Port.Outcomes[0].Fail)
	assert.Equal(t, "backend unavailable", scenario.Port.Outcomes[0].Message)
	assert.False(t, scenario.Port.Outcomes[1].Fail)
}

func TestParseScenario_RejectsUnknownField(t *testing.T) {
	data := []byte(`
name: typo
description: "assertion instead of assertions"
steps:
  - open: {}
assertion:
  - type: save_count
    count: 0
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
}

func TestParseScenario_RejectsMissingDescription(t *testing.T) {
	data := []byte(`
name: no-description
steps:
  - open: {}
assertions:
  - type: save_count
    count: 0
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
}

func TestParseScenario_RejectsFirstStepNotOpen(t *testing.T) {
	data := []byte(`
name: edit-first
description: "Edits need an open session"
steps:
  - edit: { field: body, value: "x" }
assertions:
  - type: save_count
    count: 0
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
}

func TestParseScenario_RejectsTwoDirectives(t *testing.T) {
	data := []byte(`
name: double-step
description: "A step cannot both edit and advance"
steps:
  - open: {}
  - edit: { field: body, value: "x" }
    advance: 2s
assertions:
  - type: save_count
    count: 1
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
}

func TestParseScenario_RejectsBadAdvance(t *testing.T) {
	for _, advance := range []string{"fast", "0s"} {
		data := []byte(`
name: bad-advance
description: "Advance must be a positive duration"
steps:
  - open: {}
  - advance: "` + advance + `"
assertions:
  - type: save_count
    count: 0
`)
		_, err := ParseScenario(data)
		require.Error(t, err, "advance %q should be rejected", advance)
	}
}

func TestParseScenario_RejectsUnknownAssertionType(t *testing.T) {
	data := []byte(`
name: bad-assertion
description: "Unknown assertion type"
steps:
  - open: {}
assertions:
  - type: trace_contains
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
}

func TestParseScenario_RejectsBadStatusValue(t *testing.T) {
	// Caught by the CUE schema: "pending" is not a status.
	data := []byte(`
name: bad-status
description: "Status vocabulary is closed"
steps:
  - open: {}
assertions:
  - type: final_status
    status: pending
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
}

func TestParseScenario_RejectsBadName(t *testing.T) {
	data := []byte(`
name: "Has Spaces"
description: "Names are lowercase kebab"
steps:
  - open: {}
assertions:
  - type: save_count
    count: 0
`)

	_, err := ParseScenario(data)
	require.Error(t, err)
}

func TestLoadScenario_FromFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/debounce-coalesce.yaml")
	require.NoError(t, err)
	assert.Equal(t, "debounce-coalesce", scenario.Name)
	assert.Len(t, scenario.Steps, 5)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does-not-exist.yaml")
	require.Error(t, err)
}

func TestValidateSchema_EmptyDocument(t *testing.T) {
	require.Error(t, ValidateSchema([]byte("")))
}

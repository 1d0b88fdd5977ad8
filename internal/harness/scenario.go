package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a real engine on virtual time through a scripted port
// and assert on the resulting status transitions and persist calls.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Record is the default record ID opened by steps that don't name
	// one. Defaults to "record-1".
	Record string `yaml:"record,omitempty"`

	// Seed installs a persisted snapshot in the port before the run, for
	// scenarios that open by loading.
	Seed map[string]any `yaml:"seed,omitempty"`

	// Port scripts the persistence outcomes.
	Port PortScript `yaml:"port,omitempty"`

	// Steps is the driving sequence: open, edit, advance, save_now, close.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// PortScript configures the scripted port for a scenario.
type PortScript struct {
	// Outcomes apply to persist calls in order; once exhausted, every
	// call succeeds.
	Outcomes []OutcomeSpec `yaml:"outcomes,omitempty"`
}

// OutcomeSpec scripts one persist outcome.
type OutcomeSpec struct {
	Fail      bool   `yaml:"fail"`
	Permanent bool   `yaml:"permanent,omitempty"`
	Message   string `yaml:"message,omitempty"`
}

// Step is one scenario action. Exactly one directive must be set.
type Step struct {
	// Open starts a session (closing any open one first).
	Open *OpenStep `yaml:"open,omitempty"`

	// Edit writes one field of the working copy.
	Edit *EditStep `yaml:"edit,omitempty"`

	// Advance moves virtual time forward, e.g. "1500ms" or "10s",
	// letting every due debounce and retry fire along the way.
	Advance string `yaml:"advance,omitempty"`

	// SaveNow requests an immediate save, bypassing the debounce.
	SaveNow bool `yaml:"save_now,omitempty"`

	// Close ends the session with the final-flush discipline.
	Close bool `yaml:"close,omitempty"`
}

// OpenStep opens a record for editing.
type OpenStep struct {
	// Record overrides the scenario-level record ID.
	Record string `yaml:"record,omitempty"`

	// Initial seeds the session's working copy and baseline. When nil
	// the engine loads through the port instead.
	Initial map[string]any `yaml:"initial,omitempty"`
}

// EditStep writes one field.
type EditStep struct {
	Field string `yaml:"field"`
	Value any    `yaml:"value"`
}

// Assertion validates the run's outcome.
type Assertion struct {
	// Type specifies the assertion:
	// - "final_status": engine status after the last step
	// - "save_count": exact number of persist attempts
	// - "status_order": exact sequence of status transitions
	// - "stored_field": a field value in the port's final snapshot
	// - "last_error": substring of the engine's last save error
	Type string `yaml:"type"`

	// Status is the expected status (used by final_status).
	Status string `yaml:"status,omitempty"`

	// Count is the expected attempt count (used by save_count).
	Count int `yaml:"count,omitempty"`

	// Statuses is the expected transition sequence (used by status_order).
	Statuses []string `yaml:"statuses,omitempty"`

	// Field and Value name the expected stored value (used by stored_field).
	Field string `yaml:"field,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Error is the expected error substring (used by last_error).
	Error string `yaml:"error,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalStatus = "final_status"
	AssertSaveCount   = "save_count"
	AssertStatusOrder = "status_order"
	AssertStoredField = "stored_field"
	AssertLastError   = "last_error"
)

// LoadScenario reads and parses a scenario YAML file.
// The file is checked three ways: strict YAML decoding (catches typos),
// CUE schema validation (catches structural mistakes), and semantic
// validation (catches contradictory steps).
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes. See LoadScenario.
func ParseScenario(data []byte) (*Scenario, error) {
	// Validate against the CUE schema first - its errors name the
	// offending field, which beats a YAML type mismatch message.
	if err := ValidateSchema(data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like
	// "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate semantic constraints
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks constraints the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	if s.Steps[0].Open == nil {
		return fmt.Errorf("steps[0]: first step must be an open")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep ensures exactly one directive per step.
func validateStep(index int, step *Step) error {
	n := 0
	if step.Open != nil {
		n++
	}
	if step.Edit != nil {
		n++
		if step.Edit.Field == "" {
			return fmt.Errorf("steps[%d].edit: field is required", index)
		}
	}
	if step.Advance != "" {
		n++
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: bad advance duration %q: %w", index, step.Advance, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be positive, got %q", index, step.Advance)
		}
	}
	if step.SaveNow {
		n++
	}
	if step.Close {
		n++
	}
	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of open/edit/advance/save_now/close is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for final_status", index)
		}
	case AssertSaveCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for save_count", index)
		}
	case AssertStatusOrder:
		if len(a.Statuses) == 0 {
			return fmt.Errorf("assertions[%d]: statuses list is required for status_order", index)
		}
	case AssertStoredField:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for stored_field", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for stored_field", index)
		}
	case AssertLastError:
		if a.Error == "" {
			return fmt.Errorf("assertions[%d]: error is required for last_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

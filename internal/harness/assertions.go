package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/inkwell/internal/field"
)

// AssertionError is returned when an assertion fails.
// It includes expected and actual outcomes plus the full trace for context.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		switch event.Type {
		case "status":
			line := event.Status
			if event.Error != "" {
				line += " (" + event.Error + ")"
			}
			fmt.Fprintf(&buf, "  [%d] %dms status=%s\n", i+1, event.AtMS, line)
		default:
			fmt.Fprintf(&buf, "  [%d] %dms %s record=%s failed=%v\n", i+1, event.AtMS, event.Type, event.Record, event.Failed)
		}
	}

	return buf.String()
}

// assertFinalStatus checks the engine's status after the last step.
func assertFinalStatus(result *Result, assertion Assertion) error {
	actual := result.FinalStatus.String()
	if actual == assertion.Status {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalStatus,
		Expected: fmt.Sprintf("status %s", assertion.Status),
		Actual:   fmt.Sprintf("status %s", actual),
		Trace:    result.Trace,
	}
}

// assertSaveCount checks the exact number of persist attempts.
func assertSaveCount(result *Result, assertion Assertion) error {
	if result.SaveCount == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertSaveCount,
		Expected: fmt.Sprintf("%d persist attempts", assertion.Count),
		Actual:   fmt.Sprintf("%d persist attempts", result.SaveCount),
		Trace:    result.Trace,
	}
}

// assertStatusOrder checks the exact sequence of status transitions.
func assertStatusOrder(result *Result, assertion Assertion) error {
	var actual []string
	for _, event := range result.Trace {
		if event.Type == "status" {
			actual = append(actual, event.Status)
		}
	}

	match := len(actual) == len(assertion.Statuses)
	if match {
		for i := range actual {
			if actual[i] != assertion.Statuses[i] {
				match = false
				break
			}
		}
	}
	if match {
		return nil
	}
	return &AssertionError{
		Type:     AssertStatusOrder,
		Expected: fmt.Sprintf("transitions %v", assertion.Statuses),
		Actual:   fmt.Sprintf("transitions %v", actual),
		Trace:    result.Trace,
	}
}

// assertStoredField checks one field of the port's final snapshot.
// Comparison is semantic: tag lists match regardless of order.
func assertStoredField(result *Result, assertion Assertion) error {
	expected, err := field.FromAny(assertion.Value)
	if err != nil {
		return &AssertionError{
			Type:     AssertStoredField,
			Expected: fmt.Sprintf("a comparable value for %s", assertion.Field),
			Actual:   fmt.Sprintf("unsupported assertion value: %v", err),
			Trace:    result.Trace,
		}
	}

	if result.Stored == nil {
		return &AssertionError{
			Type:     AssertStoredField,
			Expected: fmt.Sprintf("%s = %v", assertion.Field, assertion.Value),
			Actual:   "nothing persisted",
			Trace:    result.Trace,
		}
	}
	actual, ok := result.Stored[assertion.Field]
	if !ok {
		return &AssertionError{
			Type:     AssertStoredField,
			Expected: fmt.Sprintf("%s = %v", assertion.Field, assertion.Value),
			Actual:   fmt.Sprintf("field %s not present", assertion.Field),
			Trace:    result.Trace,
		}
	}
	if field.Equal(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     AssertStoredField,
		Expected: fmt.Sprintf("%s = %v", assertion.Field, assertion.Value),
		Actual:   fmt.Sprintf("%s = %v", assertion.Field, field.ToAny(actual)),
		Trace:    result.Trace,
	}
}

// assertLastError checks that the engine's last save failure contains the
// expected substring.
func assertLastError(result *Result, assertion Assertion) error {
	if result.LastError == nil {
		return &AssertionError{
			Type:     AssertLastError,
			Expected: fmt.Sprintf("error containing %q", assertion.Error),
			Actual:   "no error",
			Trace:    result.Trace,
		}
	}
	if strings.Contains(result.LastError.Error(), assertion.Error) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLastError,
		Expected: fmt.Sprintf("error containing %q", assertion.Error),
		Actual:   fmt.Sprintf("error %q", result.LastError.Error()),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion; empty means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string

	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertFinalStatus:
			err = assertFinalStatus(result, assertion)
		case AssertSaveCount:
			err = assertSaveCount(result, assertion)
		case AssertStatusOrder:
			err = assertStatusOrder(result, assertion)
		case AssertStoredField:
			err = assertStoredField(result, assertion)
		case AssertLastError:
			err = assertLastError(result, assertion)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}

		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}

	return failures
}

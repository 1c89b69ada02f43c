package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/bonfire/internal/present"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
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

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case EventStep:
				fmt.Fprintf(&buf, "  [%d] %s %v", event.Seq, event.Action, event.Args)
				if event.Error != "" {
					fmt.Fprintf(&buf, " error=%s", event.Error)
				}
				buf.WriteString("\n")
			case EventTrigger:
				fmt.Fprintf(&buf, "  [%d]   -> %s\n", event.Seq, formatTrigger(*event.Trigger))
			}
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTriggerContains:
		return assertTriggerContains(result.Trace, a)
	case AssertTriggerOrder:
		return assertTriggerOrder(result.Trace, a)
	case AssertTriggerCount:
		return assertTriggerCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTriggerContains checks for a trigger matching every non-empty field
// of the expected trigger.
func assertTriggerContains(trace []TraceEvent, assertion Assertion) error {
	want := *assertion.Trigger
	for _, event := range trace {
		if event.Type == EventTrigger && matchTrigger(*event.Trigger, want) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTriggerContains,
		Expected: formatTrigger(want),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTriggerOrder checks that items were first triggered in the given
// order. Other triggers may come in between.
func assertTriggerOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int64)
	for _, event := range trace {
		if event.Type != EventTrigger {
			continue
		}
		id := event.Trigger.ItemID
		if _, seen := positions[id]; !seen {
			positions[id] = event.Seq
		}
	}

	for _, item := range assertion.Items {
		if _, ok := positions[item]; !ok {
			return &AssertionError{
				Type:     AssertTriggerOrder,
				Expected: fmt.Sprintf("all items triggered: %v", assertion.Items),
				Actual:   fmt.Sprintf("missing item: %s", item),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Items); i++ {
		prev, curr := assertion.Items[i-1], assertion.Items[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTriggerOrder,
				Expected: fmt.Sprintf("items in order: %v", assertion.Items),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTriggerCount checks the exact number of triggers, for one item when
// Item is set.
func assertTriggerCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type != EventTrigger {
			continue
		}
		if assertion.Item == "" || event.Trigger.ItemID == assertion.Item {
			count++
		}
	}

	if count == assertion.Count {
		return nil
	}

	what := "triggers"
	if assertion.Item != "" {
		what = "triggers for " + assertion.Item
	}
	return &AssertionError{
		Type:     AssertTriggerCount,
		Expected: fmt.Sprintf("%d %s", assertion.Count, what),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Trace:    trace,
	}
}

// assertFinalState compares the final state with subset semantics: only
// fields named in Expect are checked.
func assertFinalState(state map[string]any, assertion Assertion) error {
	for key, expected := range assertion.Expect {
		actual, ok := state[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   "field not present in state",
			}
		}
		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

// stateValuesEqual compares a YAML-decoded expectation with a state value.
// YAML integers decode as int; bools as bool.
func stateValuesEqual(expected, actual any) bool {
	switch e := expected.(type) {
	case int:
		a, ok := actual.(int)
		return ok && a == e
	case int64:
		a, ok := actual.(int)
		return ok && int64(a) == e
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	default:
		return fmt.Sprint(expected) == fmt.Sprint(actual)
	}
}

func matchTrigger(got, want present.Trigger) bool {
	if want.MainText != "" && got.MainText != want.MainText {
		return false
	}
	if want.SubText != "" && got.SubText != want.SubText {
		return false
	}
	if want.ItemID != "" && got.ItemID != want.ItemID {
		return false
	}
	return true
}

func formatTrigger(t present.Trigger) string {
	s := fmt.Sprintf("%q / %q", t.MainText, t.SubText)
	if t.ItemID != "" {
		s += " (" + t.ItemID + ")"
	}
	return s
}

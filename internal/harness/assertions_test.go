package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bonfire/internal/present"
)

func sampleResult() *Result {
	r := NewResult()
	r.addStep(StepStart, nil, "", true)
	r.addStep(StepMove, map[string]string{"card": "A-1"}, "", true)
	r.addTrigger(present.Trigger{MainText: "YOU DEFEATED", SubText: "Task Conquered - A-1", ItemID: "A-1"})
	r.addStep(StepMove, map[string]string{"card": "A-2"}, "", true)
	r.addTrigger(present.Trigger{MainText: "VICTORY ACHIEVED", SubText: "Epic Completed - A-2", ItemID: "A-2"})
	r.addTrigger(present.Trigger{MainText: "YOU DEFEATED", SubText: "Task Conquered - A-1", ItemID: "A-1"})
	r.State = map[string]any{"observing": true, "subscriptions": 3}
	return r
}

func TestResult_SeqAndTriggers(t *testing.T) {
	r := sampleResult()
	for i, e := range r.Trace {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	require.Len(t, r.Triggers(), 3)
	assert.Equal(t, "A-2", r.Triggers()[1].ItemID)
}

func TestTriggerContains(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTriggerContains(r.Trace, Assertion{Trigger: &present.Trigger{ItemID: "A-2"}}))
	assert.NoError(t, assertTriggerContains(r.Trace, Assertion{Trigger: &present.Trigger{MainText: "YOU DEFEATED"}}))

	err := assertTriggerContains(r.Trace, Assertion{Trigger: &present.Trigger{MainText: "YOU DEFEATED", ItemID: "A-2"}})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTriggerContains, aerr.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), `-> "VICTORY ACHIEVED" / "Epic Completed - A-2" (A-2)`)
}

func TestTriggerOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTriggerOrder(r.Trace, Assertion{Items: []string{"A-1", "A-2"}}))

	err := assertTriggerOrder(r.Trace, Assertion{Items: []string{"A-2", "A-1"}})
	assert.ErrorContains(t, err, "A-2 (seq 5) should be before A-1 (seq 3)")

	err = assertTriggerOrder(r.Trace, Assertion{Items: []string{"A-1", "A-9"}})
	assert.ErrorContains(t, err, "missing item: A-9")
}

func TestTriggerCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTriggerCount(r.Trace, Assertion{Count: 3}))
	assert.NoError(t, assertTriggerCount(r.Trace, Assertion{Item: "A-1", Count: 2}))
	assert.NoError(t, assertTriggerCount(r.Trace, Assertion{Item: "A-3", Count: 0}))

	err := assertTriggerCount(r.Trace, Assertion{Item: "A-2", Count: 2})
	assert.ErrorContains(t, err, "Expected: 2 triggers for A-2")
}

func TestFinalState(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertFinalState(r.State, Assertion{Expect: map[string]any{"observing": true}}))
	assert.NoError(t, assertFinalState(r.State, Assertion{Expect: map[string]any{"subscriptions": 3}}))

	assert.ErrorContains(t,
		assertFinalState(r.State, Assertion{Expect: map[string]any{"subscriptions": 2}}),
		`field "subscriptions" = 2 (type int)`)
	assert.ErrorContains(t,
		assertFinalState(r.State, Assertion{Expect: map[string]any{"observing": 1}}),
		`field "observing"`)
	assert.ErrorContains(t,
		assertFinalState(r.State, Assertion{Expect: map[string]any{"dropped": 0}}),
		"field not present")
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTriggerCount, Count: 3},
		{Type: AssertTriggerCount, Count: 1},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestMarshalTrace(t *testing.T) {
	r := NewResult()
	r.addStep(StepStart, nil, "TARGET_NOT_READY", false)

	out, err := MarshalTrace("x", r.Trace)
	require.NoError(t, err)
	assert.Equal(t, `{
  "scenario_name": "x",
  "trace": [
    {
      "seq": 1,
      "type": "step",
      "action": "start",
      "error": "TARGET_NOT_READY",
      "observing": false
    }
  ]
}`, string(out))
}

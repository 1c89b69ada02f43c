package harness

import "github.com/roach88/bonfire/internal/present"

// Trace event types.
const (
	EventStep    = "step"
	EventTrigger = "trigger"
)

// TraceEvent is one entry of a scenario trace: either a step that ran or a
// trigger that reached the sink.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Step fields.
	Action    string            `json:"action,omitempty"`
	Args      map[string]string `json:"args,omitempty"`
	Error     string            `json:"error,omitempty"`
	Observing *bool             `json:"observing,omitempty"`

	// Trigger fields.
	Trigger *present.Trigger `json:"trigger,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps and triggers in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final engine state: observing, subscriptions,
	// batches, dispatched, dropped, presented.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Triggers returns the traced triggers in order.
func (r *Result) Triggers() []present.Trigger {
	var out []present.Trigger
	for _, e := range r.Trace {
		if e.Type == EventTrigger && e.Trigger != nil {
			out = append(out, *e.Trigger)
		}
	}
	return out
}

func (r *Result) addStep(action string, args map[string]string, code string, observing bool) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:       int64(len(r.Trace) + 1),
		Type:      EventStep,
		Action:    action,
		Args:      args,
		Error:     code,
		Observing: &observing,
	})
}

func (r *Result) addTrigger(t present.Trigger) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     int64(len(r.Trace) + 1),
		Type:    EventTrigger,
		Trigger: &t,
	})
}

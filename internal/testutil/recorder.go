package testutil

import (
	"sync"
	"time"

	"github.com/roach88/bonfire/internal/present"
)

// Recorder is a present.Sink that records what it is asked to show.
//
// Thread-safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	triggers []present.Trigger
	dismiss  int
	err      error
	panicMsg string
	notify   chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// FailWith makes subsequent Present calls record the trigger and return err.
func (r *Recorder) FailWith(err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// PanicWith makes subsequent Present calls record the trigger and panic.
func (r *Recorder) PanicWith(msg string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicMsg = msg
	return r
}

// Present implements present.Sink.
func (r *Recorder) Present(t present.Trigger) error {
	r.mu.Lock()
	r.triggers = append(r.triggers, t)
	err, panicMsg := r.err, r.panicMsg
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}

	if panicMsg != "" {
		panic(panicMsg)
	}
	return err
}

// Dismiss implements present.Sink.
func (r *Recorder) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismiss++
}

// Triggers returns a copy of the recorded triggers in arrival order.
func (r *Recorder) Triggers() []present.Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]present.Trigger, len(r.triggers))
	copy(out, r.triggers)
	return out
}

// Dismissals returns how many times Dismiss was called.
func (r *Recorder) Dismissals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dismiss
}

// WaitFor blocks until at least n triggers were recorded or timeout elapses.
// Returns whether n was reached.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		r.mu.Lock()
		got := len(r.triggers)
		r.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline:
			return false
		}
	}
}

var _ present.Sink = (*Recorder)(nil)

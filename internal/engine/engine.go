package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/bonfire/internal/board"
	"github.com/roach88/bonfire/internal/settings"
)

// Discovery defaults.
const (
	DefaultDiscoveryInterval = 500 * time.Millisecond
	DefaultDiscoveryTimeout  = 10 * time.Second
)

// Host is the page the engine is attached to.
type Host interface {
	// URL returns the address of the current page.
	URL() string

	// Containers returns the column containers currently rendered, in
	// document order. An empty result means "not rendered yet".
	Containers(ctx context.Context) ([]board.Handle, error)
}

// Handler receives qualifying insertions. Implemented by dispatch.Dispatcher.
type Handler interface {
	Handle(Insertion)
}

// SettingsSource returns the settings classification runs against.
// Implemented by settings.Manager.Get.
type SettingsSource func() settings.Settings

// Engine is the single-consumer change detection loop.
//
// The engine subscribes to a board's column containers, receives mutation
// batches in FIFO order and hands each qualifying card insertion to its
// handler.
//
// Thread-safety model:
//   - Start(), Observe(), Stop(), Enqueue(): safe from any goroutine
//   - Run() / ProcessPending(): exactly one consumer at a time
//
// INVARIANTS:
//   - While observing there is exactly one subscription per container found
//     at setup
//   - Teardown is all-or-nothing; no batch from before a Stop is dispatched
//     after it
type Engine struct {
	host     Host
	handler  Handler
	settings SettingsSource
	clock    Clock
	queue    *eventQueue

	discoveryInterval time.Duration
	discoveryTimeout  time.Duration

	mu            sync.Mutex
	observing     bool
	starting      bool
	generation    uint64
	subscriptions map[board.Handle]struct{}

	stats Stats
}

// Stats counts what the engine has seen. Safe to read at any time.
type Stats struct {
	Batches    atomic.Int64
	Dispatched atomic.Int64
	Dropped    atomic.Int64
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the discovery time source.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithDiscovery sets the discovery poll interval and hard timeout.
//
// Default: poll every 500ms, give up after 10s.
func WithDiscovery(interval, timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if interval > 0 {
			e.discoveryInterval = interval
		}
		if timeout > 0 {
			e.discoveryTimeout = timeout
		}
	}
}

// New creates an idle Engine.
func New(host Host, handler Handler, source SettingsSource, opts ...EngineOption) *Engine {
	e := &Engine{
		host:              host,
		handler:           handler,
		settings:          source,
		clock:             SystemClock(),
		queue:             newEventQueue(),
		discoveryInterval: DefaultDiscoveryInterval,
		discoveryTimeout:  DefaultDiscoveryTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start discovers the board's containers and subscribes to them.
//
// Discovery probes the host every discovery interval until at least one
// container is rendered, giving up after the discovery timeout with
// ErrTargetNotReady. Start is a no-op while observing or while another Start
// is in flight. A Stop during discovery abandons the start.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.observing || e.starting {
		observing := e.observing
		e.mu.Unlock()
		slog.Debug("engine start skipped", "observing", observing)
		return nil
	}
	e.starting = true
	gen := e.generation
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.starting = false
		e.mu.Unlock()
	}()

	url := e.host.URL()
	if !board.IsBoardView(url) {
		slog.Debug("engine start skipped: not a board view", "url", url)
		return NewNotBoardViewError(url)
	}

	handles, err := e.discover(ctx, url)
	if err != nil {
		return err
	}

	e.mu.Lock()
	abandoned := e.generation != gen
	e.mu.Unlock()
	if abandoned {
		slog.Debug("engine start abandoned: stopped during discovery")
		return nil
	}

	return e.Observe(handles)
}

// discover polls the host until containers are rendered or the timeout
// elapses.
func (e *Engine) discover(ctx context.Context, url string) ([]board.Handle, error) {
	deadline := e.clock.Now().Add(e.discoveryTimeout)
	attempts := 0

	for {
		attempts++
		handles, err := e.host.Containers(ctx)
		if err != nil {
			slog.Debug("container probe failed", "attempt", attempts, "error", err)
		} else if len(handles) > 0 {
			slog.Debug("containers discovered", "count", len(handles), "attempts", attempts)
			return handles, nil
		}

		if !e.clock.Now().Before(deadline) {
			slog.Warn("board containers not found",
				"url", url,
				"attempts", attempts,
				"timeout", e.discoveryTimeout,
			)
			return nil, NewTargetNotReadyError(url, attempts, e.discoveryTimeout.String())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.clock.After(e.discoveryInterval):
		}
	}
}

// Observe subscribes to exactly the given containers.
// No-op while observing. Returns ErrNoContainers for an empty set.
func (e *Engine) Observe(handles []board.Handle) error {
	if len(handles) == 0 {
		return ErrNoContainers
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.observing {
		return nil
	}

	subs := make(map[board.Handle]struct{}, len(handles))
	for _, h := range handles {
		subs[h] = struct{}{}
	}

	e.generation++
	e.subscriptions = subs
	e.observing = true

	slog.Info("observing board", "containers", len(subs), "generation", e.generation)
	return nil
}

// Stop removes every subscription. Effective immediately: batches already
// queued are discarded when consumed. No-op when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Bumped even when idle so that an in-flight Start is abandoned.
	e.generation++

	if !e.observing {
		return
	}

	e.observing = false
	e.subscriptions = nil

	slog.Info("observation stopped", "generation", e.generation)
}

// Observing reports whether the engine holds subscriptions.
func (e *Engine) Observing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observing
}

// Subscriptions returns the observed container handles.
func (e *Engine) Subscriptions() []board.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]board.Handle, 0, len(e.subscriptions))
	for h := range e.subscriptions {
		out = append(out, h)
	}
	return out
}

// Snapshot returns the state classification currently runs against.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	subs := make(map[board.Handle]struct{}, len(e.subscriptions))
	for h := range e.subscriptions {
		subs[h] = struct{}{}
	}
	st := State{
		Observing:     e.observing,
		Generation:    e.generation,
		Subscriptions: subs,
	}
	e.mu.Unlock()

	if e.settings != nil {
		st.Settings = e.settings()
	}
	return st
}

// Stats returns the engine's counters.
func (e *Engine) Stats() *Stats {
	return &e.stats
}

// Enqueue submits a batch for processing by the Run loop, stamped with the
// current subscription generation. Empty batches are ignored.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been closed.
func (e *Engine) Enqueue(batch board.MutationBatch) bool {
	if batch.Empty() {
		return true
	}

	e.mu.Lock()
	gen := e.generation
	e.mu.Unlock()

	return e.queue.Enqueue(Event{Generation: gen, Batch: batch})
}

// QueueLen returns the number of batches waiting to be processed.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-consumer event loop.
// Blocks until context is cancelled or Close() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			e.process(event)
			continue
		}

		// No event ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case _, open := <-e.queue.Wait():
			// The signal channel closes when the queue is closed.
			if !open && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// ProcessPending processes every queued batch on the calling goroutine and
// returns how many were consumed. Must not run concurrently with Run.
func (e *Engine) ProcessPending() int {
	n := 0
	for {
		event, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.process(event)
		n++
	}
}

// Close shuts down the queue, which will cause Run() to return.
func (e *Engine) Close() {
	e.queue.Close()
}

// process classifies one batch and dispatches its qualifying insertions.
// Records are handled in order, and nodes in record order.
func (e *Engine) process(event Event) {
	e.stats.Batches.Add(1)

	for i, rec := range event.Batch.Records {
		// Re-read per record so a Stop from a handler takes effect before
		// the next record.
		state := e.Snapshot()
		if !state.Observing || state.Generation != event.Generation {
			for _, rest := range event.Batch.Records[i:] {
				e.stats.Dropped.Add(int64(len(rest.Added)))
			}
			slog.Debug("dropping stale batch",
				"batch_generation", event.Generation,
				"generation", state.Generation,
				"observing", state.Observing,
			)
			return
		}

		insertions, drops := classify(state, rec)
		for _, d := range drops {
			e.stats.Dropped.Add(1)
			slog.Debug("insertion dropped", "container", d.Target, "column", d.Column, "reason", d.Reason)
		}
		for _, ins := range insertions {
			if !e.current(event.Generation) {
				e.stats.Dropped.Add(1)
				continue
			}
			e.stats.Dispatched.Add(1)
			e.handler.Handle(ins)
		}
	}
}

// current reports whether gen is still the live, observing generation.
func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observing && e.generation == gen
}

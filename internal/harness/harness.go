package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/bonfire/internal/board"
	"github.com/roach88/bonfire/internal/dispatch"
	"github.com/roach88/bonfire/internal/engine"
	"github.com/roach88/bonfire/internal/observe"
	"github.com/roach88/bonfire/internal/settings"
	"github.com/roach88/bonfire/internal/store"
	"github.com/roach88/bonfire/internal/testutil"
)

// Harness is one scenario run: the detection pipeline wired to a scripted
// page, an in-memory store and a recording sink.
//
// Everything runs on the calling goroutine. After each step the page is
// polled and the engine queue drained with ProcessPending, so a step's
// triggers are known when the step returns.
type Harness struct {
	store    *store.Store
	settings *settings.Manager
	page     *scriptedPage
	poller   *observe.Poller
	engine   *engine.Engine
	dispatch *dispatch.Dispatcher
	sink     *testutil.Recorder
	clock    *testutil.FakeClock
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. An error
// is returned only when the run itself cannot be set up; failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	h, err := New(scenario)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Flow {
		h.execute(ctx, i, step, result)
	}

	result.State = h.State()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// New prepares a harness for scenario without running any step.
func New(scenario *Scenario) (*Harness, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	mgr := settings.NewManager(st)
	ctx := context.Background()
	if scenario.Settings != nil {
		if err := mgr.Save(ctx, scenario.Settings.Settings); err != nil {
			st.Close()
			return nil, fmt.Errorf("scenario settings: %w", err)
		}
	} else if err := mgr.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}

	url := scenario.URL
	if url == "" {
		url = testutil.BoardURL
	}

	h := &Harness{
		store:    st,
		settings: mgr,
		page:     &scriptedPage{url: url, page: testutil.Page{Columns: scenario.Board}},
		sink:     testutil.NewRecorder(),
		clock:    testutil.NewAutoAdvanceClock(time.Time{}),
	}
	h.dispatch = dispatch.New(h.sink)
	h.poller = observe.NewPoller(h.page, h, observe.WithInitialURL(url))
	h.engine = engine.New(h.poller, h.dispatch, mgr.Get, engine.WithClock(h.clock))

	// The daemon restarts a second after a navigation; scenarios restart
	// explicitly with a start step.
	h.poller.OnNavigate(func(string) { h.engine.Stop() })

	// Baseline rendering.
	if _, err := h.poller.Poll(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("initial poll: %w", err)
	}

	return h, nil
}

// Close releases the harness store.
func (h *Harness) Close() error {
	h.engine.Close()
	return h.store.Close()
}

// Enqueue implements observe.Enqueuer.
func (h *Harness) Enqueue(batch board.MutationBatch) bool {
	return h.engine.Enqueue(batch)
}

// Clock returns the harness clock.
func (h *Harness) Clock() *testutil.FakeClock { return h.clock }

// State returns the engine state final_state assertions check.
func (h *Harness) State() map[string]any {
	stats := h.engine.Stats()
	return map[string]any{
		"observing":     h.engine.Observing(),
		"subscriptions": len(h.engine.Subscriptions()),
		"batches":       int(stats.Batches.Load()),
		"dispatched":    int(stats.Dispatched.Load()),
		"dropped":       int(stats.Dropped.Load()),
		"presented":     int(h.dispatch.Presented()),
	}
}

// execute runs one step and records it, its triggers and any violated
// expectation.
func (h *Harness) execute(ctx context.Context, index int, step FlowStep, result *Result) {
	before := len(h.sink.Triggers())

	err := h.apply(ctx, step)
	code := errorCode(err)

	result.addStep(step.Invoke, step.Args, code, h.engine.Observing())

	produced := h.sink.Triggers()[before:]
	for _, t := range produced {
		result.addTrigger(t)
	}

	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}
	if code != expect.Error {
		switch {
		case expect.Error == "":
			result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error %v", index, step.Invoke, err))
		default:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %q", index, step.Invoke, expect.Error, code))
		}
	}
	if expect.Observing != nil && *expect.Observing != h.engine.Observing() {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected observing=%t", index, step.Invoke, *expect.Observing))
	}
	if expect.Triggers != nil && *expect.Triggers != len(produced) {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected %d triggers, got %d", index, step.Invoke, *expect.Triggers, len(produced)))
	}
}

// apply performs a step, then lets the pipeline settle.
func (h *Harness) apply(ctx context.Context, step FlowStep) error {
	var err error

	switch step.Invoke {
	case StepStart:
		err = h.engine.Start(ctx)
	case StepStop:
		h.engine.Stop()
	case StepMove:
		h.page.move(step.Args["card"], step.Args["from"], step.Args["to"])
	case StepRender:
		h.page.render(step.Board)
	case StepPoll:
	case StepNavigate:
		h.page.Navigate(step.Args["url"])
	case StepSettings:
		if err = h.settings.Save(ctx, step.Settings.Settings); err == nil {
			h.engine.Stop()
			if h.settings.Get().Enabled {
				err = h.engine.Start(ctx)
			}
		}
	case StepShowBanner:
		h.dispatch.Present(*step.Trigger)
	default:
		return fmt.Errorf("unknown step %q", step.Invoke)
	}

	if _, perr := h.poller.Poll(ctx); perr != nil && err == nil {
		err = perr
	}
	h.engine.ProcessPending()
	return err
}

// errorCode names err for traces: the runtime error code when there is one.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var rerr *engine.RuntimeError
	if errors.As(err, &rerr) {
		return string(rerr.Code)
	}
	if errors.Is(err, settings.ErrNoActiveMappings) {
		return "NO_ACTIVE_MAPPINGS"
	}
	return err.Error()
}

// scriptedPage is the page the harness mutates between polls.
type scriptedPage struct {
	mu   sync.Mutex
	url  string
	page testutil.Page
}

// Fetch implements observe.Fetcher.
func (p *scriptedPage) Fetch(ctx context.Context) (observe.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return observe.Page{URL: p.url, Body: []byte(p.page.HTML())}, nil
}

// Navigate implements observe.Navigator.
func (p *scriptedPage) Navigate(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *scriptedPage) move(card, from, to string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = p.page.Move(card, from, to)
}

func (p *scriptedPage) render(cols []testutil.Column) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = testutil.Page{Columns: cols}
}

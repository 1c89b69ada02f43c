package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bonfire/internal/board"
	"github.com/roach88/bonfire/internal/settings"
	"github.com/roach88/bonfire/internal/testutil"
)

// fakeHost serves container handles, optionally only after a number of
// probes.
type fakeHost struct {
	mu      sync.Mutex
	url     string
	handles []board.Handle
	readyAt int // probe number from which handles are returned
	probes  int
	err     error
}

func newFakeHost(handles ...board.Handle) *fakeHost {
	return &fakeHost{url: testutil.BoardURL, handles: handles, readyAt: 1}
}

func (h *fakeHost) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

func (h *fakeHost) Containers(context.Context) ([]board.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes++
	if h.err != nil {
		return nil, h.err
	}
	if h.readyAt == 0 || h.probes < h.readyAt {
		return nil, nil
	}
	return h.handles, nil
}

func (h *fakeHost) Probes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.probes
}

// captureHandler records insertions.
type captureHandler struct {
	mu   sync.Mutex
	got  []Insertion
	each func(Insertion)
}

func (c *captureHandler) Handle(ins Insertion) {
	c.mu.Lock()
	c.got = append(c.got, ins)
	each := c.each
	c.mu.Unlock()
	if each != nil {
		each(ins)
	}
}

func (c *captureHandler) Insertions() []Insertion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Insertion(nil), c.got...)
}

func doneSettings() settings.Settings {
	return settings.Settings{
		Enabled: true,
		Mappings: []settings.ColumnMapping{
			{ColumnName: "Done", MainText: "YOU DEFEATED", SubText: "Task Conquered"},
		},
	}
}

func card(id string) board.Node {
	return board.Node{Key: "k-" + id, Card: &board.Card{ElementID: "card-" + id}}
}

func insert(target board.Handle, column string, nodes ...board.Node) board.MutationBatch {
	return board.MutationBatch{Records: []board.MutationRecord{{Target: target, Column: column, Added: nodes}}}
}

func newTestEngine(t *testing.T, host *fakeHost, h Handler) (*Engine, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewAutoAdvanceClock(time.Time{})
	e := New(host, h, doneSettings, WithClock(clock))
	return e, clock
}

func TestEngine_StartObservesDiscoveredContainers(t *testing.T) {
	host := newFakeHost("list-0", "list-1")
	e, _ := newTestEngine(t, host, &captureHandler{})

	require.NoError(t, e.Start(context.Background()))

	assert.True(t, e.Observing())
	assert.ElementsMatch(t, []board.Handle{"list-0", "list-1"}, e.Subscriptions())
}

func TestEngine_DiscoveryRetriesUntilRendered(t *testing.T) {
	host := newFakeHost("list-0")
	host.readyAt = 4
	e, clock := newTestEngine(t, host, &captureHandler{})

	require.NoError(t, e.Start(context.Background()))

	assert.True(t, e.Observing())
	assert.Equal(t, 4, host.Probes())
	assert.Equal(t, 3, clock.Waits())
	assert.Equal(t, testutil.Epoch.Add(1500*time.Millisecond), clock.Now())
}

func TestEngine_DiscoveryTimeout(t *testing.T) {
	host := newFakeHost("list-0")
	host.readyAt = 0 // never ready
	e, clock := newTestEngine(t, host, &captureHandler{})

	err := e.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTargetNotReady(err))

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeTargetNotReady, re.Code)
	assert.Equal(t, "21", re.Details["attempts"])

	assert.False(t, e.Observing())
	assert.Equal(t, 21, host.Probes(), "one probe at t=0 and one per 500ms up to 10s")
	assert.Equal(t, testutil.Epoch.Add(10*time.Second), clock.Now())

	// No automatic retry.
	assert.Equal(t, 21, host.Probes())

	// A later explicit start succeeds once the containers exist.
	host.mu.Lock()
	host.readyAt = 1
	host.mu.Unlock()
	require.NoError(t, e.Start(context.Background()))
	assert.True(t, e.Observing())
}

func TestEngine_DiscoveryProbeErrorsAreRetried(t *testing.T) {
	host := newFakeHost("list-0")
	host.err = errors.New("fetch failed")
	e, _ := newTestEngine(t, host, &captureHandler{})

	err := e.Start(context.Background())
	assert.True(t, IsTargetNotReady(err))
	assert.Equal(t, 21, host.Probes())
}

func TestEngine_StartCancelledContext(t *testing.T) {
	host := newFakeHost("list-0")
	host.readyAt = 0
	clock := testutil.NewFakeClock(time.Time{})
	e := New(host, &captureHandler{}, doneSettings, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, e.Observing())
}

func TestEngine_StartSkipsNonBoardPages(t *testing.T) {
	host := newFakeHost("list-0")
	host.url = "https://example.atlassian.net/jira/software/projects/PROJ/issues"
	e, _ := newTestEngine(t, host, &captureHandler{})

	err := e.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotBoardView)
	assert.False(t, e.Observing())
	assert.Equal(t, 0, host.Probes())
}

func TestEngine_StartTwiceKeepsOneSubscriptionPerContainer(t *testing.T) {
	host := newFakeHost("list-0")
	handler := &captureHandler{}
	e, _ := newTestEngine(t, host, handler)

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, 1, host.Probes(), "second start is a no-op")
	assert.Len(t, e.Subscriptions(), 1)

	e.Enqueue(insert("list-0", "Done", card("PROJ-1")))
	e.ProcessPending()

	assert.Len(t, handler.Insertions(), 1, "no duplicate firing")
}

func TestEngine_ReentrantStartRejected(t *testing.T) {
	host := newFakeHost("list-0")
	host.readyAt = 3
	clock := testutil.NewFakeClock(time.Time{})
	e := New(host, &captureHandler{}, doneSettings, WithClock(clock))

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()

	// Wait until the first start is parked in discovery.
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, 1, host.Probes(), "in-flight start is not duplicated")

	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return clock.Pending() == 1 && host.Probes() == 2 }, time.Second, time.Millisecond)
	clock.Advance(500 * time.Millisecond)

	require.NoError(t, <-done)
	assert.True(t, e.Observing())
}

func TestEngine_StopDuringDiscoveryAbandonsStart(t *testing.T) {
	host := newFakeHost("list-0")
	host.readyAt = 2
	clock := testutil.NewFakeClock(time.Time{})
	e := New(host, &captureHandler{}, doneSettings, WithClock(clock))

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)

	e.Stop()
	clock.Advance(500 * time.Millisecond)

	require.NoError(t, <-done)
	assert.False(t, e.Observing())
}

func TestEngine_ObserveRequiresContainers(t *testing.T) {
	e, _ := newTestEngine(t, newFakeHost(), &captureHandler{})
	assert.ErrorIs(t, e.Observe(nil), ErrNoContainers)
	assert.False(t, e.Observing())
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, newFakeHost("list-0"), &captureHandler{})

	e.Stop()
	assert.False(t, e.Observing())

	require.NoError(t, e.Observe([]board.Handle{"list-0"}))
	e.Stop()
	e.Stop()
	assert.False(t, e.Observing())
	assert.Empty(t, e.Subscriptions())
}

func TestEngine_StopDropsQueuedBatches(t *testing.T) {
	handler := &captureHandler{}
	e, _ := newTestEngine(t, newFakeHost("list-0"), handler)
	require.NoError(t, e.Observe([]board.Handle{"list-0"}))

	e.Enqueue(insert("list-0", "Done", card("PROJ-1")))
	e.Stop()

	assert.Equal(t, 1, e.ProcessPending())
	assert.Empty(t, handler.Insertions())
	assert.Equal(t, int64(1), e.Stats().Dropped.Load())
}

func TestEngine_DisabledSettingsDropQueuedBatches(t *testing.T) {
	var mu sync.Mutex
	current := doneSettings()
	source := func() settings.Settings {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	handler := &captureHandler{}
	e := New(newFakeHost("list-0"), handler, source, WithClock(testutil.NewAutoAdvanceClock(time.Time{})))
	require.NoError(t, e.Observe([]board.Handle{"list-0"}))

	e.Enqueue(insert("list-0", "Done", card("PROJ-1")))

	// Disabled externally; the controller has not torn down yet.
	mu.Lock()
	current.Enabled = false
	mu.Unlock()

	assert.Equal(t, 1, e.ProcessPending())
	assert.True(t, e.Observing())
	assert.Empty(t, handler.Insertions())
	assert.Equal(t, int64(1), e.Stats().Dropped.Load())
}

func TestEngine_BatchFromEarlierGenerationDropped(t *testing.T) {
	handler := &captureHandler{}
	e, _ := newTestEngine(t, newFakeHost("list-0"), handler)
	require.NoError(t, e.Observe([]board.Handle{"list-0"}))

	e.Enqueue(insert("list-0", "Done", card("PROJ-1")))
	e.Stop()
	require.NoError(t, e.Observe([]board.Handle{"list-0"}))

	e.ProcessPending()
	assert.Empty(t, handler.Insertions(), "batch queued before the rebuild must not fire")

	e.Enqueue(insert("list-0", "Done", card("PROJ-2")))
	e.ProcessPending()
	require.Len(t, handler.Insertions(), 1)
	assert.Equal(t, "card-PROJ-2", handler.Insertions()[0].Card.ElementID)
}

func TestEngine_StopFromHandlerStopsRemainingInsertions(t *testing.T) {
	handler := &captureHandler{}
	e, _ := newTestEngine(t, newFakeHost("list-0"), handler)
	handler.each = func(Insertion) { e.Stop() }
	require.NoError(t, e.Observe([]board.Handle{"list-0"}))

	e.Enqueue(insert("list-0", "Done", card("A"), card("B")))
	e.ProcessPending()

	assert.Len(t, handler.Insertions(), 1)
}

func TestEngine_OrderPreserved(t *testing.T) {
	handler := &captureHandler{}
	e, _ := newTestEngine(t, newFakeHost("list-0", "list-1"), handler)
	require.NoError(t, e.Observe([]board.Handle{"list-0", "list-1"}))

	e.Enqueue(board.MutationBatch{Records: []board.MutationRecord{
		{Target: "list-0", Column: "Done", Added: []board.Node{card("A"), card("B")}},
		{Target: "list-1", Column: "done", Added: []board.Node{card("C")}},
	}})
	e.Enqueue(insert("list-0", "Done", card("D")))
	e.ProcessPending()

	var ids []string
	for _, ins := range handler.Insertions() {
		ids = append(ids, ins.Card.ElementID)
	}
	assert.Equal(t, []string{"card-A", "card-B", "card-C", "card-D"}, ids)
}

func TestEngine_EnqueueIgnoresEmptyBatches(t *testing.T) {
	e, _ := newTestEngine(t, newFakeHost("list-0"), &captureHandler{})
	assert.True(t, e.Enqueue(board.MutationBatch{}))
	assert.Equal(t, 0, e.QueueLen())
}

func TestEngine_RunConsumesUntilCancelled(t *testing.T) {
	handler := &captureHandler{}
	e, _ := newTestEngine(t, newFakeHost("list-0"), handler)
	require.NoError(t, e.Observe([]board.Handle{"list-0"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.Enqueue(insert("list-0", "Done", card("PROJ-42")))
	require.Eventually(t, func() bool { return len(handler.Insertions()) == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, e.Enqueue(insert("list-0", "Done", card("late"))), "queue closed after Run returns")
}

func TestEngine_RunReturnsOnClose(t *testing.T) {
	e, _ := newTestEngine(t, newFakeHost("list-0"), &captureHandler{})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/bonfire/internal/dispatch"
	"github.com/roach88/bonfire/internal/engine"
	"github.com/roach88/bonfire/internal/observe"
	"github.com/roach88/bonfire/internal/present"
	"github.com/roach88/bonfire/internal/settings"
)

// DefaultRestartDelay is the pause between a navigation and the restart of
// observation, leaving the new page time to render.
const DefaultRestartDelay = time.Second

// Text used when a show_banner command leaves a field empty, and by the
// test banner.
var (
	DefaultTrigger = present.Trigger{MainText: "VICTORY ACHIEVED", SubText: "Epic Completed"}
	TestTrigger    = present.Trigger{MainText: "YOU DEFEATED", SubText: "The Task"}
)

// request asks the lifecycle loop to rebuild observation.
type request struct {
	reason string
	delay  time.Duration
}

// Controller owns one watcher instance.
type Controller struct {
	settings   *settings.Manager
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	sink       present.Sink
	poller     *observe.Poller
	clock      engine.Clock

	restartDelay  time.Duration
	watchInterval time.Duration
	controlAddr   string

	reqs chan request

	mu       sync.Mutex
	starting chan struct{} // closed when the current start attempt ends
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Settings *settings.Manager
	Engine   *engine.Engine
	Dispatch *dispatch.Dispatcher
	Sink     present.Sink
	Poller   *observe.Poller

	// Clock times the restart delay. Defaults to the wall clock.
	Clock engine.Clock

	RestartDelay  time.Duration
	WatchInterval time.Duration

	// ControlAddr is the control channel listen address. Empty disables it.
	ControlAddr string
}

// NewController creates a Controller. Nothing runs until Run.
func NewController(d Deps) *Controller {
	c := &Controller{
		settings:      d.Settings,
		engine:        d.Engine,
		dispatcher:    d.Dispatch,
		sink:          d.Sink,
		poller:        d.Poller,
		clock:         d.Clock,
		restartDelay:  d.RestartDelay,
		watchInterval: d.WatchInterval,
		controlAddr:   d.ControlAddr,
		reqs:          make(chan request, 8),
	}
	if c.clock == nil {
		c.clock = engine.SystemClock()
	}
	if c.restartDelay <= 0 {
		c.restartDelay = DefaultRestartDelay
	}

	c.settings.OnChange(func(s settings.Settings) {
		c.request(request{reason: "settings changed"})
	})
	c.poller.OnNavigate(func(url string) {
		c.request(request{reason: "navigation", delay: c.restartDelay})
	})

	return c
}

// Engine returns the controller's engine.
func (c *Controller) Engine() *engine.Engine { return c.engine }

// Settings returns the controller's settings manager.
func (c *Controller) Settings() *settings.Manager { return c.settings }

// request queues a lifecycle request. Never blocks: when the queue is full
// a rebuild is already pending and covers this one.
func (c *Controller) request(r request) {
	select {
	case c.reqs <- r:
	default:
		slog.Debug("lifecycle request coalesced", "reason", r.reason)
	}
}

// lifecycle handles requests one at a time until ctx is cancelled.
func (c *Controller) lifecycle(ctx context.Context) error {
	var (
		cancelStart context.CancelFunc
		done        chan struct{}
	)
	finish := func() {
		if cancelStart != nil {
			cancelStart()
			<-done
			cancelStart, done = nil, nil
		}
	}
	defer finish()

	for {
		select {
		case <-ctx.Done():
			c.engine.Stop()
			return nil
		case r := <-c.reqs:
			finish()
			c.engine.Stop()

			s := c.settings.Get()
			if !s.Enabled {
				slog.Info("watching disabled", "reason", r.reason)
				continue
			}

			startCtx, cancel := context.WithCancel(ctx)
			cancelStart, done = cancel, make(chan struct{})

			c.mu.Lock()
			c.starting = done
			c.mu.Unlock()

			go func(done chan struct{}) {
				defer close(done)
				c.start(startCtx, r)
			}(done)
		}
	}
}

// start waits out the request's delay, then starts the engine.
func (c *Controller) start(ctx context.Context, r request) {
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(r.delay):
		}
	}

	slog.Debug("starting observation", "reason", r.reason)
	err := c.engine.Start(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		slog.Debug("observation start cancelled", "reason", r.reason)
	case errors.Is(err, engine.ErrNotBoardView):
		slog.Info("not a board view, waiting for navigation", "url", c.poller.URL())
	case errors.Is(err, engine.ErrTargetNotReady):
		// Logged by the engine. A later reload or navigation retries.
	default:
		slog.Warn("observation start failed", "error", err)
	}
}

// Settle blocks until the current start attempt, if any, has ended.
func (c *Controller) Settle() {
	c.mu.Lock()
	done := c.starting
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// ShowBanner presents t directly, bypassing detection. Empty fields take
// DefaultTrigger's text. Sink failures are logged and counted by the
// dispatcher, never returned.
func (c *Controller) ShowBanner(_ context.Context, t present.Trigger) error {
	if strings.TrimSpace(t.MainText) == "" {
		t.MainText = DefaultTrigger.MainText
	}
	if strings.TrimSpace(t.SubText) == "" {
		t.SubText = DefaultTrigger.SubText
	}
	slog.Info("showing banner on request", "main_text", t.MainText)
	c.dispatcher.Present(t)
	return nil
}

// TestBanner presents TestTrigger.
func (c *Controller) TestBanner(ctx context.Context) error {
	return c.ShowBanner(ctx, TestTrigger)
}

// ReloadSettings re-reads persisted settings. Observation is rebuilt
// through the change notification.
func (c *Controller) ReloadSettings(ctx context.Context) error {
	return c.settings.Reload(ctx)
}

// Navigate points the poller at another board page.
func (c *Controller) Navigate(_ context.Context, url string) error {
	slog.Info("navigating on request", "url", url)
	return c.poller.Navigate(url)
}

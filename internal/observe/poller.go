// Package observe turns successive renderings of a board page into
// mutation batches for the engine.
package observe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/bonfire/internal/board"
)

// DefaultInterval is the default time between fetches.
const DefaultInterval = time.Second

// ErrCannotNavigate is returned by Navigate when the fetcher is fixed to
// one page.
var ErrCannotNavigate = errors.New("board source cannot navigate")

// Enqueuer accepts mutation batches. Implemented by engine.Engine.
type Enqueuer interface {
	Enqueue(batch board.MutationBatch) bool
}

// Poller fetches the board on an interval, diffs each rendering against the
// previous one and enqueues the insertions.
//
// The first rendering of a page is a baseline and produces no batch. When
// the page URL changes the baseline is reset and the navigation callback
// runs.
//
// Thread-safety: Poll, Run and Containers may be called concurrently;
// fetches are serialized.
type Poller struct {
	fetcher   Fetcher
	selectors board.Selectors
	interval  time.Duration
	sink      Enqueuer

	pollMu sync.Mutex // serializes Poll

	mu         sync.Mutex
	last       *board.Document
	url        string
	onNavigate func(url string)
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the time between fetches.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSelectors overrides the board selectors.
func WithSelectors(sel board.Selectors) PollerOption {
	return func(p *Poller) {
		p.selectors = sel
	}
}

// WithInitialURL sets the URL reported before the first fetch.
func WithInitialURL(url string) PollerOption {
	return func(p *Poller) {
		p.url = url
	}
}

// NewPoller creates a Poller delivering batches to sink.
func NewPoller(fetcher Fetcher, sink Enqueuer, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		selectors: board.DefaultSelectors(),
		interval:  DefaultInterval,
		sink:      sink,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnNavigate registers fn to run, outside the poller's lock, whenever the
// page URL changes.
func (p *Poller) OnNavigate(fn func(url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

// URL returns the address of the latest rendering.
func (p *Poller) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Document returns the latest rendering, or nil before the first fetch.
func (p *Poller) Document() *board.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Navigate points the fetcher at url. The change is picked up, and
// reported as a navigation, by the next poll.
func (p *Poller) Navigate(url string) error {
	nav, ok := p.fetcher.(Navigator)
	if !ok {
		return ErrCannotNavigate
	}
	nav.Navigate(url)
	return nil
}

// Containers fetches a fresh rendering and returns its container handles.
// It is the engine's discovery probe.
func (p *Poller) Containers(ctx context.Context) ([]board.Handle, error) {
	doc, err := p.Poll(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Handles(), nil
}

// Poll fetches and parses one rendering, enqueues its insertions relative
// to the previous rendering and returns it.
func (p *Poller) Poll(ctx context.Context) (*board.Document, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	page, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := board.Parse(bytes.NewReader(page.Body), page.URL, p.selectors)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page.URL, err)
	}

	p.mu.Lock()
	prev := p.last
	navigated := p.url != "" && page.URL != p.url
	if navigated {
		prev = nil
	}
	p.last = doc
	p.url = page.URL
	onNavigate := p.onNavigate
	p.mu.Unlock()

	if navigated {
		slog.Info("page navigated", "url", page.URL)
		if onNavigate != nil {
			onNavigate(page.URL)
		}
		return doc, nil
	}

	batch := board.Diff(prev, doc)
	if !batch.Empty() {
		slog.Debug("board mutated", "records", len(batch.Records))
		if !p.sink.Enqueue(batch) {
			slog.Debug("batch not enqueued: engine closed")
		}
	}

	return doc, nil
}

// Run polls until ctx is cancelled. Fetch and parse failures are logged and
// the next tick tries again.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("board poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Package dispatch turns qualifying card insertions into triggers and hands
// them to the presentation sink.
package dispatch

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/roach88/bonfire/internal/engine"
	"github.com/roach88/bonfire/internal/present"
)

// CardIDPrefix prefixes the id attribute of every card element.
const CardIDPrefix = "card-"

// Placeholders replaced by the item identifier in a mapping's sub text.
// PlaceholderTicketID is accepted for settings written by older versions.
const (
	Placeholder         = "{id}"
	PlaceholderTicketID = "{ticketId}"
)

// ResolveID extracts the item identifier from a card element id.
// Returns false when the card cannot be attributed to an item.
func ResolveID(elementID string) (string, bool) {
	id, ok := strings.CutPrefix(elementID, CardIDPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SubText resolves the display sub text for an item. The first placeholder
// is replaced by id; without a placeholder the id is appended as
// "<subText> - <id>".
func SubText(template, id string) string {
	if strings.Contains(template, Placeholder) || strings.Contains(template, PlaceholderTicketID) {
		out := strings.Replace(template, Placeholder, id, 1)
		return strings.Replace(out, PlaceholderTicketID, id, 1)
	}
	return fmt.Sprintf("%s - %s", template, id)
}

// Dispatcher hands one trigger per insertion to a sink.
//
// Sink failures and panics are logged and swallowed: the dispatcher has no
// failure path of its own.
type Dispatcher struct {
	sink present.Sink

	presented atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New creates a Dispatcher presenting to sink.
func New(sink present.Sink) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// Handle implements engine.Handler.
func (d *Dispatcher) Handle(ins engine.Insertion) {
	id, ok := ResolveID(ins.Card.ElementID)
	if !ok {
		d.dropped.Add(1)
		slog.Debug("insertion dropped: card has no item id",
			"column", ins.Column,
			"element_id", ins.Card.ElementID,
		)
		return
	}

	t := present.Trigger{
		MainText: ins.Mapping.MainText,
		SubText:  SubText(ins.Mapping.SubText, id),
		ItemID:   id,
	}

	slog.Info("item moved to tracked column", "column", ins.Column, "item", id)
	d.Present(t)
}

// Present hands t to the sink, logging any failure.
func (d *Dispatcher) Present(t present.Trigger) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			slog.Error("presentation sink panicked", "item", t.ItemID, "panic", r)
		}
	}()

	if err := d.sink.Present(t); err != nil {
		d.failed.Add(1)
		slog.Warn("presentation failed", "item", t.ItemID, "error", err)
		return
	}
	d.presented.Add(1)
}

// Presented returns how many triggers the sink accepted.
func (d *Dispatcher) Presented() int64 { return d.presented.Load() }

// Failed returns how many triggers the sink rejected or panicked on.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// Dropped returns how many insertions could not be attributed to an item.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

var _ engine.Handler = (*Dispatcher)(nil)

package engine

import (
	"github.com/roach88/bonfire/internal/board"
	"github.com/roach88/bonfire/internal/settings"
)

// State is a snapshot of what classification depends on.
type State struct {
	Observing     bool
	Generation    uint64
	Subscriptions map[board.Handle]struct{}
	Settings      settings.Settings
}

// Subscribed reports whether h is among the observed containers.
func (s State) Subscribed(h board.Handle) bool {
	_, ok := s.Subscriptions[h]
	return ok
}

// Insertion is a qualifying card insertion, ready for dispatch.
type Insertion struct {
	Target  board.Handle
	Column  string
	Card    board.Card
	Mapping settings.ColumnMapping
}

// Drop reasons, logged at debug level.
const (
	dropDisabled      = "watching disabled"
	dropNotObserving  = "not observing"
	dropUnsubscribed  = "container not subscribed"
	dropNoCard        = "node has no card"
	dropUnnamedColumn = "column has no name"
	dropNoMapping     = "column has no active mapping"
)

// drop is a discarded insertion.
type drop struct {
	Target board.Handle
	Column string
	Reason string
}

// classify splits the added nodes of one record into qualifying insertions
// and drops, preserving the record's node order.
//
// A node qualifies when watching is enabled, it carries a card, its
// container is subscribed, and the container's column name matches an active
// mapping.
func classify(state State, rec board.MutationRecord) ([]Insertion, []drop) {
	var (
		out   []Insertion
		drops []drop
	)

	reject := func(reason string) {
		drops = append(drops, drop{Target: rec.Target, Column: rec.Column, Reason: reason})
	}

	for _, node := range rec.Added {
		switch {
		case !state.Settings.Enabled:
			reject(dropDisabled)
			continue
		case !state.Observing:
			reject(dropNotObserving)
			continue
		case !state.Subscribed(rec.Target):
			reject(dropUnsubscribed)
			continue
		case !node.Trackable():
			reject(dropNoCard)
			continue
		case rec.Column == "":
			reject(dropUnnamedColumn)
			continue
		}

		m, ok := state.Settings.Match(rec.Column)
		if !ok {
			reject(dropNoMapping)
			continue
		}

		out = append(out, Insertion{
			Target:  rec.Target,
			Column:  rec.Column,
			Card:    *node.Card,
			Mapping: m,
		})
	}

	return out, drops
}

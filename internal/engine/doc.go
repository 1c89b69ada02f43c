// Package engine implements the bonfire change detection engine.
//
// The engine attaches to a board page, subscribes to its column
// containers and turns insertions of cards into dispatchable events.
//
// ARCHITECTURE:
//
// Single-Consumer Event Loop:
// Mutation batches arrive from the page poller on any goroutine and are
// queued FIFO. Engine.Run() consumes them one at a time, so classification
// and dispatch happen in arrival order, records in structural order.
//
// Lifecycle:
//  1. Start() waits for the board to render its containers (bounded retry)
//  2. Observe() subscribes to exactly the containers found
//  3. Stop() drops every subscription at once
//
// Every Observe and Stop bumps a generation counter. Batches are stamped
// with the generation at enqueue time and dropped at consumption when it no
// longer matches, so nothing observed before a teardown is dispatched after
// it.
//
// Classification:
// An added node qualifies when it contains a card, sits in a subscribed
// container, and the container's column name matches an active mapping.
// Everything else is discarded silently (logged at debug level). Only
// insertions are considered; a card that flickers out and back in fires
// again.
package engine

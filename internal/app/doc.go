// Package app wires the watcher together: settings, page poller, engine,
// dispatcher, presentation sinks and the control channel.
//
// The Controller owns the observation lifecycle. Every settings change,
// reload and navigation is turned into a lifecycle request, and requests
// are handled one at a time: the engine is stopped, then, if watching is
// enabled, started again. A new request cancels a start still waiting for
// the board to render.
package app

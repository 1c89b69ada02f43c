// Package present renders celebration triggers.
//
// A Sink receives resolved Trigger payloads from the dispatcher. Sinks are
// fire-and-forget: Present must return promptly, may be called again while a
// previous trigger is still on screen, and reports failures only so the
// caller can log them. Nothing a sink does feeds back into detection.
//
// Implementations:
//   - Banner: a framed full-width banner drawn with lipgloss that hides
//     itself after a display period and a short fade phase.
//   - Player: plays the configured sound asset through an external player
//     command without waiting for it to finish.
//   - Fanout: forwards to several sinks.
package present

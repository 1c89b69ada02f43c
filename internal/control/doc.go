// Package control implements the command channel between the bonfire CLI
// and a running watcher.
//
// Commands travel as JSON frames over a WebSocket on /ws:
//
//	{"type": "show_banner", "request_id": "...", "payload": {...}}
//
// Every command frame is answered by exactly one "ack" frame carrying the
// same request_id and {"success": bool, "error": string}.
//
// Commands:
//   - show_banner: present a caller-supplied trigger, bypassing detection
//   - test_banner: present the canned test trigger
//   - reload_settings: re-read persisted settings and rebuild observation
//   - navigate: point the watcher at another board URL
package control

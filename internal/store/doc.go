// Package store provides SQLite-backed durable storage for watcher settings.
//
// The store is a small key-value table standing in for a synced browser
// settings area:
//   - settings: key → JSON value, plus the revision that last wrote it
//   - meta: a single store-wide revision counter
//
// # Revisions
//
// Every write or delete bumps the store-wide revision in the same
// transaction as the data change. Readers compare revisions to notice
// writes made by other processes (a CLI editing settings while the watcher
// daemon runs) without a notification channel between them.
//
// # Database Configuration
//
//   - WAL mode: the daemon polls while the CLI writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store

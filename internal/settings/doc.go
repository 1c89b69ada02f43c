// Package settings is the configuration store of the board watcher.
//
// Settings hold the feature toggle, the sound choice and the ordered column
// mappings. They live behind a key-value persistence boundary (see
// internal/store); absent keys fall back to built-in defaults one key at a
// time, so a fresh install and a partially written store both behave.
//
// A mapping is active only when its column name, main text and sub text are
// all non-empty. Inactive mappings are kept as written but never matched.
// Column names match case-insensitively using Unicode case folding, and the
// first active mapping wins.
//
// Manager caches the current settings, notifies OnChange listeners when the
// persisted settings move (Reload, Save, Reset, or a revision change seen by
// Watch), and never fails a read because of missing data.
package settings

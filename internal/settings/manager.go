package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Persisted keys.
const (
	KeyEnabled     = "autoDetectEnabled"
	KeySoundChoice = "selectedSound"
	KeyMappings    = "columnMappings"
)

// Backend is the key-value persistence boundary behind the settings.
// Values are JSON documents; every write bumps a store-wide revision.
type Backend interface {
	ReadSettings(ctx context.Context) (values map[string][]byte, revision int64, err error)
	WriteSettings(ctx context.Context, values map[string][]byte) (revision int64, err error)
	DeleteSettings(ctx context.Context, keys ...string) (revision int64, err error)
	Revision(ctx context.Context) (int64, error)
}

// Manager serves the current settings and tracks changes to them.
//
// Thread-safety: all methods are safe for concurrent use. Listeners run on
// the goroutine that observed the change, outside the manager's lock.
type Manager struct {
	backend Backend

	mu        sync.RWMutex
	current   Settings
	revision  int64
	listeners []func(Settings)
}

// NewManager creates a Manager that starts out serving Defaults.
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend:  backend,
		current:  Defaults(),
		revision: -1,
	}
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Revision returns the backend revision the current settings were read at,
// or -1 before the first load.
func (m *Manager) Revision() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// OnChange registers fn to be called with the new settings after every
// change. Listeners are called in registration order.
func (m *Manager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Load reads the persisted settings without notifying listeners.
func (m *Manager) Load(ctx context.Context) error {
	s, rev, err := m.read(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current, m.revision = s, rev
	m.mu.Unlock()

	slog.Info("settings loaded",
		"enabled", s.Enabled,
		"sound", s.SoundChoice,
		"mappings", len(s.Mappings),
		"active_mappings", len(s.ActiveMappings()),
		"revision", rev,
	)
	return nil
}

// Reload reads the persisted settings and notifies listeners, whether or not
// anything changed.
func (m *Manager) Reload(ctx context.Context) error {
	if err := m.Load(ctx); err != nil {
		return err
	}
	m.notify()
	return nil
}

// Save normalizes, validates and persists s, then notifies listeners.
// Returns ErrNoActiveMappings if no complete mapping remains.
func (m *Manager) Save(ctx context.Context, s Settings) error {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}

	values, err := encode(s)
	if err != nil {
		return err
	}
	rev, err := m.backend.WriteSettings(ctx, values)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	m.mu.Lock()
	m.current, m.revision = s, rev
	m.mu.Unlock()

	slog.Info("settings saved", "mappings", len(s.Mappings), "revision", rev)
	m.notify()
	return nil
}

// Reset deletes every persisted key so that Defaults apply, then notifies
// listeners.
func (m *Manager) Reset(ctx context.Context) error {
	rev, err := m.backend.DeleteSettings(ctx, KeyEnabled, KeySoundChoice, KeyMappings)
	if err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}

	m.mu.Lock()
	m.current, m.revision = Defaults(), rev
	m.mu.Unlock()

	slog.Info("settings reset to defaults", "revision", rev)
	m.notify()
	return nil
}

// Watch polls the backend revision every interval and reloads when another
// writer changed the settings. Blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		rev, err := m.backend.Revision(ctx)
		if err != nil {
			slog.Warn("settings revision check failed", "error", err)
			continue
		}
		if rev == m.Revision() {
			continue
		}

		slog.Info("settings changed externally", "revision", rev)
		if err := m.Reload(ctx); err != nil {
			slog.Warn("settings reload failed", "error", err)
		}
	}
}

func (m *Manager) notify() {
	m.mu.RLock()
	s := m.current.Clone()
	listeners := make([]func(Settings), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(s.Clone())
	}
}

// read loads and decodes the persisted settings, applying per-key defaults.
// A key that fails to decode is treated as absent.
func (m *Manager) read(ctx context.Context) (Settings, int64, error) {
	values, rev, err := m.backend.ReadSettings(ctx)
	if err != nil {
		return Settings{}, 0, fmt.Errorf("read settings: %w", err)
	}

	s := Defaults()
	decodeKey(values, KeyEnabled, &s.Enabled)
	decodeKey(values, KeySoundChoice, &s.SoundChoice)
	decodeKey(values, KeyMappings, &s.Mappings)
	if s.Mappings == nil {
		s.Mappings = DefaultMappings()
	}
	return s, rev, nil
}

func decodeKey[T any](values map[string][]byte, key string, dst *T) {
	raw, ok := values[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("ignoring unreadable setting", "key", key, "error", err)
		return
	}
	*dst = v
}

func encode(s Settings) (map[string][]byte, error) {
	values := make(map[string][]byte, 3)
	for key, v := range map[string]any{
		KeyEnabled:     s.Enabled,
		KeySoundChoice: s.SoundChoice,
		KeyMappings:    s.Mappings,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode setting %s: %w", key, err)
		}
		values[key] = raw
	}
	return values, nil
}

// Package config loads the watcher's daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BONFIRE_BOARD_URL.
const EnvPrefix = "BONFIRE"

// Config holds daemon configuration.
type Config struct {
	Board     BoardConfig     `mapstructure:"board"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Store     StoreConfig     `mapstructure:"store"`
	Control   ControlConfig   `mapstructure:"control"`
	Banner    BannerConfig    `mapstructure:"banner"`
	Sound     SoundConfig     `mapstructure:"sound"`
}

// BoardConfig says where the board page comes from.
type BoardConfig struct {
	// URL of the board page. With File set, it is only reported as the
	// page address.
	URL string `mapstructure:"url"`

	// File reads the page from disk instead of over HTTP.
	File string `mapstructure:"file"`

	PollInterval   time.Duration     `mapstructure:"poll_interval"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	Headers        map[string]string `mapstructure:"headers"`

	// RestartDelay is how long after a navigation observation restarts.
	RestartDelay time.Duration `mapstructure:"restart_delay"`
}

// DiscoveryConfig bounds the wait for the board's columns to render.
type DiscoveryConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds sqlite settings.
type StoreConfig struct {
	Path          string        `mapstructure:"path"`
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// ControlConfig holds the control channel address.
type ControlConfig struct {
	Addr string `mapstructure:"addr"`
}

// BannerConfig holds banner display settings.
type BannerConfig struct {
	Duration time.Duration `mapstructure:"duration"`
	Fade     time.Duration `mapstructure:"fade"`
	Width    int           `mapstructure:"width"`
}

// SoundConfig holds the external player used for sounds.
type SoundConfig struct {
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	AssetsDir string   `mapstructure:"assets_dir"`
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "bonfire", "config.yaml")
}

// Load reads configuration from file and env. Env var overrides use prefix
// BONFIRE_. An empty path falls back to BONFIRE_CONFIG, then DefaultPath;
// only an explicitly named file must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")

	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			path, explicit = env, true
		}
	}
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("board.url", "")
	v.SetDefault("board.file", "")
	v.SetDefault("board.poll_interval", time.Second)
	v.SetDefault("board.request_timeout", 10*time.Second)
	v.SetDefault("board.restart_delay", time.Second)
	v.SetDefault("discovery.interval", 500*time.Millisecond)
	v.SetDefault("discovery.timeout", 10*time.Second)
	v.SetDefault("store.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "bonfire", "settings.db"))
	v.SetDefault("store.watch_interval", 2*time.Second)
	v.SetDefault("control.addr", "127.0.0.1:7777")
	v.SetDefault("banner.duration", 4*time.Second)
	v.SetDefault("banner.fade", time.Second)
	v.SetDefault("banner.width", 64)
	v.SetDefault("sound.command", "paplay")
	v.SetDefault("sound.args", []string{})
	v.SetDefault("sound.assets_dir", "assets")
}

// Validate checks values that would make the daemon misbehave.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"board.poll_interval":  c.Board.PollInterval,
		"discovery.interval":   c.Discovery.Interval,
		"discovery.timeout":    c.Discovery.Timeout,
		"store.watch_interval": c.Store.WatchInterval,
		"banner.duration":      c.Banner.Duration,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}
	if c.Banner.Width < 10 {
		return fmt.Errorf("config: banner.width must be at least 10, got %d", c.Banner.Width)
	}
	return nil
}

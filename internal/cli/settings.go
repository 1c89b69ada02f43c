package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bonfire/internal/schema"
	"github.com/roach88/bonfire/internal/settings"
	"github.com/roach88/bonfire/internal/store"
)

// SettingsOptions holds flags shared by the settings subcommands.
type SettingsOptions struct {
	*RootOptions
	DB string
}

// SettingsView is the JSON form of the persisted settings.
type SettingsView struct {
	Revision    int64                    `json:"revision"`
	Enabled     bool                     `json:"enabled"`
	SoundChoice string                   `json:"sound_choice"`
	Mappings    []settings.ColumnMapping `json:"column_mappings"`
	Active      int                      `json:"active_mappings"`
}

// NewSettingsCommand creates the settings command and its subcommands.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change the watcher's settings",
		Long: `Inspect and change the persisted watcher settings: whether watching is
enabled, the sound to play and the column triggers.

A running watcher notices changes made here on its next settings poll.

Settings files are YAML, JSON or CUE documents validated against the
settings schema:

  enabled: true
  sound_choice: elden_ring_sound.mp3
  column_mappings:
    - column_name: Done
      main_text: YOU DEFEATED
      sub_text: "Task Conquered - {id}"`,
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "settings database (default store.path from config)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, m *settings.Manager, out *OutputFormatter) error {
				return out.Success(view(m), describe(m.Get())...)
			})
		},
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the current settings as a YAML settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, m *settings.Manager, out *OutputFormatter) error {
				data, err := marshalSettings(m.Get())
				if err != nil {
					return out.Fail(ExitCommandError, CodeSchema, "failed to encode settings", err)
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return out.Fail(ExitCommandError, CodeSchema, "failed to write settings file", err)
				}
				return out.Success(map[string]string{"path": output}, "Settings written to "+output)
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the settings with a validated settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, m *settings.Manager, out *OutputFormatter) error {
				s, err := compileFile(args[0])
				if err != nil {
					return out.Fail(ExitFailure, CodeSchema, "invalid settings file", err)
				}
				if err := m.Save(ctx, s); err != nil {
					if errors.Is(err, settings.ErrNoActiveMappings) {
						return out.Fail(ExitFailure, CodeSchema, "invalid settings file", err)
					}
					return out.Fail(ExitCommandError, CodeStore, "failed to save settings", err)
				}
				return out.Success(view(m),
					fmt.Sprintf("Imported %d column triggers (revision %d).", len(s.Mappings), m.Revision()))
			})
		},
	}

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a settings file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts.RootOptions, cmd)
			s, err := compileFile(args[0])
			if err == nil {
				err = s.Validate()
			}
			if err != nil {
				return out.Fail(ExitFailure, CodeSchema, "invalid settings file", err)
			}
			return out.Success(map[string]any{"valid": true, "active_mappings": len(s.ActiveMappings())},
				fmt.Sprintf("%s is valid (%d active column triggers).", args[0], len(s.ActiveMappings())))
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd, func(ctx context.Context, m *settings.Manager, out *OutputFormatter) error {
				if err := m.Reset(ctx); err != nil {
					return out.Fail(ExitCommandError, CodeStore, "failed to reset settings", err)
				}
				return out.Success(view(m), "Settings restored to defaults.")
			})
		},
	}

	cmd.AddCommand(show, export, importCmd, validate, reset)
	return cmd
}

// withManager opens the settings database, loads the settings and runs fn.
func withManager(opts *SettingsOptions, cmd *cobra.Command, fn func(context.Context, *settings.Manager, *OutputFormatter) error) error {
	out := newFormatter(opts.RootOptions, cmd)

	path := opts.DB
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		path = cfg.Store.Path
	}
	out.VerboseLog("settings database: %s", path)

	st, err := openStore(path)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m := settings.NewManager(st)
	if err := m.Load(ctx); err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to read settings", err)
	}
	return fn(ctx, m, out)
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing settings database", "error", err)
	}
}

func compileFile(path string) (settings.Settings, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return settings.Settings{}, err
	}
	return schema.Compile(path, src)
}

func view(m *settings.Manager) SettingsView {
	s := m.Get()
	return SettingsView{
		Revision:    m.Revision(),
		Enabled:     s.Enabled,
		SoundChoice: s.SoundChoice,
		Mappings:    s.Mappings,
		Active:      len(s.ActiveMappings()),
	}
}

// describe renders settings for text output.
func describe(s settings.Settings) []string {
	state := "enabled"
	if !s.Enabled {
		state = "disabled"
	}
	sound := s.SoundChoice
	if sound == "" || strings.EqualFold(sound, "none") {
		sound = "(silent)"
	}

	lines := []string{
		"Watching: " + state,
		"Sound:    " + sound,
		"Column triggers:",
	}
	for i, m := range s.Mappings {
		line := fmt.Sprintf("  %d. %s -> %s / %s", i+1, m.ColumnName, m.MainText, m.SubText)
		if !m.Active() {
			line += " (inactive)"
		}
		lines = append(lines, line)
	}
	if len(s.Mappings) == 0 {
		lines = append(lines, "  (none)")
	}
	return lines
}

func marshalSettings(s settings.Settings) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

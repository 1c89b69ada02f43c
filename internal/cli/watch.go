package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/bonfire/internal/app"
	"github.com/roach88/bonfire/internal/config"
	"github.com/roach88/bonfire/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	URL     string
	File    string
	DB      string
	Addr    string
	NoSound bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a board and celebrate cards landing in tracked columns",
		Long: `Watch a task board and show a banner whenever a card lands in a column
with an active trigger.

The board is fetched over HTTP from --url, or read from --file when another
process keeps a rendering of the page on disk. Settings are read from the
settings database and re-read whenever they change.

Examples:
  bonfire watch --url https://acme.atlassian.net/jira/software/projects/PROJ/boards/1
  bonfire watch --file /tmp/board.html --no-sound
  bonfire watch --config ./bonfire.yaml --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "board page URL (overrides board.url)")
	cmd.Flags().StringVar(&opts.File, "file", "", "read the board from a file (overrides board.file)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "settings database (overrides store.path)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "control channel address (overrides control.addr)")
	cmd.Flags().BoolVar(&opts.NoSound, "no-sound", false, "never play sounds")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	applyWatchFlags(&cfg, opts)

	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing settings database", "error", closeErr)
		}
	}()

	c, err := app.Build(&cfg, st, cmd.OutOrStdout())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	board := cfg.Board.URL
	if cfg.Board.File != "" {
		board = cfg.Board.File
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s. Press Ctrl-C to stop.\n", board)

	if err := c.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "watcher error", err)
	}
	return nil
}

func applyWatchFlags(cfg *config.Config, opts *WatchOptions) {
	if opts.URL != "" {
		cfg.Board.URL = opts.URL
	}
	if opts.File != "" {
		cfg.Board.File = opts.File
	}
	if opts.DB != "" {
		cfg.Store.Path = opts.DB
	}
	if opts.Addr != "" {
		cfg.Control.Addr = opts.Addr
	}
	if opts.NoSound {
		cfg.Sound.Command = ""
	}
}

// openStore opens the settings database, creating its directory.
func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create settings directory", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open settings database", err)
	}
	return st, nil
}

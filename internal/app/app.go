package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/bonfire/internal/board"
	"github.com/roach88/bonfire/internal/config"
	"github.com/roach88/bonfire/internal/control"
	"github.com/roach88/bonfire/internal/dispatch"
	"github.com/roach88/bonfire/internal/engine"
	"github.com/roach88/bonfire/internal/observe"
	"github.com/roach88/bonfire/internal/present"
	"github.com/roach88/bonfire/internal/settings"
)

// shutdownTimeout bounds the graceful shutdown of the control server.
const shutdownTimeout = 5 * time.Second

// Build assembles a Controller from daemon configuration. Banners are
// written to out; settings persist through backend.
func Build(cfg *config.Config, backend settings.Backend, out io.Writer) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg.Board)
	if err != nil {
		return nil, err
	}

	mgr := settings.NewManager(backend)

	banner := present.NewBanner(out,
		present.WithDuration(cfg.Banner.Duration),
		present.WithFade(cfg.Banner.Fade),
		present.WithWidth(cfg.Banner.Width),
	)
	sink := present.Fanout{banner}
	if cfg.Sound.Command != "" {
		player := present.NewPlayer(cfg.Sound.Command, cfg.Sound.Args, cfg.Sound.AssetsDir, func() string {
			return mgr.Get().SoundChoice
		})
		sink = append(sink, player)
	}

	d := dispatch.New(sink)

	// The poller and the engine refer to each other: the poller feeds the
	// engine's queue and serves as its discovery probe.
	var eng *engine.Engine
	poller := observe.NewPoller(fetcher, enqueuerFunc(func(b board.MutationBatch) bool {
		return eng.Enqueue(b)
	}),
		observe.WithInterval(cfg.Board.PollInterval),
		observe.WithInitialURL(cfg.Board.URL),
	)
	eng = engine.New(poller, d, mgr.Get,
		engine.WithDiscovery(cfg.Discovery.Interval, cfg.Discovery.Timeout),
	)

	return NewController(Deps{
		Settings:      mgr,
		Engine:        eng,
		Dispatch:      d,
		Sink:          sink,
		Poller:        poller,
		RestartDelay:  cfg.Board.RestartDelay,
		WatchInterval: cfg.Store.WatchInterval,
		ControlAddr:   cfg.Control.Addr,
	}), nil
}

func newFetcher(cfg config.BoardConfig) (observe.Fetcher, error) {
	switch {
	case cfg.File != "":
		path, err := filepath.Abs(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("board file: %w", err)
		}
		url := cfg.URL
		if url == "" {
			url = "file://" + path
		}
		return &observe.FileFetcher{Path: path, URL: url}, nil
	case cfg.URL != "":
		header := make(http.Header, len(cfg.Headers))
		for k, v := range cfg.Headers {
			header.Set(k, v)
		}
		return observe.NewHTTPFetcher(cfg.URL, header, cfg.RequestTimeout), nil
	default:
		return nil, errors.New("board: url or file is required")
	}
}

// Run loads settings, starts observation and serves the control channel
// until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	// Listen first so that a busy address fails before anything runs.
	var ln net.Listener
	if c.controlAddr != "" {
		var err error
		if ln, err = net.Listen("tcp", c.controlAddr); err != nil {
			return fmt.Errorf("control listen: %w", err)
		}
	}

	if err := c.settings.Load(ctx); err != nil {
		slog.Warn("using default settings", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCancel(c.engine.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(c.poller.Run(ctx)) })
	g.Go(func() error { return c.lifecycle(ctx) })
	if c.watchInterval > 0 {
		g.Go(func() error { return ignoreCancel(c.settings.Watch(ctx, c.watchInterval)) })
	}
	if ln != nil {
		g.Go(func() error { return c.serveControl(ctx, ln) })
	}

	c.request(request{reason: "startup"})

	err := g.Wait()
	c.sink.Dismiss()
	slog.Info("watcher stopped",
		"batches", c.engine.Stats().Batches.Load(),
		"presented", c.dispatcher.Presented(),
	)
	return err
}

// serveControl serves the control channel on ln until ctx is cancelled.
func (c *Controller) serveControl(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           control.NewHandler(c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("control channel listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control shutdown: %w", err)
	}
	return nil
}

type enqueuerFunc func(board.MutationBatch) bool

func (f enqueuerFunc) Enqueue(b board.MutationBatch) bool { return f(b) }

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var _ control.Commander = (*Controller)(nil)

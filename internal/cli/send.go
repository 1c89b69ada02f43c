package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/bonfire/internal/control"
	"github.com/roach88/bonfire/internal/present"
)

// SendOptions holds flags shared by the send subcommands.
type SendOptions struct {
	*RootOptions
	Addr    string
	Timeout time.Duration
}

// NewSendCommand creates the send command and its subcommands.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a command to a running watcher",
		Long: `Send a command to a running watcher over its control channel.

Exit codes:
  0 - Command acknowledged
  1 - Watcher rejected the command
  2 - Watcher unreachable or bad arguments`,
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "", "watcher control address (default control.addr from config)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", control.DefaultTimeout, "round trip timeout")

	var mainText, subText string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a banner with the given text",
		Example: `  bonfire send show --main "SHIPPED" --sub "Release 1.4"
  bonfire send show   # VICTORY ACHIEVED / Epic Completed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := present.Trigger{MainText: mainText, SubText: subText}
			return runSend(opts, cmd, control.TypeShowBanner, func(ctx context.Context, c *control.Client) error {
				return c.ShowBanner(ctx, t)
			})
		},
	}
	show.Flags().StringVar(&mainText, "main", "", "banner headline")
	show.Flags().StringVar(&subText, "sub", "", "banner subtitle")

	test := &cobra.Command{
		Use:   "test",
		Short: "Show the test banner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, cmd, control.TypeTestBanner, func(ctx context.Context, c *control.Client) error {
				return c.TestBanner(ctx)
			})
		},
	}

	reload := &cobra.Command{
		Use:   "reload",
		Short: "Make the watcher re-read its settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, cmd, control.TypeReloadSettings, func(ctx context.Context, c *control.Client) error {
				return c.ReloadSettings(ctx)
			})
		},
	}

	navigate := &cobra.Command{
		Use:   "navigate <url>",
		Short: "Point the watcher at another board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, cmd, control.TypeNavigate, func(ctx context.Context, c *control.Client) error {
				return c.Navigate(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(show, test, reload, navigate)
	return cmd
}

func runSend(opts *SendOptions, cmd *cobra.Command, typ string, send func(context.Context, *control.Client) error) error {
	out := newFormatter(opts.RootOptions, cmd)

	addr := opts.Addr
	if addr == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		addr = cfg.Control.Addr
	}

	client := control.NewClient(addr)
	client.Timeout = opts.Timeout
	out.VerboseLog("sending %s to %s", typ, addr)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := send(ctx, client); err != nil {
		if errors.Is(err, control.ErrCommandFailed) {
			return out.Fail(ExitFailure, CodeSend, typ+" rejected", err)
		}
		return out.Fail(ExitCommandError, CodeSend, "watcher unreachable", err)
	}

	return out.Success(map[string]any{"command": typ, "addr": addr},
		fmt.Sprintf("%s acknowledged by %s", typ, addr))
}

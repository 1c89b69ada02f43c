package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/roach88/bonfire/internal/present"
)

// DefaultTimeout bounds one command round trip.
const DefaultTimeout = 5 * time.Second

// ErrCommandFailed is returned when the watcher acknowledged a command
// with success=false.
var ErrCommandFailed = errors.New("command failed")

// Client sends commands to a running watcher.
type Client struct {
	// Addr is the watcher's control address, "host:port" or a ws:// URL.
	Addr string

	IDs     IDGenerator
	Timeout time.Duration
}

// NewClient creates a Client using UUIDv7 request ids.
func NewClient(addr string) *Client {
	return &Client{Addr: addr, IDs: UUIDv7Generator{}, Timeout: DefaultTimeout}
}

// ShowBanner asks the watcher to present t.
func (c *Client) ShowBanner(ctx context.Context, t present.Trigger) error {
	return c.Send(ctx, TypeShowBanner, ShowBanner{Trigger: t})
}

// TestBanner asks the watcher to present the canned test trigger.
func (c *Client) TestBanner(ctx context.Context) error {
	return c.Send(ctx, TypeTestBanner, nil)
}

// ReloadSettings asks the watcher to re-read its settings.
func (c *Client) ReloadSettings(ctx context.Context) error {
	return c.Send(ctx, TypeReloadSettings, nil)
}

// Navigate asks the watcher to switch to another board.
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.Send(ctx, TypeNavigate, Navigate{URL: url})
}

// Send delivers one command and waits for its ack. A negative ack is
// returned as an error wrapping ErrCommandFailed.
func (c *Client) Send(ctx context.Context, typ string, payload any) error {
	wsURL, origin := c.urls()
	conn, err := websocket.Dial(wsURL, "", origin)
	if err != nil {
		return fmt.Errorf("connect to watcher at %s: %w", c.Addr, err)
	}
	defer conn.Close()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	ids := c.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	frame := Frame{Type: typ, RequestID: ids.Generate()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", typ, err)
		}
		frame.Payload = raw
	}

	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}

	dec := json.NewDecoder(conn)
	for {
		var reply Frame
		if err := dec.Decode(&reply); err != nil {
			return fmt.Errorf("read ack for %s: %w", typ, err)
		}
		if reply.Type != TypeAck || reply.RequestID != frame.RequestID {
			continue
		}

		var ack Ack
		if err := json.Unmarshal(reply.Payload, &ack); err != nil {
			return fmt.Errorf("decode ack: %w", err)
		}
		if !ack.Success {
			return fmt.Errorf("%w: %s", ErrCommandFailed, ack.Error)
		}
		return nil
	}
}

func (c *Client) urls() (wsURL, origin string) {
	addr := c.Addr
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		wsURL = addr
	case strings.HasPrefix(addr, "http://"), strings.HasPrefix(addr, "https://"):
		wsURL = "ws" + strings.TrimPrefix(addr, "http")
	default:
		wsURL = "ws://" + addr
	}
	if !strings.HasSuffix(wsURL, "/ws") {
		wsURL = strings.TrimSuffix(wsURL, "/") + "/ws"
	}
	origin = "http" + strings.TrimPrefix(strings.TrimSuffix(wsURL, "/ws"), "ws")
	return wsURL, origin
}

package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/roach88/bonfire/internal/present"
)

// Commander carries out control commands. Implemented by app.Controller.
type Commander interface {
	ShowBanner(ctx context.Context, t present.Trigger) error
	TestBanner(ctx context.Context) error
	ReloadSettings(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}

// NewHandler serves the control channel on /ws and a liveness probe on /up.
func NewHandler(cmd Commander) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleConn(conn, cmd)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

func handleConn(conn *websocket.Conn, cmd Commander) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	if req := conn.Request(); req != nil {
		ctx = req.Context()
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	decodeErrors := 0

	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeAck(encoder, "", errors.New("invalid frame"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				slog.Warn("closing control connection: too many invalid frames")
				return
			}
			// The decoder's buffer is poisoned after a syntax error.
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeAck(encoder, frame.RequestID, errors.New("payload too large"))
			continue
		}

		err := dispatch(ctx, cmd, frame)
		if err != nil {
			slog.Warn("control command failed", "type", frame.Type, "request_id", frame.RequestID, "error", err)
		} else {
			slog.Info("control command handled", "type", frame.Type, "request_id", frame.RequestID)
		}
		if werr := writeAck(encoder, frame.RequestID, err); werr != nil {
			slog.Debug("control ack not delivered", "request_id", frame.RequestID, "error", werr)
			return
		}
	}
}

func dispatch(ctx context.Context, cmd Commander, frame Frame) error {
	switch frame.Type {
	case TypeShowBanner:
		var p ShowBanner
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return fmt.Errorf("invalid show_banner payload: %w", err)
		}
		return cmd.ShowBanner(ctx, p.Trigger)

	case TypeTestBanner:
		return cmd.TestBanner(ctx)

	case TypeReloadSettings:
		return cmd.ReloadSettings(ctx)

	case TypeNavigate:
		var p Navigate
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return fmt.Errorf("invalid navigate payload: %w", err)
		}
		if strings.TrimSpace(p.URL) == "" {
			return errors.New("navigate requires url")
		}
		return cmd.Navigate(ctx, p.URL)

	default:
		return fmt.Errorf("unsupported frame type %q", frame.Type)
	}
}

func writeAck(enc *json.Encoder, requestID string, err error) error {
	ack := Ack{Success: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	return enc.Encode(Frame{
		Type:      TypeAck,
		RequestID: requestID,
		Payload:   mustJSON(ack),
	})
}

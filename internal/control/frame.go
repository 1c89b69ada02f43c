package control

import (
	"encoding/json"
	"log/slog"

	"github.com/roach88/bonfire/internal/present"
)

// Frame types.
const (
	TypeShowBanner     = "show_banner"
	TypeTestBanner     = "test_banner"
	TypeReloadSettings = "reload_settings"
	TypeNavigate       = "navigate"
	TypeAck            = "ack"
)

// Limits applied per connection.
const (
	maxFramePayloadBytes   = 16 * 1024
	maxDecodeErrorsPerConn = 3
)

// Frame is one message on the control channel.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Ack acknowledges one command.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ShowBanner is the payload of a show_banner command.
type ShowBanner struct {
	Trigger present.Trigger `json:"trigger"`
}

// Navigate is the payload of a navigate command.
type Navigate struct {
	URL string `json:"url"`
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal control frame payload", "error", err)
		return nil
	}
	return b
}

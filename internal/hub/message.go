package hub

import (
	"time"

	"github.com/chuanjin/BaahBridge/internal/sensor"
)

// WSMessage is sent from server to client.
type WSMessage struct {
	Type      string          `json:"type"`             // "reading", "state" or "error"
	Seq       int64           `json:"seq"`              // Sequence number for ordering
	Timestamp int64           `json:"timestamp"`        // Unix timestamp in milliseconds
	Data      *sensor.Reading `json:"data,omitempty"`   // Reading for type "reading"
	Factor    float64         `json:"factor,omitempty"` // Current difficulty factor for type "state"
	Error     string          `json:"error,omitempty"`
}

func NewReadingMessage(seq int64, r *sensor.Reading) *WSMessage {
	return &WSMessage{
		Type:      "reading",
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Data:      r,
	}
}

func NewStateMessage(factor float64) *WSMessage {
	return &WSMessage{
		Type:      "state",
		Timestamp: time.Now().UnixMilli(),
		Factor:    factor,
	}
}

func NewErrorMessage(err error) *WSMessage {
	return &WSMessage{
		Type:      "error",
		Timestamp: time.Now().UnixMilli(),
		Error:     err.Error(),
	}
}

// ClientMessage is sent from a client to the server.
type ClientMessage struct {
	Type   string  `json:"type"`
	Factor float64 `json:"factor,omitempty"`
}

package hub

import (
	"encoding/json"
	"fmt"

	"github.com/chuanjin/BaahBridge/internal/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FactorSetter is the runtime difficulty control exposed to clients.
type FactorSetter interface {
	Factor() float64
	SetFactor(float64) error
}

// Client represents a connected websocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Queue sends msg to this client only. It reports false if the client is
// gone or its buffer is full.
func (c *Client) Queue(msg *WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// WritePump sends messages from the send channel to the websocket connection.
func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

// ReadPump handles client commands until the connection fails.
func (c *Client) ReadPump(factors FactorSetter) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			logger.Warn("Error parsing client message", zap.Error(err))
			c.Queue(NewErrorMessage(fmt.Errorf("invalid message: %w", err)))
			continue
		}

		switch clientMsg.Type {
		case "set_factor":
			if err := factors.SetFactor(clientMsg.Factor); err != nil {
				logger.Warn("Rejected difficulty factor", zap.Float64("factor", clientMsg.Factor), zap.Error(err))
				c.Queue(NewErrorMessage(err))
				continue
			}
			logger.Info("Difficulty factor updated", zap.Float64("factor", clientMsg.Factor))
			c.Queue(NewStateMessage(factors.Factor()))
		case "get_state":
			c.Queue(NewStateMessage(factors.Factor()))
		default:
			c.Queue(NewErrorMessage(fmt.Errorf("unknown message type %q", clientMsg.Type)))
		}
	}
}

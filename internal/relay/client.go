package relay

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/metrics"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

// Limits bounds a single connection.
type Limits struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration

	// Maximum message size allowed from peer. SDP blobs are the largest
	// thing a client sends.
	MaxMessageSize int64

	// Capacity of the outbound queue.
	SendQueueSize int
}

func DefaultLimits() Limits {
	return Limits{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendQueueSize:  256,
	}
}

// Client is one WebSocket connection and its relay-assigned identity.
type Client struct {
	ID string

	hub    *Hub
	conn   *websocket.Conn
	limits Limits

	// Send is the outbound queue drained by WritePump. Only the hub closes it.
	Send chan *protocol.Message
}

func NewClient(hub *Hub, conn *websocket.Conn, id string, limits Limits) *Client {
	if limits.SendQueueSize <= 0 {
		limits.SendQueueSize = DefaultLimits().SendQueueSize
	}
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		limits: limits,
		Send:   make(chan *protocol.Message, limits.SendQueueSize),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.limits.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.limits.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.limits.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.ID).Msg("Unexpected close")
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID).Msg("Dropping malformed message")
			c.hub.metrics.Drop(metrics.DropMalformed)
			continue
		}

		c.hub.Deliver(c, &msg)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.limits.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(c.limits.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.limits.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

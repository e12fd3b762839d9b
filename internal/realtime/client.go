package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// Client is a live websocket connection bound to one user and one chat for
// its whole lifetime. It is owned by the gateway goroutines that pump it
// and is never shared beyond the Conn interface.
type Client struct {
	router   *Router
	registry *Registry
	conn     *websocket.Conn
	user     models.User
	chatID   int64
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	logger   *slog.Logger
}

func NewClient(router *Router, registry *Registry, conn *websocket.Conn, user models.User, chatID int64, logger *slog.Logger) *Client {
	return &Client{
		router:   router,
		registry: registry,
		conn:     conn,
		user:     user,
		chatID:   chatID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func (c *Client) User() models.User { return c.user }

func (c *Client) ChatID() int64 { return c.chatID }

// Deliver enqueues without blocking. False means the outbound queue is
// full or the connection is closing; the caller evicts the connection.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close sends a close frame and tears the transport down. Idempotent;
// pending sends are abandoned, an in-flight Publish is not rolled back.
func (c *Client) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil &&
			!errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug("close frame not delivered", "userID", c.user.ID, "error", err)
		}
		c.conn.Close()
	})
}

// ReadPump consumes inbound frames until the connection dies, then runs
// the connection's teardown exactly once: deregistration from both the
// registry and the router, regardless of who initiated closure.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Deregister(c)
		c.router.Unsubscribe(c.chatID, c)
		c.Close(websocket.CloseNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "userID", c.user.ID, "error", err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("malformed frame", "userID", c.user.ID, "error", err)
			continue
		}

		// Blank-after-trim bodies are dropped without a reply; the client
		// disables send on empty input but the server cannot trust that.
		body := strings.TrimSpace(frame.Message)
		if body == "" {
			continue
		}

		if _, err := c.router.Publish(context.Background(), c.chatID, c.user, body); err != nil {
			switch {
			case errors.Is(err, ports.ErrChatNotFound):
				c.Close(websocket.ClosePolicyViolation, "chat no longer exists")
				return
			case errors.Is(err, ports.ErrSenderNotMember):
				c.Close(websocket.ClosePolicyViolation, "not a member of this chat")
				return
			default:
				c.logger.Error("message rejected", "chatID", c.chatID, "userID", c.user.ID, "error", err)
				payload, _ := json.Marshal(ErrorFrame{Type: "error", Error: "message could not be delivered"})
				c.Deliver(payload)
			}
		}
	}
}

// WritePump drains the outbound queue and keeps the connection alive with
// pings. It stops when the connection closes; a write failure closes the
// connection so ReadPump can finish teardown.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case payload := <-c.send:
			if !c.writeFrame(payload) {
				return
			}
			// Flush whatever else is already queued, one frame per message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				if !c.writeFrame(<-c.send) {
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Client) writeFrame(payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.Close(websocket.CloseAbnormalClosure, "write failed")
		return false
	}
	return true
}

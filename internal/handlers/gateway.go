package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/ports"
	"github.com/IlyacloudDev/QuickTalk/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// GatewayHandler runs the websocket handshake: authenticate, upgrade,
// subscribe, register, then hand the connection to its pumps. A connection
// serves exactly one chat, named by the path, for its whole lifetime.
type GatewayHandler struct {
	router   *realtime.Router
	registry *realtime.Registry
	sessions ports.SessionValidator
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewGatewayHandler(router *realtime.Router, registry *realtime.Registry, sessions ports.SessionValidator, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		router:   router,
		registry: registry,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *GatewayHandler) HandleWebSocket(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	token := c.Query("token")
	if token == "" {
		if cookie, err := c.Request.Cookie("token"); err == nil {
			token = cookie.Value
		}
	}

	// Handshake errors happen before any registration; a refused
	// connection leaves no state behind.
	user, err := h.sessions.ValidateToken(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("unauthorized websocket connection attempt", "chatID", chatID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := realtime.NewClient(h.router, h.registry, conn, *user, chatID, h.logger)

	if err := h.router.Subscribe(c.Request.Context(), chatID, client); err != nil {
		h.refuse(conn, chatID, user.Username, err)
		return
	}
	h.registry.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket connection established", "userID", user.ID, "chatID", chatID)
}

// refuse closes a just-upgraded connection with an explicit reason, before
// it was ever registered anywhere.
func (h *GatewayHandler) refuse(conn *websocket.Conn, chatID int64, username string, err error) {
	code := websocket.CloseInternalServerErr
	reason := "subscription failed"
	switch {
	case errors.Is(err, ports.ErrNotAMember):
		code = websocket.ClosePolicyViolation
		reason = "not a member of this chat"
	case errors.Is(err, ports.ErrChatNotFound):
		code = websocket.ClosePolicyViolation
		reason = "chat not found"
	}

	h.logger.Warn("websocket subscription refused", "chatID", chatID, "username", username, "reason", reason, "error", err)

	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
	conn.Close()
}

package realtime

import (
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
)

// InboundFrame is the only frame a client may send: a request to deliver
// one message to the chat its connection is bound to.
type InboundFrame struct {
	Message string `json:"message"`
}

// OutboundFrame mirrors a stored message with everything a client needs to
// render it.
type OutboundFrame struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func NewOutboundFrame(msg *models.Message) OutboundFrame {
	return OutboundFrame{
		UserID:    msg.SenderID,
		Username:  msg.Sender,
		Message:   msg.Content,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ErrorFrame is sent to the originating connection only, never broadcast.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

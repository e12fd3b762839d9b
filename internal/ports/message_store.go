package ports

import (
	"context"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
)

// MessageStore is the durable append-only log of chat messages. It is the
// source of truth: the realtime core never broadcasts a message the store
// has not accepted.
type MessageStore interface {
	// Append stores one message and returns it with the server-assigned id
	// and timestamp and the sender's resolved username. Fails with
	// ErrChatNotFound or ErrSenderNotMember.
	Append(ctx context.Context, chatID, senderID int64, body string) (*models.Message, error)

	// ListSince returns messages of a chat with id greater than sinceID,
	// ordered by creation time ascending. sinceID 0 loads from the start;
	// limit <= 0 applies the store default.
	ListSince(ctx context.Context, chatID, sinceID int64, limit int) ([]models.Message, error)
}

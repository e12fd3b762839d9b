package ports

import (
	"context"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
)

// SessionValidator resolves a bearer token into the authenticated user.
// Every gateway handshake and API request goes through it.
type SessionValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

// RealtimeBridge is what the chat service sees of the realtime core. It is
// injected after construction to keep the dependency one-way.
type RealtimeBridge interface {
	// NotifyUser pushes an event frame to every live connection of a user.
	NotifyUser(userID int64, event any)
	// NotifyChat pushes an event frame to every connection subscribed to a chat.
	NotifyChat(chatID int64, event any)
	// CloseChat force-unsubscribes and closes every connection of a chat.
	CloseChat(chatID int64, reason string)
}

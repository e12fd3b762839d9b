package ports

import "errors"

// Sentinel errors shared by repositories, services and the realtime core.
// Handlers translate them into HTTP statuses and websocket close reasons.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("operation not permitted")
	ErrUserNotFound          = errors.New("user not found")
	ErrChatNotFound          = errors.New("chat not found")
	ErrNotAMember            = errors.New("user is not a member of this chat")
	ErrSenderNotMember       = errors.New("sender is not a member of this chat")
	ErrPersonalChatImmutable = errors.New("personal chats cannot be modified")
)

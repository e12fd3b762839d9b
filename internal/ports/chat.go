package ports

import (
	"context"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
)

type IChatRepository interface {
	MembershipDirectory

	CreateGroupChat(ctx context.Context, name string, createdBy int64, memberIDs []int64) (int64, error)
	// FindPersonalChat returns (nil, nil) when the two users share no
	// personal chat yet.
	FindPersonalChat(ctx context.Context, userA, userB int64) (*models.Chat, error)
	CreatePersonalChat(ctx context.Context, userA, userB int64) (int64, error)
	// GetChatByID returns (nil, nil) when the chat does not exist.
	GetChatByID(ctx context.Context, chatID int64) (*models.Chat, error)
	GetUserChats(ctx context.Context, userID int64) ([]models.Chat, error)
	UpdateChatName(ctx context.Context, chatID int64, name string) error
	DeleteChat(ctx context.Context, chatID int64) error
	AddMember(ctx context.Context, chatID, userID int64) error
	SearchGroupChats(ctx context.Context, query string, limit int) ([]models.Chat, error)
}

// MembershipDirectory answers the authorization question the realtime core
// asks on every subscribe and append: is this user currently a member of
// this chat. Implementations must not serve cached answers.
type MembershipDirectory interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
}

package ports

import (
	"context"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
)

type IUserRepository interface {
	IUserRepositoryReader
	IUserRepositoryWriter
}

type IUserRepositoryReader interface {
	// GetUserByName returns (nil, nil) when no such user exists.
	GetUserByName(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
}

type IUserRepositoryWriter interface {
	CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error)
	UpdateUser(ctx context.Context, id int64, email, passwordHash string) error
}

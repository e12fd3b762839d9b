package services

import (
	"context"
	"log/slog"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"
)

// UserService covers the profile surface: lookup, update, search.
type UserService struct {
	userRepo ports.IUserRepository
	hasher   IHasher
	logger   *slog.Logger
}

func NewUserService(userRepo ports.IUserRepository, hasher IHasher, logger *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher, logger: logger}
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ports.ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes the email and, when newPassword is non-empty, the
// password. Usernames are permanent.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, email, newPassword string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ports.ErrUserNotFound
	}

	passwordHash := ""
	if newPassword != "" {
		hashed, err := s.hasher.GenerateFromPassword([]byte(newPassword), s.hasher.DefaultCost())
		if err != nil {
			s.logger.Error("password hashing failed", "error", err)
			return err
		}
		passwordHash = string(hashed)
	}

	if email == "" {
		email = user.Email
	}

	if err := s.userRepo.UpdateUser(ctx, userID, email, passwordHash); err != nil {
		s.logger.Error("failed to update user", "userID", userID, "error", err)
		return err
	}

	s.logger.Info("profile updated", "userID", userID)
	return nil
}

func (s *UserService) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	if query == "" {
		return nil, nil
	}
	return s.userRepo.SearchUsers(ctx, query, limit)
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientMembers = errors.New("chat must have at least 2 members")
)

// ChatDetail is the initial-load payload: resolved name, permissions and
// the ordered history. The realtime gateway supplies only the live
// increment after this.
type ChatDetail struct {
	ID        int64            `json:"id"`
	Name      string           `json:"chat_name"`
	Type      models.ChatType  `json:"type"`
	CanManage bool             `json:"can_manage"`
	Members   []models.Member  `json:"members"`
	Messages  []models.Message `json:"messages"`
}

type ChatService struct {
	chatRepo ports.IChatRepository
	store    ports.MessageStore
	userRepo ports.IUserRepository
	logger   *slog.Logger
	realtime ports.RealtimeBridge
}

func NewChatService(chatRepo ports.IChatRepository, store ports.MessageStore, userRepo ports.IUserRepository, logger *slog.Logger) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		store:    store,
		userRepo: userRepo,
		logger:   logger,
	}
}

// SetRealtimeBridge injects the realtime core after construction; both
// sides are built by the container and the dependency stays one-way.
func (s *ChatService) SetRealtimeBridge(bridge ports.RealtimeBridge) {
	s.realtime = bridge
}

// CreateGroupChat creates a group chat from member usernames. The creator
// is always included.
func (s *ChatService) CreateGroupChat(ctx context.Context, name string, creatorID int64, memberNames []string) (*models.Chat, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	creator, err := s.userRepo.GetUserByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ports.ErrUserNotFound
	}

	memberIDs := []int64{creatorID}
	seen := map[int64]bool{creatorID: true}
	for _, username := range memberNames {
		user, err := s.userRepo.GetUserByName(ctx, username)
		if err != nil {
			s.logger.Error("failed to check user existence", "username", username, "error", err)
			return nil, err
		}
		if user == nil {
			s.logger.Warn("user not found", "username", username)
			return nil, ports.ErrUserNotFound
		}
		if !seen[user.ID] {
			seen[user.ID] = true
			memberIDs = append(memberIDs, user.ID)
		}
	}

	if len(memberIDs) < 2 {
		return nil, ErrInsufficientMembers
	}

	chatID, err := s.chatRepo.CreateGroupChat(ctx, name, creatorID, memberIDs)
	if err != nil {
		s.logger.Error("failed to create chat in repository", "error", err)
		return nil, err
	}

	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	s.notifyChatCreated(chat, creatorID)
	s.logger.Info("group chat created", "chatID", chatID, "name", name, "memberCount", len(memberIDs))
	return chat, nil
}

// CreatePersonalChat is idempotent per user pair: re-requesting the chat
// returns the existing one instead of creating a duplicate. The second
// return value reports whether a chat was actually created.
func (s *ChatService) CreatePersonalChat(ctx context.Context, creatorID int64, peerUsername string) (*models.Chat, bool, error) {
	peer, err := s.userRepo.GetUserByName(ctx, peerUsername)
	if err != nil {
		return nil, false, err
	}
	if peer == nil {
		return nil, false, ports.ErrUserNotFound
	}
	if peer.ID == creatorID {
		return nil, false, ErrInvalidInput
	}

	existing, err := s.chatRepo.FindPersonalChat(ctx, creatorID, peer.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	chatID, err := s.chatRepo.CreatePersonalChat(ctx, creatorID, peer.ID)
	if err != nil {
		s.logger.Error("failed to create personal chat", "error", err)
		return nil, false, err
	}

	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, false, err
	}

	s.notifyChatCreated(chat, creatorID)
	s.logger.Info("personal chat created", "chatID", chatID, "creatorID", creatorID, "peerID", peer.ID)
	return chat, true, nil
}

func (s *ChatService) GetUserChats(ctx context.Context, userID int64) ([]models.Chat, error) {
	chats, err := s.chatRepo.GetUserChats(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get user chats", "userID", userID, "error", err)
		return nil, err
	}
	s.logger.Debug("retrieved user chats", "userID", userID, "chatCount", len(chats))
	return chats, nil
}

// GetChatDetail loads a chat for a viewer. Members get the full history;
// a non-member may see a group chat's summary (the search-then-join flow)
// but never its messages, and never a personal chat at all.
func (s *ChatService) GetChatDetail(ctx context.Context, chatID, viewerID int64) (*ChatDetail, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ports.ErrChatNotFound
	}

	detail := ChatDetail{
		ID:        chat.ID,
		Name:      chat.DisplayName(viewerID),
		Type:      chat.Type,
		CanManage: chat.CanManage(viewerID),
		Members:   chat.Members,
	}

	if !chat.HasMember(viewerID) {
		if chat.Type == models.ChatTypePersonal {
			return nil, ports.ErrNotAMember
		}
		detail.CanManage = false
		return &detail, nil
	}

	messages, err := s.store.ListSince(ctx, chatID, 0, 0)
	if err != nil {
		s.logger.Error("failed to load chat history", "chatID", chatID, "error", err)
		return nil, err
	}
	detail.Messages = messages
	return &detail, nil
}

// GetChatMessages pages through history; cursor is the last seen message id.
func (s *ChatService) GetChatMessages(ctx context.Context, chatID, viewerID, sinceID int64, limit int) ([]models.Message, error) {
	member, err := s.chatRepo.IsMember(ctx, chatID, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ports.ErrNotAMember
	}

	if limit > 100 {
		limit = 100
	}
	return s.store.ListSince(ctx, chatID, sinceID, limit)
}

func (s *ChatService) UpdateGroupChat(ctx context.Context, chatID, userID int64, name string) error {
	if name == "" {
		return ErrInvalidInput
	}

	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return ports.ErrChatNotFound
	}
	if chat.Type == models.ChatTypePersonal {
		return ports.ErrPersonalChatImmutable
	}
	if chat.CreatedBy != userID {
		return ports.ErrForbidden
	}

	if err := s.chatRepo.UpdateChatName(ctx, chatID, name); err != nil {
		s.logger.Error("failed to update chat", "chatID", chatID, "error", err)
		return err
	}

	if s.realtime != nil {
		s.realtime.NotifyChat(chatID, map[string]any{
			"type":      "chat_updated",
			"chat_id":   chatID,
			"chat_name": name,
		})
	}

	s.logger.Info("chat updated", "chatID", chatID, "name", name)
	return nil
}

func (s *ChatService) DeleteChat(ctx context.Context, chatID, userID int64) error {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return ports.ErrChatNotFound
	}
	if !chat.CanManage(userID) {
		s.logger.Warn("user may not delete chat", "userID", userID, "chatID", chatID)
		return ports.ErrForbidden
	}

	// Messages and memberships go with the chat (cascade).
	if err := s.chatRepo.DeleteChat(ctx, chatID); err != nil {
		s.logger.Error("failed to delete chat", "chatID", chatID, "error", err)
		return err
	}

	s.notifyChatDeleted(chat, userID)
	s.logger.Info("chat deleted", "chatID", chatID, "deletedBy", userID)
	return nil
}

// JoinGroupChat adds a user to a group chat; joining twice is a no-op.
func (s *ChatService) JoinGroupChat(ctx context.Context, chatID, userID int64) (bool, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		return false, err
	}
	if chat == nil {
		return false, ports.ErrChatNotFound
	}
	if chat.Type == models.ChatTypePersonal {
		return false, ports.ErrPersonalChatImmutable
	}
	if chat.HasMember(userID) {
		return false, nil
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ports.ErrUserNotFound
	}

	if err := s.chatRepo.AddMember(ctx, chatID, userID); err != nil {
		s.logger.Error("failed to add member", "chatID", chatID, "userID", userID, "error", err)
		return false, err
	}

	if s.realtime != nil {
		s.realtime.NotifyChat(chatID, map[string]any{
			"type":     "member_joined",
			"chat_id":  chatID,
			"user_id":  user.ID,
			"username": user.Username,
		})
	}

	s.logger.Info("user joined chat", "chatID", chatID, "userID", userID)
	return true, nil
}

func (s *ChatService) SearchGroupChats(ctx context.Context, query string, limit int) ([]models.Chat, error) {
	if query == "" {
		return nil, nil
	}
	return s.chatRepo.SearchGroupChats(ctx, query, limit)
}

func (s *ChatService) notifyChatCreated(chat *models.Chat, createdBy int64) {
	if s.realtime == nil || chat == nil {
		return
	}

	event := map[string]any{
		"type":       "chat_created",
		"chat_id":    chat.ID,
		"chat_name":  chat.Name,
		"chat_type":  chat.Type,
		"created_by": createdBy,
	}

	for _, member := range chat.Members {
		if member.UserID != createdBy {
			s.realtime.NotifyUser(member.UserID, event)
		}
	}
}

func (s *ChatService) notifyChatDeleted(chat *models.Chat, deletedBy int64) {
	if s.realtime == nil {
		return
	}

	// Live subscribers are force-disconnected; every member's remaining
	// connections get told why.
	s.realtime.CloseChat(chat.ID, "chat deleted")

	event := map[string]any{
		"type":       "chat_deleted",
		"chat_id":    chat.ID,
		"deleted_by": deletedBy,
		"deleted_at": time.Now().UTC().Format(time.RFC3339),
	}
	for _, member := range chat.Members {
		s.realtime.NotifyUser(member.UserID, event)
	}
}

package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/IlyacloudDev/QuickTalk/internal/models"

	_ "embed"
)

//go:embed migrations/002_create_chats_table_up.sql
var createChatsTableQuery string

//go:embed migrations/003_create_chat_members_table_up.sql
var createChatMembersTableQuery string

// ChatRepository persists chats and memberships. It doubles as the
// membership directory the realtime core consults on every subscribe.
type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB, logger *slog.Logger) (*ChatRepository, error) {
	repo := ChatRepository{db: db}
	if _, err := repo.db.Exec(createChatsTableQuery); err != nil {
		logger.Error("chats migration failed", "error", err)
		return nil, err
	}
	if _, err := repo.db.Exec(createChatMembersTableQuery); err != nil {
		logger.Error("chat members migration failed", "error", err)
		return nil, err
	}
	return &repo, nil
}

func (r *ChatRepository) CreateGroupChat(ctx context.Context, name string, createdBy int64, memberIDs []int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var chatID int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO chats (type, name, created_by) VALUES ('group', $1, $2) RETURNING id",
		name, createdBy).Scan(&chatID)
	if err != nil {
		return 0, err
	}

	for _, member := range memberIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			chatID, member)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return chatID, nil
}

func (r *ChatRepository) FindPersonalChat(ctx context.Context, userA, userB int64) (*models.Chat, error) {
	var chatID int64
	query := `
		SELECT c.id
		FROM chats c
		JOIN chat_members ma ON ma.chat_id = c.id AND ma.user_id = $1
		JOIN chat_members mb ON mb.chat_id = c.id AND mb.user_id = $2
		WHERE c.type = 'personal'
		LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, userA, userB).Scan(&chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r.GetChatByID(ctx, chatID)
}

func (r *ChatRepository) CreatePersonalChat(ctx context.Context, userA, userB int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var chatID int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO chats (type, created_by) VALUES ('personal', $1) RETURNING id",
		userA).Scan(&chatID)
	if err != nil {
		return 0, err
	}

	for _, member := range []int64{userA, userB} {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)", chatID, member)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return chatID, nil
}

func (r *ChatRepository) GetChatByID(ctx context.Context, chatID int64) (*models.Chat, error) {
	var chat models.Chat
	var name sql.NullString
	var createdBy sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		"SELECT id, type, name, created_by, created_at FROM chats WHERE id = $1", chatID).
		Scan(&chat.ID, &chat.Type, &name, &createdBy, &chat.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	chat.Name = name.String
	chat.CreatedBy = createdBy.Int64

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.user_id, u.username
		FROM chat_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = $1
		ORDER BY m.joined_at`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var member models.Member
		if err := rows.Scan(&member.UserID, &member.Username); err != nil {
			return nil, err
		}
		chat.Members = append(chat.Members, member)
	}
	return &chat, rows.Err()
}

func (r *ChatRepository) GetUserChats(ctx context.Context, userID int64) ([]models.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.type, c.name, c.created_by, c.created_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var name sql.NullString
		var createdBy sql.NullInt64
		if err := rows.Scan(&chat.ID, &chat.Type, &name, &createdBy, &chat.CreatedAt); err != nil {
			return nil, err
		}
		chat.Name = name.String
		chat.CreatedBy = createdBy.Int64
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Member lists are needed to resolve personal chat display names.
	for i := range chats {
		full, err := r.GetChatByID(ctx, chats[i].ID)
		if err != nil {
			return nil, err
		}
		if full != nil {
			chats[i].Members = full.Members
		}
	}
	return chats, nil
}

func (r *ChatRepository) UpdateChatName(ctx context.Context, chatID int64, name string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE chats SET name = $1 WHERE id = $2", name, chatID)
	return err
}

// DeleteChat removes the chat; memberships and messages follow by cascade.
func (r *ChatRepository) DeleteChat(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chats WHERE id = $1", chatID)
	return err
}

func (r *ChatRepository) AddMember(ctx context.Context, chatID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		chatID, userID)
	return err
}

func (r *ChatRepository) SearchGroupChats(ctx context.Context, query string, limit int) ([]models.Chat, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, name, created_by, created_at
		FROM chats
		WHERE type = 'group' AND name ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var name sql.NullString
		var createdBy sql.NullInt64
		if err := rows.Scan(&chat.ID, &chat.Type, &name, &createdBy, &chat.CreatedAt); err != nil {
			return nil, err
		}
		chat.Name = name.String
		chat.CreatedBy = createdBy.Int64
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (r *ChatRepository) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)",
		chatID, userID).Scan(&exists)
	return exists, err
}

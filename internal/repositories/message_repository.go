package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"

	_ "embed"
)

//go:embed migrations/004_create_messages_table_up.sql
var createMessagesTableQuery string

const defaultHistoryLimit = 50

// MessageRepository is the durable message log behind ports.MessageStore.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB, logger *slog.Logger) (*MessageRepository, error) {
	repo := MessageRepository{db: db}
	if _, err := repo.db.Exec(createMessagesTableQuery); err != nil {
		logger.Error("messages migration failed", "error", err)
		return nil, err
	}
	return &repo, nil
}

// Append validates the chat and the sender's membership inside one
// transaction, then inserts the message. The returned message carries the
// server-assigned timestamp and the sender's username for delivery.
func (r *MessageRepository) Append(ctx context.Context, chatID, senderID int64, body string) (*models.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var chatExists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)", chatID).Scan(&chatExists)
	if err != nil {
		return nil, err
	}
	if !chatExists {
		return nil, ports.ErrChatNotFound
	}

	var username string
	err = tx.QueryRowContext(ctx, `
		SELECT u.username
		FROM chat_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = $1 AND m.user_id = $2`, chatID, senderID).Scan(&username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ports.ErrSenderNotMember
		}
		return nil, err
	}

	msg := models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Sender:   username,
		Content:  body,
	}
	err = tx.QueryRowContext(ctx,
		"INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id, created_at",
		chatID, senderID, body).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepository) ListSince(ctx context.Context, chatID, sinceID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.chat_id, m.sender_id, u.username, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1 AND m.id > $2
		ORDER BY m.created_at, m.id
		LIMIT $3`, chatID, sinceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

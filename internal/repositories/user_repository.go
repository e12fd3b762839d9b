package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/IlyacloudDev/QuickTalk/internal/models"

	_ "embed"
)

//go:embed migrations/001_create_users_table_up.sql
var createUsersTableQuery string

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB, logger *slog.Logger) (*UserRepository, error) {
	repo := UserRepository{db: db}
	if _, err := repo.db.Exec(createUsersTableQuery); err != nil {
		logger.Error("users migration failed", "error", err)
		return nil, err
	}
	return &repo, nil
}

func (r *UserRepository) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := "SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1"
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := "SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error) {
	var id int64
	query := "INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3) RETURNING id"
	if err := r.db.QueryRowContext(ctx, query, username, passwordHash, email).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, id int64, email, passwordHash string) error {
	if passwordHash != "" {
		_, err := r.db.ExecContext(ctx,
			"UPDATE users SET email = $1, password_hash = $2 WHERE id = $3", email, passwordHash, id)
		return err
	}
	_, err := r.db.ExecContext(ctx, "UPDATE users SET email = $1 WHERE id = $2", email, id)
	return err
}

func (r *UserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, username, email, created_at FROM users WHERE username ILIKE '%' || $1 || '%' ORDER BY username LIMIT $2",
		query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"guild-chat-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository stores the local projection of authenticated users.
type UserRepository interface {
	Touch(ctx context.Context, userID int, username string) error
	Get(ctx context.Context, userID int) (models.User, error)
	Exists(ctx context.Context, userID int) (bool, error)
	GetMany(ctx context.Context, userIDs []int) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Touch inserts the user on first sight and keeps the username current.
// A token without a username claim never overwrites a stored name.
func (r *UserRepo) Touch(ctx context.Context, userID int, username string) error {
	query := `INSERT INTO users (id, username) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
        WHERE users.username <> EXCLUDED.username`
	if username == "" {
		username = fmt.Sprintf("user-%d", userID)
		query = `INSERT INTO users (id, username) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, userID, username)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Get fetches a user by id.
func (r *UserRepo) Get(ctx context.Context, userID int) (models.User, error) {
	var u models.User
	err := conn(ctx, r.db).GetContext(ctx, &u, `SELECT id, username, avatar_url, bio, created_at FROM users WHERE id=$1`, userID)
	if err != nil {
		return models.User{}, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// Exists reports whether the user has been seen.
func (r *UserRepo) Exists(ctx context.Context, userID int) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID)
	return exists, err
}

// GetMany fetches users by id, ordered by id. Unknown ids are skipped.
func (r *UserRepo) GetMany(ctx context.Context, userIDs []int) ([]models.User, error) {
	users := []models.User{}
	if len(userIDs) == 0 {
		return users, nil
	}
	err := conn(ctx, r.db).SelectContext(ctx, &users, `SELECT id, username, avatar_url, bio, created_at FROM users
        WHERE id = ANY($1) ORDER BY id`, pq.Array(userIDs))
	return users, err
}

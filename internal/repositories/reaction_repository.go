package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"guild-chat-service/internal/models"
)

// ReactionRepository persists (message, user, emoji) tuples.
type ReactionRepository interface {
	Add(ctx context.Context, messageID, userID int, emoji string) (bool, error)
	Remove(ctx context.Context, messageID, userID int, emoji string) (bool, error)
	ListByMessage(ctx context.Context, messageID int) ([]models.Reaction, error)
	ListByMessages(ctx context.Context, messageIDs []int) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Add inserts a reaction and reports whether a row was created.
func (r *ReactionRepo) Add(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id, emoji) DO NOTHING`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// Remove deletes a reaction and reports whether one existed.
func (r *ReactionRepo) Remove(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// ListByMessage returns reactions on one message in creation order.
func (r *ReactionRepo) ListByMessage(ctx context.Context, messageID int) ([]models.Reaction, error) {
	return r.ListByMessages(ctx, []int{messageID})
}

// ListByMessages returns reactions on several messages in creation order.
func (r *ReactionRepo) ListByMessages(ctx context.Context, messageIDs []int) ([]models.Reaction, error) {
	list := []models.Reaction{}
	if len(messageIDs) == 0 {
		return list, nil
	}
	err := conn(ctx, r.db).SelectContext(ctx, &list, `SELECT r.message_id, r.user_id, u.username, u.avatar_url, r.emoji, r.created_at
        FROM reactions r
        JOIN users u ON u.id = r.user_id
        WHERE r.message_id = ANY($1)
        ORDER BY r.created_at, r.user_id`, pq.Array(messageIDs))
	return list, err
}

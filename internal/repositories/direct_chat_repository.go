package repositories

import (
	"context"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrDirectChatNotFound = errors.New("direct chat not found")

// DirectChatRepository abstracts 1:1 and group chat persistence.
type DirectChatRepository interface {
	FindDirect(ctx context.Context, low, high int) (models.DirectChat, error)
	CreateDirect(ctx context.Context, low, high, creatorID int) (models.DirectChat, error)
	CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.DirectChat, error)
	Get(ctx context.Context, chatID int) (models.DirectChat, error)
	ListForUser(ctx context.Context, userID int) ([]models.DirectChat, error)
	ListParticipants(ctx context.Context, chatID int) ([]models.UserSummary, error)
	IsParticipant(ctx context.Context, chatID, userID int) (bool, error)
	AddParticipant(ctx context.Context, chatID, userID int) (bool, error)
	RemoveParticipant(ctx context.Context, chatID, userID int) (bool, error)
	CountParticipants(ctx context.Context, chatID int) (int, error)
	Touch(ctx context.Context, chatID int) error
	Delete(ctx context.Context, chatID int) error
}

// DirectChatRepo is a sqlx implementation of DirectChatRepository.
type DirectChatRepo struct {
	db *sqlx.DB
}

// NewDirectChatRepo constructs a DirectChatRepo.
func NewDirectChatRepo(db *sqlx.DB) *DirectChatRepo {
	return &DirectChatRepo{db: db}
}

const directChatColumns = `id, chat_type, name, creator_id, user_low, user_high, created_at, last_activity_at`

// FindDirect looks up the 1:1 chat of a normalized pair.
func (r *DirectChatRepo) FindDirect(ctx context.Context, low, high int) (models.DirectChat, error) {
	var chat models.DirectChat
	err := conn(ctx, r.db).GetContext(ctx, &chat, `SELECT `+directChatColumns+` FROM direct_chats
        WHERE user_low=$1 AND user_high=$2`, low, high)
	if err != nil {
		return models.DirectChat{}, notFound(err, ErrDirectChatNotFound)
	}
	return chat, nil
}

// CreateDirect inserts a 1:1 chat and both participants. A concurrent insert
// for the same pair yields ErrDuplicate.
func (r *DirectChatRepo) CreateDirect(ctx context.Context, low, high, creatorID int) (models.DirectChat, error) {
	q := conn(ctx, r.db)
	var chat models.DirectChat
	err := q.GetContext(ctx, &chat, `INSERT INTO direct_chats (chat_type, creator_id, user_low, user_high)
        VALUES ($1, $2, $3, $4) RETURNING `+directChatColumns, models.ChatTypeDirect, creatorID, low, high)
	if isUniqueViolation(err) {
		return models.DirectChat{}, ErrDuplicate
	}
	if err != nil {
		return models.DirectChat{}, err
	}
	for _, id := range []int{low, high} {
		if _, err := q.ExecContext(ctx, `INSERT INTO direct_chat_participants (chat_id, user_id) VALUES ($1, $2)`, chat.ID, id); err != nil {
			return models.DirectChat{}, err
		}
	}
	return chat, nil
}

// CreateGroup inserts a group chat with the creator and members.
func (r *DirectChatRepo) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.DirectChat, error) {
	q := conn(ctx, r.db)
	var chat models.DirectChat
	if err := q.GetContext(ctx, &chat, `INSERT INTO direct_chats (chat_type, name, creator_id)
        VALUES ($1, $2, $3) RETURNING `+directChatColumns, models.ChatTypeGroup, name, creatorID); err != nil {
		return models.DirectChat{}, err
	}

	memberSet := map[int]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]int, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if _, err := q.ExecContext(ctx, `INSERT INTO direct_chat_participants (chat_id, user_id) VALUES ($1, $2)`, chat.ID, id); err != nil {
			return models.DirectChat{}, err
		}
	}
	return chat, nil
}

// Get fetches a single chat.
func (r *DirectChatRepo) Get(ctx context.Context, chatID int) (models.DirectChat, error) {
	var chat models.DirectChat
	err := conn(ctx, r.db).GetContext(ctx, &chat, `SELECT `+directChatColumns+` FROM direct_chats WHERE id=$1`, chatID)
	if err != nil {
		return models.DirectChat{}, notFound(err, ErrDirectChatNotFound)
	}
	return chat, nil
}

// ListForUser returns the user's chats, most recently active first.
func (r *DirectChatRepo) ListForUser(ctx context.Context, userID int) ([]models.DirectChat, error) {
	chats := []models.DirectChat{}
	err := conn(ctx, r.db).SelectContext(ctx, &chats, `SELECT c.id, c.chat_type, c.name, c.creator_id, c.user_low, c.user_high, c.created_at, c.last_activity_at
        FROM direct_chats c
        JOIN direct_chat_participants p ON p.chat_id = c.id
        WHERE p.user_id=$1
        ORDER BY c.last_activity_at DESC, c.id DESC`, userID)
	return chats, err
}

// ListParticipants returns participants in join order.
func (r *DirectChatRepo) ListParticipants(ctx context.Context, chatID int) ([]models.UserSummary, error) {
	users := []models.UserSummary{}
	err := conn(ctx, r.db).SelectContext(ctx, &users, `SELECT u.id, u.username, u.avatar_url
        FROM direct_chat_participants p
        JOIN users u ON u.id = p.user_id
        WHERE p.chat_id=$1
        ORDER BY p.joined_at, u.id`, chatID)
	return users, err
}

// IsParticipant checks membership.
func (r *DirectChatRepo) IsParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM direct_chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// AddParticipant reports false if the user was already present.
func (r *DirectChatRepo) AddParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO direct_chat_participants (chat_id, user_id) VALUES ($1, $2)
        ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// RemoveParticipant reports false if the user was not present.
func (r *DirectChatRepo) RemoveParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM direct_chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// CountParticipants returns the number of participants.
func (r *DirectChatRepo) CountParticipants(ctx context.Context, chatID int) (int, error) {
	var n int
	err := conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM direct_chat_participants WHERE chat_id=$1`, chatID)
	return n, err
}

// Touch refreshes the last activity timestamp.
func (r *DirectChatRepo) Touch(ctx context.Context, chatID int) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE direct_chats SET last_activity_at=NOW() WHERE id=$1`, chatID)
	return err
}

// Delete removes a chat with its participants and messages.
func (r *DirectChatRepo) Delete(ctx context.Context, chatID int) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM direct_chats WHERE id=$1`, chatID)
	return err
}

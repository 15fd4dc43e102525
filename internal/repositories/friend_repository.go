package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrFriendRequestNotFound = errors.New("friend request not found")

// FriendRepository persists friend requests and friendships.
type FriendRepository interface {
	GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	FindRequest(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error)
	CreateRequest(ctx context.Context, req models.FriendRequest) (models.FriendRequest, error)
	SetStatus(ctx context.Context, requestID, status string) (models.FriendRequest, error)
	ListPending(ctx context.Context, receiverID int) ([]models.FriendRequest, error)
	AreFriends(ctx context.Context, a, b int) (bool, error)
	AddFriendship(ctx context.Context, a, b int) error
	ListFriends(ctx context.Context, userID int) ([]models.UserSummary, error)
}

// FriendRepo is a sqlx implementation of FriendRepository.
type FriendRepo struct {
	db *sqlx.DB
}

// NewFriendRepo constructs a FriendRepo.
func NewFriendRepo(db *sqlx.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

const friendRequestColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

// GetRequest fetches a request by id.
func (r *FriendRepo) GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := conn(ctx, r.db).GetContext(ctx, &req, `SELECT `+friendRequestColumns+` FROM friend_requests WHERE id=$1`, requestID)
	if err != nil {
		return models.FriendRequest{}, notFound(err, ErrFriendRequestNotFound)
	}
	return req, nil
}

// FindRequest fetches the request sent from sender to receiver.
func (r *FriendRepo) FindRequest(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := conn(ctx, r.db).GetContext(ctx, &req, `SELECT `+friendRequestColumns+` FROM friend_requests
        WHERE sender_id=$1 AND receiver_id=$2`, senderID, receiverID)
	if err != nil {
		return models.FriendRequest{}, notFound(err, ErrFriendRequestNotFound)
	}
	return req, nil
}

// CreateRequest inserts a pending request.
func (r *FriendRepo) CreateRequest(ctx context.Context, req models.FriendRequest) (models.FriendRequest, error) {
	var out models.FriendRequest
	err := conn(ctx, r.db).GetContext(ctx, &out, `INSERT INTO friend_requests (id, sender_id, receiver_id, status)
        VALUES ($1, $2, $3, $4) RETURNING `+friendRequestColumns, req.ID, req.SenderID, req.ReceiverID, req.Status)
	if isUniqueViolation(err) {
		return models.FriendRequest{}, ErrDuplicate
	}
	return out, err
}

// SetStatus changes the status of a request.
func (r *FriendRepo) SetStatus(ctx context.Context, requestID, status string) (models.FriendRequest, error) {
	var out models.FriendRequest
	err := conn(ctx, r.db).GetContext(ctx, &out, `UPDATE friend_requests SET status=$2, updated_at=NOW()
        WHERE id=$1 RETURNING `+friendRequestColumns, requestID, status)
	if err != nil {
		return models.FriendRequest{}, notFound(err, ErrFriendRequestNotFound)
	}
	return out, nil
}

// ListPending returns requests waiting on the receiver, oldest first.
func (r *FriendRepo) ListPending(ctx context.Context, receiverID int) ([]models.FriendRequest, error) {
	list := []models.FriendRequest{}
	err := conn(ctx, r.db).SelectContext(ctx, &list, `SELECT `+friendRequestColumns+` FROM friend_requests
        WHERE receiver_id=$1 AND status=$2 ORDER BY created_at`, receiverID, models.FriendRequestPending)
	return list, err
}

// AreFriends checks whether a friendship exists in either direction.
func (r *FriendRepo) AreFriends(ctx context.Context, a, b int) (bool, error) {
	low, high := models.OrderedPair(a, b)
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM friendships WHERE user1_id=$1 AND user2_id=$2)`, low, high)
	return exists, err
}

// AddFriendship stores the pair as (min, max).
func (r *FriendRepo) AddFriendship(ctx context.Context, a, b int) error {
	low, high := models.OrderedPair(a, b)
	_, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO friendships (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO NOTHING`, low, high)
	return err
}

// ListFriends returns the user's friends ordered by username.
func (r *FriendRepo) ListFriends(ctx context.Context, userID int) ([]models.UserSummary, error) {
	friends := []models.UserSummary{}
	err := conn(ctx, r.db).SelectContext(ctx, &friends, `SELECT u.id, u.username, u.avatar_url
        FROM friendships f
        JOIN users u ON u.id = CASE WHEN f.user1_id=$1 THEN f.user2_id ELSE f.user1_id END
        WHERE f.user1_id=$1 OR f.user2_id=$1
        ORDER BY u.username`, userID)
	return friends, err
}

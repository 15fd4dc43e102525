package models

import "time"

// Friend request statuses.
const (
	FriendRequestPending  = "PENDING"
	FriendRequestAccepted = "ACCEPTED"
	FriendRequestDeclined = "DECLINED"
)

// FriendRequest is a directional request from sender to receiver.
type FriendRequest struct {
	ID         string    `db:"id" json:"id"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	ReceiverID int       `db:"receiver_id" json:"receiver_id"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Friendship is an undirected pair stored as (min, max).
type Friendship struct {
	User1ID int       `db:"user1_id" json:"user1_id"`
	User2ID int       `db:"user2_id" json:"user2_id"`
	Since   time.Time `db:"since" json:"since"`
}

// OrderedPair returns (min, max) of two user ids.
func OrderedPair(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

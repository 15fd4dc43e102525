package models

import "time"

// Community is a named container of channels, roles and members.
type Community struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	IconURL     string    `db:"icon_url" json:"icon_url,omitempty"`
	OwnerID     int       `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CommunityDetail is a community together with its ordered channels.
type CommunityDetail struct {
	Community
	Channels    []Channel `json:"channels"`
	MemberCount int       `json:"member_count"`
}

// Channel belongs to exactly one community.
type Channel struct {
	ID          int       `db:"id" json:"id"`
	CommunityID int       `db:"community_id" json:"community_id"`
	Name        string    `db:"name" json:"name"`
	IconURL     string    `db:"icon_url" json:"icon_url,omitempty"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Member is a user's membership in a community.
type Member struct {
	CommunityID int       `db:"community_id" json:"community_id"`
	UserID      int       `db:"user_id" json:"user_id"`
	Username    string    `db:"username" json:"username"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url,omitempty"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
}

// CommunityUpdate carries optional fields for a community update.
type CommunityUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IconURL     *string `json:"icon_url"`
}

// Invite grants access to a community until it expires.
type Invite struct {
	ID          int       `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	CommunityID int       `db:"community_id" json:"community_id"`
	CreatedBy   int       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the invite is past its expiry at now.
func (i Invite) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

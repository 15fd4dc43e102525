package models

import "time"

// Direct chat types.
const (
	ChatTypeDirect = "DIRECT"
	ChatTypeGroup  = "GROUP"
)

// DefaultGroupName is used when a group chat is created without a name.
const DefaultGroupName = "Group Chat"

// DirectChat is a 1:1 or group conversation outside any community.
type DirectChat struct {
	ID             int       `db:"id" json:"id"`
	ChatType       string    `db:"chat_type" json:"chat_type"`
	Name           string    `db:"name" json:"name,omitempty"`
	CreatorID      int       `db:"creator_id" json:"creator_id"`
	UserLow        *int      `db:"user_low" json:"-"`
	UserHigh       *int      `db:"user_high" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}

// IsGroup reports whether the chat is a group chat.
func (c DirectChat) IsGroup() bool {
	return c.ChatType == ChatTypeGroup
}

// DirectChatView is the client-facing shape of a direct chat.
type DirectChatView struct {
	ID             int           `json:"id"`
	ChatType       string        `json:"chat_type"`
	Name           string        `json:"name"`
	CreatorID      int           `json:"creator_id"`
	Participants   []UserSummary `json:"participants"`
	LastMessage    *MessageView  `json:"last_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
}

// RemoveResult is returned when a participant leaves or is removed. Chat is
// nil when Deleted is set.
type RemoveResult struct {
	Deleted bool            `json:"deleted"`
	ChatID  int             `json:"chat_id"`
	Chat    *DirectChatView `json:"chat,omitempty"`
}

package models

import "time"

// Message types.
const (
	MessageTypeText  = "TEXT"
	MessageTypeImage = "IMAGE"
	MessageTypeVideo = "VIDEO"
	MessageTypeFile  = "FILE"
)

// Message belongs to exactly one of a channel or a direct chat.
type Message struct {
	ID           int       `db:"id" json:"id"`
	SenderID     int       `db:"sender_id" json:"sender_id"`
	ChannelID    *int      `db:"channel_id" json:"channel_id,omitempty"`
	DirectChatID *int      `db:"direct_chat_id" json:"direct_chat_id,omitempty"`
	ParentID     *int      `db:"parent_id" json:"parent_id,omitempty"`
	Content      string    `db:"content" json:"content"`
	MessageType  string    `db:"message_type" json:"message_type"`
	Edited       bool      `db:"edited" json:"edited"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// InChannel reports whether the message was posted to a channel.
func (m Message) InChannel() bool {
	return m.ChannelID != nil
}

// SameTarget reports whether two messages live in the same channel or chat.
func (m Message) SameTarget(other Message) bool {
	if m.ChannelID != nil && other.ChannelID != nil {
		return *m.ChannelID == *other.ChannelID
	}
	if m.DirectChatID != nil && other.DirectChatID != nil {
		return *m.DirectChatID == *other.DirectChatID
	}
	return false
}

// Attachment is file metadata attached to a message.
type Attachment struct {
	ID             int       `db:"id" json:"id"`
	MessageID      int       `db:"message_id" json:"message_id"`
	FileName       string    `db:"file_name" json:"file_name"`
	FileURL        string    `db:"file_url" json:"file_url"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	FileSize       int64     `db:"file_size" json:"file_size"`
	AttachmentType string    `db:"attachment_type" json:"attachment_type"`
	UploadedAt     time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// ParentInfo is a short description of the message being replied to.
type ParentInfo struct {
	ID             int    `json:"id"`
	SenderID       int    `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	ContentSnippet string `json:"content_snippet"`
}

// MessageView is the full client-facing shape of a message.
type MessageView struct {
	ID               int                      `json:"id"`
	Sender           UserSummary              `json:"sender"`
	Content          string                   `json:"content"`
	MessageType      string                   `json:"message_type"`
	Edited           bool                     `json:"edited"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	ChannelID        *int                     `json:"channel_id,omitempty"`
	DirectChatID     *int                     `json:"direct_chat_id,omitempty"`
	ParentID         *int                     `json:"parent_id,omitempty"`
	RepliedTo        *ParentInfo              `json:"replied_to,omitempty"`
	Attachments      []Attachment             `json:"attachments"`
	ReactionCounts   map[string]int           `json:"reaction_counts"`
	ReactionsByEmoji map[string][]UserSummary `json:"reactions_by_emoji"`
}

// MessagePage is one page of messages, newest first.
type MessagePage struct {
	Messages []MessageView `json:"messages"`
	Page     int           `json:"page"`
	Size     int           `json:"size"`
	HasMore  bool          `json:"has_more"`
}

package models

import "encoding/json"

// Event types delivered to real-time sessions.
const (
	EventMessageCreated   = "message.created"
	EventMessageUpdated   = "message.updated"
	EventMessageDeleted   = "message.deleted"
	EventReactionsUpdated = "reactions.updated"
	EventTyping           = "typing"
	EventError            = "error"
	EventNotification     = "notification"
	EventSubscribed       = "subscribed"
	EventUnsubscribed     = "unsubscribed"
	EventCallSignal       = "call.signal"
)

// Event is the envelope written to websocket sessions.
type Event struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Payload any    `json:"payload,omitempty"`
}

// MessageDeleted is the payload of a delete broadcast.
type MessageDeleted struct {
	MessageID    int  `json:"message_id"`
	DeletedBy    int  `json:"deleted_by"`
	ChannelID    *int `json:"channel_id,omitempty"`
	DirectChatID *int `json:"direct_chat_id,omitempty"`
}

// TypingIndicator is the payload of a typing broadcast.
type TypingIndicator struct {
	UserID       int    `json:"user_id"`
	Username     string `json:"username"`
	Typing       bool   `json:"typing"`
	ChannelID    *int   `json:"channel_id,omitempty"`
	DirectChatID *int   `json:"direct_chat_id,omitempty"`
}

// CallSignal relays WebRTC negotiation between members of a channel. Data is
// opaque to the server.
type CallSignal struct {
	ChannelID  int             `json:"channel_id"`
	FromUserID int             `json:"from_user_id"`
	ToUserID   *int            `json:"to_user_id,omitempty"`
	Kind       string          `json:"kind"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is sent to a user's private error destination.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

// Notification is sent to a user's private notification destination.
type Notification struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// Notification kinds.
const (
	NotifyFriendRequest         = "friend_request"
	NotifyFriendRequestUpdate   = "friend_request_update"
	NotifyDirectChatAdded       = "direct_chat_added"
	NotifyDirectChatRemoved     = "direct_chat_removed"
	NotifyCommunityMemberKicked = "community_kicked"
)

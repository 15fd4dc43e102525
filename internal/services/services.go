// Package services holds the domain operations. Every mutation runs in one
// transaction, and events are broadcast only after it commits.
package services

import (
	"errors"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/topics"
)

// Broadcaster delivers events to live sessions.
type Broadcaster interface {
	Publish(topic string, event models.Event)
	PublishToUser(userID int, event models.Event)
	// Revoke drops the user's subscriptions to topics under prefix.
	Revoke(userID int, prefix string)
	// RevokeAll drops every subscription to topics under prefix.
	RevokeAll(prefix string)
}

// Store bundles the repositories the services read and write.
type Store struct {
	Tx          repositories.TxManager
	Users       repositories.UserRepository
	Communities repositories.CommunityRepository
	Channels    repositories.ChannelRepository
	Roles       repositories.RoleRepository
	Messages    repositories.MessageRepository
	Reactions   repositories.ReactionRepository
	DirectChats repositories.DirectChatRepository
	Invites     repositories.InviteRepository
	Friends     repositories.FriendRepository
}

func notify(bus Broadcaster, userID int, kind string, data any) {
	bus.PublishToUser(userID, models.Event{
		Type:    models.EventNotification,
		Topic:   topics.UserNotifications(userID),
		Payload: models.Notification{Kind: kind, Data: data},
	})
}

func revokeChannels(bus Broadcaster, userID int, channels []models.Channel) {
	for _, ch := range channels {
		bus.Revoke(userID, topics.ForChannel(ch.ID).Prefix())
	}
}

// missing maps a repository sentinel onto a NotFound error.
func missing(err, sentinel error, entity string, id any) error {
	if errors.Is(err, sentinel) {
		return apperr.NotFound(entity, id)
	}
	return err
}

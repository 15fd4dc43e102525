package services

import (
	"context"
	"strings"

	"github.com/forPelevin/gomoji"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

type allowedEmoji struct {
	key       string
	character string
}

// allowedEmojis is the fixed reaction set, in display order.
var allowedEmojis = []allowedEmoji{
	{key: "thumbs_up", character: "👍"},
	{key: "heart", character: "❤️"},
	{key: "tada", character: "🎉"},
	{key: "cry", character: "😢"},
	{key: "joy", character: "😂"},
}

// NormalizeEmoji accepts a character or key from the allowed set and returns
// the stored character.
func NormalizeEmoji(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "❤" {
		raw = "❤️"
	}
	for _, e := range allowedEmojis {
		if raw == e.character || strings.EqualFold(raw, e.key) {
			return e.character, true
		}
	}
	return "", false
}

// SupportedEmojis lists the reaction set with names resolved by gomoji.
func SupportedEmojis() []models.EmojiInfo {
	out := make([]models.EmojiInfo, 0, len(allowedEmojis))
	for _, e := range allowedEmojis {
		info := models.EmojiInfo{Key: e.key, Character: e.character, Name: strings.ReplaceAll(e.key, "_", " ")}
		if found := gomoji.CollectAll(e.character); len(found) == 1 {
			info.Name = found[0].UnicodeName
			info.Slug = found[0].Slug
		}
		out = append(out, info)
	}
	return out
}

// ReactionService adds and removes reactions on messages.
type ReactionService struct {
	store    Store
	messages *MessageService
	bus      Broadcaster
	views    viewBuilder
}

func NewReactionService(store Store, messages *MessageService, bus Broadcaster) *ReactionService {
	return &ReactionService{store: store, messages: messages, bus: bus, views: viewBuilder{store: store}}
}

func (s *ReactionService) load(ctx context.Context, userID, messageID int) (models.Message, error) {
	msg, err := s.store.Messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, missing(err, repositories.ErrMessageNotFound, "message", messageID)
	}
	if err := s.messages.CanView(ctx, userID, messageTarget(msg)); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func normalized(raw string) (string, error) {
	emoji, ok := NormalizeEmoji(raw)
	if !ok {
		return "", apperr.Invalid("emoji %q is not supported", raw)
	}
	return emoji, nil
}

// Add is idempotent; a repeated reaction returns the current view and
// broadcasts nothing.
func (s *ReactionService) Add(ctx context.Context, messageID, userID int, raw string) (models.MessageView, error) {
	emoji, err := normalized(raw)
	if err != nil {
		return models.MessageView{}, err
	}
	var (
		msg   models.Message
		added bool
	)
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if msg, err = s.load(ctx, userID, messageID); err != nil {
			return err
		}
		added, err = s.store.Reactions.Add(ctx, messageID, userID, emoji)
		return err
	})
	if err != nil {
		return models.MessageView{}, err
	}
	view, err := s.views.one(ctx, msg)
	if err != nil {
		return models.MessageView{}, err
	}
	if added {
		s.broadcast(msg, view)
	}
	return view, nil
}

// Remove fails with NotFound when the reaction does not exist.
func (s *ReactionService) Remove(ctx context.Context, messageID, userID int, raw string) (models.MessageView, error) {
	emoji, err := normalized(raw)
	if err != nil {
		return models.MessageView{}, err
	}
	var msg models.Message
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if msg, err = s.load(ctx, userID, messageID); err != nil {
			return err
		}
		removed, err := s.store.Reactions.Remove(ctx, messageID, userID, emoji)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("reaction", emoji)
		}
		return nil
	})
	if err != nil {
		return models.MessageView{}, err
	}
	view, err := s.views.one(ctx, msg)
	if err != nil {
		return models.MessageView{}, err
	}
	s.broadcast(msg, view)
	return view, nil
}

// Summarize aggregates the reactions of one message.
func (s *ReactionService) Summarize(ctx context.Context, userID, messageID int) (models.ReactionSummary, error) {
	msg, err := s.store.Messages.Get(ctx, messageID)
	if err != nil {
		return models.ReactionSummary{}, missing(err, repositories.ErrMessageNotFound, "message", messageID)
	}
	if err := s.messages.CanView(ctx, userID, messageTarget(msg)); err != nil {
		return models.ReactionSummary{}, err
	}
	reactions, err := s.store.Reactions.ListByMessage(ctx, messageID)
	if err != nil {
		return models.ReactionSummary{}, err
	}
	return models.Summarize(reactions), nil
}

func (s *ReactionService) broadcast(msg models.Message, view models.MessageView) {
	target := messageTarget(msg)
	s.bus.Publish(target.ReactionsUpdated(), models.Event{Type: models.EventReactionsUpdated, Topic: target.ReactionsUpdated(), Payload: view})
}

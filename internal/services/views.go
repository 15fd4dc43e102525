package services

import (
	"context"
	"errors"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

const (
	snippetLimit = 50
	snippetKeep  = 47
)

// viewBuilder assembles full message views with batched lookups.
type viewBuilder struct {
	store Store
}

func (b viewBuilder) one(ctx context.Context, msg models.Message) (models.MessageView, error) {
	views, err := b.many(ctx, []models.Message{msg})
	if err != nil {
		return models.MessageView{}, err
	}
	return views[0], nil
}

func (b viewBuilder) many(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	out := make([]models.MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	ids := make([]int, 0, len(msgs))
	userIDs := make([]int, 0, len(msgs))
	parents := map[int]models.Message{}
	for _, m := range msgs {
		ids = append(ids, m.ID)
		userIDs = append(userIDs, m.SenderID)
		if m.ParentID == nil {
			continue
		}
		if _, seen := parents[*m.ParentID]; seen {
			continue
		}
		parent, err := b.store.Messages.Get(ctx, *m.ParentID)
		if errors.Is(err, repositories.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		parents[parent.ID] = parent
		userIDs = append(userIDs, parent.SenderID)
	}

	users, err := b.store.Users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	attachments, err := b.store.Messages.ListAttachments(ctx, ids)
	if err != nil {
		return nil, err
	}
	attByMsg := map[int][]models.Attachment{}
	for _, a := range attachments {
		attByMsg[a.MessageID] = append(attByMsg[a.MessageID], a)
	}

	reactions, err := b.store.Reactions.ListByMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	reactByMsg := map[int][]models.Reaction{}
	for _, r := range reactions {
		reactByMsg[r.MessageID] = append(reactByMsg[r.MessageID], r)
	}

	for _, m := range msgs {
		summary := models.Summarize(reactByMsg[m.ID])
		view := models.MessageView{
			ID:               m.ID,
			Sender:           summaryOf(byID, m.SenderID),
			Content:          m.Content,
			MessageType:      m.MessageType,
			Edited:           m.Edited,
			CreatedAt:        m.CreatedAt,
			UpdatedAt:        m.UpdatedAt,
			ChannelID:        m.ChannelID,
			DirectChatID:     m.DirectChatID,
			ParentID:         m.ParentID,
			Attachments:      attByMsg[m.ID],
			ReactionCounts:   summary.Counts,
			ReactionsByEmoji: summary.Reactors,
		}
		if view.Attachments == nil {
			view.Attachments = []models.Attachment{}
		}
		if m.ParentID != nil {
			if parent, ok := parents[*m.ParentID]; ok {
				view.RepliedTo = &models.ParentInfo{
					ID:             parent.ID,
					SenderID:       parent.SenderID,
					SenderUsername: byID[parent.SenderID].Username,
					ContentSnippet: snippet(parent.Content),
				}
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func summaryOf(users map[int]models.User, id int) models.UserSummary {
	if u, ok := users[id]; ok {
		return u.Summary()
	}
	return models.UserSummary{ID: id}
}

// snippet shortens reply previews to at most 50 characters.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLimit {
		return content
	}
	return string(runes[:snippetKeep]) + "..."
}

package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/locks"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/topics"
)

// DirectChatService manages 1:1 and group conversations.
type DirectChatService struct {
	store Store
	lock  locks.PairLock
	bus   Broadcaster
	views viewBuilder
}

func NewDirectChatService(store Store, lock locks.PairLock, bus Broadcaster) *DirectChatService {
	if lock == nil {
		lock = locks.NoopPairLock{}
	}
	return &DirectChatService{store: store, lock: lock, bus: bus, views: viewBuilder{store: store}}
}

// GetOrCreateDirect returns the single 1:1 chat between a and b.
func (s *DirectChatService) GetOrCreateDirect(ctx context.Context, a, b int) (models.DirectChatView, error) {
	if a == b {
		return models.DirectChatView{}, apperr.Invalid("cannot open a direct chat with yourself")
	}
	exists, err := s.store.Users.Exists(ctx, b)
	if err != nil {
		return models.DirectChatView{}, err
	}
	if !exists {
		return models.DirectChatView{}, apperr.NotFound("user", b)
	}

	low, high := models.OrderedPair(a, b)
	unlock, err := s.lock.Lock(ctx, low, high)
	if err != nil {
		// the unique constraint still guarantees a single row
		jww.WARN.Printf("pair lock unavailable low=%d high=%d: %v", low, high, err)
		unlock = func() {}
	}
	defer unlock()

	chat, created, err := s.findOrCreate(ctx, low, high, a)
	if err != nil {
		return models.DirectChatView{}, err
	}
	if created {
		if other, err := s.view(ctx, chat, b); err == nil {
			notify(s.bus, b, models.NotifyDirectChatAdded, other)
		}
	}
	return s.view(ctx, chat, a)
}

func (s *DirectChatService) findOrCreate(ctx context.Context, low, high, creatorID int) (models.DirectChat, bool, error) {
	var (
		chat    models.DirectChat
		created bool
	)
	for attempt := 0; attempt < 2; attempt++ {
		created = false
		err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
			found, err := s.store.DirectChats.FindDirect(ctx, low, high)
			if err == nil {
				chat = found
				return nil
			}
			if !errors.Is(err, repositories.ErrDirectChatNotFound) {
				return err
			}
			chat, err = s.store.DirectChats.CreateDirect(ctx, low, high, creatorID)
			if err != nil {
				return err
			}
			created = true
			return nil
		})
		if errors.Is(err, repositories.ErrDuplicate) {
			// lost the insert race; the next attempt finds the winner
			continue
		}
		return chat, created, err
	}
	return models.DirectChat{}, false, apperr.Conflict("direct chat is being created concurrently, retry")
}

// CreateGroup creates a group chat with the creator and participants.
func (s *DirectChatService) CreateGroup(ctx context.Context, creatorID int, participantIDs []int, name string) (models.DirectChatView, error) {
	if len(participantIDs) == 0 {
		return models.DirectChatView{}, apperr.Invalid("at least one participant is required")
	}
	set := map[int]struct{}{creatorID: {}}
	for _, id := range participantIDs {
		set[id] = struct{}{}
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	users, err := s.store.Users.GetMany(ctx, ids)
	if err != nil {
		return models.DirectChatView{}, err
	}
	known := make(map[int]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return models.DirectChatView{}, apperr.NotFound("user", id)
		}
	}
	if len(ids) < 2 {
		return models.DirectChatView{}, apperr.Invalid("a group chat needs at least 2 members")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = models.DefaultGroupName
	}

	var chat models.DirectChat
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		chat, err = s.store.DirectChats.CreateGroup(ctx, creatorID, name, ids)
		return err
	})
	if err != nil {
		return models.DirectChatView{}, err
	}

	view, err := s.view(ctx, chat, creatorID)
	if err != nil {
		return models.DirectChatView{}, err
	}
	for _, id := range ids {
		if id != creatorID {
			notify(s.bus, id, models.NotifyDirectChatAdded, view)
		}
	}
	return view, nil
}

// AddParticipant adds a user to a group chat on behalf of a participant.
func (s *DirectChatService) AddParticipant(ctx context.Context, chatID, userID, requesterID int) (models.DirectChatView, error) {
	var (
		chat  models.DirectChat
		added bool
	)
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		chat, err = s.store.DirectChats.Get(ctx, chatID)
		if err != nil {
			return missing(err, repositories.ErrDirectChatNotFound, "direct chat", chatID)
		}
		if !chat.IsGroup() {
			return apperr.Invalid("cannot add participants to a direct chat")
		}
		ok, err := s.store.DirectChats.IsParticipant(ctx, chatID, requesterID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbidden("not a participant of this chat")
		}
		exists, err := s.store.Users.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("user", userID)
		}
		added, err = s.store.DirectChats.AddParticipant(ctx, chatID, userID)
		if err != nil || !added {
			return err
		}
		return s.store.DirectChats.Touch(ctx, chatID)
	})
	if err != nil {
		return models.DirectChatView{}, err
	}

	view, err := s.view(ctx, chat, requesterID)
	if err != nil {
		return models.DirectChatView{}, err
	}
	if added {
		notify(s.bus, userID, models.NotifyDirectChatAdded, view)
	}
	return view, nil
}

// RemoveParticipant removes a user from a group chat. Participants may leave
// on their own; only the creator may remove others. A group left with one
// participant is deleted.
func (s *DirectChatService) RemoveParticipant(ctx context.Context, chatID, userID, requesterID int) (models.RemoveResult, error) {
	var (
		chat      models.DirectChat
		remaining []models.UserSummary
		deleted   bool
	)
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		chat, err = s.store.DirectChats.Get(ctx, chatID)
		if err != nil {
			return missing(err, repositories.ErrDirectChatNotFound, "direct chat", chatID)
		}
		if !chat.IsGroup() {
			return apperr.Invalid("cannot remove participants from a direct chat")
		}
		if requesterID != userID && requesterID != chat.CreatorID {
			return apperr.Forbidden("only the creator can remove other participants")
		}
		removed, err := s.store.DirectChats.RemoveParticipant(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("participant", userID)
		}
		remaining, err = s.store.DirectChats.ListParticipants(ctx, chatID)
		if err != nil {
			return err
		}
		if len(remaining) <= 1 {
			deleted = true
			return s.store.DirectChats.Delete(ctx, chatID)
		}
		return s.store.DirectChats.Touch(ctx, chatID)
	})
	if err != nil {
		return models.RemoveResult{}, err
	}

	dm := topics.ForDM(chatID).Prefix()
	s.bus.Revoke(userID, dm)
	removedNote := map[string]any{"chat_id": chatID, "deleted": deleted}
	notify(s.bus, userID, models.NotifyDirectChatRemoved, removedNote)
	if deleted {
		s.bus.RevokeAll(dm)
		for _, p := range remaining {
			notify(s.bus, p.ID, models.NotifyDirectChatRemoved, removedNote)
		}
		return models.RemoveResult{Deleted: true, ChatID: chatID}, nil
	}

	view, err := s.view(ctx, chat, requesterID)
	if err != nil {
		return models.RemoveResult{}, err
	}
	return models.RemoveResult{ChatID: chatID, Chat: &view}, nil
}

// List returns the user's chats, most recently active first.
func (s *DirectChatService) List(ctx context.Context, userID int) ([]models.DirectChatView, error) {
	chats, err := s.store.DirectChats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.DirectChatView, 0, len(chats))
	for _, chat := range chats {
		view, err := s.view(ctx, chat, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Get returns one chat the requester participates in.
func (s *DirectChatService) Get(ctx context.Context, chatID, requesterID int) (models.DirectChatView, error) {
	chat, err := s.store.DirectChats.Get(ctx, chatID)
	if err != nil {
		return models.DirectChatView{}, missing(err, repositories.ErrDirectChatNotFound, "direct chat", chatID)
	}
	ok, err := s.store.DirectChats.IsParticipant(ctx, chatID, requesterID)
	if err != nil {
		return models.DirectChatView{}, err
	}
	if !ok {
		return models.DirectChatView{}, apperr.Forbidden("not a participant of this chat")
	}
	return s.view(ctx, chat, requesterID)
}

// view names 1:1 chats after the other participant.
func (s *DirectChatService) view(ctx context.Context, chat models.DirectChat, viewerID int) (models.DirectChatView, error) {
	participants, err := s.store.DirectChats.ListParticipants(ctx, chat.ID)
	if err != nil {
		return models.DirectChatView{}, err
	}
	view := models.DirectChatView{
		ID:             chat.ID,
		ChatType:       chat.ChatType,
		Name:           chat.Name,
		CreatorID:      chat.CreatorID,
		Participants:   participants,
		CreatedAt:      chat.CreatedAt,
		LastActivityAt: chat.LastActivityAt,
	}
	if !chat.IsGroup() {
		for _, p := range participants {
			if p.ID != viewerID {
				view.Name = p.Username
			}
		}
	}

	last, err := s.store.Messages.LatestInDirectChat(ctx, chat.ID)
	switch {
	case err == nil:
		lastView, err := s.views.one(ctx, last)
		if err != nil {
			return models.DirectChatView{}, err
		}
		view.LastMessage = &lastView
	case !errors.Is(err, repositories.ErrMessageNotFound):
		return models.DirectChatView{}, err
	}
	return view, nil
}

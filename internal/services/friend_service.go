package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

// FriendService handles friend requests and the friendships they create.
type FriendService struct {
	store Store
	bus   Broadcaster
	newID func() string
}

func NewFriendService(store Store, bus Broadcaster) *FriendService {
	return &FriendService{store: store, bus: bus, newID: uuid.NewString}
}

// Send opens a request from sender to receiver. A request the receiver
// declined earlier is re-opened.
func (s *FriendService) Send(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	if senderID == receiverID {
		return models.FriendRequest{}, apperr.Invalid("cannot send a friend request to yourself")
	}

	var req models.FriendRequest
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.store.Users.Exists(ctx, receiverID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("user", receiverID)
		}
		friends, err := s.store.Friends.AreFriends(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if friends {
			return apperr.Conflict("already friends")
		}

		reverse, err := s.store.Friends.FindRequest(ctx, receiverID, senderID)
		switch {
		case err == nil && reverse.Status == models.FriendRequestPending:
			return apperr.Conflict("a friend request from this user is already pending")
		case err != nil && !errors.Is(err, repositories.ErrFriendRequestNotFound):
			return err
		}

		existing, err := s.store.Friends.FindRequest(ctx, senderID, receiverID)
		switch {
		case errors.Is(err, repositories.ErrFriendRequestNotFound):
			req, err = s.store.Friends.CreateRequest(ctx, models.FriendRequest{
				ID:         s.newID(),
				SenderID:   senderID,
				ReceiverID: receiverID,
				Status:     models.FriendRequestPending,
			})
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperr.Conflict("friend request already pending")
			}
			return err
		case err != nil:
			return err
		case existing.Status == models.FriendRequestPending:
			return apperr.Conflict("friend request already pending")
		}
		req, err = s.store.Friends.SetStatus(ctx, existing.ID, models.FriendRequestPending)
		return err
	})
	if err != nil {
		return models.FriendRequest{}, err
	}
	notify(s.bus, receiverID, models.NotifyFriendRequest, req)
	return req, nil
}

// Respond accepts or declines a pending request. Only the receiver may
// respond.
func (s *FriendService) Respond(ctx context.Context, requestID string, userID int, accept bool) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.store.Friends.GetRequest(ctx, requestID)
		if err != nil {
			return missing(err, repositories.ErrFriendRequestNotFound, "friend request", requestID)
		}
		if current.ReceiverID != userID {
			return apperr.Forbidden("only the receiver can respond to this request")
		}
		if current.Status != models.FriendRequestPending {
			return apperr.Conflict("friend request is already %s", current.Status)
		}
		status := models.FriendRequestDeclined
		if accept {
			status = models.FriendRequestAccepted
			if err := s.store.Friends.AddFriendship(ctx, current.SenderID, current.ReceiverID); err != nil {
				return err
			}
		}
		req, err = s.store.Friends.SetStatus(ctx, requestID, status)
		return err
	})
	if err != nil {
		return models.FriendRequest{}, err
	}
	notify(s.bus, req.SenderID, models.NotifyFriendRequestUpdate, req)
	return req, nil
}

// ListFriends returns the user's friends ordered by username.
func (s *FriendService) ListFriends(ctx context.Context, userID int) ([]models.UserSummary, error) {
	return s.store.Friends.ListFriends(ctx, userID)
}

// ListPending returns requests waiting for the user's answer.
func (s *FriendService) ListPending(ctx context.Context, userID int) ([]models.FriendRequest, error) {
	return s.store.Friends.ListPending(ctx, userID)
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

func friendFixture() (*fixture, *FriendService) {
	f := newFixture()
	svc := NewFriendService(f.store(), f.bus)
	svc.newID = func() string { return "req-1" }
	return f, svc
}

func TestFriendRequestToSelf(t *testing.T) {
	_, svc := friendFixture()
	_, err := svc.Send(context.Background(), 2, 2)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestFriendRequestToUnknownUser(t *testing.T) {
	f, svc := friendFixture()
	f.users.On("Exists", mock.Anything, 5).Return(false, nil)

	_, err := svc.Send(context.Background(), 2, 5)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFriendRequestCreatedAndNotified(t *testing.T) {
	f, svc := friendFixture()
	f.users.On("Exists", mock.Anything, 5).Return(true, nil)
	f.friends.On("AreFriends", mock.Anything, 2, 5).Return(false, nil)
	f.friends.On("FindRequest", mock.Anything, 5, 2).Return(nil, repositories.ErrFriendRequestNotFound)
	f.friends.On("FindRequest", mock.Anything, 2, 5).Return(nil, repositories.ErrFriendRequestNotFound)
	f.friends.On("CreateRequest", mock.Anything, models.FriendRequest{ID: "req-1", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestPending}).
		Return(models.FriendRequest{ID: "req-1", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestPending}, nil)
	f.bus.On("PublishToUser", 5, mock.MatchedBy(func(e models.Event) bool {
		return e.Payload.(models.Notification).Kind == models.NotifyFriendRequest
	})).Return().Once()

	req, err := svc.Send(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	f.bus.AssertExpectations(t)
}

func TestFriendRequestConflicts(t *testing.T) {
	f, svc := friendFixture()
	f.users.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
	f.friends.On("AreFriends", mock.Anything, 2, 5).Return(true, nil)
	f.friends.On("AreFriends", mock.Anything, 2, 6).Return(false, nil)
	f.friends.On("FindRequest", mock.Anything, 6, 2).Return(nil, repositories.ErrFriendRequestNotFound)
	f.friends.On("FindRequest", mock.Anything, 2, 6).Return(models.FriendRequest{ID: "r", Status: models.FriendRequestPending}, nil)

	_, err := svc.Send(context.Background(), 2, 5)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Send(context.Background(), 2, 6)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestDeclinedFriendRequestIsReopened(t *testing.T) {
	f, svc := friendFixture()
	f.users.On("Exists", mock.Anything, 5).Return(true, nil)
	f.friends.On("AreFriends", mock.Anything, 2, 5).Return(false, nil)
	f.friends.On("FindRequest", mock.Anything, 5, 2).Return(nil, repositories.ErrFriendRequestNotFound)
	f.friends.On("FindRequest", mock.Anything, 2, 5).Return(models.FriendRequest{ID: "old", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestDeclined}, nil)
	f.friends.On("SetStatus", mock.Anything, "old", models.FriendRequestPending).
		Return(models.FriendRequest{ID: "old", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestPending}, nil).Once()
	f.expectNotify(5)

	req, err := svc.Send(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, req.Status)
	f.friends.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
}

func TestRespondOnlyByReceiver(t *testing.T) {
	f, svc := friendFixture()
	f.friends.On("GetRequest", mock.Anything, "r").Return(models.FriendRequest{ID: "r", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestPending}, nil)

	_, err := svc.Respond(context.Background(), "r", 2, true)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRespondToAnsweredRequest(t *testing.T) {
	f, svc := friendFixture()
	f.friends.On("GetRequest", mock.Anything, "r").Return(models.FriendRequest{ID: "r", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestAccepted}, nil)

	_, err := svc.Respond(context.Background(), "r", 5, false)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestAcceptCreatesFriendship(t *testing.T) {
	f, svc := friendFixture()
	f.friends.On("GetRequest", mock.Anything, "r").Return(models.FriendRequest{ID: "r", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestPending}, nil)
	f.friends.On("AddFriendship", mock.Anything, 2, 5).Return(nil).Once()
	f.friends.On("SetStatus", mock.Anything, "r", models.FriendRequestAccepted).
		Return(models.FriendRequest{ID: "r", SenderID: 2, ReceiverID: 5, Status: models.FriendRequestAccepted}, nil)
	f.bus.On("PublishToUser", 2, mock.MatchedBy(func(e models.Event) bool {
		return e.Payload.(models.Notification).Kind == models.NotifyFriendRequestUpdate
	})).Return().Once()

	req, err := svc.Respond(context.Background(), "r", 5, true)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, req.Status)
	f.friends.AssertExpectations(t)
	f.bus.AssertExpectations(t)
}

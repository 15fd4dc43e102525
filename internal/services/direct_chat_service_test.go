package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

func chatFixture() (*fixture, *DirectChatService) {
	f := newFixture()
	f.messages.On("LatestInDirectChat", mock.Anything, mock.Anything).Return(nil, repositories.ErrMessageNotFound)
	return f, NewDirectChatService(f.store(), nil, f.bus)
}

var (
	ana = models.UserSummary{ID: 2, Username: "ana"}
	bo  = models.UserSummary{ID: 5, Username: "bo"}
	cy  = models.UserSummary{ID: 9, Username: "cy"}
)

func TestDirectChatWithSelf(t *testing.T) {
	_, svc := chatFixture()
	_, err := svc.GetOrCreateDirect(context.Background(), 2, 2)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestDirectChatWithUnknownUser(t *testing.T) {
	f, svc := chatFixture()
	f.users.On("Exists", mock.Anything, 5).Return(false, nil)

	_, err := svc.GetOrCreateDirect(context.Background(), 2, 5)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDirectChatCreatedAndNamedAfterPeer(t *testing.T) {
	f, svc := chatFixture()
	f.users.On("Exists", mock.Anything, 2).Return(true, nil)
	f.chats.On("FindDirect", mock.Anything, 2, 5).Return(nil, repositories.ErrDirectChatNotFound)
	f.chats.On("CreateDirect", mock.Anything, 2, 5, 5).Return(models.DirectChat{ID: 3, ChatType: models.ChatTypeDirect, CreatorID: 5}, nil)
	f.chats.On("ListParticipants", mock.Anything, 3).Return([]models.UserSummary{ana, bo}, nil)
	f.bus.On("PublishToUser", 2, mock.MatchedBy(func(e models.Event) bool {
		n := e.Payload.(models.Notification)
		return n.Kind == models.NotifyDirectChatAdded && n.Data.(models.DirectChatView).Name == "bo"
	})).Return().Once()

	view, err := svc.GetOrCreateDirect(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, view.ID)
	assert.Equal(t, "ana", view.Name)
	assert.Nil(t, view.LastMessage)
	f.bus.AssertExpectations(t)
}

func TestDirectChatLostRaceReturnsWinner(t *testing.T) {
	f, svc := chatFixture()
	winner := models.DirectChat{ID: 4, ChatType: models.ChatTypeDirect, CreatorID: 5}
	f.users.On("Exists", mock.Anything, 5).Return(true, nil)
	f.chats.On("FindDirect", mock.Anything, 2, 5).Return(nil, repositories.ErrDirectChatNotFound).Once()
	f.chats.On("CreateDirect", mock.Anything, 2, 5, 2).Return(nil, repositories.ErrDuplicate).Once()
	f.chats.On("FindDirect", mock.Anything, 2, 5).Return(winner, nil).Once()
	f.chats.On("ListParticipants", mock.Anything, 4).Return([]models.UserSummary{ana, bo}, nil)

	view, err := svc.GetOrCreateDirect(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, view.ID)
	f.bus.AssertNotCalled(t, "PublishToUser", mock.Anything, mock.Anything)
}

// racingChats holds every insert until all callers have missed the lookup,
// then lets exactly one insert win the unique pair index.
type racingChats struct {
	*mocks.DirectChatRepositoryMock
	callers int
	ready   chan struct{}

	mu      sync.Mutex
	finds   int
	inserts int
	chat    *models.DirectChat
}

func (r *racingChats) FindDirect(_ context.Context, low, high int) (models.DirectChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.finds == r.callers {
		close(r.ready)
	}
	if r.chat == nil {
		return models.DirectChat{}, repositories.ErrDirectChatNotFound
	}
	return *r.chat, nil
}

func (r *racingChats) CreateDirect(_ context.Context, low, high, creatorID int) (models.DirectChat, error) {
	<-r.ready
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chat != nil {
		return models.DirectChat{}, repositories.ErrDuplicate
	}
	r.inserts++
	r.chat = &models.DirectChat{ID: 42, ChatType: models.ChatTypeDirect, CreatorID: creatorID}
	return *r.chat, nil
}

func TestConcurrentGetOrCreateConvergesOnOneChat(t *testing.T) {
	const callers = 8
	f := newFixture()
	f.messages.On("LatestInDirectChat", mock.Anything, mock.Anything).Return(nil, repositories.ErrMessageNotFound)
	f.users.On("Exists", mock.Anything, 5).Return(true, nil)
	f.chats.On("ListParticipants", mock.Anything, 42).Return([]models.UserSummary{ana, bo}, nil)
	f.expectNotify(5)
	chats := &racingChats{DirectChatRepositoryMock: f.chats, callers: callers, ready: make(chan struct{})}
	store := f.store()
	store.DirectChats = chats
	svc := NewDirectChatService(store, nil, f.bus)

	ids := make([]int, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := svc.GetOrCreateDirect(context.Background(), 2, 5)
			ids[i], errs[i] = view.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, ids[i])
	}
	assert.Equal(t, 1, chats.inserts)
	f.bus.AssertNumberOfCalls(t, "PublishToUser", 1)
}

func TestGetOrCreateGivesUpAfterRepeatedConflicts(t *testing.T) {
	f, svc := chatFixture()
	f.users.On("Exists", mock.Anything, 5).Return(true, nil)
	f.chats.On("FindDirect", mock.Anything, 2, 5).Return(nil, repositories.ErrDirectChatNotFound)
	f.chats.On("CreateDirect", mock.Anything, 2, 5, 2).Return(nil, repositories.ErrDuplicate)

	_, err := svc.GetOrCreateDirect(context.Background(), 2, 5)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	f.chats.AssertNumberOfCalls(t, "CreateDirect", 2)
	f.bus.AssertNotCalled(t, "PublishToUser", mock.Anything, mock.Anything)
}

func TestCreateGroupValidatesMembers(t *testing.T) {
	f, svc := chatFixture()

	_, err := svc.CreateGroup(context.Background(), 2, nil, "x")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	f.users.On("GetMany", mock.Anything, []int{2, 5, 77}).Return([]models.User{{ID: 2}, {ID: 5}}, nil)
	_, err = svc.CreateGroup(context.Background(), 2, []int{5, 77}, "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateGroupNotifiesOthers(t *testing.T) {
	f, svc := chatFixture()
	f.users.On("GetMany", mock.Anything, []int{2, 5, 9}).Return([]models.User{{ID: 2}, {ID: 5}, {ID: 9}}, nil)
	f.chats.On("CreateGroup", mock.Anything, 2, models.DefaultGroupName, []int{2, 5, 9}).
		Return(models.DirectChat{ID: 6, ChatType: models.ChatTypeGroup, Name: models.DefaultGroupName, CreatorID: 2}, nil)
	f.chats.On("ListParticipants", mock.Anything, 6).Return([]models.UserSummary{ana, bo, cy}, nil)
	f.expectNotify(5)
	f.expectNotify(9)

	view, err := svc.CreateGroup(context.Background(), 2, []int{5, 9, 5}, "  ")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultGroupName, view.Name)
	f.bus.AssertNumberOfCalls(t, "PublishToUser", 2)
}

func TestAddParticipantToDirectChatRejected(t *testing.T) {
	f, svc := chatFixture()
	f.chats.On("Get", mock.Anything, 3).Return(models.DirectChat{ID: 3, ChatType: models.ChatTypeDirect}, nil)

	_, err := svc.AddParticipant(context.Background(), 3, 9, 2)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestRemoveOtherParticipantRequiresCreator(t *testing.T) {
	f, svc := chatFixture()
	f.chats.On("Get", mock.Anything, 6).Return(models.DirectChat{ID: 6, ChatType: models.ChatTypeGroup, CreatorID: 2}, nil)

	_, err := svc.RemoveParticipant(context.Background(), 6, 9, 5)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestLeavingLastButOneDeletesGroup(t *testing.T) {
	f, svc := chatFixture()
	f.chats.On("Get", mock.Anything, 6).Return(models.DirectChat{ID: 6, ChatType: models.ChatTypeGroup, CreatorID: 2}, nil)
	f.chats.On("RemoveParticipant", mock.Anything, 6, 5).Return(true, nil)
	f.chats.On("ListParticipants", mock.Anything, 6).Return([]models.UserSummary{ana}, nil)
	f.chats.On("Delete", mock.Anything, 6).Return(nil).Once()
	f.bus.On("Revoke", 5, "dm.6.").Return().Once()
	f.bus.On("RevokeAll", "dm.6.").Return().Once()
	f.expectNotify(5)
	f.expectNotify(2)

	res, err := svc.RemoveParticipant(context.Background(), 6, 5, 5)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Nil(t, res.Chat)
	f.chats.AssertExpectations(t)
	f.bus.AssertExpectations(t)
}

func TestRemoveKeepsGroupWithMembers(t *testing.T) {
	f, svc := chatFixture()
	f.chats.On("Get", mock.Anything, 6).Return(models.DirectChat{ID: 6, ChatType: models.ChatTypeGroup, CreatorID: 2}, nil)
	f.chats.On("RemoveParticipant", mock.Anything, 6, 9).Return(true, nil)
	f.chats.On("ListParticipants", mock.Anything, 6).Return([]models.UserSummary{ana, bo}, nil)
	f.chats.On("Touch", mock.Anything, 6).Return(nil)
	f.bus.On("Revoke", 9, "dm.6.").Return().Once()
	f.expectNotify(9)

	res, err := svc.RemoveParticipant(context.Background(), 6, 9, 2)
	require.NoError(t, err)
	f.bus.AssertNotCalled(t, "RevokeAll", mock.Anything)
	assert.False(t, res.Deleted)
	require.NotNil(t, res.Chat)
	assert.Len(t, res.Chat.Participants, 2)
}

func TestGetChatRequiresParticipant(t *testing.T) {
	f, svc := chatFixture()
	f.chats.On("Get", mock.Anything, 6).Return(models.DirectChat{ID: 6}, nil)
	f.chats.On("IsParticipant", mock.Anything, 6, 9).Return(false, nil)

	_, err := svc.Get(context.Background(), 6, 9)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
)

func reactionFixture() (*fixture, *ReactionService) {
	f := newFixture()
	f.messages.On("Get", mock.Anything, 11).Return(models.Message{ID: 11, SenderID: 5, ChannelID: ptr(7)}, nil)
	f.channelMember(7, 6)
	return f, NewReactionService(f.store(), f.messageService(), f.bus)
}

func TestNormalizeEmoji(t *testing.T) {
	cases := map[string]string{
		"👍":         "👍",
		"thumbs_up": "👍",
		"HEART":     "❤️",
		"❤":         "❤️",
		" 🎉 ":       "🎉",
	}
	for in, want := range cases {
		got, ok := NormalizeEmoji(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeEmoji("🦄")
	assert.False(t, ok)
}

func TestSupportedEmojis(t *testing.T) {
	list := SupportedEmojis()
	require.Len(t, list, 5)
	assert.Equal(t, "thumbs_up", list[0].Key)
	for _, e := range list {
		assert.NotEmpty(t, e.Name)
	}
}

func TestAddReactionBroadcastsOnce(t *testing.T) {
	f, svc := reactionFixture()
	f.stubViews()
	f.reactions.On("Add", mock.Anything, 11, 6, "👍").Return(true, nil).Once()
	f.reactions.On("Add", mock.Anything, 11, 6, "👍").Return(false, nil).Once()
	f.expectBroadcast("channel.7.messages.reactions.updated")

	_, err := svc.Add(context.Background(), 11, 6, "thumbs_up")
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), 11, 6, "👍")
	require.NoError(t, err)

	f.bus.AssertNumberOfCalls(t, "Publish", 1)
}

func TestReactionWritesRunInsideTransaction(t *testing.T) {
	f := newFixture()
	f.messages.On("Get", inTx, 11).Return(models.Message{ID: 11, SenderID: 5, ChannelID: ptr(7)}, nil)
	f.channels.On("Get", inTx, 7).Return(models.Channel{ID: 7, CommunityID: 1}, nil)
	f.communities.On("IsMember", inTx, 1, 6).Return(true, nil)
	f.reactions.On("Add", inTx, 11, 6, "🎉").Return(true, nil).Once()
	f.reactions.On("Remove", inTx, 11, 6, "🎉").Return(true, nil).Once()
	f.stubViews()
	f.bus.On("Publish", "channel.7.messages.reactions.updated", mock.Anything).Return().Twice()
	svc := NewReactionService(f.store(), f.messageService(), f.bus)

	_, err := svc.Add(context.Background(), 11, 6, "tada")
	require.NoError(t, err)
	_, err = svc.Remove(context.Background(), 11, 6, "tada")
	require.NoError(t, err)

	assert.Equal(t, 2, f.tx.Calls())
	f.reactions.AssertExpectations(t)
	f.bus.AssertExpectations(t)
}

func TestAddUnsupportedEmoji(t *testing.T) {
	f, svc := reactionFixture()
	_, err := svc.Add(context.Background(), 11, 6, "🦄")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	assert.Zero(t, f.tx.Calls())
}

func TestRemoveMissingReaction(t *testing.T) {
	f, svc := reactionFixture()
	f.reactions.On("Remove", mock.Anything, 11, 6, "🎉").Return(false, nil)

	_, err := svc.Remove(context.Background(), 11, 6, "tada")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestReactionRequiresAccess(t *testing.T) {
	f := newFixture()
	f.messages.On("Get", mock.Anything, 11).Return(models.Message{ID: 11, ChannelID: ptr(7)}, nil)
	f.channels.On("Get", mock.Anything, 7).Return(models.Channel{ID: 7, CommunityID: 1}, nil)
	f.communities.On("IsMember", mock.Anything, 1, 8).Return(false, nil)
	svc := NewReactionService(f.store(), f.messageService(), f.bus)

	_, err := svc.Add(context.Background(), 11, 8, "joy")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestSummarizeReactions(t *testing.T) {
	f, svc := reactionFixture()
	f.reactions.On("ListByMessage", mock.Anything, 11).Return([]models.Reaction{
		{MessageID: 11, UserID: 6, Username: "bo", Emoji: "👍"},
		{MessageID: 11, UserID: 5, Username: "ana", Emoji: "👍"},
		{MessageID: 11, UserID: 5, Username: "ana", Emoji: "😂"},
	}, nil)

	summary, err := svc.Summarize(context.Background(), 6, 11)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts["👍"])
	assert.Equal(t, "bo", summary.Reactors["👍"][0].Username)
	assert.Equal(t, 1, summary.Counts["😂"])
}

package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/permissions"
)

type fixture struct {
	users       *mocks.UserRepositoryMock
	communities *mocks.CommunityRepositoryMock
	channels    *mocks.ChannelRepositoryMock
	roles       *mocks.RoleRepositoryMock
	messages    *mocks.MessageRepositoryMock
	reactions   *mocks.ReactionRepositoryMock
	chats       *mocks.DirectChatRepositoryMock
	invites     *mocks.InviteRepositoryMock
	friends     *mocks.FriendRepositoryMock
	blobs       *mocks.BlobStoreMock
	bus         *mocks.BroadcasterMock
	tx          *mocks.TxRecorder
}

func newFixture() *fixture {
	return &fixture{
		users:       new(mocks.UserRepositoryMock),
		communities: new(mocks.CommunityRepositoryMock),
		channels:    new(mocks.ChannelRepositoryMock),
		roles:       new(mocks.RoleRepositoryMock),
		messages:    new(mocks.MessageRepositoryMock),
		reactions:   new(mocks.ReactionRepositoryMock),
		chats:       new(mocks.DirectChatRepositoryMock),
		invites:     new(mocks.InviteRepositoryMock),
		friends:     new(mocks.FriendRepositoryMock),
		blobs:       new(mocks.BlobStoreMock),
		bus:         new(mocks.BroadcasterMock),
		tx:          new(mocks.TxRecorder),
	}
}

func (f *fixture) store() Store {
	return Store{
		Tx:          f.tx,
		Users:       f.users,
		Communities: f.communities,
		Channels:    f.channels,
		Roles:       f.roles,
		Messages:    f.messages,
		Reactions:   f.reactions,
		DirectChats: f.chats,
		Invites:     f.invites,
		Friends:     f.friends,
	}
}

func (f *fixture) perms() *permissions.Evaluator {
	return permissions.NewEvaluator(f.roles)
}

func (f *fixture) messageService() *MessageService {
	return NewMessageService(f.store(), f.perms(), f.blobs, f.bus)
}

// stubViews answers the batched lookups made when a message view is built.
func (f *fixture) stubViews(users ...models.User) {
	f.users.On("GetMany", mock.Anything, mock.Anything).Return(users, nil)
	f.messages.On("ListAttachments", mock.Anything, mock.Anything).Return([]models.Attachment{}, nil)
	f.reactions.On("ListByMessages", mock.Anything, mock.Anything).Return([]models.Reaction{}, nil)
}

// channelMember makes userID a member of community 1 owning channel channelID.
func (f *fixture) channelMember(channelID, userID int) {
	f.channels.On("Get", mock.Anything, channelID).Return(models.Channel{ID: channelID, CommunityID: 1, Name: "general"}, nil)
	f.communities.On("IsMember", mock.Anything, 1, userID).Return(true, nil)
}

func (f *fixture) withRoles(communityID, userID int, roles ...models.Role) {
	f.roles.On("ListUserRoles", mock.Anything, communityID, userID).Return(roles, nil)
}

func (f *fixture) expectBroadcast(topic string) {
	f.bus.On("Publish", topic, mock.Anything).Return().Once()
}

func (f *fixture) expectNotify(userID int) {
	f.bus.On("PublishToUser", userID, mock.Anything).Return()
}

// inTx matches a context handed out by the recording transaction manager.
var (
	inTx      = mock.MatchedBy(mocks.InTx)
	outsideTx = mock.MatchedBy(func(ctx context.Context) bool { return !mocks.InTx(ctx) })
)

func ptr(v int) *int {
	return &v
}

func capRole(id int, caps ...models.Capability) models.Role {
	return models.Role{ID: id, CommunityID: 1, Name: "role", Permissions: models.CapabilityList(caps)}
}

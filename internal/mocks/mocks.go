package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/storage"
)

var (
	_ repositories.TxManager            = (*TxRecorder)(nil)
	_ repositories.UserRepository       = (*UserRepositoryMock)(nil)
	_ repositories.CommunityRepository  = (*CommunityRepositoryMock)(nil)
	_ repositories.ChannelRepository    = (*ChannelRepositoryMock)(nil)
	_ repositories.RoleRepository       = (*RoleRepositoryMock)(nil)
	_ repositories.MessageRepository    = (*MessageRepositoryMock)(nil)
	_ repositories.ReactionRepository   = (*ReactionRepositoryMock)(nil)
	_ repositories.DirectChatRepository = (*DirectChatRepositoryMock)(nil)
	_ repositories.InviteRepository     = (*InviteRepositoryMock)(nil)
	_ repositories.FriendRepository     = (*FriendRepositoryMock)(nil)
	_ storage.BlobStore                 = (*BlobStoreMock)(nil)
)

// value returns argument i as T, or the zero value when it is nil.
func value[T any](args mock.Arguments, i int) T {
	var out T
	if val := args.Get(i); val != nil {
		out = val.(T)
	}
	return out
}

type txKey struct{}

// TxRecorder counts transactions and marks the context handed to fn, so
// repository mocks can assert they ran inside one.
type TxRecorder struct {
	mu    sync.Mutex
	calls int
}

func (r *TxRecorder) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// Calls returns how many transactions were opened.
func (r *TxRecorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// InTx reports whether ctx came from TxRecorder.WithinTx.
func InTx(ctx context.Context) bool {
	in, _ := ctx.Value(txKey{}).(bool)
	return in
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Touch(ctx context.Context, userID int, username string) error {
	return m.Called(ctx, userID, username).Error(0)
}

func (m *UserRepositoryMock) Get(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	return value[models.User](args, 0), args.Error(1)
}

func (m *UserRepositoryMock) Exists(ctx context.Context, userID int) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) GetMany(ctx context.Context, userIDs []int) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	return value[[]models.User](args, 0), args.Error(1)
}

type CommunityRepositoryMock struct {
	mock.Mock
}

func (m *CommunityRepositoryMock) Create(ctx context.Context, c models.Community) (models.Community, error) {
	args := m.Called(ctx, c)
	return value[models.Community](args, 0), args.Error(1)
}

func (m *CommunityRepositoryMock) Get(ctx context.Context, communityID int) (models.Community, error) {
	args := m.Called(ctx, communityID)
	return value[models.Community](args, 0), args.Error(1)
}

func (m *CommunityRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.Community, error) {
	args := m.Called(ctx, userID)
	return value[[]models.Community](args, 0), args.Error(1)
}

func (m *CommunityRepositoryMock) Update(ctx context.Context, c models.Community) (models.Community, error) {
	args := m.Called(ctx, c)
	return value[models.Community](args, 0), args.Error(1)
}

func (m *CommunityRepositoryMock) Delete(ctx context.Context, communityID int) error {
	return m.Called(ctx, communityID).Error(0)
}

func (m *CommunityRepositoryMock) AddMember(ctx context.Context, communityID, userID int) (bool, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *CommunityRepositoryMock) RemoveMember(ctx context.Context, communityID, userID int) (bool, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *CommunityRepositoryMock) IsMember(ctx context.Context, communityID, userID int) (bool, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *CommunityRepositoryMock) ListMembers(ctx context.Context, communityID int) ([]models.Member, error) {
	args := m.Called(ctx, communityID)
	return value[[]models.Member](args, 0), args.Error(1)
}

func (m *CommunityRepositoryMock) CountMembers(ctx context.Context, communityID int) (int, error) {
	args := m.Called(ctx, communityID)
	return args.Int(0), args.Error(1)
}

type ChannelRepositoryMock struct {
	mock.Mock
}

func (m *ChannelRepositoryMock) Create(ctx context.Context, communityID int, name, iconURL string) (models.Channel, error) {
	args := m.Called(ctx, communityID, name, iconURL)
	return value[models.Channel](args, 0), args.Error(1)
}

func (m *ChannelRepositoryMock) Get(ctx context.Context, channelID int) (models.Channel, error) {
	args := m.Called(ctx, channelID)
	return value[models.Channel](args, 0), args.Error(1)
}

func (m *ChannelRepositoryMock) ListByCommunity(ctx context.Context, communityID int) ([]models.Channel, error) {
	args := m.Called(ctx, communityID)
	return value[[]models.Channel](args, 0), args.Error(1)
}

func (m *ChannelRepositoryMock) Rename(ctx context.Context, channelID int, name string) (models.Channel, error) {
	args := m.Called(ctx, channelID, name)
	return value[models.Channel](args, 0), args.Error(1)
}

func (m *ChannelRepositoryMock) Delete(ctx context.Context, channelID int) error {
	return m.Called(ctx, channelID).Error(0)
}

type RoleRepositoryMock struct {
	mock.Mock
}

func (m *RoleRepositoryMock) Create(ctx context.Context, role models.Role) (models.Role, error) {
	args := m.Called(ctx, role)
	return value[models.Role](args, 0), args.Error(1)
}

func (m *RoleRepositoryMock) Get(ctx context.Context, communityID, roleID int) (models.Role, error) {
	args := m.Called(ctx, communityID, roleID)
	return value[models.Role](args, 0), args.Error(1)
}

func (m *RoleRepositoryMock) ListByCommunity(ctx context.Context, communityID int) ([]models.Role, error) {
	args := m.Called(ctx, communityID)
	return value[[]models.Role](args, 0), args.Error(1)
}

func (m *RoleRepositoryMock) ListUserRoles(ctx context.Context, communityID, userID int) ([]models.Role, error) {
	args := m.Called(ctx, communityID, userID)
	return value[[]models.Role](args, 0), args.Error(1)
}

func (m *RoleRepositoryMock) Update(ctx context.Context, role models.Role) (models.Role, error) {
	args := m.Called(ctx, role)
	return value[models.Role](args, 0), args.Error(1)
}

func (m *RoleRepositoryMock) Delete(ctx context.Context, roleID int) error {
	return m.Called(ctx, roleID).Error(0)
}

func (m *RoleRepositoryMock) CountAdminRoles(ctx context.Context, communityID int) (int, error) {
	args := m.Called(ctx, communityID)
	return args.Int(0), args.Error(1)
}

func (m *RoleRepositoryMock) Assign(ctx context.Context, communityID, roleID, userID int) (bool, error) {
	args := m.Called(ctx, communityID, roleID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoleRepositoryMock) Unassign(ctx context.Context, roleID, userID int) (bool, error) {
	args := m.Called(ctx, roleID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoleRepositoryMock) CountHolders(ctx context.Context, roleID int) (int, error) {
	args := m.Called(ctx, roleID)
	return args.Int(0), args.Error(1)
}

func (m *RoleRepositoryMock) HoldsOwner(ctx context.Context, communityID, userID int) (bool, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	return value[models.Message](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) AddAttachments(ctx context.Context, messageID int, attachments []models.Attachment) ([]models.Attachment, error) {
	args := m.Called(ctx, messageID, attachments)
	return value[[]models.Attachment](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return value[models.Message](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	return value[models.Message](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, messageID int) error {
	return m.Called(ctx, messageID).Error(0)
}

func (m *MessageRepositoryMock) ListAttachments(ctx context.Context, messageIDs []int) ([]models.Attachment, error) {
	args := m.Called(ctx, messageIDs)
	return value[[]models.Attachment](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) ListByChannel(ctx context.Context, channelID int, q repositories.MessageQuery) ([]models.Message, error) {
	args := m.Called(ctx, channelID, q)
	return value[[]models.Message](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) ListByDirectChat(ctx context.Context, chatID int, q repositories.MessageQuery) ([]models.Message, error) {
	args := m.Called(ctx, chatID, q)
	return value[[]models.Message](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) LatestInDirectChat(ctx context.Context, chatID int) (models.Message, error) {
	args := m.Called(ctx, chatID)
	return value[models.Message](args, 0), args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Add(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) Remove(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) ListByMessage(ctx context.Context, messageID int) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	return value[[]models.Reaction](args, 0), args.Error(1)
}

func (m *ReactionRepositoryMock) ListByMessages(ctx context.Context, messageIDs []int) ([]models.Reaction, error) {
	args := m.Called(ctx, messageIDs)
	return value[[]models.Reaction](args, 0), args.Error(1)
}

type DirectChatRepositoryMock struct {
	mock.Mock
}

func (m *DirectChatRepositoryMock) FindDirect(ctx context.Context, low, high int) (models.DirectChat, error) {
	args := m.Called(ctx, low, high)
	return value[models.DirectChat](args, 0), args.Error(1)
}

func (m *DirectChatRepositoryMock) CreateDirect(ctx context.Context, low, high, creatorID int) (models.DirectChat, error) {
	args := m.Called(ctx, low, high, creatorID)
	return value[models.DirectChat](args, 0), args.Error(1)
}

func (m *DirectChatRepositoryMock) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.DirectChat, error) {
	args := m.Called(ctx, creatorID, name, memberIDs)
	return value[models.DirectChat](args, 0), args.Error(1)
}

func (m *DirectChatRepositoryMock) Get(ctx context.Context, chatID int) (models.DirectChat, error) {
	args := m.Called(ctx, chatID)
	return value[models.DirectChat](args, 0), args.Error(1)
}

func (m *DirectChatRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.DirectChat, error) {
	args := m.Called(ctx, userID)
	return value[[]models.DirectChat](args, 0), args.Error(1)
}

func (m *DirectChatRepositoryMock) ListParticipants(ctx context.Context, chatID int) ([]models.UserSummary, error) {
	args := m.Called(ctx, chatID)
	return value[[]models.UserSummary](args, 0), args.Error(1)
}

func (m *DirectChatRepositoryMock) IsParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *DirectChatRepositoryMock) AddParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *DirectChatRepositoryMock) RemoveParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *DirectChatRepositoryMock) CountParticipants(ctx context.Context, chatID int) (int, error) {
	args := m.Called(ctx, chatID)
	return args.Int(0), args.Error(1)
}

func (m *DirectChatRepositoryMock) Touch(ctx context.Context, chatID int) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *DirectChatRepositoryMock) Delete(ctx context.Context, chatID int) error {
	return m.Called(ctx, chatID).Error(0)
}

type InviteRepositoryMock struct {
	mock.Mock
}

func (m *InviteRepositoryMock) Create(ctx context.Context, inv models.Invite) (models.Invite, error) {
	args := m.Called(ctx, inv)
	return value[models.Invite](args, 0), args.Error(1)
}

func (m *InviteRepositoryMock) GetByCode(ctx context.Context, code string) (models.Invite, error) {
	args := m.Called(ctx, code)
	return value[models.Invite](args, 0), args.Error(1)
}

type FriendRepositoryMock struct {
	mock.Mock
}

func (m *FriendRepositoryMock) GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	return value[models.FriendRequest](args, 0), args.Error(1)
}

func (m *FriendRepositoryMock) FindRequest(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, receiverID)
	return value[models.FriendRequest](args, 0), args.Error(1)
}

func (m *FriendRepositoryMock) CreateRequest(ctx context.Context, req models.FriendRequest) (models.FriendRequest, error) {
	args := m.Called(ctx, req)
	return value[models.FriendRequest](args, 0), args.Error(1)
}

func (m *FriendRepositoryMock) SetStatus(ctx context.Context, requestID, status string) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID, status)
	return value[models.FriendRequest](args, 0), args.Error(1)
}

func (m *FriendRepositoryMock) ListPending(ctx context.Context, receiverID int) ([]models.FriendRequest, error) {
	args := m.Called(ctx, receiverID)
	return value[[]models.FriendRequest](args, 0), args.Error(1)
}

func (m *FriendRepositoryMock) AreFriends(ctx context.Context, a, b int) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func (m *FriendRepositoryMock) AddFriendship(ctx context.Context, a, b int) error {
	return m.Called(ctx, a, b).Error(0)
}

func (m *FriendRepositoryMock) ListFriends(ctx context.Context, userID int) ([]models.UserSummary, error) {
	args := m.Called(ctx, userID)
	return value[[]models.UserSummary](args, 0), args.Error(1)
}

type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Save(ctx context.Context, fileName string, r io.Reader) (storage.Blob, error) {
	args := m.Called(ctx, fileName, r)
	return value[storage.Blob](args, 0), args.Error(1)
}

func (m *BlobStoreMock) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

// BroadcasterMock records published events.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Publish(topic string, event models.Event) {
	m.Called(topic, event)
}

func (m *BroadcasterMock) PublishToUser(userID int, event models.Event) {
	m.Called(userID, event)
}

func (m *BroadcasterMock) Revoke(userID int, prefix string) {
	m.Called(userID, prefix)
}

func (m *BroadcasterMock) RevokeAll(prefix string) {
	m.Called(prefix)
}

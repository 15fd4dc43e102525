package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/middleware"
	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/services"
	"guild-chat-service/internal/telemetry"
)

type communityServiceMock struct{ mock.Mock }

func (m *communityServiceMock) Create(ctx context.Context, ownerID int, in services.CommunityInput) (models.CommunityDetail, error) {
	args := m.Called(ctx, ownerID, in)
	return args.Get(0).(models.CommunityDetail), args.Error(1)
}

func (m *communityServiceMock) ListMine(ctx context.Context, userID int) ([]models.Community, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Community), args.Error(1)
}

func (m *communityServiceMock) Get(ctx context.Context, communityID, userID int) (models.CommunityDetail, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Get(0).(models.CommunityDetail), args.Error(1)
}

func (m *communityServiceMock) Update(ctx context.Context, communityID, userID int, in models.CommunityUpdate) (models.Community, error) {
	args := m.Called(ctx, communityID, userID, in)
	return args.Get(0).(models.Community), args.Error(1)
}

func (m *communityServiceMock) Delete(ctx context.Context, communityID, userID int) error {
	return m.Called(ctx, communityID, userID).Error(0)
}

func (m *communityServiceMock) CreateChannel(ctx context.Context, communityID, userID int, name, iconURL string) (models.Channel, error) {
	args := m.Called(ctx, communityID, userID, name, iconURL)
	return args.Get(0).(models.Channel), args.Error(1)
}

func (m *communityServiceMock) RenameChannel(ctx context.Context, communityID, channelID, userID int, name string) (models.Channel, error) {
	args := m.Called(ctx, communityID, channelID, userID, name)
	return args.Get(0).(models.Channel), args.Error(1)
}

func (m *communityServiceMock) DeleteChannel(ctx context.Context, communityID, channelID, userID int) error {
	return m.Called(ctx, communityID, channelID, userID).Error(0)
}

func (m *communityServiceMock) CreateInvite(ctx context.Context, communityID, userID int) (models.Invite, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Get(0).(models.Invite), args.Error(1)
}

func (m *communityServiceMock) AcceptInvite(ctx context.Context, code string, userID int) (models.CommunityDetail, error) {
	args := m.Called(ctx, code, userID)
	return args.Get(0).(models.CommunityDetail), args.Error(1)
}

func (m *communityServiceMock) ListMembers(ctx context.Context, communityID, userID int) ([]models.Member, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Get(0).([]models.Member), args.Error(1)
}

func (m *communityServiceMock) Kick(ctx context.Context, communityID, targetID, actorID int) error {
	return m.Called(ctx, communityID, targetID, actorID).Error(0)
}

type messageServiceMock struct{ mock.Mock }

func (m *messageServiceMock) Send(ctx context.Context, senderID int, in services.SendInput) (models.MessageView, error) {
	args := m.Called(ctx, senderID, in)
	return args.Get(0).(models.MessageView), args.Error(1)
}

func (m *messageServiceMock) Edit(ctx context.Context, editorID, messageID int, content string) (models.MessageView, error) {
	args := m.Called(ctx, editorID, messageID, content)
	return args.Get(0).(models.MessageView), args.Error(1)
}

func (m *messageServiceMock) Delete(ctx context.Context, actorID, messageID int) error {
	return m.Called(ctx, actorID, messageID).Error(0)
}

func (m *messageServiceMock) PageChannel(ctx context.Context, userID, channelID int, q services.PageQuery) (models.MessagePage, error) {
	args := m.Called(ctx, userID, channelID, q)
	return args.Get(0).(models.MessagePage), args.Error(1)
}

func (m *messageServiceMock) PageDirectChat(ctx context.Context, userID, chatID int, q services.PageQuery) (models.MessagePage, error) {
	args := m.Called(ctx, userID, chatID, q)
	return args.Get(0).(models.MessagePage), args.Error(1)
}

type friendServiceMock struct{ mock.Mock }

func (m *friendServiceMock) Send(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, receiverID)
	return args.Get(0).(models.FriendRequest), args.Error(1)
}

func (m *friendServiceMock) Respond(ctx context.Context, requestID string, userID int, accept bool) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID, userID, accept)
	return args.Get(0).(models.FriendRequest), args.Error(1)
}

func (m *friendServiceMock) ListFriends(ctx context.Context, userID int) ([]models.UserSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.UserSummary), args.Error(1)
}

func (m *friendServiceMock) ListPending(ctx context.Context, userID int) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.FriendRequest), args.Error(1)
}

const callerID = 7

// fakeAuth stands in for the bearer middleware.
func fakeAuth(c *gin.Context) {
	c.Set(middleware.UserIDKey, callerID)
	c.Next()
}

type testAPI struct {
	communities *communityServiceMock
	messages    *messageServiceMock
	friends     *friendServiceMock
	router      *gin.Engine
}

func newTestAPI() *testAPI {
	gin.SetMode(gin.TestMode)
	t := &testAPI{
		communities: new(communityServiceMock),
		messages:    new(messageServiceMock),
		friends:     new(friendServiceMock),
		router:      gin.New(),
	}
	RegisterRoutes(t.router, fakeAuth, API{
		Communities: NewCommunityHandler(t.communities, nil),
		Roles:       NewRoleHandler(nil, nil),
		Messages:    NewMessageHandler(t.messages, nil, nil, 1<<20),
		DirectChats: NewDirectChatHandler(nil),
		Friends:     NewFriendHandler(t.friends),
	})
	return t
}

func (t *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	t.router.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestCommunityCreateReturnsCreated(t *testing.T) {
	api := newTestAPI()
	in := services.CommunityInput{Name: "guild"}
	api.communities.On("Create", mock.Anything, callerID, in).
		Return(models.CommunityDetail{Community: models.Community{ID: 3, Name: "guild", OwnerID: callerID}, MemberCount: 1}, nil)

	rec := api.do(http.MethodPost, "/communities", in)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"member_count":1`)
	api.communities.AssertExpectations(t)
}

func TestCommunityGetMapsErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"missing", apperr.NotFound("community", 9), http.StatusNotFound},
		{"outsider", apperr.Forbidden("not a member"), http.StatusForbidden},
		{"expired", apperr.Expired("invite expired"), http.StatusGone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI()
			api.communities.On("Get", mock.Anything, 9, callerID).Return(models.CommunityDetail{}, tc.err)

			rec := api.do(http.MethodGet, "/communities/9", nil)

			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, errorBody(t, rec))
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	api := newTestAPI()
	api.communities.On("ListMine", mock.Anything, callerID).
		Return([]models.Community(nil), errors.New("pq: connection refused"))

	rec := api.do(http.MethodGet, "/communities", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", errorBody(t, rec))
}

func TestInvalidPathParameter(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/communities/abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	api.communities.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestKickReturnsNoContent(t *testing.T) {
	api := newTestAPI()
	api.communities.On("Kick", mock.Anything, 2, 11, callerID).Return(nil)

	rec := api.do(http.MethodDelete, "/communities/2/members/11", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	api.communities.AssertExpectations(t)
}

func TestKickIsAudited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := new(mocks.PublisherMock)
	pub.On("Publish", mock.Anything, "audit.test", mock.Anything).Return(nil)
	svc := new(communityServiceMock)
	svc.On("Kick", mock.Anything, 2, 11, callerID).Return(nil)

	r := gin.New()
	r.Use(middleware.RequestID())
	h := NewCommunityHandler(svc, telemetry.NewAuditEmitter(pub, "audit.test", "guild-chat-service", "test"))
	r.DELETE("/communities/:community_id/members/:user_id", fakeAuth, h.Kick)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/communities/2/members/11", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	events := pub.Published("audit.test")
	require.Len(t, events, 1)
	env := events[0].(telemetry.AuditEnvelope)
	assert.Equal(t, "member.kick", env.Payload.Action)
	require.NotNil(t, env.UserID)
	assert.Equal(t, "7", *env.UserID)
	assert.NotEmpty(t, env.RequestID)
}

func TestAcceptInviteUsesCode(t *testing.T) {
	api := newTestAPI()
	api.communities.On("AcceptInvite", mock.Anything, "ab12cd34", callerID).
		Return(models.CommunityDetail{Community: models.Community{ID: 4}}, nil)

	rec := api.do(http.MethodPost, "/invites/ab12cd34/accept", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	api.communities.AssertExpectations(t)
}

func TestChannelHistoryParsesPaging(t *testing.T) {
	api := newTestAPI()
	api.messages.On("PageChannel", mock.Anything, callerID, 5, services.PageQuery{Page: 2, Size: 10}).
		Return(models.MessagePage{Messages: []models.MessageView{}}, nil)

	rec := api.do(http.MethodGet, "/channels/5/messages?page=2&size=10", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	api.messages.AssertExpectations(t)
}

func TestChannelHistoryRejectsBadCursor(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/channels/5/messages?before=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostToChannelTargetsPathChannel(t *testing.T) {
	api := newTestAPI()
	api.messages.On("Send", mock.Anything, callerID, mock.MatchedBy(func(in services.SendInput) bool {
		return in.ChannelID != nil && *in.ChannelID == 5 && in.DirectChatID == nil && in.Content == "hi"
	})).Return(models.MessageView{}, nil)

	rec := api.do(http.MethodPost, "/channels/5/messages", map[string]any{"content": "hi", "direct_chat_id": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	api.messages.AssertExpectations(t)
}

func TestPostMultipartCarriesUploads(t *testing.T) {
	api := newTestAPI()
	api.messages.On("Send", mock.Anything, callerID, mock.MatchedBy(func(in services.SendInput) bool {
		return in.DirectChatID != nil && *in.DirectChatID == 8 &&
			in.Content == "see file" && len(in.Uploads) == 1 && in.Uploads[0].FileName == "notes.txt"
	})).Return(models.MessageView{}, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("content", "see file"))
	part, err := w.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/direct-chats/8/messages", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	api.messages.AssertExpectations(t)
}

func TestFriendRespondRejectsUnknownAction(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodPost, "/friends/requests/r1/respond", map[string]string{"action": "MAYBE"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	api.friends.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFriendRespondAccepts(t *testing.T) {
	api := newTestAPI()
	api.friends.On("Respond", mock.Anything, "r1", callerID, true).
		Return(models.FriendRequest{ID: "r1", Status: models.FriendRequestAccepted}, nil)

	rec := api.do(http.MethodPost, "/friends/requests/r1/respond", map[string]string{"action": "accept"})

	assert.Equal(t, http.StatusOK, rec.Code)
	api.friends.AssertExpectations(t)
}

func TestPendingRouteIsNotARequestID(t *testing.T) {
	api := newTestAPI()
	api.friends.On("ListPending", mock.Anything, callerID).Return([]models.FriendRequest{}, nil)

	rec := api.do(http.MethodGet, "/friends/requests/pending", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"requests":[]}`, rec.Body.String())
}

func TestEmojisListed(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/reactions/emojis", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"emojis"`)
}

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, nil, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type hubStatsStub struct{}

func (hubStatsStub) SessionCount() int            { return 3 }
func (hubStatsStub) Subscribers(topic string) int { return len(topic) }

func TestDebugWSStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, hubStatsStub{}, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/ws?topic=dm.1.typing", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":3,"topic":"dm.1.typing","subscribers":12}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

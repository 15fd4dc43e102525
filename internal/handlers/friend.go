package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
)

// FriendService is the friend surface the handlers need.
type FriendService interface {
	Send(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error)
	Respond(ctx context.Context, requestID string, userID int, accept bool) (models.FriendRequest, error)
	ListFriends(ctx context.Context, userID int) ([]models.UserSummary, error)
	ListPending(ctx context.Context, userID int) ([]models.FriendRequest, error)
}

// FriendHandler serves friend requests and friend lists.
type FriendHandler struct {
	friends FriendService
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(friends FriendService) *FriendHandler {
	return &FriendHandler{friends: friends}
}

type friendRequestBody struct {
	ReceiverID int `json:"receiver_id"`
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req friendRequestBody
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.friends.Send(c.Request.Context(), currentUser(c), req.ReceiverID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

type respondBody struct {
	Action string `json:"action"`
}

func (h *FriendHandler) Respond(c *gin.Context) {
	var req respondBody
	if !bindJSON(c, &req) {
		return
	}
	var accept bool
	switch strings.ToUpper(req.Action) {
	case "ACCEPT":
		accept = true
	case "DECLINE":
	default:
		writeError(c, apperr.Invalid("action must be ACCEPT or DECLINE"))
		return
	}
	out, err := h.friends.Respond(c.Request.Context(), c.Param("request_id"), currentUser(c), accept)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	friends, err := h.friends.ListFriends(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *FriendHandler) ListPending(c *gin.Context) {
	pending, err := h.friends.ListPending(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": pending})
}

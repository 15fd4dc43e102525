package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/models"
)

// DirectChatService is the direct chat surface the handlers need.
type DirectChatService interface {
	GetOrCreateDirect(ctx context.Context, a, b int) (models.DirectChatView, error)
	CreateGroup(ctx context.Context, creatorID int, participantIDs []int, name string) (models.DirectChatView, error)
	AddParticipant(ctx context.Context, chatID, userID, requesterID int) (models.DirectChatView, error)
	RemoveParticipant(ctx context.Context, chatID, userID, requesterID int) (models.RemoveResult, error)
	List(ctx context.Context, userID int) ([]models.DirectChatView, error)
	Get(ctx context.Context, chatID, requesterID int) (models.DirectChatView, error)
}

// DirectChatHandler serves 1:1 and group chats.
type DirectChatHandler struct {
	chats DirectChatService
}

// NewDirectChatHandler builds a DirectChatHandler.
func NewDirectChatHandler(chats DirectChatService) *DirectChatHandler {
	return &DirectChatHandler{chats: chats}
}

type startChatRequest struct {
	UserID int `json:"user_id"`
}

func (h *DirectChatHandler) Start(c *gin.Context) {
	var req startChatRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.GetOrCreateDirect(c.Request.Context(), currentUser(c), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

type groupRequest struct {
	Name           string `json:"name"`
	ParticipantIDs []int  `json:"participant_ids"`
}

func (h *DirectChatHandler) CreateGroup(c *gin.Context) {
	var req groupRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.CreateGroup(c.Request.Context(), currentUser(c), req.ParticipantIDs, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *DirectChatHandler) List(c *gin.Context) {
	chats, err := h.chats.List(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *DirectChatHandler) Get(c *gin.Context) {
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	chat, err := h.chats.Get(c.Request.Context(), chatID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *DirectChatHandler) AddParticipant(c *gin.Context) {
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	var req startChatRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.AddParticipant(c.Request.Context(), chatID, req.UserID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *DirectChatHandler) RemoveParticipant(c *gin.Context) {
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	res, err := h.chats.RemoveParticipant(c.Request.Context(), chatID, userID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

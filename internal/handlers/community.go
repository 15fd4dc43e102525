package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/services"
	"guild-chat-service/internal/telemetry"
)

// CommunityService is the community surface the handlers need.
type CommunityService interface {
	Create(ctx context.Context, ownerID int, in services.CommunityInput) (models.CommunityDetail, error)
	ListMine(ctx context.Context, userID int) ([]models.Community, error)
	Get(ctx context.Context, communityID, userID int) (models.CommunityDetail, error)
	Update(ctx context.Context, communityID, userID int, in models.CommunityUpdate) (models.Community, error)
	Delete(ctx context.Context, communityID, userID int) error
	CreateChannel(ctx context.Context, communityID, userID int, name, iconURL string) (models.Channel, error)
	RenameChannel(ctx context.Context, communityID, channelID, userID int, name string) (models.Channel, error)
	DeleteChannel(ctx context.Context, communityID, channelID, userID int) error
	CreateInvite(ctx context.Context, communityID, userID int) (models.Invite, error)
	AcceptInvite(ctx context.Context, code string, userID int) (models.CommunityDetail, error)
	ListMembers(ctx context.Context, communityID, userID int) ([]models.Member, error)
	Kick(ctx context.Context, communityID, targetID, actorID int) error
}

// CommunityHandler serves communities, channels, invites and members.
type CommunityHandler struct {
	communities CommunityService
	audit       *telemetry.AuditEmitter
}

// NewCommunityHandler builds a CommunityHandler.
func NewCommunityHandler(communities CommunityService, emitter *telemetry.AuditEmitter) *CommunityHandler {
	return &CommunityHandler{communities: communities, audit: emitter}
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req services.CommunityInput
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.communities.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "community.create", fmt.Sprintf("community %d created", detail.ID))
	c.JSON(http.StatusCreated, detail)
}

func (h *CommunityHandler) List(c *gin.Context) {
	list, err := h.communities.ListMine(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": list})
}

func (h *CommunityHandler) Get(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	detail, err := h.communities.Get(c.Request.Context(), communityID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CommunityHandler) Update(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	var req models.CommunityUpdate
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.communities.Update(c.Request.Context(), communityID, currentUser(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "community.update", fmt.Sprintf("community %d updated", communityID))
	c.JSON(http.StatusOK, updated)
}

func (h *CommunityHandler) Delete(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	if err := h.communities.Delete(c.Request.Context(), communityID, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "community.delete", fmt.Sprintf("community %d deleted", communityID))
	c.Status(http.StatusNoContent)
}

type channelRequest struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
}

func (h *CommunityHandler) CreateChannel(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	var req channelRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.communities.CreateChannel(c.Request.Context(), communityID, currentUser(c), req.Name, req.IconURL)
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "channel.create", fmt.Sprintf("channel %d created in community %d", ch.ID, communityID))
	c.JSON(http.StatusCreated, ch)
}

func (h *CommunityHandler) RenameChannel(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	channelID, ok := paramID(c, "channel_id")
	if !ok {
		return
	}
	var req channelRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.communities.RenameChannel(c.Request.Context(), communityID, channelID, currentUser(c), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *CommunityHandler) DeleteChannel(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	channelID, ok := paramID(c, "channel_id")
	if !ok {
		return
	}
	if err := h.communities.DeleteChannel(c.Request.Context(), communityID, channelID, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "channel.delete", fmt.Sprintf("channel %d deleted", channelID))
	c.Status(http.StatusNoContent)
}

func (h *CommunityHandler) CreateInvite(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	inv, err := h.communities.CreateInvite(c.Request.Context(), communityID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *CommunityHandler) AcceptInvite(c *gin.Context) {
	detail, err := h.communities.AcceptInvite(c.Request.Context(), c.Param("code"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "invite.accept", fmt.Sprintf("joined community %d", detail.ID))
	c.JSON(http.StatusOK, detail)
}

func (h *CommunityHandler) ListMembers(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	members, err := h.communities.ListMembers(c.Request.Context(), communityID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *CommunityHandler) Kick(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	targetID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if err := h.communities.Kick(c.Request.Context(), communityID, targetID, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "member.kick", fmt.Sprintf("user %d kicked from community %d", targetID, communityID))
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/telemetry"
)

// RoleService is the role surface the handlers need.
type RoleService interface {
	List(ctx context.Context, communityID, userID int) ([]models.Role, error)
	Create(ctx context.Context, communityID, actorID int, in models.RoleInput) (models.Role, error)
	Update(ctx context.Context, communityID, roleID, actorID int, in models.RoleUpdate) (models.Role, error)
	Delete(ctx context.Context, communityID, roleID, actorID int) error
	Assign(ctx context.Context, communityID, roleID, targetID, actorID int) error
	Remove(ctx context.Context, communityID, roleID, targetID, actorID int) error
	Capabilities() []models.Capability
}

// RoleHandler serves roles, assignments and the capability list.
type RoleHandler struct {
	roles RoleService
	audit *telemetry.AuditEmitter
}

// NewRoleHandler builds a RoleHandler.
func NewRoleHandler(roles RoleService, emitter *telemetry.AuditEmitter) *RoleHandler {
	return &RoleHandler{roles: roles, audit: emitter}
}

func (h *RoleHandler) List(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	roles, err := h.roles.List(c.Request.Context(), communityID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h *RoleHandler) Create(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	var req models.RoleInput
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roles.Create(c.Request.Context(), communityID, currentUser(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "role.create", fmt.Sprintf("role %d created in community %d", role.ID, communityID))
	c.JSON(http.StatusCreated, role)
}

func (h *RoleHandler) Update(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	roleID, ok := paramID(c, "role_id")
	if !ok {
		return
	}
	var req models.RoleUpdate
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roles.Update(c.Request.Context(), communityID, roleID, currentUser(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "role.update", fmt.Sprintf("role %d updated", roleID))
	c.JSON(http.StatusOK, role)
}

func (h *RoleHandler) Delete(c *gin.Context) {
	communityID, ok := paramID(c, "community_id")
	if !ok {
		return
	}
	roleID, ok := paramID(c, "role_id")
	if !ok {
		return
	}
	if err := h.roles.Delete(c.Request.Context(), communityID, roleID, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "role.delete", fmt.Sprintf("role %d deleted", roleID))
	c.Status(http.StatusNoContent)
}

// assignment parses community, member and role ids.
func assignment(c *gin.Context) (communityID, userID, roleID int, ok bool) {
	if communityID, ok = paramID(c, "community_id"); !ok {
		return
	}
	if userID, ok = paramID(c, "user_id"); !ok {
		return
	}
	roleID, ok = paramID(c, "role_id")
	return
}

func (h *RoleHandler) Assign(c *gin.Context) {
	communityID, userID, roleID, ok := assignment(c)
	if !ok {
		return
	}
	if err := h.roles.Assign(c.Request.Context(), communityID, roleID, userID, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "role.assign", fmt.Sprintf("role %d assigned to user %d", roleID, userID))
	c.Status(http.StatusNoContent)
}

func (h *RoleHandler) Unassign(c *gin.Context) {
	communityID, userID, roleID, ok := assignment(c)
	if !ok {
		return
	}
	if err := h.roles.Remove(c.Request.Context(), communityID, roleID, userID, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "role.remove", fmt.Sprintf("role %d removed from user %d", roleID, userID))
	c.Status(http.StatusNoContent)
}

func (h *RoleHandler) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"permissions": h.roles.Capabilities()})
}

// Package permissions decides whether a member may perform a guarded action
// in a community.
package permissions

import (
	"context"
	"fmt"

	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/observability"
)

// RoleLister resolves a member's roles in a community.
type RoleLister interface {
	ListUserRoles(ctx context.Context, communityID, userID int) ([]models.Role, error)
}

// Grants reports whether any of roles carries the capability, the
// administrator capability or the owner flag.
func Grants(roles []models.Role, c models.Capability) bool {
	for _, r := range roles {
		if r.IsAdmin() || r.Has(c) {
			return true
		}
	}
	return false
}

// Evaluator checks capabilities against stored role assignments.
type Evaluator struct {
	roles RoleLister
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(roles RoleLister) *Evaluator {
	return &Evaluator{roles: roles}
}

// HasCapability returns false, nil for users without roles. The error is
// only set when the store fails.
func (e *Evaluator) HasCapability(ctx context.Context, communityID, userID int, c models.Capability) (bool, error) {
	roles, err := e.roles.ListUserRoles(ctx, communityID, userID)
	if err != nil {
		return false, fmt.Errorf("list roles: %w", err)
	}
	return Grants(roles, c), nil
}

// IsAdmin reports whether the user holds the administrator capability.
func (e *Evaluator) IsAdmin(ctx context.Context, communityID, userID int) (bool, error) {
	return e.HasCapability(ctx, communityID, userID, models.CapAdministrator)
}

// Require returns a Forbidden error when the capability is missing.
func (e *Evaluator) Require(ctx context.Context, communityID, userID int, c models.Capability) error {
	ok, err := e.HasCapability(ctx, communityID, userID, c)
	if err != nil {
		return err
	}
	if !ok {
		observability.PermissionDenied(string(c))
		jww.DEBUG.Printf("permission denied community=%d user=%d capability=%s", communityID, userID, c)
		return apperr.Forbidden("missing permission %s", c)
	}
	return nil
}

// Guard runs fn only if the user holds the capability.
func (e *Evaluator) Guard(ctx context.Context, communityID, userID int, c models.Capability, fn func(ctx context.Context) error) error {
	if err := e.Require(ctx, communityID, userID, c); err != nil {
		return err
	}
	return fn(ctx)
}

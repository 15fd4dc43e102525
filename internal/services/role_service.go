package services

import (
	"context"
	"errors"
	"strings"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/permissions"
	"guild-chat-service/internal/repositories"
)

const defaultRoleColor = "#99AAB5"

// RoleService manages roles and their assignment to members.
type RoleService struct {
	store Store
	perms *permissions.Evaluator
}

func NewRoleService(store Store, perms *permissions.Evaluator) *RoleService {
	return &RoleService{store: store, perms: perms}
}

// Capabilities lists every assignable capability.
func (s *RoleService) Capabilities() []models.Capability {
	return models.AllCapabilities()
}

func (s *RoleService) role(ctx context.Context, communityID, roleID int) (models.Role, error) {
	if _, err := s.store.Communities.Get(ctx, communityID); err != nil {
		return models.Role{}, missing(err, repositories.ErrCommunityNotFound, "community", communityID)
	}
	r, err := s.store.Roles.Get(ctx, communityID, roleID)
	if err != nil {
		return models.Role{}, missing(err, repositories.ErrRoleNotFound, "role", roleID)
	}
	return r, nil
}

func validCapabilities(caps []models.Capability) error {
	for _, c := range caps {
		if !models.ValidCapability(c) {
			return apperr.Invalid("unknown permission %q", c)
		}
	}
	return nil
}

func hasAdministrator(caps []models.Capability) bool {
	for _, c := range caps {
		if c == models.CapAdministrator {
			return true
		}
	}
	return false
}

// List returns the community's roles. Permission sets are only shown to
// administrators.
func (s *RoleService) List(ctx context.Context, communityID, userID int) ([]models.Role, error) {
	if _, err := s.store.Communities.Get(ctx, communityID); err != nil {
		return nil, missing(err, repositories.ErrCommunityNotFound, "community", communityID)
	}
	member, err := s.store.Communities.IsMember(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.Forbidden("not a member of this community")
	}
	roles, err := s.store.Roles.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	admin, err := s.perms.IsAdmin(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		for i := range roles {
			roles[i].Permissions = nil
		}
	}
	return roles, nil
}

// Create adds a role. Only administrators may grant ADMINISTRATOR.
func (s *RoleService) Create(ctx context.Context, communityID, actorID int, in models.RoleInput) (models.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Role{}, apperr.Invalid("role name is required")
	}
	if strings.EqualFold(name, models.OwnerRoleName) {
		return models.Role{}, apperr.Conflict("role name %q is reserved", name)
	}
	if err := validCapabilities(in.Permissions); err != nil {
		return models.Role{}, err
	}
	color := in.ColorHex
	if color == "" {
		color = defaultRoleColor
	}

	var created models.Role
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Communities.Get(ctx, communityID); err != nil {
			return missing(err, repositories.ErrCommunityNotFound, "community", communityID)
		}
		return s.perms.Guard(ctx, communityID, actorID, models.CapManageRoles, func(ctx context.Context) error {
			if hasAdministrator(in.Permissions) {
				if err := s.perms.Require(ctx, communityID, actorID, models.CapAdministrator); err != nil {
					return err
				}
			}
			var err error
			created, err = s.store.Roles.Create(ctx, models.Role{
				CommunityID: communityID,
				Name:        name,
				ColorHex:    color,
				Permissions: models.CapabilityList(in.Permissions),
			})
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperr.Conflict("role %q already exists", name)
			}
			return err
		})
	})
	return created, err
}

// Update edits a role. The Owner role keeps its name and permissions; roles
// carrying ADMINISTRATOR are only editable by administrators.
func (s *RoleService) Update(ctx context.Context, communityID, roleID, actorID int, in models.RoleUpdate) (models.Role, error) {
	var updated models.Role
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.role(ctx, communityID, roleID)
		if err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, actorID, models.CapManageRoles, func(ctx context.Context) error {
			admin, err := s.perms.IsAdmin(ctx, communityID, actorID)
			if err != nil {
				return err
			}
			if r.Has(models.CapAdministrator) && !admin {
				return apperr.Forbidden("only administrators can edit an administrator role")
			}

			if in.Name != nil {
				name := strings.TrimSpace(*in.Name)
				if name == "" {
					return apperr.Invalid("role name is required")
				}
				if r.IsOwner && name != r.Name {
					return apperr.Forbidden("the owner role cannot be renamed")
				}
				if !r.IsOwner && strings.EqualFold(name, models.OwnerRoleName) {
					return apperr.Conflict("role name %q is reserved", name)
				}
				r.Name = name
			}
			if in.ColorHex != nil && *in.ColorHex != "" {
				r.ColorHex = *in.ColorHex
			}
			if in.Permissions != nil {
				next := *in.Permissions
				if err := validCapabilities(next); err != nil {
					return err
				}
				if r.IsOwner {
					return apperr.Forbidden("the owner role permissions cannot be changed")
				}
				had, has := r.Has(models.CapAdministrator), hasAdministrator(next)
				if had != has && !admin {
					return apperr.Forbidden("only administrators can grant or revoke %s", models.CapAdministrator)
				}
				if had && !has {
					if err := s.keepOneAdminRole(ctx, communityID); err != nil {
						return err
					}
				}
				r.Permissions = models.CapabilityList(next)
			}

			updated, err = s.store.Roles.Update(ctx, r)
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperr.Conflict("role %q already exists", r.Name)
			}
			return missing(err, repositories.ErrRoleNotFound, "role", roleID)
		})
	})
	return updated, err
}

// Delete removes a role and its assignments. The Owner role and the last
// administrator role cannot be deleted.
func (s *RoleService) Delete(ctx context.Context, communityID, roleID, actorID int) error {
	return s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.role(ctx, communityID, roleID)
		if err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, actorID, models.CapManageRoles, func(ctx context.Context) error {
			if r.IsOwner {
				return apperr.Forbidden("the owner role cannot be deleted")
			}
			if r.Has(models.CapAdministrator) {
				if err := s.perms.Require(ctx, communityID, actorID, models.CapAdministrator); err != nil {
					return err
				}
				if err := s.keepOneAdminRole(ctx, communityID); err != nil {
					return err
				}
			}
			return missing(s.store.Roles.Delete(ctx, roleID), repositories.ErrRoleNotFound, "role", roleID)
		})
	})
}

func (s *RoleService) keepOneAdminRole(ctx context.Context, communityID int) error {
	n, err := s.store.Roles.CountAdminRoles(ctx, communityID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apperr.Forbidden("the last administrator role cannot be removed")
	}
	return nil
}

// Assign gives a member a role. Assigning a held role is a no-op.
func (s *RoleService) Assign(ctx context.Context, communityID, roleID, targetID, actorID int) error {
	return s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.role(ctx, communityID, roleID)
		if err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, actorID, models.CapManageRoles, func(ctx context.Context) error {
			if r.IsAdmin() {
				if err := s.perms.Require(ctx, communityID, actorID, models.CapAdministrator); err != nil {
					return err
				}
			}
			member, err := s.store.Communities.IsMember(ctx, communityID, targetID)
			if err != nil {
				return err
			}
			if !member {
				return apperr.NotFound("member", targetID)
			}
			_, err = s.store.Roles.Assign(ctx, communityID, roleID, targetID)
			return err
		})
	})
}

// Remove takes a role away from a member. The Owner role stays with its
// last holder.
func (s *RoleService) Remove(ctx context.Context, communityID, roleID, targetID, actorID int) error {
	return s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.role(ctx, communityID, roleID)
		if err != nil {
			return err
		}
		return s.perms.Guard(ctx, communityID, actorID, models.CapManageRoles, func(ctx context.Context) error {
			if r.IsAdmin() {
				if err := s.perms.Require(ctx, communityID, actorID, models.CapAdministrator); err != nil {
					return err
				}
			}
			if r.IsOwner {
				n, err := s.store.Roles.CountHolders(ctx, roleID)
				if err != nil {
					return err
				}
				if n <= 1 {
					return apperr.Forbidden("the owner role cannot be removed from its last holder")
				}
			}
			removed, err := s.store.Roles.Unassign(ctx, roleID, targetID)
			if err != nil {
				return err
			}
			if !removed {
				return apperr.NotFound("role assignment", roleID)
			}
			return nil
		})
	})
}

package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrRoleNotFound = errors.New("role not found")

// RoleRepository persists roles and their assignments to members.
type RoleRepository interface {
	Create(ctx context.Context, role models.Role) (models.Role, error)
	Get(ctx context.Context, communityID, roleID int) (models.Role, error)
	ListByCommunity(ctx context.Context, communityID int) ([]models.Role, error)
	ListUserRoles(ctx context.Context, communityID, userID int) ([]models.Role, error)
	Update(ctx context.Context, role models.Role) (models.Role, error)
	Delete(ctx context.Context, roleID int) error
	CountAdminRoles(ctx context.Context, communityID int) (int, error)
	Assign(ctx context.Context, communityID, roleID, userID int) (bool, error)
	Unassign(ctx context.Context, roleID, userID int) (bool, error)
	CountHolders(ctx context.Context, roleID int) (int, error)
	HoldsOwner(ctx context.Context, communityID, userID int) (bool, error)
}

// RoleRepo is a sqlx implementation of RoleRepository.
type RoleRepo struct {
	db *sqlx.DB
}

// NewRoleRepo constructs a RoleRepo.
func NewRoleRepo(db *sqlx.DB) *RoleRepo {
	return &RoleRepo{db: db}
}

const roleColumns = `id, community_id, name, color_hex, permissions, is_owner, created_at`

// Create inserts a role. A name taken in the community yields ErrDuplicate.
func (r *RoleRepo) Create(ctx context.Context, role models.Role) (models.Role, error) {
	if role.Permissions == nil {
		role.Permissions = models.CapabilityList(nil)
	}
	var out models.Role
	err := conn(ctx, r.db).GetContext(ctx, &out, `INSERT INTO roles (community_id, name, color_hex, permissions, is_owner)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+roleColumns,
		role.CommunityID, role.Name, role.ColorHex, role.Permissions, role.IsOwner)
	if isUniqueViolation(err) {
		return models.Role{}, ErrDuplicate
	}
	return out, err
}

// Get fetches a role scoped to its community.
func (r *RoleRepo) Get(ctx context.Context, communityID, roleID int) (models.Role, error) {
	var role models.Role
	err := conn(ctx, r.db).GetContext(ctx, &role, `SELECT `+roleColumns+` FROM roles WHERE id=$1 AND community_id=$2`, roleID, communityID)
	if err != nil {
		return models.Role{}, notFound(err, ErrRoleNotFound)
	}
	return role, nil
}

// ListByCommunity returns all roles, owner role first.
func (r *RoleRepo) ListByCommunity(ctx context.Context, communityID int) ([]models.Role, error) {
	roles := []models.Role{}
	err := conn(ctx, r.db).SelectContext(ctx, &roles, `SELECT `+roleColumns+` FROM roles
        WHERE community_id=$1 ORDER BY is_owner DESC, id`, communityID)
	return roles, err
}

// ListUserRoles returns the roles assigned to a user in a community.
func (r *RoleRepo) ListUserRoles(ctx context.Context, communityID, userID int) ([]models.Role, error) {
	roles := []models.Role{}
	err := conn(ctx, r.db).SelectContext(ctx, &roles, `SELECT r.id, r.community_id, r.name, r.color_hex, r.permissions, r.is_owner, r.created_at
        FROM roles r
        JOIN role_assignments a ON a.role_id = r.id
        WHERE a.community_id=$1 AND a.user_id=$2
        ORDER BY r.id`, communityID, userID)
	return roles, err
}

// Update overwrites name, color and permissions.
func (r *RoleRepo) Update(ctx context.Context, role models.Role) (models.Role, error) {
	var out models.Role
	err := conn(ctx, r.db).GetContext(ctx, &out, `UPDATE roles SET name=$2, color_hex=$3, permissions=$4
        WHERE id=$1 RETURNING `+roleColumns, role.ID, role.Name, role.ColorHex, role.Permissions)
	if isUniqueViolation(err) {
		return models.Role{}, ErrDuplicate
	}
	if err != nil {
		return models.Role{}, notFound(err, ErrRoleNotFound)
	}
	return out, nil
}

// Delete removes a role; its assignments cascade.
func (r *RoleRepo) Delete(ctx context.Context, roleID int) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM roles WHERE id=$1`, roleID)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoleNotFound
	}
	return nil
}

// CountAdminRoles counts roles carrying the administrator flag.
func (r *RoleRepo) CountAdminRoles(ctx context.Context, communityID int) (int, error) {
	var n int
	err := conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM roles
        WHERE community_id=$1 AND (is_owner OR $2 = ANY(permissions))`, communityID, string(models.CapAdministrator))
	return n, err
}

// Assign gives a role to a user; it reports false if already assigned.
func (r *RoleRepo) Assign(ctx context.Context, communityID, roleID, userID int) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO role_assignments (role_id, user_id, community_id) VALUES ($1, $2, $3)
        ON CONFLICT (role_id, user_id) DO NOTHING`, roleID, userID, communityID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// Unassign takes a role away; it reports false if it was not assigned.
func (r *RoleRepo) Unassign(ctx context.Context, roleID, userID int) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM role_assignments WHERE role_id=$1 AND user_id=$2`, roleID, userID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// CountHolders counts users assigned to a role.
func (r *RoleRepo) CountHolders(ctx context.Context, roleID int) (int, error) {
	var n int
	err := conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM role_assignments WHERE role_id=$1`, roleID)
	return n, err
}

// HoldsOwner reports whether the user holds the community's owner role.
func (r *RoleRepo) HoldsOwner(ctx context.Context, communityID, userID int) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(
            SELECT 1 FROM role_assignments a JOIN roles r ON r.id = a.role_id
            WHERE a.community_id=$1 AND a.user_id=$2 AND r.is_owner)`, communityID, userID)
	return exists, err
}

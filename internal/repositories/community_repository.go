package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrCommunityNotFound = errors.New("community not found")

// CommunityRepository persists communities and their memberships.
type CommunityRepository interface {
	Create(ctx context.Context, c models.Community) (models.Community, error)
	Get(ctx context.Context, communityID int) (models.Community, error)
	ListForUser(ctx context.Context, userID int) ([]models.Community, error)
	Update(ctx context.Context, c models.Community) (models.Community, error)
	Delete(ctx context.Context, communityID int) error
	AddMember(ctx context.Context, communityID, userID int) (bool, error)
	RemoveMember(ctx context.Context, communityID, userID int) (bool, error)
	IsMember(ctx context.Context, communityID, userID int) (bool, error)
	ListMembers(ctx context.Context, communityID int) ([]models.Member, error)
	CountMembers(ctx context.Context, communityID int) (int, error)
}

// CommunityRepo is a sqlx implementation of CommunityRepository.
type CommunityRepo struct {
	db *sqlx.DB
}

// NewCommunityRepo constructs a CommunityRepo.
func NewCommunityRepo(db *sqlx.DB) *CommunityRepo {
	return &CommunityRepo{db: db}
}

const communityColumns = `id, name, description, icon_url, owner_id, created_at`

// Create inserts a community. A taken name yields ErrDuplicate.
func (r *CommunityRepo) Create(ctx context.Context, c models.Community) (models.Community, error) {
	var out models.Community
	err := conn(ctx, r.db).GetContext(ctx, &out, `INSERT INTO communities (name, description, icon_url, owner_id)
        VALUES ($1, $2, $3, $4) RETURNING `+communityColumns, c.Name, c.Description, c.IconURL, c.OwnerID)
	if isUniqueViolation(err) {
		return models.Community{}, ErrDuplicate
	}
	return out, err
}

// Get fetches a community by id.
func (r *CommunityRepo) Get(ctx context.Context, communityID int) (models.Community, error) {
	var c models.Community
	err := conn(ctx, r.db).GetContext(ctx, &c, `SELECT `+communityColumns+` FROM communities WHERE id=$1`, communityID)
	if err != nil {
		return models.Community{}, notFound(err, ErrCommunityNotFound)
	}
	return c, nil
}

// ListForUser returns the communities the user belongs to.
func (r *CommunityRepo) ListForUser(ctx context.Context, userID int) ([]models.Community, error) {
	list := []models.Community{}
	err := conn(ctx, r.db).SelectContext(ctx, &list, `SELECT c.id, c.name, c.description, c.icon_url, c.owner_id, c.created_at
        FROM communities c
        JOIN community_members m ON m.community_id = c.id
        WHERE m.user_id=$1
        ORDER BY c.name`, userID)
	return list, err
}

// Update overwrites the mutable fields of a community.
func (r *CommunityRepo) Update(ctx context.Context, c models.Community) (models.Community, error) {
	var out models.Community
	err := conn(ctx, r.db).GetContext(ctx, &out, `UPDATE communities SET name=$2, description=$3, icon_url=$4
        WHERE id=$1 RETURNING `+communityColumns, c.ID, c.Name, c.Description, c.IconURL)
	if isUniqueViolation(err) {
		return models.Community{}, ErrDuplicate
	}
	if err != nil {
		return models.Community{}, notFound(err, ErrCommunityNotFound)
	}
	return out, nil
}

// Delete removes a community; channels, roles and invites cascade.
func (r *CommunityRepo) Delete(ctx context.Context, communityID int) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM communities WHERE id=$1`, communityID)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCommunityNotFound
	}
	return nil
}

// AddMember joins a user; it reports false if they were already a member.
func (r *CommunityRepo) AddMember(ctx context.Context, communityID, userID int) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `INSERT INTO community_members (community_id, user_id) VALUES ($1, $2)
        ON CONFLICT (community_id, user_id) DO NOTHING`, communityID, userID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// RemoveMember drops the membership and every role assignment in the community.
func (r *CommunityRepo) RemoveMember(ctx context.Context, communityID, userID int) (bool, error) {
	q := conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM role_assignments WHERE community_id=$1 AND user_id=$2`, communityID, userID); err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM community_members WHERE community_id=$1 AND user_id=$2`, communityID, userID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// IsMember checks whether a user belongs to the community.
func (r *CommunityRepo) IsMember(ctx context.Context, communityID, userID int) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM community_members WHERE community_id=$1 AND user_id=$2)`, communityID, userID)
	return exists, err
}

// ListMembers returns members in join order.
func (r *CommunityRepo) ListMembers(ctx context.Context, communityID int) ([]models.Member, error) {
	members := []models.Member{}
	err := conn(ctx, r.db).SelectContext(ctx, &members, `SELECT m.community_id, m.user_id, u.username, u.avatar_url, m.joined_at
        FROM community_members m
        JOIN users u ON u.id = m.user_id
        WHERE m.community_id=$1
        ORDER BY m.joined_at, m.user_id`, communityID)
	return members, err
}

// CountMembers returns the number of members.
func (r *CommunityRepo) CountMembers(ctx context.Context, communityID int) (int, error) {
	var n int
	err := conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM community_members WHERE community_id=$1`, communityID)
	return n, err
}

package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrInviteNotFound = errors.New("invite not found")

// InviteRepository persists community invites.
type InviteRepository interface {
	Create(ctx context.Context, inv models.Invite) (models.Invite, error)
	GetByCode(ctx context.Context, code string) (models.Invite, error)
}

// InviteRepo is a sqlx implementation of InviteRepository.
type InviteRepo struct {
	db *sqlx.DB
}

// NewInviteRepo constructs an InviteRepo.
func NewInviteRepo(db *sqlx.DB) *InviteRepo {
	return &InviteRepo{db: db}
}

// Create inserts an invite. A code collision yields ErrDuplicate.
func (r *InviteRepo) Create(ctx context.Context, inv models.Invite) (models.Invite, error) {
	var out models.Invite
	err := conn(ctx, r.db).GetContext(ctx, &out, `INSERT INTO invites (code, community_id, created_by, expires_at)
        VALUES ($1, $2, $3, $4) RETURNING id, code, community_id, created_by, created_at, expires_at`,
		inv.Code, inv.CommunityID, inv.CreatedBy, inv.ExpiresAt)
	if isUniqueViolation(err) {
		return models.Invite{}, ErrDuplicate
	}
	return out, err
}

// GetByCode fetches an invite by its code.
func (r *InviteRepo) GetByCode(ctx context.Context, code string) (models.Invite, error) {
	var inv models.Invite
	err := conn(ctx, r.db).GetContext(ctx, &inv, `SELECT id, code, community_id, created_by, created_at, expires_at
        FROM invites WHERE code=$1`, code)
	if err != nil {
		return models.Invite{}, notFound(err, ErrInviteNotFound)
	}
	return inv, nil
}

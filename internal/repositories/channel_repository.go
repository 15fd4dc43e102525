package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrChannelNotFound = errors.New("channel not found")

// ChannelRepository persists community channels.
type ChannelRepository interface {
	Create(ctx context.Context, communityID int, name, iconURL string) (models.Channel, error)
	Get(ctx context.Context, channelID int) (models.Channel, error)
	ListByCommunity(ctx context.Context, communityID int) ([]models.Channel, error)
	Rename(ctx context.Context, channelID int, name string) (models.Channel, error)
	Delete(ctx context.Context, channelID int) error
}

// ChannelRepo is a sqlx implementation of ChannelRepository.
type ChannelRepo struct {
	db *sqlx.DB
}

// NewChannelRepo constructs a ChannelRepo.
func NewChannelRepo(db *sqlx.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

const channelColumns = `id, community_id, name, icon_url, position, created_at`

// Create appends a channel after the existing ones.
func (r *ChannelRepo) Create(ctx context.Context, communityID int, name, iconURL string) (models.Channel, error) {
	var ch models.Channel
	err := conn(ctx, r.db).GetContext(ctx, &ch, `INSERT INTO channels (community_id, name, icon_url, position)
        VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position) + 1, 0) FROM channels WHERE community_id=$1))
        RETURNING `+channelColumns, communityID, name, iconURL)
	return ch, err
}

// Get fetches a channel by id.
func (r *ChannelRepo) Get(ctx context.Context, channelID int) (models.Channel, error) {
	var ch models.Channel
	err := conn(ctx, r.db).GetContext(ctx, &ch, `SELECT `+channelColumns+` FROM channels WHERE id=$1`, channelID)
	if err != nil {
		return models.Channel{}, notFound(err, ErrChannelNotFound)
	}
	return ch, nil
}

// ListByCommunity returns channels in display order.
func (r *ChannelRepo) ListByCommunity(ctx context.Context, communityID int) ([]models.Channel, error) {
	list := []models.Channel{}
	err := conn(ctx, r.db).SelectContext(ctx, &list, `SELECT `+channelColumns+` FROM channels
        WHERE community_id=$1 ORDER BY position, id`, communityID)
	return list, err
}

// Rename changes a channel name.
func (r *ChannelRepo) Rename(ctx context.Context, channelID int, name string) (models.Channel, error) {
	var ch models.Channel
	err := conn(ctx, r.db).GetContext(ctx, &ch, `UPDATE channels SET name=$2 WHERE id=$1 RETURNING `+channelColumns, channelID, name)
	if err != nil {
		return models.Channel{}, notFound(err, ErrChannelNotFound)
	}
	return ch, nil
}

// Delete removes a channel and, by cascade, its messages.
func (r *ChannelRepo) Delete(ctx context.Context, channelID int) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM channels WHERE id=$1`, channelID)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChannelNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"guild-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageQuery selects one page of messages, newest first. When Before is
// set it acts as a cursor and Offset is ignored.
type MessageQuery struct {
	Limit  int
	Offset int
	Before *time.Time
}

// MessageRepository persists messages and their attachments.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	AddAttachments(ctx context.Context, messageID int, attachments []models.Attachment) ([]models.Attachment, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error)
	Delete(ctx context.Context, messageID int) error
	ListAttachments(ctx context.Context, messageIDs []int) ([]models.Attachment, error)
	ListByChannel(ctx context.Context, channelID int, q MessageQuery) ([]models.Message, error)
	ListByDirectChat(ctx context.Context, chatID int, q MessageQuery) ([]models.Message, error)
	LatestInDirectChat(ctx context.Context, chatID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, sender_id, channel_id, direct_chat_id, parent_id, content, message_type, edited, created_at, updated_at`

// Create stores a message in a channel or direct chat.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.MessageType == "" {
		msg.MessageType = models.MessageTypeText
	}
	var out models.Message
	err := conn(ctx, r.db).GetContext(ctx, &out, `INSERT INTO messages (sender_id, channel_id, direct_chat_id, parent_id, content, message_type)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		msg.SenderID, msg.ChannelID, msg.DirectChatID, msg.ParentID, msg.Content, msg.MessageType)
	return out, err
}

// AddAttachments stores attachment metadata for a message.
func (r *MessageRepo) AddAttachments(ctx context.Context, messageID int, attachments []models.Attachment) ([]models.Attachment, error) {
	q := conn(ctx, r.db)
	out := make([]models.Attachment, 0, len(attachments))
	for _, a := range attachments {
		var stored models.Attachment
		if err := q.GetContext(ctx, &stored, `INSERT INTO attachments (message_id, file_name, file_url, mime_type, file_size, attachment_type)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, message_id, file_name, file_url, mime_type, file_size, attachment_type, uploaded_at`,
			messageID, a.FileName, a.FileURL, a.MimeType, a.FileSize, a.AttachmentType); err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := conn(ctx, r.db).GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return models.Message{}, notFound(err, ErrMessageNotFound)
	}
	return msg, nil
}

// UpdateContent replaces content and marks the message edited.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := conn(ctx, r.db).GetContext(ctx, &msg, `UPDATE messages SET content=$2, edited=TRUE, updated_at=NOW()
        WHERE id=$1 RETURNING `+messageColumns, messageID, content)
	if err != nil {
		return models.Message{}, notFound(err, ErrMessageNotFound)
	}
	return msg, nil
}

// Delete removes a message. Attachments and reactions cascade.
func (r *MessageRepo) Delete(ctx context.Context, messageID int) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMessageNotFound
	}
	return nil
}

// ListAttachments returns the attachments of the given messages.
func (r *MessageRepo) ListAttachments(ctx context.Context, messageIDs []int) ([]models.Attachment, error) {
	list := []models.Attachment{}
	if len(messageIDs) == 0 {
		return list, nil
	}
	err := conn(ctx, r.db).SelectContext(ctx, &list, `SELECT id, message_id, file_name, file_url, mime_type, file_size, attachment_type, uploaded_at
        FROM attachments WHERE message_id = ANY($1) ORDER BY id`, pq.Array(messageIDs))
	return list, err
}

// ListByChannel returns a page of channel messages.
func (r *MessageRepo) ListByChannel(ctx context.Context, channelID int, q MessageQuery) ([]models.Message, error) {
	return r.page(ctx, "channel_id", channelID, q)
}

// ListByDirectChat returns a page of direct chat messages.
func (r *MessageRepo) ListByDirectChat(ctx context.Context, chatID int, q MessageQuery) ([]models.Message, error) {
	return r.page(ctx, "direct_chat_id", chatID, q)
}

// LatestInDirectChat returns the newest message of a chat.
func (r *MessageRepo) LatestInDirectChat(ctx context.Context, chatID int) (models.Message, error) {
	var msg models.Message
	err := conn(ctx, r.db).GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages
        WHERE direct_chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`, chatID)
	if err != nil {
		return models.Message{}, notFound(err, ErrMessageNotFound)
	}
	return msg, nil
}

// page is shared by both targets; column is never user input.
func (r *MessageRepo) page(ctx context.Context, column string, id int, q MessageQuery) ([]models.Message, error) {
	msgs := []models.Message{}
	var err error
	if q.Before != nil {
		err = conn(ctx, r.db).SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
            WHERE `+column+`=$1 AND created_at < $2
            ORDER BY created_at DESC, id DESC LIMIT $3`, id, *q.Before, q.Limit)
	} else {
		err = conn(ctx, r.db).SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
            WHERE `+column+`=$1
            ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, id, q.Limit, q.Offset)
	}
	return msgs, err
}

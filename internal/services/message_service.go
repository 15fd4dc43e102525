package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/permissions"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/storage"
	"guild-chat-service/internal/topics"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	defaultMimeType = "application/octet-stream"
)

// AttachmentInput references a file that is already hosted.
type AttachmentInput struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Upload is raw file content to store before the message is written.
type Upload struct {
	FileName string
	MimeType string
	Body     io.Reader
}

// SendInput describes a new message. Exactly one target must be set.
type SendInput struct {
	ChannelID    *int              `json:"channel_id"`
	DirectChatID *int              `json:"direct_chat_id"`
	ParentID     *int              `json:"parent_id"`
	Content      string            `json:"content"`
	Attachments  []AttachmentInput `json:"attachments"`
	Uploads      []Upload          `json:"-"`
}

// TypingInput describes a typing indicator. Exactly one target must be set.
type TypingInput struct {
	ChannelID    *int `json:"channel_id"`
	DirectChatID *int `json:"direct_chat_id"`
	Typing       bool `json:"typing"`
}

// SignalInput is one WebRTC negotiation step for a channel call.
type SignalInput struct {
	ChannelID int             `json:"channel_id"`
	Kind      string          `json:"kind"`
	To        *int            `json:"to,omitempty"`
	Data      json.RawMessage `json:"data"`
}

var signalKinds = map[string]bool{
	"join":      true,
	"leave":     true,
	"offer":     true,
	"answer":    true,
	"candidate": true,
}

// PageQuery selects a page of history. Before switches to cursor mode.
type PageQuery struct {
	Page   int
	Size   int
	Before *time.Time
}

func (q PageQuery) normalize() PageQuery {
	if q.Size <= 0 {
		q.Size = defaultPageSize
	}
	if q.Size > maxPageSize {
		q.Size = maxPageSize
	}
	if q.Page < 0 {
		q.Page = 0
	}
	return q
}

// MessageService owns the message lifecycle.
type MessageService struct {
	store Store
	perms *permissions.Evaluator
	blobs storage.BlobStore
	bus   Broadcaster
	views viewBuilder
}

func NewMessageService(store Store, perms *permissions.Evaluator, blobs storage.BlobStore, bus Broadcaster) *MessageService {
	return &MessageService{store: store, perms: perms, blobs: blobs, bus: bus, views: viewBuilder{store: store}}
}

func targetOf(channelID, chatID *int) (topics.Target, error) {
	switch {
	case channelID != nil && chatID == nil:
		return topics.ForChannel(*channelID), nil
	case chatID != nil && channelID == nil:
		return topics.ForDM(*chatID), nil
	default:
		return topics.Target{}, apperr.Invalid("exactly one of channel_id or direct_chat_id is required")
	}
}

func messageTarget(msg models.Message) topics.Target {
	if msg.ChannelID != nil {
		return topics.ForChannel(*msg.ChannelID)
	}
	return topics.ForDM(*msg.DirectChatID)
}

// CanViewChannel checks that the channel exists and the user is a member of
// its community.
func (s *MessageService) CanViewChannel(ctx context.Context, userID, channelID int) error {
	ch, err := s.store.Channels.Get(ctx, channelID)
	if err != nil {
		return missing(err, repositories.ErrChannelNotFound, "channel", channelID)
	}
	member, err := s.store.Communities.IsMember(ctx, ch.CommunityID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Forbidden("not a member of this community")
	}
	return nil
}

// CanViewDirectChat checks that the chat exists and the user participates.
func (s *MessageService) CanViewDirectChat(ctx context.Context, userID, chatID int) error {
	if _, err := s.store.DirectChats.Get(ctx, chatID); err != nil {
		return missing(err, repositories.ErrDirectChatNotFound, "direct chat", chatID)
	}
	ok, err := s.store.DirectChats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a participant of this chat")
	}
	return nil
}

// CanView applies the entitlement check of a channel or chat target.
func (s *MessageService) CanView(ctx context.Context, userID int, target topics.Target) error {
	if target.Kind == topics.KindChannel {
		return s.CanViewChannel(ctx, userID, target.ID)
	}
	return s.CanViewDirectChat(ctx, userID, target.ID)
}

// Send validates, stores and broadcasts a new message.
func (s *MessageService) Send(ctx context.Context, senderID int, in SendInput) (models.MessageView, error) {
	target, err := targetOf(in.ChannelID, in.DirectChatID)
	if err != nil {
		return models.MessageView{}, err
	}
	if strings.TrimSpace(in.Content) == "" && len(in.Attachments) == 0 && len(in.Uploads) == 0 {
		return models.MessageView{}, apperr.Invalid("message must have content or attachments")
	}

	attachments, stored, err := s.prepareAttachments(ctx, in)
	if err != nil {
		s.discardBlobs(ctx, stored)
		return models.MessageView{}, err
	}

	msg := models.Message{
		SenderID:     senderID,
		ChannelID:    in.ChannelID,
		DirectChatID: in.DirectChatID,
		ParentID:     in.ParentID,
		Content:      in.Content,
		MessageType:  models.MessageTypeText,
	}
	if strings.TrimSpace(in.Content) == "" && len(attachments) > 0 {
		msg.MessageType = attachments[0].AttachmentType
	}

	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.CanView(ctx, senderID, target); err != nil {
			return err
		}
		if in.ParentID != nil {
			parent, err := s.store.Messages.Get(ctx, *in.ParentID)
			if err != nil {
				return missing(err, repositories.ErrMessageNotFound, "parent message", *in.ParentID)
			}
			if !parent.SameTarget(msg) {
				return apperr.Invalid("parent message belongs to another conversation")
			}
		}
		created, err := s.store.Messages.Create(ctx, msg)
		if err != nil {
			return err
		}
		msg = created
		if len(attachments) > 0 {
			if _, err := s.store.Messages.AddAttachments(ctx, msg.ID, attachments); err != nil {
				return err
			}
		}
		if msg.DirectChatID != nil {
			return s.store.DirectChats.Touch(ctx, *msg.DirectChatID)
		}
		return nil
	})
	if err != nil {
		s.discardBlobs(ctx, stored)
		return models.MessageView{}, err
	}

	view, err := s.views.one(ctx, msg)
	if err != nil {
		return models.MessageView{}, err
	}
	s.bus.Publish(target.Messages(), models.Event{Type: models.EventMessageCreated, Topic: target.Messages(), Payload: view})
	return view, nil
}

func (s *MessageService) prepareAttachments(ctx context.Context, in SendInput) ([]models.Attachment, []string, error) {
	var (
		out    []models.Attachment
		stored []string
	)
	for _, up := range in.Uploads {
		if s.blobs == nil {
			return nil, stored, apperr.Invalid("file uploads are not enabled")
		}
		blob, err := s.blobs.Save(ctx, up.FileName, up.Body)
		if err != nil {
			return nil, stored, err
		}
		stored = append(stored, blob.URL)
		mime := orDefault(up.MimeType)
		out = append(out, models.Attachment{
			FileName:       path.Base(up.FileName),
			FileURL:        blob.URL,
			MimeType:       mime,
			FileSize:       blob.Size,
			AttachmentType: AttachmentType(mime),
		})
	}
	for _, a := range in.Attachments {
		if strings.TrimSpace(a.URL) == "" {
			return nil, stored, apperr.Invalid("attachment url is required")
		}
		mime := orDefault(a.MimeType)
		out = append(out, models.Attachment{
			FileName:       FileNameFromURL(a.URL),
			FileURL:        a.URL,
			MimeType:       mime,
			FileSize:       a.Size,
			AttachmentType: AttachmentType(mime),
		})
	}
	return out, stored, nil
}

func (s *MessageService) discardBlobs(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := s.blobs.Delete(ctx, u); err != nil {
			jww.WARN.Printf("blob cleanup failed url=%s: %v", u, err)
		}
	}
}

// AttachmentType derives the attachment kind from a mime type.
func AttachmentType(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.MessageTypeImage
	case strings.HasPrefix(mime, "video/"):
		return models.MessageTypeVideo
	default:
		return models.MessageTypeFile
	}
}

// FileNameFromURL returns the last path segment of a file URL.
func FileNameFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return "file"
	}
	return name
}

func orDefault(mime string) string {
	if strings.TrimSpace(mime) == "" {
		return defaultMimeType
	}
	return mime
}

// canModerate allows the sender, a MANAGE_MESSAGES holder for channel
// messages, or the creator of a group chat.
func (s *MessageService) canModerate(ctx context.Context, actorID int, msg models.Message) error {
	if msg.SenderID == actorID {
		return nil
	}
	if msg.ChannelID != nil {
		ch, err := s.store.Channels.Get(ctx, *msg.ChannelID)
		if err != nil {
			return missing(err, repositories.ErrChannelNotFound, "channel", *msg.ChannelID)
		}
		return s.perms.Require(ctx, ch.CommunityID, actorID, models.CapManageMessages)
	}
	chat, err := s.store.DirectChats.Get(ctx, *msg.DirectChatID)
	if err != nil {
		return missing(err, repositories.ErrDirectChatNotFound, "direct chat", *msg.DirectChatID)
	}
	if chat.IsGroup() && chat.CreatorID == actorID {
		return nil
	}
	return apperr.Forbidden("only the sender can modify this message")
}

// Edit replaces the content of a message and broadcasts the new view.
func (s *MessageService) Edit(ctx context.Context, editorID, messageID int, content string) (models.MessageView, error) {
	var msg models.Message
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.store.Messages.Get(ctx, messageID)
		if err != nil {
			return missing(err, repositories.ErrMessageNotFound, "message", messageID)
		}
		if err := s.canModerate(ctx, editorID, current); err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			atts, err := s.store.Messages.ListAttachments(ctx, []int{messageID})
			if err != nil {
				return err
			}
			if len(atts) == 0 {
				return apperr.Invalid("message must have content or attachments")
			}
		}
		msg, err = s.store.Messages.UpdateContent(ctx, messageID, content)
		return err
	})
	if err != nil {
		return models.MessageView{}, err
	}

	view, err := s.views.one(ctx, msg)
	if err != nil {
		return models.MessageView{}, err
	}
	target := messageTarget(msg)
	s.bus.Publish(target.MessagesUpdated(), models.Event{Type: models.EventMessageUpdated, Topic: target.MessagesUpdated(), Payload: view})
	return view, nil
}

// Delete removes a message with its attachments and reactions.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID int) error {
	var (
		msg  models.Message
		atts []models.Attachment
	)
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		msg, err = s.store.Messages.Get(ctx, messageID)
		if err != nil {
			return missing(err, repositories.ErrMessageNotFound, "message", messageID)
		}
		if err := s.canModerate(ctx, actorID, msg); err != nil {
			return err
		}
		atts, err = s.store.Messages.ListAttachments(ctx, []int{messageID})
		if err != nil {
			return err
		}
		return missing(s.store.Messages.Delete(ctx, messageID), repositories.ErrMessageNotFound, "message", messageID)
	})
	if err != nil {
		return err
	}

	if s.blobs != nil {
		for _, a := range atts {
			if err := s.blobs.Delete(ctx, a.FileURL); err != nil {
				jww.WARN.Printf("attachment unlink failed message=%d url=%s: %v", messageID, a.FileURL, err)
			}
		}
	}

	target := messageTarget(msg)
	s.bus.Publish(target.MessagesDeleted(), models.Event{
		Type:  models.EventMessageDeleted,
		Topic: target.MessagesDeleted(),
		Payload: models.MessageDeleted{
			MessageID:    msg.ID,
			DeletedBy:    actorID,
			ChannelID:    msg.ChannelID,
			DirectChatID: msg.DirectChatID,
		},
	})
	return nil
}

// PageChannel returns channel history, newest first.
func (s *MessageService) PageChannel(ctx context.Context, userID, channelID int, q PageQuery) (models.MessagePage, error) {
	if err := s.CanViewChannel(ctx, userID, channelID); err != nil {
		return models.MessagePage{}, err
	}
	q = q.normalize()
	msgs, err := s.store.Messages.ListByChannel(ctx, channelID, repositories.MessageQuery{Limit: q.Size + 1, Offset: q.Page * q.Size, Before: q.Before})
	if err != nil {
		return models.MessagePage{}, err
	}
	return s.page(ctx, msgs, q)
}

// PageDirectChat returns direct chat history, newest first.
func (s *MessageService) PageDirectChat(ctx context.Context, userID, chatID int, q PageQuery) (models.MessagePage, error) {
	if err := s.CanViewDirectChat(ctx, userID, chatID); err != nil {
		return models.MessagePage{}, err
	}
	q = q.normalize()
	msgs, err := s.store.Messages.ListByDirectChat(ctx, chatID, repositories.MessageQuery{Limit: q.Size + 1, Offset: q.Page * q.Size, Before: q.Before})
	if err != nil {
		return models.MessagePage{}, err
	}
	return s.page(ctx, msgs, q)
}

func (s *MessageService) page(ctx context.Context, msgs []models.Message, q PageQuery) (models.MessagePage, error) {
	hasMore := len(msgs) > q.Size
	if hasMore {
		msgs = msgs[:q.Size]
	}
	views, err := s.views.many(ctx, msgs)
	if err != nil {
		return models.MessagePage{}, err
	}
	return models.MessagePage{Messages: views, Page: q.Page, Size: q.Size, HasMore: hasMore}, nil
}

// Typing broadcasts a typing indicator to the conversation.
func (s *MessageService) Typing(ctx context.Context, userID int, in TypingInput) error {
	target, err := targetOf(in.ChannelID, in.DirectChatID)
	if err != nil {
		return err
	}
	if err := s.CanView(ctx, userID, target); err != nil {
		return err
	}
	var username string
	user, err := s.store.Users.Get(ctx, userID)
	switch {
	case err == nil:
		username = user.Username
	case !errors.Is(err, repositories.ErrUserNotFound):
		return err
	}
	s.bus.Publish(target.Typing(), models.Event{
		Type:  models.EventTyping,
		Topic: target.Typing(),
		Payload: models.TypingIndicator{
			UserID:       userID,
			Username:     username,
			Typing:       in.Typing,
			ChannelID:    in.ChannelID,
			DirectChatID: in.DirectChatID,
		},
	})
	return nil
}

// Signal relays a call negotiation frame to the channel's video topic.
// Only community members may signal.
func (s *MessageService) Signal(ctx context.Context, userID int, in SignalInput) error {
	if !signalKinds[in.Kind] {
		return apperr.Invalid("unknown signal kind %q", in.Kind)
	}
	if in.ChannelID <= 0 {
		return apperr.Invalid("channel_id is required")
	}
	if err := s.CanViewChannel(ctx, userID, in.ChannelID); err != nil {
		return err
	}
	topic := topics.ForChannel(in.ChannelID).Video()
	s.bus.Publish(topic, models.Event{
		Type:  models.EventCallSignal,
		Topic: topic,
		Payload: models.CallSignal{
			ChannelID:  in.ChannelID,
			FromUserID: userID,
			ToUserID:   in.To,
			Kind:       in.Kind,
			Data:       in.Data,
		},
	})
	return nil
}

package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/services"
	"guild-chat-service/internal/telemetry"
)

// MessageService is the message surface the handlers need.
type MessageService interface {
	Send(ctx context.Context, senderID int, in services.SendInput) (models.MessageView, error)
	Edit(ctx context.Context, editorID, messageID int, content string) (models.MessageView, error)
	Delete(ctx context.Context, actorID, messageID int) error
	PageChannel(ctx context.Context, userID, channelID int, q services.PageQuery) (models.MessagePage, error)
	PageDirectChat(ctx context.Context, userID, chatID int, q services.PageQuery) (models.MessagePage, error)
}

// ReactionService is the reaction surface the handlers need.
type ReactionService interface {
	Add(ctx context.Context, messageID, userID int, raw string) (models.MessageView, error)
	Remove(ctx context.Context, messageID, userID int, raw string) (models.MessageView, error)
	Summarize(ctx context.Context, userID, messageID int) (models.ReactionSummary, error)
}

// MessageHandler serves message history, posting, edits and reactions.
type MessageHandler struct {
	messages  MessageService
	reactions ReactionService
	audit     *telemetry.AuditEmitter
	maxUpload int64
}

// NewMessageHandler builds a MessageHandler. maxUpload caps a multipart body.
func NewMessageHandler(messages MessageService, reactions ReactionService, emitter *telemetry.AuditEmitter, maxUpload int64) *MessageHandler {
	return &MessageHandler{messages: messages, reactions: reactions, audit: emitter, maxUpload: maxUpload}
}

func pageQuery(c *gin.Context) (services.PageQuery, error) {
	var q services.PageQuery
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, apperr.Invalid("invalid page")
		}
		q.Page = n
	}
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, apperr.Invalid("invalid size")
		}
		q.Size = n
	}
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return q, apperr.Invalid("before must be an RFC3339 timestamp")
		}
		q.Before = &t
	}
	return q, nil
}

func (h *MessageHandler) ChannelHistory(c *gin.Context) {
	channelID, ok := paramID(c, "channel_id")
	if !ok {
		return
	}
	q, err := pageQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.messages.PageChannel(c.Request.Context(), currentUser(c), channelID, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *MessageHandler) DirectChatHistory(c *gin.Context) {
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	q, err := pageQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.messages.PageDirectChat(c.Request.Context(), currentUser(c), chatID, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *MessageHandler) PostToChannel(c *gin.Context) {
	channelID, ok := paramID(c, "channel_id")
	if !ok {
		return
	}
	h.post(c, func(in *services.SendInput) { in.ChannelID = &channelID; in.DirectChatID = nil })
}

func (h *MessageHandler) PostToDirectChat(c *gin.Context) {
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	h.post(c, func(in *services.SendInput) { in.DirectChatID = &chatID; in.ChannelID = nil })
}

// post accepts a JSON body or a multipart form with "files" parts.
func (h *MessageHandler) post(c *gin.Context, target func(*services.SendInput)) {
	var (
		in      services.SendInput
		closers []io.Closer
	)
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if h.maxUpload > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
		}
		form, err := c.MultipartForm()
		if err != nil {
			writeError(c, apperr.Invalid("invalid multipart body"))
			return
		}
		in.Content = first(form.Value["content"])
		if raw := first(form.Value["parent_id"]); raw != "" {
			parentID, err := strconv.Atoi(raw)
			if err != nil {
				writeError(c, apperr.Invalid("invalid parent_id"))
				return
			}
			in.ParentID = &parentID
		}
		for _, fh := range form.File["files"] {
			f, err := fh.Open()
			if err != nil {
				writeError(c, apperr.Invalid("unreadable file %q", fh.Filename))
				return
			}
			closers = append(closers, f)
			in.Uploads = append(in.Uploads, services.Upload{FileName: fh.Filename, MimeType: mimeOf(fh), Body: f})
		}
	} else if !bindJSON(c, &in) {
		return
	}
	target(&in)

	view, err := h.messages.Send(c.Request.Context(), currentUser(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func mimeOf(fh *multipart.FileHeader) string {
	return fh.Header.Get("Content-Type")
}

type editRequest struct {
	Content string `json:"content"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	var req editRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.messages.Edit(c.Request.Context(), currentUser(c), messageID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), currentUser(c), messageID); err != nil {
		writeError(c, err)
		return
	}
	audit(c, h.audit, "message.delete", fmt.Sprintf("message %d deleted", messageID))
	c.Status(http.StatusNoContent)
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	summary, err := h.reactions.Summarize(c.Request.Context(), currentUser(c), messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *MessageHandler) AddReaction(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	var req reactionRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.reactions.Add(c.Request.Context(), messageID, currentUser(c), req.Emoji)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	view, err := h.reactions.Remove(c.Request.Context(), messageID, currentUser(c), c.Query("emoji"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *MessageHandler) Emojis(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"emojis": services.SupportedEmojis()})
}

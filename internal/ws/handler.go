package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/otel/trace"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/auth"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/observability"
	"guild-chat-service/internal/services"
	"guild-chat-service/internal/topics"
)

// Inbound event types.
const (
	TypeSendMessage    = "send-message"
	TypeEditMessage    = "edit-message"
	TypeDeleteMessage  = "delete-message"
	TypeAddReaction    = "add-reaction"
	TypeRemoveReaction = "remove-reaction"
	TypeTyping         = "typing"
	TypeSubscribe      = "subscribe"
	TypeUnsubscribe    = "unsubscribe"
	TypeSignal         = "signal"
)

// TokenVerifier authenticates the handshake token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// UserToucher records the connecting user.
type UserToucher interface {
	Touch(ctx context.Context, userID int, username string) error
}

// MessageOps is the message surface reachable over the socket.
type MessageOps interface {
	Send(ctx context.Context, senderID int, in services.SendInput) (models.MessageView, error)
	Edit(ctx context.Context, editorID, messageID int, content string) (models.MessageView, error)
	Delete(ctx context.Context, actorID, messageID int) error
	Typing(ctx context.Context, userID int, in services.TypingInput) error
	Signal(ctx context.Context, userID int, in services.SignalInput) error
	CanView(ctx context.Context, userID int, target topics.Target) error
}

// ReactionOps is the reaction surface reachable over the socket.
type ReactionOps interface {
	Add(ctx context.Context, messageID, userID int, raw string) (models.MessageView, error)
	Remove(ctx context.Context, messageID, userID int, raw string) (models.MessageView, error)
}

// Inbound is a client frame.
type Inbound struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type messageRef struct {
	MessageID int    `json:"message_id"`
	Content   string `json:"content"`
	Emoji     string `json:"emoji"`
}

type topicRef struct {
	Topic string `json:"topic"`
}

// Handler upgrades authenticated requests and dispatches inbound frames.
type Handler struct {
	hub       *Hub
	verifier  TokenVerifier
	users     UserToucher
	messages  MessageOps
	reactions ReactionOps
	buffer    int
	perSecond int
	upgrader  websocket.Upgrader
}

// NewHandler constructs a Handler. buffer is the per-session send queue and
// perSecond the inbound rate limit.
func NewHandler(hub *Hub, verifier TokenVerifier, users UserToucher, messages MessageOps, reactions ReactionOps, buffer, perSecond int) *Handler {
	return &Handler{
		hub:       hub,
		verifier:  verifier,
		users:     users,
		messages:  messages,
		reactions: reactions,
		buffer:    buffer,
		perSecond: perSecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle authenticates before upgrading, then runs the session pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := observability.Tracer().Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	requestID := observability.RequestIDFromRequest(c.Request)
	ctx = observability.WithRequestID(ctx, requestID)
	c.Request = c.Request.WithContext(ctx)

	ident, err := h.verifier.Verify(ctx, auth.TokenFromRequest(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if err := h.users.Touch(ctx, ident.UserID, ident.Username); err != nil {
		jww.ERROR.Printf("ws touch user=%d: %v", ident.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      ident.UserID,
		Username:    ident.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		ConnectedAt: time.Now(),
	}
	// detach from the request so the session outlives the handshake
	sessionCtx := trace.ContextWithSpanContext(observability.WithRequestID(context.Background(), requestID), span.SpanContext())
	s := newSession(sessionCtx, h.hub, conn, info, h.buffer, h.perSecond)
	h.hub.Register(s)

	observability.IncWSActive()
	info.publishLifecycle(sessionCtx, "ws_connect", "")
	jww.INFO.Printf("ws connect conn=%s user=%d", info.ConnID, info.UserID)

	go s.writePump()
	go func() {
		reason := s.readPump(h.dispatch)
		s.Close()
		observability.DecWSActive()
		info.publishLifecycle(sessionCtx, "ws_disconnect", reason)
		jww.INFO.Printf("ws disconnect conn=%s user=%d reason=%s", info.ConnID, info.UserID, reason)
	}()
}

// dispatch handles one frame. Failures are reported on the user's error
// topic and never close the connection.
func (h *Handler) dispatch(s *Session, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.reportError(s, "", apperr.Invalid("malformed frame"))
		return
	}
	observability.IncWSEvent("in", in.Type)
	ctx := s.ctx
	if in.RequestID != "" {
		ctx = observability.WithRequestID(ctx, in.RequestID)
	}
	if err := h.route(ctx, s, in); err != nil {
		h.reportError(s, in.RequestID, err)
	}
}

func (h *Handler) route(ctx context.Context, s *Session, in Inbound) error {
	uid := s.UserID()
	switch in.Type {
	case TypeSendMessage:
		var p services.SendInput
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		_, err := h.messages.Send(ctx, uid, p)
		return err
	case TypeEditMessage:
		var p messageRef
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		_, err := h.messages.Edit(ctx, uid, p.MessageID, p.Content)
		return err
	case TypeDeleteMessage:
		var p messageRef
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.messages.Delete(ctx, uid, p.MessageID)
	case TypeAddReaction, TypeRemoveReaction:
		var p messageRef
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		var err error
		if in.Type == TypeAddReaction {
			_, err = h.reactions.Add(ctx, p.MessageID, uid, p.Emoji)
		} else {
			_, err = h.reactions.Remove(ctx, p.MessageID, uid, p.Emoji)
		}
		return err
	case TypeTyping:
		var p services.TypingInput
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.messages.Typing(ctx, uid, p)
	case TypeSignal:
		var p services.SignalInput
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.messages.Signal(ctx, uid, p)
	case TypeSubscribe:
		var p topicRef
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		target, err := topics.Parse(p.Topic)
		if err != nil {
			return apperr.Invalid("%v", err)
		}
		if err := h.messages.CanView(ctx, uid, target); err != nil {
			return err
		}
		h.hub.Subscribe(s, p.Topic)
		s.Send(models.Event{Type: models.EventSubscribed, Topic: p.Topic})
		return nil
	case TypeUnsubscribe:
		var p topicRef
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		h.hub.Unsubscribe(s, p.Topic)
		s.Send(models.Event{Type: models.EventUnsubscribed, Topic: p.Topic})
		return nil
	default:
		return apperr.Invalid("unknown event type %q", in.Type)
	}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return apperr.Invalid("payload is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Invalid("malformed payload")
	}
	return nil
}

// reportError publishes to the user's error topic, which every session of
// the user receives.
func (h *Handler) reportError(s *Session, requestID string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		jww.ERROR.Printf("ws event failed conn=%s user=%d: %v", s.info.ConnID, s.info.UserID, err)
	}
	topic := topics.UserErrors(s.UserID())
	h.hub.PublishToUser(s.UserID(), models.Event{
		Type:  models.EventError,
		Topic: topic,
		Payload: models.ErrorPayload{
			Error:   apperr.KindOf(err).String(),
			Message: apperr.PublicMessage(err),
			Request: requestID,
		},
	})
}

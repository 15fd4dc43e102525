package ws

import (
	"context"
	"time"

	"guild-chat-service/internal/observability"
)

const wsRoutingKey = "ws_events.sessions"

// ConnInfo identifies a live session for lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}

func (i ConnInfo) envelope(event, reason string) observability.EventEnvelope {
	var duration int64
	if event != "ws_connect" {
		duration = time.Since(i.ConnectedAt).Milliseconds()
	}
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     i.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   i.UserID,
				"device_id": i.DeviceID,
				"ip":        i.IP,
			},
		},
	}
}

// publishLifecycle reports a session event to the configured broker. ctx
// carries the handshake request id and span.
func (i ConnInfo) publishLifecycle(ctx context.Context, event, reason string) {
	_ = observability.PublishEvent(ctx, wsRoutingKey, i.envelope(event, reason))
	observability.IncWSEvent("out", event)
}

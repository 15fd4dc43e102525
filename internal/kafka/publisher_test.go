package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/observability"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishWritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "events"}

	ctx := observability.WithRequestID(context.Background(), "req-1")
	require.NoError(t, p.Publish(ctx, "audit.guild_chat", map[string]string{"a": "b"}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "audit.guild_chat", string(msg.Key))

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "b", body["a"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "req-1", headers["x-request-id"])
	assert.Equal(t, "audit.guild_chat", headers["routing_key"])
}

func TestPublishReturnsWriterError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("no leader")}, topic: "events"}
	require.Error(t, p.Publish(context.Background(), "k", "v"))
}

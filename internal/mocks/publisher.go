package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"guild-chat-service/internal/observability"
	"guild-chat-service/internal/telemetry"
)

// PublisherMock stands in for a broker publisher.
type PublisherMock struct {
	mock.Mock
}

var (
	_ telemetry.Publisher           = (*PublisherMock)(nil)
	_ observability.EventPublisher = (*PublisherMock)(nil)
)

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

// Published returns the events sent with routingKey, in call order.
func (m *PublisherMock) Published(routingKey string) []any {
	var out []any
	for _, call := range m.Calls {
		if call.Method == "Publish" && call.Arguments.String(1) == routingKey {
			out = append(out, call.Arguments.Get(2))
		}
	}
	return out
}

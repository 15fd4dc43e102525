// Package kafka is the alternate event sink, selected with EVENT_SINK=kafka.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/observability"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events to one topic keyed by routing key, so events of
// one kind stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

// NewPublisher builds a synchronous writer that waits for all replicas.
func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	jww.INFO.Printf("kafka publisher ready brokers=%v topic=%s", brokers, topic)
	return &Publisher{writer: w, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "routing_key", Value: []byte(routingKey)}}
	for key, value := range observability.HeadersFromContext(ctx) {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(routingKey),
		Value:   body,
		Headers: headers,
	})
	if err != nil {
		jww.ERROR.Printf("kafka publish failed topic=%s routing_key=%s: %v", p.topic, routingKey, err)
	}
	return err
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

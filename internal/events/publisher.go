// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const TypePasswordResetRequested = "password_reset_requested"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PasswordResetRequested carries everything a mailer needs to deliver a
// reset code.
type PasswordResetRequested struct {
	Type             string    `json:"type"`
	Email            string    `json:"email"`
	Code             string    `json:"code"`
	ExpiresInSeconds int       `json:"expiresInSeconds"`
	OccurredAt       time.Time `json:"occurredAt"`
}

type Publisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}

	return newPublisher(w), nil
}

func newPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w, now: time.Now}
}

// SendPasswordResetCode publishes a reset event keyed by email, so all
// events for one address land on the same partition.
func (p *Publisher) SendPasswordResetCode(ctx context.Context, email, code string, validFor time.Duration) error {
	event := PasswordResetRequested{
		Type:             TypePasswordResetRequested,
		Email:            email,
		Code:             code,
		ExpiresInSeconds: int(validFor.Seconds()),
		OccurredAt:       p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(email),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing %s event: %w", event.Type, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

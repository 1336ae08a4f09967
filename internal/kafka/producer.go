package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// BookingEvent is the fire-and-forget payload published to the notification
// collaborator. No acknowledgment is required by the core.
type BookingEvent struct {
	Type               string     `json:"type"`
	BookingID          string     `json:"booking_id"`
	Status             string     `json:"status"`
	CustomerEmail      string     `json:"customer_email"`
	Postcode           string     `json:"postcode"`
	ServiceTier        string     `json:"service_tier"`
	PricePence         int64      `json:"price_pence"`
	AssignedValeterID  string     `json:"assigned_valeter_id,omitempty"`
	NotifiedValeterIDs []string   `json:"notified_valeter_ids,omitempty"`
	AcceptanceDeadline *time.Time `json:"acceptance_deadline,omitempty"`
	ApprovalToken      string     `json:"approval_token,omitempty"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

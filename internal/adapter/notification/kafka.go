package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/notification"

	kafkago "github.com/segmentio/kafka-go"
)

var _ domain.Sink = (*KafkaSink)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink publishes status changes for the customer-messaging service.
// Messages are keyed by loan id so one loan's events stay ordered.
type KafkaSink struct {
	w messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}}
}

func (s *KafkaSink) NotifyStatusChange(ctx context.Context, ev domain.LoanStatusChanged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventID, err)
	}
	msg := kafkago.Message{
		Key:   []byte(ev.LoanID),
		Value: body,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(domain.EventLoanStatusChanged)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", ev.EventID, err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }

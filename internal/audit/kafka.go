package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher mirrors audit entries onto a kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher from config, or nil when no
// brokers are configured.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "cartao.audit"
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 5 * time.Second,
		},
	}
}

// auditEvent is the wire format of a mirrored audit entry.
type auditEvent struct {
	EventID    string `json:"event_id"`
	OccurredAt string `json:"occurred_at"`
	Entry
}

// Publish writes one entry to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, entry Entry) error {
	if p == nil || p.writer == nil {
		return nil
	}
	event := auditEvent{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Entry:      entry,
	}
	payload, errMarshal := json.Marshal(event)
	if errMarshal != nil {
		return fmt.Errorf("audit: marshal event: %w", errMarshal)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", entry.Entity, entry.EntityID)),
		Value: payload,
	})
}

// Close releases the underlying kafka writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

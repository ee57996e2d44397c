// Package audit publishes security-relevant events to a Kafka stream. The
// recorder is deliberately forgiving: the request path must never fail
// because the audit stream is down.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/logger"
)

// messageWriter is the slice of kafka.Writer the recorder needs. Tests
// substitute a capture fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder implements service.AuditService on a Kafka topic.
type KafkaRecorder struct {
	writer     messageWriter
	signingKey string
	log        logger.Logger
}

// NewKafkaRecorder builds a recorder publishing to cfg.Brokers/cfg.Topic.
// The writer runs async so enqueueing never blocks a request on broker
// round trips; delivery failures surface through the completion callback.
func NewKafkaRecorder(cfg config.AuditConfig, log logger.Logger) *KafkaRecorder {
	componentLog := log.WithComponent("audit")

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
		Async:    true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				componentLog.Error(context.Background(), "audit event delivery failed", err,
					logger.Int("batch_size", len(messages)))
			}
		},
	}

	return &KafkaRecorder{
		writer:     writer,
		signingKey: cfg.SigningKey,
		log:        componentLog,
	}
}

// LogEvent publishes one event. The event id keys the message so replays of
// one consumer's history stay ordered within a partition.
func (r *KafkaRecorder) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	if event == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.log.Error(ctx, "failed to marshal audit event", err,
			logger.String("event_type", string(event.EventType)))
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.ConsumerID),
		Value: payload,
	}
	if r.signingKey != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key:   signatureHeader,
			Value: []byte(signPayload(payload, r.signingKey)),
		})
	}

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.log.Error(ctx, "failed to enqueue audit event", err,
			logger.String("event_type", string(event.EventType)))
		return err
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (r *KafkaRecorder) Close() error {
	return r.writer.Close()
}

var _ service.AuditService = (*KafkaRecorder)(nil)

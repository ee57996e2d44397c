package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/gts/pkg/constants"
)

// AuditEvent represents a single security-relevant event on the audit
// stream.
type AuditEvent struct {
	EventID    string                   `json:"event_id"`
	EventType  constants.AuditEventType `json:"event_type"`
	ConsumerID string                   `json:"consumer_id,omitempty"`
	Operation  string                   `json:"operation,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Metadata   map[string]interface{}   `json:"metadata,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

// NewAuditEvent creates a new audit event.
func NewAuditEvent(eventType constants.AuditEventType, message string) *AuditEvent {
	return &AuditEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// WithConsumer sets the consumer the event concerns.
func (a *AuditEvent) WithConsumer(consumerID string) *AuditEvent {
	a.ConsumerID = consumerID
	return a
}

// WithOperation sets the upstream operation the event concerns.
func (a *AuditEvent) WithOperation(operation string) *AuditEvent {
	a.Operation = operation
	return a
}

// WithMetadata attaches event-specific data.
func (a *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	if a.Metadata == nil {
		a.Metadata = make(map[string]interface{})
	}
	a.Metadata[key] = value
	return a
}

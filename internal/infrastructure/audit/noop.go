package audit

import (
	"context"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/logger"
)

// NoopRecorder drops events. Used when the audit stream is disabled so the
// rest of the service never checks for a nil recorder.
type NoopRecorder struct {
	log logger.Logger
}

// NewNoopRecorder builds a recorder that logs dropped events at debug level.
func NewNoopRecorder(log logger.Logger) *NoopRecorder {
	return &NoopRecorder{log: log.WithComponent("audit")}
}

// LogEvent records nothing.
func (r *NoopRecorder) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	if event != nil {
		r.log.Debug(ctx, "audit disabled, dropping event",
			logger.String("event_type", string(event.EventType)))
	}
	return nil
}

var _ service.AuditService = (*NoopRecorder)(nil)

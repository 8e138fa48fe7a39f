package event

import (
	"context"
	"fmt"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes every published event, serialised as JSON, to the
// log. It subscribes to all event types.
type AuditLogHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(serializer *EventSerializer, zapLogger *zap.Logger) *AuditLogHandler {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &AuditLogHandler{
		serializer: serializer,
		logger:     zapLogger.Named("audit"),
	}
}

// Handle logs the event payload
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.serializer.IsRegistered(event.EventType()) {
		return fmt.Errorf("unregistered event type %q", event.EventType())
	}
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", event.EventType(), err)
	}

	logger.WithLogger(ctx, h.logger).Info("domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	)
	return nil
}

// EventTypes returns nil so the handler receives all events
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/sales-erp-service/internal/events"
)

// AuditService records authentication audit events through the structured
// logger. Credentials never appear in events, only login identifiers.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to all auth events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventUserRegistered,
		events.EventLoginSucceeded,
		events.EventLoginFailed,
		events.EventTokenRefreshed,
		events.EventUserUpdated,
		events.EventUserDeleted,
	} {
		a.dispatcher.Subscribe(eventType, a.record)
	}
}

func (a *AuditService) record(_ context.Context, event events.Event) error {
	a.logger.Info("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Subject),
		zap.String("actor", event.Actor),
		zap.Time("timestamp", event.Timestamp),
		zap.Any("payload", event.Payload),
	)
	return nil
}

package app

import (
	"context"

	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/pkg/metrics"
)

// registerEventHandlers subscribes the audit log and metrics to domain events.
func registerEventHandlers(d *domain.EventDispatcher, m *metrics.Metrics) {
	d.Register(domain.EventEquipmentStatusChanged, func(_ context.Context, ev *domain.DomainEvent) error {
		p, err := domain.DecodePayload[domain.StatusChangedPayload](ev)
		if err != nil {
			return err
		}
		m.IncStatusTransition(p.From, p.To)
		logger.Info("Equipment status changed",
			zap.String("asset_number", p.AssetNumber),
			zap.String("from", p.From),
			zap.String("to", p.To),
			zap.String("source", p.Source),
		)
		return nil
	})

	d.Register(domain.EventEquipmentDeleted, func(_ context.Context, ev *domain.DomainEvent) error {
		p, err := domain.DecodePayload[domain.EquipmentDeletedPayload](ev)
		if err != nil {
			return err
		}
		logger.Info("Equipment cascade completed",
			zap.String("asset_number", p.AssetNumber),
			zap.Int64s("maintenance_ids", p.MaintenanceIDs),
			zap.Strings("files", p.Files),
		)
		return nil
	})

	audit := func(_ context.Context, ev *domain.DomainEvent) error {
		logger.Debug("Domain event",
			zap.String("event_id", ev.EventID),
			zap.String("event_type", string(ev.EventType)),
			zap.String("aggregate_id", ev.AggregateID),
		)
		return nil
	}
	for _, et := range []domain.EventType{
		domain.EventEquipmentCreated,
		domain.EventEquipmentUpdated,
		domain.EventMaintenanceCreated,
		domain.EventMaintenanceUpdated,
		domain.EventMaintenanceDeleted,
		domain.EventAttachmentDeleted,
	} {
		d.Register(et, audit)
	}
}

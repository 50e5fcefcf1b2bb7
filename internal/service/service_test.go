package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	env         *testutil.Env
	equipment   *EquipmentService
	maintenance *MaintenanceService
	events      *domain.EventDispatcher
	published   []*domain.DomainEvent
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{env: testutil.NewEnv(t), events: domain.NewEventDispatcher()}
	record := func(_ context.Context, ev *domain.DomainEvent) error {
		f.published = append(f.published, ev)
		return nil
	}
	for _, et := range []domain.EventType{
		domain.EventEquipmentCreated, domain.EventEquipmentUpdated, domain.EventEquipmentDeleted,
		domain.EventEquipmentStatusChanged, domain.EventMaintenanceCreated, domain.EventMaintenanceUpdated,
		domain.EventMaintenanceDeleted, domain.EventAttachmentDeleted,
	} {
		f.events.Register(et, record)
	}

	opts = append([]Option{WithClock(testutil.FixedClock(testNow)), WithEvents(f.events)}, opts...)
	catalog := domain.NewCatalog(nil, nil)
	f.equipment = NewEquipmentService(f.env.Repo, f.env.Files, catalog, opts...)
	f.maintenance = NewMaintenanceService(f.env.Repo, f.env.Files, opts...)
	return f
}

func (f *fixture) eventsOf(t domain.EventType) []*domain.DomainEvent {
	var out []*domain.DomainEvent
	for _, ev := range f.published {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fixture) createEquipment(t *testing.T, asset, category string) *domain.Equipment {
	t.Helper()
	e, err := f.equipment.Create(context.Background(), domain.EquipmentInput{
		AssetNumber: asset, Name: "Instrument " + asset, Category: category,
	})
	require.NoError(t, err)
	return e
}

func ptr[T any](v T) *T { return &v }

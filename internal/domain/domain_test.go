package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCatalog_Code(t *testing.T) {
	c := NewCatalog([]Category{{Name: "Fume Hoods", Code: "FUM"}, {Name: "Microscopy", Code: "MCR"}}, []string{"Annex", "Lab A"})

	tests := []struct {
		category string
		want     string
	}{
		{"Analytical Instruments", "ANA"},
		{"centrifuges", "CEN"},
		{"  Balances & Scales ", "BAL"},
		{"Fume Hoods", "FUM"},
		{"Microscopy", "MCR"},
		{"Quantum Flux", OtherCategoryCode},
		{"", OtherCategoryCode},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Code(tt.category))
		})
	}

	names := map[string]int{}
	for _, cat := range c.Categories() {
		names[cat.Name]++
	}
	assert.Equal(t, 1, names["Microscopy"])
	assert.Equal(t, 1, names["Fume Hoods"])

	locs := c.Locations()
	assert.Contains(t, locs, "Annex")
	count := 0
	for _, l := range locs {
		if l == "Lab A" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestFormatAssetNumber(t *testing.T) {
	assert.Equal(t, "LAB-2026-MIC-007", FormatAssetNumber(2026, "MIC", 7))
	assert.Equal(t, "LAB-2026-OTH-1234", FormatAssetNumber(2026, "OTH", 1234))
}

func TestCheckStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		status   string
		next     string
		wantDays *int
		wantFlag bool
	}{
		{"due in window", StatusOperational, "2026-03-20", ptr(19), true},
		{"exactly thirty days", StatusOperational, "2026-03-31", ptr(30), true},
		{"outside window", StatusOperational, "2026-04-15", ptr(45), false},
		{"overdue", StatusOperational, "2026-02-01", ptr(-28), true},
		{"already flagged", StatusOutOfService, "2026-03-05", ptr(4), false},
		{"no next date", StatusOperational, "", nil, false},
		{"unparseable date", StatusOperational, "next spring", nil, false},
		{"rfc3339", StatusOperational, "2026-03-02T10:00:00Z", ptr(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := CheckStatus(Equipment{AssetNumber: "LAB-1", Status: tt.status, NextMaintenance: tt.next}, now, 30)
			assert.Equal(t, tt.wantFlag, sc.NeedsUpdate)
			if tt.wantDays == nil {
				assert.Nil(t, sc.DaysUntilDue)
			} else {
				require.NotNil(t, sc.DaysUntilDue)
				assert.Equal(t, *tt.wantDays, *sc.DaysUntilDue)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("CET", 3600))
	assert.Equal(t, "2026-01-02T02:04:05.006Z", Timestamp(ts))
}

func TestEquipmentInput_Build(t *testing.T) {
	e := EquipmentInput{AssetNumber: " LAB-2026-MIC-001 ", Name: "Confocal", Category: "Microscopy"}.Build("now")
	assert.Equal(t, "LAB-2026-MIC-001", e.AssetNumber)
	assert.Equal(t, StatusOperational, e.Status)
	assert.Zero(t, e.Cost)
	assert.Equal(t, "now", e.CreatedAt)

	e = EquipmentInput{Name: "Fridge", Category: "Refrigeration", Cost: ptr(1200.5), Status: StatusCalibrationDue}.Build("now")
	assert.Equal(t, 1200.5, e.Cost)
	assert.Equal(t, StatusCalibrationDue, e.Status)
}

func TestEquipmentPatch_Apply(t *testing.T) {
	e := Equipment{AssetNumber: "LAB-1", Name: "Old", Location: "Lab A", Cost: 10, CreatedAt: "c"}
	EquipmentPatch{Name: ptr("New"), Cost: ptr(0.0)}.Apply(&e, "u")

	assert.Equal(t, "New", e.Name)
	assert.Equal(t, "Lab A", e.Location)
	assert.Zero(t, e.Cost)
	assert.Equal(t, "LAB-1", e.AssetNumber)
	assert.Equal(t, "c", e.CreatedAt)
	assert.Equal(t, "u", e.UpdatedAt)
}

func TestMaintenance_Files(t *testing.T) {
	m := MaintenanceInput{EquipmentAsset: "LAB-1", Type: "Calibration", Date: "2026-01-01"}.Build(1001, "now")
	require.NotNil(t, m.Files)

	m.AddFiles(Attachment{Filename: "a.pdf"}, Attachment{Filename: "b.png"}, Attachment{Filename: "a.pdf"})
	assert.Len(t, m.Files, 2)
	assert.True(t, m.HasFile("b.png"))

	assert.True(t, m.RemoveFile("a.pdf"))
	assert.False(t, m.RemoveFile("a.pdf"))
	assert.Equal(t, []Attachment{{Filename: "b.png"}}, m.Files)
}

func TestPropagation_ApplyTo(t *testing.T) {
	base := Equipment{AssetNumber: "LAB-1", Status: StatusOperational, NextMaintenance: "2026-06-01"}

	t.Run("status and next due", func(t *testing.T) {
		e := base
		Propagation{Date: "2026-01-10", NextDue: "2027-01-10", Status: "Under Repair"}.ApplyTo(&e, "ts")
		assert.Equal(t, "2026-01-10", e.LastMaintenance)
		assert.Equal(t, "2027-01-10", e.NextMaintenance)
		assert.Equal(t, "Under Repair", e.Status)
		assert.Equal(t, "ts", e.UpdatedAt)
	})

	t.Run("blank status untouched", func(t *testing.T) {
		e := base
		Propagation{Date: "2026-01-10", Status: "   "}.ApplyTo(&e, "ts")
		assert.Equal(t, StatusOperational, e.Status)
		assert.Equal(t, "2026-06-01", e.NextMaintenance)
	})
}

func TestMaintenancePatch_Propagation(t *testing.T) {
	m := Maintenance{ID: 1001, Date: "2026-01-01", NextDue: "2026-07-01", EquipmentStatus: "Out of Service"}
	patch := MaintenancePatch{Date: ptr("2026-02-01")}
	patch.Apply(&m, "ts")

	prop := patch.Propagation(m)
	assert.Equal(t, Propagation{Date: "2026-02-01"}, prop)

	prop = MaintenancePatch{EquipmentStatus: ptr(StatusOperational)}.Propagation(m)
	assert.Equal(t, StatusOperational, prop.Status)
}

func TestEventDispatcher(t *testing.T) {
	d := NewEventDispatcher()

	var got []StatusChangedPayload
	d.Register(EventEquipmentStatusChanged, func(_ context.Context, ev *DomainEvent) error {
		p, err := DecodePayload[StatusChangedPayload](ev)
		if err != nil {
			return err
		}
		got = append(got, p)
		return nil
	})
	d.Register(EventEquipmentStatusChanged, func(context.Context, *DomainEvent) error {
		return errors.New("boom")
	})

	ev := NewEvent(EventEquipmentStatusChanged, AggregateEquipment, "LAB-1",
		StatusChangedPayload{AssetNumber: "LAB-1", From: StatusOperational, To: StatusMaintenanceRequired, Source: "derived"},
		time.Now())
	require.NotEmpty(t, ev.EventID)

	err := d.Dispatch(context.Background(), ev)
	require.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusMaintenanceRequired, got[0].To)

	assert.NoError(t, d.Dispatch(context.Background(), NewEvent(EventEquipmentCreated, AggregateEquipment, "LAB-2", nil, time.Now())))

	var nilDispatcher *EventDispatcher
	assert.NotPanics(t, func() { nilDispatcher.Publish(context.Background(), ev) })
}

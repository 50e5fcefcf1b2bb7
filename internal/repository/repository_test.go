package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtrack.io/labtrack/internal/domain"
)

func newTestRepo(t *testing.T) (*Repository, Paths) {
	t.Helper()
	dir := t.TempDir()
	paths := Paths{
		Equipment:   filepath.Join(dir, "data", "equipment.json"),
		Maintenance: filepath.Join(dir, "data", "maintenance.json"),
		Sequences:   filepath.Join(dir, "data", "sequences.json"),
	}
	return New(paths), paths
}

func sampleEquipment() []domain.Equipment {
	return []domain.Equipment{
		{
			AssetNumber: "LAB-2026-MIC-001", Name: "Confocal Microscope", Model: "LSM 980",
			SerialNumber: "SN-1", Manufacturer: "Zeiss", Category: "Microscopy", Location: "Main Lab",
			PurchaseDate: "2024-05-01", WarrantyExpiry: "2027-05-01", Cost: 350000.5,
			Status: domain.StatusOperational, LastMaintenance: "2026-01-10", NextMaintenance: "2026-07-10",
			CreatedAt: "2026-01-01T00:00:00.000Z", UpdatedAt: "2026-01-10T08:00:00.000Z",
		},
		{
			AssetNumber: "LAB-2026-CEN-001", Name: "Centrifuge", Category: "Centrifuges",
			Status: "Under Repair", CreatedAt: "2026-01-02T00:00:00.000Z",
		},
	}
}

func sampleMaintenance() []domain.Maintenance {
	return []domain.Maintenance{
		{
			ID: 1001, EquipmentAsset: "LAB-2026-MIC-001", Type: "Calibration", Date: "2026-01-10",
			Description: "Annual calibration", Technician: "R. Okafor", Cost: 120, NextDue: "2026-07-10",
			EquipmentStatus: domain.StatusOperational,
			Files: []domain.Attachment{{
				Filename: "LAB_2026_MIC_001_2026_01_10_maintenance.pdf", OriginalName: "report.pdf",
				MimeType: "application/pdf", Size: 2048, Path: "/srv/uploads/LAB_2026_MIC_001_2026_01_10_maintenance.pdf",
			}},
			CreatedAt: "2026-01-10T08:00:00.000Z",
		},
		{ID: 1002, EquipmentAsset: "LAB-2026-CEN-001", Type: "Repair", Date: "2026-02-01", Files: []domain.Attachment{}, CreatedAt: "2026-02-01T08:00:00.000Z"},
	}
}

func TestCollection_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	eq := NewCollection[domain.Equipment](EquipmentCollection, filepath.Join(dir, "equipment.json"))
	require.NoError(t, eq.Write(ctx, sampleEquipment()))
	gotEq, err := eq.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleEquipment(), gotEq)

	mt := NewCollection[domain.Maintenance](MaintenanceCollection, filepath.Join(dir, "maintenance.json"))
	require.NoError(t, mt.Write(ctx, sampleMaintenance()))
	gotMt, err := mt.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleMaintenance(), gotMt)
}

func TestCollection_WriteFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "equipment.json")
	c := NewCollection[domain.Equipment](EquipmentCollection, path)

	require.NoError(t, c.Write(ctx, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	require.NoError(t, c.Write(ctx, sampleEquipment()[:1]))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"asset_number\": \"LAB-2026-MIC-001\""))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCollection_ReadMissingAndBlank(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c := NewCollection[domain.Equipment](EquipmentCollection, filepath.Join(dir, "missing.json"))
	records, err := c.Read(ctx)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	blank := filepath.Join(dir, "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte("  \n"), 0o644))
	records, err = NewCollection[domain.Equipment](EquipmentCollection, blank).Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	null := filepath.Join(dir, "null.json")
	require.NoError(t, os.WriteFile(null, []byte("null"), 0o644))
	records, err = NewCollection[domain.Equipment](EquipmentCollection, null).Read(ctx)
	require.NoError(t, err)
	assert.NotNil(t, records)
}

func TestCollection_ReadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equipment.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"asset_number": "LAB-`), 0o644))

	_, err := NewCollection[domain.Equipment](EquipmentCollection, path).Read(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, EquipmentCollection, storeErr.Collection)
	assert.Equal(t, "read", storeErr.Op)
}

func TestRepository_UpdateCommitsOnlyDirty(t *testing.T) {
	ctx := context.Background()
	repo, paths := newTestRepo(t)

	err := repo.Update(ctx, func(tx *Tx) error {
		if _, err := tx.Maintenance(); err != nil {
			return err
		}
		return tx.SetEquipment(sampleEquipment())
	})
	require.NoError(t, err)

	assert.FileExists(t, paths.Equipment)
	assert.NoFileExists(t, paths.Maintenance)
	assert.NoFileExists(t, paths.Sequences)

	err = repo.View(ctx, func(tx *Tx) error {
		got, err := tx.Equipment()
		require.NoError(t, err)
		assert.Equal(t, sampleEquipment(), got)
		return nil
	})
	require.NoError(t, err)
}

func TestRepository_UpdateCallbackErrorWritesNothing(t *testing.T) {
	repo, paths := newTestRepo(t)
	boom := errors.New("boom")

	err := repo.Update(context.Background(), func(tx *Tx) error {
		require.NoError(t, tx.SetEquipment(sampleEquipment()))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, paths.Equipment)
}

func TestRepository_ViewIsReadOnly(t *testing.T) {
	repo, _ := newTestRepo(t)

	err := repo.View(context.Background(), func(tx *Tx) error {
		return tx.SetMaintenance(nil)
	})
	assert.ErrorIs(t, err, ErrReadOnly)

	err = repo.View(context.Background(), func(tx *Tx) error {
		_, err := tx.NextSequence(CounterMaintenance, 0)
		return err
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestRepository_NextSequence(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	var got []int64
	for i := 0; i < 3; i++ {
		err := repo.Update(ctx, func(tx *Tx) error {
			id, err := tx.NextSequence(CounterMaintenance, 1000)
			got = append(got, id)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1001, 1002, 1003}, got)

	err := repo.Update(ctx, func(tx *Tx) error {
		id, err := tx.NextSequence(CounterMaintenance, 2000)
		assert.Equal(t, int64(2001), id)
		return err
	})
	require.NoError(t, err)

	counters, err := NewCounters(repo.counters.path).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2001), counters[CounterMaintenance])
	assert.Equal(t, "asset/MIC/2026", AssetCounterKey("MIC", 2026))
}

func TestRepository_RollbackOnFailedWrite(t *testing.T) {
	ctx := context.Background()
	repo, paths := newTestRepo(t)

	var failed []string
	repo.onWriteFailure = func(c string) { failed = append(failed, c) }

	require.NoError(t, repo.Update(ctx, func(tx *Tx) error {
		if err := tx.SetEquipment(sampleEquipment()); err != nil {
			return err
		}
		return tx.SetMaintenance(sampleMaintenance())
	}))
	before, err := os.ReadFile(paths.Maintenance)
	require.NoError(t, err)

	repo.equipment.writeFile = func(string, []byte) error { return errors.New("disk full") }

	err = repo.Update(ctx, func(tx *Tx) error {
		if _, err := tx.NextSequence(CounterMaintenance, 1000); err != nil {
			return err
		}
		if err := tx.SetMaintenance(nil); err != nil {
			return err
		}
		return tx.SetEquipment(nil)
	})
	require.Error(t, err)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, EquipmentCollection, storeErr.Collection)
	assert.Equal(t, []string{EquipmentCollection}, failed)

	after, err := os.ReadFile(paths.Maintenance)
	require.NoError(t, err)
	assert.Equal(t, before, after, "maintenance must be restored")
	assert.NoFileExists(t, paths.Sequences, "counters created by the failed tx must be removed")

	eq, err := NewCollection[domain.Equipment](EquipmentCollection, paths.Equipment).Read(ctx)
	require.NoError(t, err)
	assert.Len(t, eq, 2)
}

func TestRepository_SerializesWriters(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Update(ctx, func(tx *Tx) error {
				records, err := tx.Maintenance()
				if err != nil {
					return err
				}
				id, err := tx.NextSequence(CounterMaintenance, 1000)
				if err != nil {
					return err
				}
				return tx.SetMaintenance(append(records, domain.Maintenance{ID: id, Files: []domain.Attachment{}}))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var records []domain.Maintenance
	require.NoError(t, repo.View(ctx, func(tx *Tx) error {
		var err error
		records, err = tx.Maintenance()
		return err
	}))
	require.Len(t, records, writers)
	seen := map[int64]bool{}
	for _, r := range records {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
}

func TestRepository_Dirs(t *testing.T) {
	repo, paths := newTestRepo(t)
	assert.Equal(t, []string{filepath.Dir(paths.Equipment)}, repo.Dirs())
}

func TestRepository_CancelledContext(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.Update(ctx, func(*Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRepository_CommitHooks(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	var calls []string
	hooks := func(tx *Tx) {
		tx.AfterCommit(func() {
			assert.False(t, repo.mu.TryLock(), "write lock must still be held")
			calls = append(calls, "commit")
		})
		tx.AfterRollback(func() {
			assert.False(t, repo.mu.TryLock(), "write lock must still be held")
			calls = append(calls, "rollback")
		})
	}

	require.NoError(t, repo.Update(ctx, func(tx *Tx) error {
		hooks(tx)
		return tx.SetEquipment(sampleEquipment())
	}))
	assert.Equal(t, []string{"commit"}, calls)

	calls = nil
	boom := errors.New("boom")
	err := repo.Update(ctx, func(tx *Tx) error {
		hooks(tx)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"rollback"}, calls)

	calls = nil
	repo.maintenance.writeFile = func(string, []byte) error { return errors.New("disk full") }
	err = repo.Update(ctx, func(tx *Tx) error {
		hooks(tx)
		return tx.SetMaintenance(sampleMaintenance())
	})
	require.Error(t, err)
	assert.Equal(t, []string{"rollback"}, calls)
}

func TestTx_CollectionsAreNeverNil(t *testing.T) {
	repo, _ := newTestRepo(t)

	err := repo.View(context.Background(), func(tx *Tx) error {
		eq, err := tx.Equipment()
		require.NoError(t, err)
		assert.NotNil(t, eq)
		m, err := tx.Maintenance()
		require.NoError(t, err)
		assert.NotNil(t, m)
		return nil
	})
	require.NoError(t, err)
}

package repository

import (
	"context"

	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/pkg/logger"
)

// Tx is a unit of work over the repository documents. Collections are loaded
// on first access and written on commit only if they were replaced.
// A Tx must not be used after its View or Update callback returns.
type Tx struct {
	ctx      context.Context
	repo     *Repository
	writable bool

	equipment       []domain.Equipment
	equipmentSnap   snapshot
	equipmentLoaded bool
	equipmentDirty  bool

	maintenance       []domain.Maintenance
	maintenanceSnap   snapshot
	maintenanceLoaded bool
	maintenanceDirty  bool

	counters       map[string]int64
	countersSnap   snapshot
	countersLoaded bool
	countersDirty  bool

	afterCommit   []func()
	afterRollback []func()
}

// Equipment returns a copy of the equipment records, never nil; pass the modified
// slice to SetEquipment to persist changes.
func (tx *Tx) Equipment() ([]domain.Equipment, error) {
	if !tx.equipmentLoaded {
		records, snap, err := tx.repo.equipment.read(tx.ctx)
		if err != nil {
			return nil, err
		}
		tx.equipment, tx.equipmentSnap, tx.equipmentLoaded = records, snap, true
	}
	return append(make([]domain.Equipment, 0, len(tx.equipment)), tx.equipment...), nil
}

// SetEquipment replaces the equipment collection at commit.
func (tx *Tx) SetEquipment(records []domain.Equipment) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if _, err := tx.Equipment(); err != nil {
		return err
	}
	tx.equipment, tx.equipmentDirty = records, true
	return nil
}

// Maintenance returns the maintenance records.
func (tx *Tx) Maintenance() ([]domain.Maintenance, error) {
	if !tx.maintenanceLoaded {
		records, snap, err := tx.repo.maintenance.read(tx.ctx)
		if err != nil {
			return nil, err
		}
		tx.maintenance, tx.maintenanceSnap, tx.maintenanceLoaded = records, snap, true
	}
	return append(make([]domain.Maintenance, 0, len(tx.maintenance)), tx.maintenance...), nil
}

// SetMaintenance replaces the maintenance collection at commit.
func (tx *Tx) SetMaintenance(records []domain.Maintenance) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if _, err := tx.Maintenance(); err != nil {
		return err
	}
	tx.maintenance, tx.maintenanceDirty = records, true
	return nil
}

func (tx *Tx) loadCounters() error {
	if tx.countersLoaded {
		return nil
	}
	values, snap, err := tx.repo.counters.read(tx.ctx)
	if err != nil {
		return err
	}
	tx.counters, tx.countersSnap, tx.countersLoaded = values, snap, true
	return nil
}

// AfterCommit registers fn to run once an Update transaction has been
// written. fn runs before the write lock is released.
func (tx *Tx) AfterCommit(fn func()) {
	tx.afterCommit = append(tx.afterCommit, fn)
}

// AfterRollback registers fn to run when an Update callback or its commit
// fails. fn runs before the write lock is released.
func (tx *Tx) AfterRollback(fn func()) {
	tx.afterRollback = append(tx.afterRollback, fn)
}

func (tx *Tx) runHooks(committed bool) {
	hooks := tx.afterRollback
	if committed {
		hooks = tx.afterCommit
	}
	for _, fn := range hooks {
		fn()
	}
}

// NextSequence advances a sequence to max(current, floor)+1 and returns it.
func (tx *Tx) NextSequence(key string, floor int64) (int64, error) {
	if !tx.writable {
		return 0, ErrReadOnly
	}
	if err := tx.loadCounters(); err != nil {
		return 0, err
	}
	next := max(tx.counters[key], floor) + 1
	tx.counters[key] = next
	tx.countersDirty = true
	return next, nil
}

type commitStep struct {
	collection string
	write      func() error
	restore    func() error
}

// commit writes counters, then maintenance, then equipment. When a write
// fails the documents already written are restored to their prior content.
func (tx *Tx) commit() error {
	// A cancelled request must not leave the commit half written.
	ctx := context.WithoutCancel(tx.ctx)

	var steps []commitStep
	if tx.countersDirty {
		steps = append(steps, commitStep{
			collection: countersCollection,
			write:      func() error { return tx.repo.counters.Write(ctx, tx.counters) },
			restore:    func() error { return tx.repo.counters.restore(tx.countersSnap) },
		})
	}
	if tx.maintenanceDirty {
		steps = append(steps, commitStep{
			collection: MaintenanceCollection,
			write:      func() error { return tx.repo.maintenance.Write(ctx, tx.maintenance) },
			restore:    func() error { return tx.repo.maintenance.restore(tx.maintenanceSnap) },
		})
	}
	if tx.equipmentDirty {
		steps = append(steps, commitStep{
			collection: EquipmentCollection,
			write:      func() error { return tx.repo.equipment.Write(ctx, tx.equipment) },
			restore:    func() error { return tx.repo.equipment.restore(tx.equipmentSnap) },
		})
	}

	for i, step := range steps {
		err := step.write()
		if err == nil {
			continue
		}
		tx.repo.writeFailed(step.collection, err)
		for j := i - 1; j >= 0; j-- {
			if rerr := steps[j].restore(); rerr != nil {
				logger.Error("Store rollback failed",
					zap.String("collection", steps[j].collection),
					zap.Error(rerr),
				)
			}
		}
		return err
	}
	return nil
}

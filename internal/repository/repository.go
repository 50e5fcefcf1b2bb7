package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/pkg/logger"
)

// Collection names.
const (
	EquipmentCollection   = "equipment"
	MaintenanceCollection = "maintenance"
)

// ErrReadOnly is returned when a View transaction tries to modify a collection.
var ErrReadOnly = errors.New("transaction is read-only")

// Paths locates the documents of a Repository.
type Paths struct {
	Equipment   string
	Maintenance string
	Sequences   string
}

// Option configures a Repository.
type Option func(*Repository)

// WithWriteFailureHook registers fn to be called with the collection name
// whenever a commit fails to write it.
func WithWriteFailureHook(fn func(collection string)) Option {
	return func(r *Repository) { r.onWriteFailure = fn }
}

// Repository owns the equipment and maintenance collections and the sequence
// counters. All writers are serialized; readers share the lock.
type Repository struct {
	mu sync.RWMutex

	equipment   *Collection[domain.Equipment]
	maintenance *Collection[domain.Maintenance]
	counters    *Counters

	onWriteFailure func(collection string)
}

// New creates a Repository over the given documents.
func New(paths Paths, opts ...Option) *Repository {
	r := &Repository{
		equipment:   NewCollection[domain.Equipment](EquipmentCollection, paths.Equipment),
		maintenance: NewCollection[domain.Maintenance](MaintenanceCollection, paths.Maintenance),
		counters:    NewCounters(paths.Sequences),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dirs returns the directories holding the documents.
func (r *Repository) Dirs() []string {
	seen := map[string]bool{}
	var dirs []string
	for _, p := range []string{r.equipment.Path(), r.maintenance.Path(), r.counters.path} {
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// View runs fn in a read-only transaction.
func (r *Repository) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return fn(&Tx{ctx: ctx, repo: r})
}

// Update runs fn in a read-write transaction and commits every collection fn
// modified. If fn returns an error nothing is written. Hooks registered with
// AfterCommit or AfterRollback run before the lock is released.
func (r *Repository) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &Tx{ctx: ctx, repo: r, writable: true}
	err := fn(tx)
	if err == nil {
		err = tx.commit()
	}
	tx.runHooks(err == nil)
	return err
}

func (r *Repository) writeFailed(collection string, err error) {
	logger.Error("Store write failed",
		zap.String("collection", collection),
		zap.Error(err),
	)
	if r.onWriteFailure != nil {
		r.onWriteFailure(collection)
	}
}

// Package worker provides goroutine pool management.
//
// Background work never runs on naked goroutines: it is submitted to one of
// the ants pools below with a context that bounds its lifetime.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool names accepted by SubmitDetached.
const (
	PoolGeneral = "general"
	PoolFiles   = "files"
)

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	// General runs long-lived detached work such as the status sweeper.
	General *Pool
	// Files runs short blob I/O such as cascade attachment deletion.
	Files *Pool

	// serviceCtx is the service lifecycle context for detached tasks
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
	shutdownOnce  sync.Once
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	GeneralPoolSize int
	FilePoolSize    int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize: 4,
		FilePoolSize:    8,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(time.Minute),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	fileAnts, err := ants.NewPool(cfg.FilePoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		generalAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		General:       &Pool{pool: generalAnts, name: PoolGeneral},
		Files:         &Pool{pool: fileAnts, name: PoolFiles},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// If the context is already cancelled, returns ctx.Err() without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		// The context may have been cancelled while the task was queued.
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Each runs fn for every item on the pool and waits for all of them.
// Items that cannot be submitted run inline on the caller's goroutine.
// Once ctx is cancelled, items that have not started are skipped.
func Each[T any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T)) {
	var wg sync.WaitGroup
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if p == nil {
			fn(ctx, item)
			continue
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				logger.Debug("Task skipped: context cancelled", zap.String("pool", p.name))
				return
			}
			fn(ctx, item)
		})
		if err != nil {
			wg.Done()
			fn(ctx, item)
		}
	}
	wg.Wait()
}

// SubmitDetached submits a detached background task.
// Detached tasks receive the service lifecycle context instead of a request
// context, so they survive the request but stop on Shutdown.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	pool := p.General
	if poolName == PoolFiles {
		pool = p.Files
	}

	return pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down",
				zap.String("pool", poolName),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
}

// Shutdown cancels the service context, then waits for running tasks (max 30s).
func (p *Pools) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.serviceCancel()

		const shutdownTimeout = 30 * time.Second
		if err := p.General.pool.ReleaseTimeout(shutdownTimeout); err != nil {
			logger.Warn("General pool shutdown timeout", zap.Error(err))
		}
		if err := p.Files.pool.ReleaseTimeout(shutdownTimeout); err != nil {
			logger.Warn("Files pool shutdown timeout", zap.Error(err))
		}
	})
}

// Metrics returns pool occupancy for the diagnostics endpoints.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		PoolGeneral: map[string]int{
			"running": p.General.pool.Running(),
			"free":    p.General.pool.Free(),
			"cap":     p.General.pool.Cap(),
		},
		PoolFiles: map[string]int{
			"running": p.Files.pool.Running(),
			"free":    p.Files.pool.Free(),
			"cap":     p.Files.pool.Cap(),
		},
	}
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/pkg/metrics"
	"labtrack.io/labtrack/internal/pkg/worker"
)

// StatusSweeper periodically applies the derived-status rule so records
// become due even when nobody lists the inventory.
type StatusSweeper struct {
	equipment *EquipmentService
	pools     *worker.Pools
	interval  time.Duration
	metrics   *metrics.Metrics
}

// NewStatusSweeper creates a sweeper. A non-positive interval disables it.
func NewStatusSweeper(equipment *EquipmentService, pools *worker.Pools, interval time.Duration, m *metrics.Metrics) *StatusSweeper {
	return &StatusSweeper{
		equipment: equipment,
		pools:     pools,
		interval:  interval,
		metrics:   m,
	}
}

// Start runs the sweep loop on the general pool until the pools shut down.
func (s *StatusSweeper) Start() error {
	if s.interval <= 0 {
		logger.Info("Status sweeper disabled")
		return nil
	}
	logger.Info("Status sweeper started", zap.Duration("interval", s.interval))
	return s.pools.SubmitDetached(worker.PoolGeneral, s.run)
}

func (s *StatusSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Status sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs the rule once and returns the number of records that changed.
func (s *StatusSweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	changed, err := s.equipment.RefreshStatuses(ctx)
	s.metrics.ObserveSweep(time.Since(start))
	if err != nil {
		logger.Error("Status sweep failed", zap.Error(err))
		return 0
	}
	if changed > 0 {
		logger.Info("Status sweep flagged equipment", zap.Int("changed", changed))
	}
	return changed
}

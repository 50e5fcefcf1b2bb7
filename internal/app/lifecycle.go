package app

import (
	"context"
	"fmt"

	"labtrack.io/labtrack/internal/pkg/logger"
)

// Start starts the background status sweeper.
func (a *Application) Start(_ context.Context) error {
	if a.Sweeper == nil {
		return nil
	}
	if err := a.Sweeper.Start(); err != nil {
		return fmt.Errorf("start status sweeper: %w", err)
	}
	return nil
}

// Shutdown stops background work. Pending blob deletions finish first.
func (a *Application) Shutdown() {
	if a.Pools != nil {
		a.Pools.Shutdown()
		logger.Info("Worker pools stopped")
	}
}

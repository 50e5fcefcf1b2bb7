// Package app is the composition root: it wires stores, services and the
// HTTP router from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"labtrack.io/labtrack/api"
	"labtrack.io/labtrack/internal/api/handlers"
	"labtrack.io/labtrack/internal/config"
	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/pkg/metrics"
	"labtrack.io/labtrack/internal/pkg/worker"
	"labtrack.io/labtrack/internal/repository"
	"labtrack.io/labtrack/internal/service"
	"labtrack.io/labtrack/internal/storage"
)

// Application holds composed application dependencies.
type Application struct {
	Config      *config.Config
	Router      *gin.Engine
	Registry    *prometheus.Registry
	Repo        *repository.Repository
	Files       *storage.AttachmentStore
	Pools       *worker.Pools
	Events      *domain.EventDispatcher
	Equipment   *service.EquipmentService
	Maintenance *service.MaintenanceService
	Sweeper     *service.StatusSweeper
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	files, err := storage.NewAttachmentStore(storage.Options{
		Dir:              cfg.Storage.UploadsDir,
		MaxFileSize:      cfg.Uploads.MaxFileSize,
		AllowedMimeTypes: cfg.Uploads.AllowedMimeTypes,
		Suffix:           cfg.Uploads.FilenameSuffix,
	})
	if err != nil {
		return nil, fmt.Errorf("init attachment store: %w", err)
	}

	registry := prometheus.NewRegistry()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(registry)
	}

	repo := repository.New(repository.Paths{
		Equipment:   cfg.Storage.EquipmentPath(),
		Maintenance: cfg.Storage.MaintenancePath(),
		Sequences:   cfg.Storage.SequencePath(),
	}, repository.WithWriteFailureHook(m.IncStoreFailure))
	for _, dir := range repo.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		FilePoolSize:    cfg.Worker.FilePoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	events := domain.NewEventDispatcher()
	registerEventHandlers(events, m)

	opts := []service.Option{
		service.WithEvents(events),
		service.WithPools(pools),
		service.WithMetrics(m),
		service.WithDueWindow(cfg.Maintenance.DueWindowDays),
		service.WithMaxFiles(cfg.Uploads.MaxFiles),
	}
	equipment := service.NewEquipmentService(repo, files, newCatalog(cfg.Catalog), opts...)
	maintenance := service.NewMaintenanceService(repo, files, opts...)

	doc, err := api.Load(ctx)
	if err != nil {
		pools.Shutdown()
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	probeDirs := map[string]string{"uploads": files.Dir()}
	for i, dir := range repo.Dirs() {
		name := "data"
		if i > 0 {
			name = fmt.Sprintf("data_%d", i)
		}
		probeDirs[name] = dir
	}
	server := handlers.NewServer(handlers.ServerDeps{
		Equipment:   equipment,
		Maintenance: maintenance,
		Pools:       pools,
		Port:        cfg.Server.Port,
		MaxFileSize: cfg.Uploads.MaxFileSize,
		MaxFiles:    cfg.Uploads.MaxFiles,
		ProbeDirs:   probeDirs,
		OpenAPI:     api.Spec,
	})

	router, err := newRouter(cfg, server, registry, m, doc)
	if err != nil {
		pools.Shutdown()
		return nil, fmt.Errorf("init router: %w", err)
	}

	return &Application{
		Config:      cfg,
		Router:      router,
		Registry:    registry,
		Repo:        repo,
		Files:       files,
		Pools:       pools,
		Events:      events,
		Equipment:   equipment,
		Maintenance: maintenance,
		Sweeper:     service.NewStatusSweeper(equipment, pools, cfg.Maintenance.SweepInterval, m),
	}, nil
}

func newCatalog(cfg config.CatalogConfig) *domain.Catalog {
	extra := make([]domain.Category, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		extra = append(extra, domain.Category{Name: c.Name, Code: c.Code})
	}
	return domain.NewCatalog(extra, cfg.Locations)
}

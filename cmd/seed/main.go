// Package main loads equipment and maintenance fixtures into a labtrack data directory.
//
// Fixtures are YAML:
//
//	equipment:
//	  - asset_number: LAB-2024-MIC-001
//	    name: Confocal Microscope
//	    category: Microscopy
//	maintenance:
//	  - equipment_asset: LAB-2024-MIC-001
//	    type: Calibration
//	    date: "2024-05-02"
//
// Seeding is idempotent: existing asset numbers and maintenance entries
// with the same asset, type and date are skipped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"labtrack.io/labtrack/internal/app"
	"labtrack.io/labtrack/internal/config"
	"labtrack.io/labtrack/internal/domain"
	apperrors "labtrack.io/labtrack/internal/pkg/errors"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/service"
)

// Fixtures is the seed file layout.
type Fixtures struct {
	Equipment   []domain.EquipmentInput   `yaml:"equipment"`
	Maintenance []domain.MaintenanceInput `yaml:"maintenance"`
}

// Result counts what a seed run did.
type Result struct {
	EquipmentCreated   int
	EquipmentSkipped   int
	MaintenanceCreated int
	MaintenanceSkipped int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	file := flag.String("file", "fixtures.yaml", "path to the YAML fixture file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	fixtures, err := loadFixtures(*file)
	if err != nil {
		return err
	}

	ctx := context.Background()
	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer application.Shutdown()

	logger.Info("Starting data seeding...", zap.String("file", *file))

	res, err := seed(ctx, fixtures, application.Equipment, application.Maintenance)
	if err != nil {
		return err
	}

	logger.Info("Data seeding completed",
		zap.Int("equipment_created", res.EquipmentCreated),
		zap.Int("equipment_skipped", res.EquipmentSkipped),
		zap.Int("maintenance_created", res.MaintenanceCreated),
		zap.Int("maintenance_skipped", res.MaintenanceSkipped),
	)
	return nil
}

func loadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

func seed(ctx context.Context, f *Fixtures, equipment *service.EquipmentService, maintenance *service.MaintenanceService) (Result, error) {
	var res Result

	for _, in := range f.Equipment {
		e, err := equipment.Create(ctx, in)
		switch {
		case apperrors.HasCode(err, apperrors.CodeEquipmentExists):
			res.EquipmentSkipped++
			logger.Debug("Equipment already present", zap.String("asset_number", in.AssetNumber))
		case err != nil:
			return res, fmt.Errorf("seed equipment %q: %w", in.Name, err)
		default:
			res.EquipmentCreated++
			logger.Debug("Equipment seeded", zap.String("asset_number", e.AssetNumber))
		}
	}

	for _, in := range f.Maintenance {
		existing, err := maintenance.List(ctx, service.MaintenanceFilter{EquipmentAsset: in.EquipmentAsset})
		if err != nil {
			return res, fmt.Errorf("list maintenance for %s: %w", in.EquipmentAsset, err)
		}
		if hasEntry(existing, in) {
			res.MaintenanceSkipped++
			continue
		}
		if _, err := maintenance.Create(ctx, in, nil); err != nil {
			return res, fmt.Errorf("seed maintenance %s on %s: %w", in.Type, in.EquipmentAsset, err)
		}
		res.MaintenanceCreated++
	}
	return res, nil
}

func hasEntry(records []domain.Maintenance, in domain.MaintenanceInput) bool {
	for _, m := range records {
		if m.EquipmentAsset == in.EquipmentAsset && m.Type == in.Type && m.Date == in.Date {
			return true
		}
	}
	return false
}

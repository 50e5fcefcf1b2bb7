package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/domain"
	apperrors "labtrack.io/labtrack/internal/pkg/errors"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/pkg/worker"
	"labtrack.io/labtrack/internal/repository"
	"labtrack.io/labtrack/internal/storage"
)

// EquipmentService handles the equipment inventory.
type EquipmentService struct {
	base
	repo    *repository.Repository
	files   *storage.AttachmentStore
	catalog *domain.Catalog
}

// NewEquipmentService creates a new EquipmentService.
func NewEquipmentService(repo *repository.Repository, files *storage.AttachmentStore, catalog *domain.Catalog, opts ...Option) *EquipmentService {
	return &EquipmentService{
		base:    newBase(opts),
		repo:    repo,
		files:   files,
		catalog: catalog,
	}
}

// Catalog returns the category and location catalog.
func (s *EquipmentService) Catalog() *domain.Catalog { return s.catalog }

// List returns every record after applying the derived-status rule. Records
// that became due are persisted before they are returned.
func (s *EquipmentService) List(ctx context.Context) ([]domain.Equipment, error) {
	var (
		out    []domain.Equipment
		events []*domain.DomainEvent
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Equipment()
		if err != nil {
			return err
		}
		events = s.refresh(records)
		if len(events) > 0 {
			if err := tx.SetEquipment(records); err != nil {
				return err
			}
		}
		out = records
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	s.publish(ctx, events...)
	return out, nil
}

// RefreshStatuses applies the derived-status rule and returns how many
// records changed.
func (s *EquipmentService) RefreshStatuses(ctx context.Context) (int, error) {
	var events []*domain.DomainEvent
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Equipment()
		if err != nil {
			return err
		}
		events = s.refresh(records)
		if len(events) == 0 {
			return nil
		}
		return tx.SetEquipment(records)
	})
	if err != nil {
		return 0, storeError(err)
	}
	s.publish(ctx, events...)
	return len(events), nil
}

// refresh flags due records in place and returns one event per change.
func (s *EquipmentService) refresh(records []domain.Equipment) []*domain.DomainEvent {
	now := s.now()
	ts := domain.Timestamp(now)
	var events []*domain.DomainEvent
	for i := range records {
		if !domain.CheckStatus(records[i], now, s.dueWindow).NeedsUpdate {
			continue
		}
		records[i].Status = domain.StatusMaintenanceRequired
		records[i].UpdatedAt = ts
		events = append(events, statusChanged(records[i].AssetNumber, domain.StatusOperational, domain.StatusMaintenanceRequired, "derived", now))
	}
	return events
}

// Get returns one record.
func (s *EquipmentService) Get(ctx context.Context, assetNumber string) (*domain.Equipment, error) {
	var found *domain.Equipment
	err := s.repo.View(ctx, func(tx *repository.Tx) error {
		records, err := tx.Equipment()
		if err != nil {
			return err
		}
		if i := indexEquipment(records, assetNumber); i >= 0 {
			found = &records[i]
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	if found == nil {
		return nil, apperrors.ErrEquipmentNotFoundf(assetNumber)
	}
	return found, nil
}

// Create adds a record. An empty asset number is generated from the category.
func (s *EquipmentService) Create(ctx context.Context, in domain.EquipmentInput) (*domain.Equipment, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	e := in.Build(s.timestamp())

	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Equipment()
		if err != nil {
			return err
		}
		if e.AssetNumber == "" {
			if e.AssetNumber, err = s.reserveAssetNumber(tx, records, e.Category); err != nil {
				return err
			}
		} else if indexEquipment(records, e.AssetNumber) >= 0 {
			return apperrors.ErrEquipmentExistsf(e.AssetNumber)
		}
		return tx.SetEquipment(append(records, e))
	})
	if err != nil {
		return nil, storeError(err)
	}

	logger.Info("Equipment created",
		zap.String("asset_number", e.AssetNumber),
		zap.String("category", e.Category),
	)
	s.publish(ctx, domain.NewEvent(domain.EventEquipmentCreated, domain.AggregateEquipment, e.AssetNumber, nil, s.now()))
	return &e, nil
}

// Update merges the supplied fields into an existing record.
func (s *EquipmentService) Update(ctx context.Context, assetNumber string, patch domain.EquipmentPatch) (*domain.Equipment, error) {
	if err := s.check(patch); err != nil {
		return nil, err
	}
	var (
		updated domain.Equipment
		before  string
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Equipment()
		if err != nil {
			return err
		}
		i := indexEquipment(records, assetNumber)
		if i < 0 {
			return apperrors.ErrEquipmentNotFoundf(assetNumber)
		}
		before = records[i].Status
		patch.Apply(&records[i], s.timestamp())
		updated = records[i]
		return tx.SetEquipment(records)
	})
	if err != nil {
		return nil, storeError(err)
	}

	events := []*domain.DomainEvent{
		domain.NewEvent(domain.EventEquipmentUpdated, domain.AggregateEquipment, assetNumber, nil, s.now()),
	}
	if updated.Status != before {
		events = append(events, statusChanged(assetNumber, before, updated.Status, "edit", s.now()))
	}
	s.publish(ctx, events...)
	return &updated, nil
}

// Delete removes a record together with its maintenance history. Both
// collections are committed in one transaction; attachment blobs that are no
// longer referenced are deleted after the commit, under the same lock, on a
// best-effort basis.
func (s *EquipmentService) Delete(ctx context.Context, assetNumber string) error {
	var (
		removedIDs []int64
		orphans    []string
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Equipment()
		if err != nil {
			return err
		}
		i := indexEquipment(records, assetNumber)
		if i < 0 {
			return apperrors.ErrEquipmentNotFoundf(assetNumber)
		}
		history, err := tx.Maintenance()
		if err != nil {
			return err
		}

		kept := make([]domain.Maintenance, 0, len(history))
		var removed []domain.Maintenance
		for _, m := range history {
			if m.EquipmentAsset == assetNumber {
				removed = append(removed, m)
				removedIDs = append(removedIDs, m.ID)
			} else {
				kept = append(kept, m)
			}
		}
		orphans = unreferencedFiles(removed, kept)
		tx.AfterCommit(func() { deleteBlobs(ctx, s.files, s.filesPool(), orphans) })

		if len(removed) > 0 {
			if err := tx.SetMaintenance(kept); err != nil {
				return err
			}
		}
		return tx.SetEquipment(append(records[:i:i], records[i+1:]...))
	})
	if err != nil {
		return storeError(err)
	}

	logger.Info("Equipment deleted",
		zap.String("asset_number", assetNumber),
		zap.Int("maintenance_removed", len(removedIDs)),
		zap.Int("files_removed", len(orphans)),
	)
	s.publish(ctx, domain.NewEvent(domain.EventEquipmentDeleted, domain.AggregateEquipment, assetNumber,
		domain.EquipmentDeletedPayload{AssetNumber: assetNumber, MaintenanceIDs: removedIDs, Files: orphans}, s.now()))
	return nil
}

// GenerateAssetNumber reserves the next asset number for category.
func (s *EquipmentService) GenerateAssetNumber(ctx context.Context, category string) (string, error) {
	var assetNumber string
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Equipment()
		if err != nil {
			return err
		}
		assetNumber, err = s.reserveAssetNumber(tx, records, category)
		return err
	})
	if err != nil {
		return "", storeError(err)
	}
	return assetNumber, nil
}

// reserveAssetNumber advances the category sequence past both its persisted
// value and the number of records already in the category, skipping numbers
// that are taken.
func (s *EquipmentService) reserveAssetNumber(tx *repository.Tx, records []domain.Equipment, category string) (string, error) {
	code := s.catalog.Code(category)
	year := s.now().Year()
	key := repository.AssetCounterKey(code, year)

	taken := make(map[string]bool, len(records))
	inCategory := 0
	for _, r := range records {
		taken[r.AssetNumber] = true
		if s.catalog.Code(r.Category) == code {
			inCategory++
		}
	}

	floor := int64(inCategory)
	for {
		seq, err := tx.NextSequence(key, floor)
		if err != nil {
			return "", err
		}
		candidate := domain.FormatAssetNumber(year, code, int(seq))
		if !taken[candidate] {
			return candidate, nil
		}
		floor = seq
	}
}

// StatusReport summarizes the derived-status rule for every record.
type StatusReport struct {
	GeneratedAt   string               `json:"generated_at"`
	DueWindowDays int                  `json:"due_window_days"`
	Total         int                  `json:"total"`
	ByStatus      map[string]int       `json:"by_status"`
	NeedsUpdate   int                  `json:"needs_update"`
	Equipment     []domain.StatusCheck `json:"equipment"`
}

// StatusReport evaluates the derived-status rule without persisting anything.
func (s *EquipmentService) StatusReport(ctx context.Context) (*StatusReport, error) {
	var records []domain.Equipment
	err := s.repo.View(ctx, func(tx *repository.Tx) error {
		var err error
		records, err = tx.Equipment()
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	now := s.now()
	report := &StatusReport{
		GeneratedAt:   domain.Timestamp(now),
		DueWindowDays: s.dueWindow,
		Total:         len(records),
		ByStatus:      map[string]int{},
		Equipment:     make([]domain.StatusCheck, 0, len(records)),
	}
	for _, r := range records {
		sc := domain.CheckStatus(r, now, s.dueWindow)
		report.ByStatus[r.Status]++
		if sc.NeedsUpdate {
			report.NeedsUpdate++
		}
		report.Equipment = append(report.Equipment, sc)
	}
	return report, nil
}

func indexEquipment(records []domain.Equipment, assetNumber string) int {
	assetNumber = strings.TrimSpace(assetNumber)
	for i := range records {
		if records[i].AssetNumber == assetNumber {
			return i
		}
	}
	return -1
}

// unreferencedFiles returns the filenames referenced by removed records that
// no kept record references.
func unreferencedFiles(removed, kept []domain.Maintenance) []string {
	stillUsed := map[string]bool{}
	for _, m := range kept {
		for _, f := range m.Files {
			stillUsed[f.Filename] = true
		}
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range removed {
		for _, f := range m.Files {
			if stillUsed[f.Filename] || seen[f.Filename] {
				continue
			}
			seen[f.Filename] = true
			out = append(out, f.Filename)
		}
	}
	sort.Strings(out)
	return out
}

// deleteBlobs removes blobs on the files pool. Failures are logged only.
func deleteBlobs(ctx context.Context, files *storage.AttachmentStore, pool *worker.Pool, names []string) {
	if len(names) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	worker.Each(ctx, pool, names, func(_ context.Context, name string) {
		removed, err := files.Delete(name)
		switch {
		case err != nil:
			logger.Warn("Attachment delete failed", zap.String("filename", name), zap.Error(err))
		case !removed:
			logger.Debug("Attachment already absent", zap.String("filename", name))
		}
	})
}

func statusChanged(assetNumber, from, to, source string, at time.Time) *domain.DomainEvent {
	return domain.NewEvent(domain.EventEquipmentStatusChanged, domain.AggregateEquipment, assetNumber,
		domain.StatusChangedPayload{AssetNumber: assetNumber, From: from, To: to, Source: source}, at)
}

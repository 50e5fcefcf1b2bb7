package service

import (
	"context"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/domain"
	apperrors "labtrack.io/labtrack/internal/pkg/errors"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/pkg/metrics"
	"labtrack.io/labtrack/internal/repository"
	"labtrack.io/labtrack/internal/storage"
)

// maintenanceIDFloor makes the first maintenance ID 1001.
const maintenanceIDFloor = 1000

// MaintenanceService handles maintenance records and their attachments.
type MaintenanceService struct {
	base
	repo  *repository.Repository
	files *storage.AttachmentStore
}

// NewMaintenanceService creates a new MaintenanceService.
func NewMaintenanceService(repo *repository.Repository, files *storage.AttachmentStore, opts ...Option) *MaintenanceService {
	return &MaintenanceService{
		base:  newBase(opts),
		repo:  repo,
		files: files,
	}
}

// MaintenanceFilter narrows List.
type MaintenanceFilter struct {
	EquipmentAsset string
}

// List returns maintenance records in stored order.
func (s *MaintenanceService) List(ctx context.Context, filter MaintenanceFilter) ([]domain.Maintenance, error) {
	var out []domain.Maintenance
	err := s.repo.View(ctx, func(tx *repository.Tx) error {
		records, err := tx.Maintenance()
		if err != nil {
			return err
		}
		if filter.EquipmentAsset == "" {
			out = records
			return nil
		}
		out = make([]domain.Maintenance, 0)
		for _, m := range records {
			if m.EquipmentAsset == filter.EquipmentAsset {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	return out, nil
}

// Get returns one record.
func (s *MaintenanceService) Get(ctx context.Context, id int64) (*domain.Maintenance, error) {
	var found *domain.Maintenance
	err := s.repo.View(ctx, func(tx *repository.Tx) error {
		records, err := tx.Maintenance()
		if err != nil {
			return err
		}
		if i := indexMaintenance(records, id); i >= 0 {
			found = &records[i]
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	if found == nil {
		return nil, apperrors.ErrMaintenanceNotFoundf(id)
	}
	return found, nil
}

// Create records a maintenance event, stores its attachments and propagates
// the event to the referenced equipment when it exists.
func (s *MaintenanceService) Create(ctx context.Context, in domain.MaintenanceInput, uploads []storage.Upload) (*domain.Maintenance, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := s.validateUploads(uploads); err != nil {
		return nil, err
	}

	var (
		created    domain.Maintenance
		propagated bool
		statusEv   *domain.DomainEvent
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Maintenance()
		if err != nil {
			return err
		}
		equipment, err := tx.Equipment()
		if err != nil {
			return err
		}
		referenced := referencedFiles(records)

		id, err := tx.NextSequence(repository.CounterMaintenance, max(maxMaintenanceID(records), maintenanceIDFloor))
		if err != nil {
			return err
		}
		created = in.Build(id, s.timestamp())

		attachments, names, err := s.saveUploads(ctx, uploads, created.EquipmentAsset, created.Date)
		tx.AfterRollback(func() { s.discardBlobs(names, referenced) })
		if err != nil {
			return err
		}
		created.AddFiles(attachments...)

		if err := tx.SetMaintenance(append(records, created)); err != nil {
			return err
		}
		propagated, statusEv = s.propagate(equipment, created.EquipmentAsset, in.Propagation())
		if propagated {
			return tx.SetEquipment(equipment)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	logger.Info("Maintenance record created",
		zap.Int64("maintenance_id", created.ID),
		zap.String("asset_number", created.EquipmentAsset),
		zap.Int("files", len(created.Files)),
		zap.Bool("propagated", propagated),
	)
	s.publish(ctx, maintenanceEvent(domain.EventMaintenanceCreated, created, propagated, s.now()), statusEv)
	return &created, nil
}

// Update merges the supplied fields, appends new attachments and re-applies
// propagation. Existing attachments are never removed here.
func (s *MaintenanceService) Update(ctx context.Context, id int64, patch domain.MaintenancePatch, uploads []storage.Upload) (*domain.Maintenance, error) {
	if err := s.check(patch); err != nil {
		return nil, err
	}
	if err := s.validateUploads(uploads); err != nil {
		return nil, err
	}

	var (
		updated    domain.Maintenance
		propagated bool
		statusEv   *domain.DomainEvent
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Maintenance()
		if err != nil {
			return err
		}
		i := indexMaintenance(records, id)
		if i < 0 {
			return apperrors.ErrMaintenanceNotFoundf(id)
		}
		equipment, err := tx.Equipment()
		if err != nil {
			return err
		}
		referenced := referencedFiles(records)

		m := records[i]
		m.Files = append(make([]domain.Attachment, 0, len(m.Files)), m.Files...)
		patch.Apply(&m, s.timestamp())

		attachments, names, err := s.saveUploads(ctx, uploads, m.EquipmentAsset, m.Date)
		tx.AfterRollback(func() { s.discardBlobs(names, referenced) })
		if err != nil {
			return err
		}
		m.AddFiles(attachments...)
		records[i] = m
		updated = m

		if err := tx.SetMaintenance(records); err != nil {
			return err
		}
		propagated, statusEv = s.propagate(equipment, m.EquipmentAsset, patch.Propagation(m))
		if propagated {
			return tx.SetEquipment(equipment)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.publish(ctx, maintenanceEvent(domain.EventMaintenanceUpdated, updated, propagated, s.now()), statusEv)
	return &updated, nil
}

// Delete removes a record and the blobs only it referenced.
func (s *MaintenanceService) Delete(ctx context.Context, id int64) error {
	var (
		removed domain.Maintenance
		orphans []string
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Maintenance()
		if err != nil {
			return err
		}
		i := indexMaintenance(records, id)
		if i < 0 {
			return apperrors.ErrMaintenanceNotFoundf(id)
		}
		removed = records[i]
		kept := append(records[:i:i], records[i+1:]...)
		orphans = unreferencedFiles([]domain.Maintenance{removed}, kept)
		tx.AfterCommit(func() { deleteBlobs(ctx, s.files, s.filesPool(), orphans) })
		return tx.SetMaintenance(kept)
	})
	if err != nil {
		return storeError(err)
	}
	s.publish(ctx, maintenanceEvent(domain.EventMaintenanceDeleted, removed, false, s.now()))
	return nil
}

// DeleteAttachment unlinks filename from every record and removes its blob.
// Deleting an unknown filename succeeds.
func (s *MaintenanceService) DeleteAttachment(ctx context.Context, filename string) error {
	var (
		unlinked int
		removed  bool
	)
	err := s.repo.Update(ctx, func(tx *repository.Tx) error {
		records, err := tx.Maintenance()
		if err != nil {
			return err
		}
		tx.AfterCommit(func() {
			var derr error
			if removed, derr = s.files.Delete(filename); derr != nil {
				logger.Warn("Attachment delete failed", zap.String("filename", filename), zap.Error(derr))
			}
		})
		for i := range records {
			if !records[i].HasFile(filename) {
				continue
			}
			m := records[i]
			m.RemoveFile(filename)
			m.UpdatedAt = s.timestamp()
			records[i] = m
			unlinked++
		}
		if unlinked == 0 {
			return nil
		}
		return tx.SetMaintenance(records)
	})
	if err != nil {
		return storeError(err)
	}

	logger.Info("Attachment deleted",
		zap.String("filename", filename),
		zap.Bool("blob_removed", removed),
		zap.Int("records_unlinked", unlinked),
	)
	s.publish(ctx, domain.NewEvent(domain.EventAttachmentDeleted, domain.AggregateAttachment, filename, nil, s.now()))
	return nil
}

// OpenAttachment opens a blob for streaming.
func (s *MaintenanceService) OpenAttachment(filename string) (*os.File, fs.FileInfo, error) {
	return s.files.Open(filename)
}

// FileReference is one attachment reference in a FileReport.
type FileReference struct {
	Filename      string `json:"filename"`
	OriginalName  string `json:"originalname"`
	MaintenanceID int64  `json:"maintenance_id"`
	Exists        bool   `json:"exists"`
}

// FileReport compares attachment references with the blobs on disk.
type FileReport struct {
	UploadsDir string          `json:"uploads_dir"`
	Records    int             `json:"records"`
	References []FileReference `json:"references"`
	Missing    []string        `json:"missing"`
	Orphaned   []string        `json:"orphaned"`
	OnDisk     int             `json:"on_disk"`
}

// FileReport lists referenced blobs missing on disk and blobs no record references.
func (s *MaintenanceService) FileReport(ctx context.Context) (*FileReport, error) {
	var records []domain.Maintenance
	var onDisk []string
	err := s.repo.View(ctx, func(tx *repository.Tx) error {
		var err error
		if records, err = tx.Maintenance(); err != nil {
			return err
		}
		onDisk, err = s.files.List()
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	present := make(map[string]bool, len(onDisk))
	for _, name := range onDisk {
		present[name] = true
	}
	report := &FileReport{
		UploadsDir: s.files.Dir(),
		Records:    len(records),
		References: []FileReference{},
		Missing:    []string{},
		Orphaned:   []string{},
		OnDisk:     len(onDisk),
	}
	referenced := map[string]bool{}
	for _, m := range records {
		for _, f := range m.Files {
			exists := present[f.Filename]
			report.References = append(report.References, FileReference{
				Filename:      f.Filename,
				OriginalName:  f.OriginalName,
				MaintenanceID: m.ID,
				Exists:        exists,
			})
			if !exists && !referenced[f.Filename] {
				report.Missing = append(report.Missing, f.Filename)
			}
			referenced[f.Filename] = true
		}
	}
	for _, name := range onDisk {
		if !referenced[name] {
			report.Orphaned = append(report.Orphaned, name)
		}
	}
	sort.Strings(report.Missing)
	return report, nil
}

// validateUploads checks every upload before anything is written.
func (s *MaintenanceService) validateUploads(uploads []storage.Upload) error {
	if len(uploads) > s.maxFiles {
		s.metrics.IncUpload(metrics.UploadRejected)
		return apperrors.ErrTooManyFilesf(len(uploads), s.maxFiles)
	}
	for i := range uploads {
		if err := s.files.Validate(&uploads[i]); err != nil {
			s.metrics.IncUpload(metrics.UploadRejected)
			logger.Warn("Attachment rejected",
				zap.String("filename", uploads[i].Filename),
				zap.String("mimetype", uploads[i].MimeType),
				zap.Int64("size", uploads[i].Size),
			)
			return err
		}
	}
	return nil
}

// saveUploads stores validated uploads. Uploads that map to the same stored
// name are written once, the last one winning. It returns the names written
// so far even when it fails.
func (s *MaintenanceService) saveUploads(ctx context.Context, uploads []storage.Upload, asset, date string) ([]domain.Attachment, []string, error) {
	if len(uploads) == 0 {
		return nil, nil, nil
	}
	last := make(map[string]int, len(uploads))
	var order []string
	for i, u := range uploads {
		name := s.files.StorageName(asset, date, u.Filename)
		if _, ok := last[name]; !ok {
			order = append(order, name)
		}
		last[name] = i
	}

	attachments := make([]domain.Attachment, 0, len(order))
	names := make([]string, 0, len(order))
	for _, name := range order {
		att, err := s.files.Save(ctx, uploads[last[name]], asset, date)
		if err != nil {
			s.metrics.IncUpload(metrics.UploadRejected)
			return nil, names, err
		}
		s.metrics.IncUpload(metrics.UploadStored)
		names = append(names, att.Filename)
		attachments = append(attachments, att)
	}
	return attachments, names, nil
}

// discardBlobs removes blobs written by a failed request unless a committed
// record already referenced them.
func (s *MaintenanceService) discardBlobs(names []string, referenced map[string]bool) {
	for _, name := range names {
		if referenced[name] {
			continue
		}
		if _, err := s.files.Delete(name); err != nil {
			logger.Warn("Attachment cleanup failed", zap.String("filename", name), zap.Error(err))
		}
	}
}

// propagate applies p to the equipment whose asset number matches. It reports
// false when no equipment matches.
func (s *MaintenanceService) propagate(equipment []domain.Equipment, asset string, p domain.Propagation) (bool, *domain.DomainEvent) {
	i := indexEquipment(equipment, asset)
	if i < 0 {
		logger.Debug("Propagation skipped: equipment not found", zap.String("asset_number", asset))
		return false, nil
	}
	before := equipment[i].Status
	p.ApplyTo(&equipment[i], s.timestamp())
	if equipment[i].Status == before {
		return true, nil
	}
	return true, statusChanged(asset, before, equipment[i].Status, "maintenance", s.now())
}

func maintenanceEvent(t domain.EventType, m domain.Maintenance, propagated bool, at time.Time) *domain.DomainEvent {
	files := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, f.Filename)
	}
	return domain.NewEvent(t, domain.AggregateMaintenance, strconv.FormatInt(m.ID, 10),
		domain.MaintenancePayload{ID: m.ID, EquipmentAsset: m.EquipmentAsset, Propagated: propagated, Files: files}, at)
}

func indexMaintenance(records []domain.Maintenance, id int64) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

func maxMaintenanceID(records []domain.Maintenance) int64 {
	var highest int64
	for _, m := range records {
		highest = max(highest, m.ID)
	}
	return highest
}

func referencedFiles(records []domain.Maintenance) map[string]bool {
	out := map[string]bool{}
	for _, m := range records {
		for _, f := range m.Files {
			out[f.Filename] = true
		}
	}
	return out
}

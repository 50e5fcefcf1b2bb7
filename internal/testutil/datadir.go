// Package testutil provides isolated on-disk fixtures for labtrack tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"labtrack.io/labtrack/internal/config"
	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/repository"
	"labtrack.io/labtrack/internal/storage"
)

// Env is a temporary data directory with the stores opened over it.
type Env struct {
	Dir   string
	Paths repository.Paths
	Repo  *repository.Repository
	Files *storage.AttachmentStore
}

// NewEnv creates an Env under t.TempDir() with the default upload rules.
func NewEnv(t testing.TB) *Env {
	t.Helper()

	dir := t.TempDir()
	paths := repository.Paths{
		Equipment:   filepath.Join(dir, "data", "equipment.json"),
		Maintenance: filepath.Join(dir, "data", "maintenance.json"),
		Sequences:   filepath.Join(dir, "data", "sequences.json"),
	}
	files, err := storage.NewAttachmentStore(storage.Options{
		Dir:              filepath.Join(dir, "uploads"),
		MaxFileSize:      10 << 20,
		AllowedMimeTypes: config.DefaultAllowedMimeTypes,
	})
	if err != nil {
		t.Fatalf("open attachment store: %v", err)
	}
	return &Env{
		Dir:   dir,
		Paths: paths,
		Repo:  repository.New(paths),
		Files: files,
	}
}

// SeedEquipment writes records straight to the equipment document.
func (e *Env) SeedEquipment(t testing.TB, records ...domain.Equipment) {
	t.Helper()
	if err := repository.NewCollection[domain.Equipment](repository.EquipmentCollection, e.Paths.Equipment).
		Write(context.Background(), records); err != nil {
		t.Fatalf("seed equipment: %v", err)
	}
}

// SeedMaintenance writes records straight to the maintenance document.
func (e *Env) SeedMaintenance(t testing.TB, records ...domain.Maintenance) {
	t.Helper()
	if err := repository.NewCollection[domain.Maintenance](repository.MaintenanceCollection, e.Paths.Maintenance).
		Write(context.Background(), records); err != nil {
		t.Fatalf("seed maintenance: %v", err)
	}
}

// Equipment reads the equipment document.
func (e *Env) Equipment(t testing.TB) []domain.Equipment {
	t.Helper()
	records, err := repository.NewCollection[domain.Equipment](repository.EquipmentCollection, e.Paths.Equipment).
		Read(context.Background())
	if err != nil {
		t.Fatalf("read equipment: %v", err)
	}
	return records
}

// Maintenance reads the maintenance document.
func (e *Env) Maintenance(t testing.TB) []domain.Maintenance {
	t.Helper()
	records, err := repository.NewCollection[domain.Maintenance](repository.MaintenanceCollection, e.Paths.Maintenance).
		Read(context.Background())
	if err != nil {
		t.Fatalf("read maintenance: %v", err)
	}
	return records
}

// WriteBlob puts a file straight into the attachment directory.
func (e *Env) WriteBlob(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(e.Files.Dir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return path
}

// Corrupt overwrites a document with unparsable content.
func Corrupt(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`[{"broken":`), 0o644); err != nil {
		t.Fatalf("corrupt %s: %v", path, err)
	}
}

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) domain.Clock {
	return func() time.Time { return t }
}

// Upload builds an in-memory upload.
func Upload(name, mimeType string, data []byte) storage.Upload {
	return storage.Upload{
		Filename: name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// PDF returns a minimal PDF body of n bytes.
func PDF(n int) []byte {
	body := bytes.Repeat([]byte{'0'}, max(n, 8))
	copy(body, "%PDF-1.7")
	return body[:max(n, 8)]
}

// MustJSON marshals v or fails the test.
func MustJSON(t testing.TB, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

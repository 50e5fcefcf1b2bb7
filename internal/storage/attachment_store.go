// Package storage keeps maintenance attachments as flat files in one directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"labtrack.io/labtrack/internal/domain"
	apperrors "labtrack.io/labtrack/internal/pkg/errors"
)

const opaqueMimeType = "application/octet-stream"

// Upload is one file received with a request.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FromFileHeader adapts a multipart file part.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Options configures an AttachmentStore.
type Options struct {
	Dir              string
	MaxFileSize      int64
	AllowedMimeTypes []string
	// Suffix is the fixed part of generated filenames.
	Suffix string
}

// AttachmentStore saves, streams and deletes attachment blobs.
type AttachmentStore struct {
	dir     string
	maxSize int64
	allowed []string
	suffix  string
}

// NewAttachmentStore creates the directory if missing.
func NewAttachmentStore(opts Options) (*AttachmentStore, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("attachment directory is required")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	suffix := opts.Suffix
	if suffix == "" {
		suffix = "maintenance"
	}
	return &AttachmentStore{
		dir:     dir,
		maxSize: opts.MaxFileSize,
		allowed: opts.AllowedMimeTypes,
		suffix:  suffix,
	}, nil
}

// Dir returns the absolute attachment directory.
func (s *AttachmentStore) Dir() string { return s.dir }

// MaxFileSize returns the per-file limit in bytes.
func (s *AttachmentStore) MaxFileSize() int64 { return s.maxSize }

// Validate resolves the upload's media type and checks it against the
// allow-list and the size limit. An empty or opaque declared type is
// replaced by the sniffed one.
func (s *AttachmentStore) Validate(u *Upload) error {
	mt := baseMediaType(u.MimeType)
	if mt == "" || mt == opaqueMimeType {
		sniffed, err := sniff(u)
		if err != nil {
			return apperrors.BadRequest(apperrors.CodeInvalidRequest,
				fmt.Sprintf("cannot read upload %q", u.Filename)).WithParams(map[string]interface{}{"filename": u.Filename})
		}
		mt = sniffed
	}
	u.MimeType = mt

	if !slices.Contains(s.allowed, mt) {
		return apperrors.ErrUnsupportedFileTypef(u.Filename, mt)
	}
	if s.maxSize > 0 && u.Size > s.maxSize {
		return apperrors.ErrFileTooLargef(u.Filename, s.maxSize)
	}
	return nil
}

// StorageName derives the blob name from the owning record's asset and date.
// The same asset, date and extension always yield the same name.
func (s *AttachmentStore) StorageName(asset, date, original string) string {
	return sanitize(asset) + "_" + sanitize(date) + "_" + s.suffix + extension(original)
}

// Save validates u and writes it under its derived name, replacing any blob
// of the same name.
func (s *AttachmentStore) Save(ctx context.Context, u Upload, asset, date string) (domain.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attachment{}, err
	}
	if err := s.Validate(&u); err != nil {
		return domain.Attachment{}, err
	}

	name := s.StorageName(asset, date, u.Filename)
	target := filepath.Join(s.dir, name)

	src, err := u.Open()
	if err != nil {
		return domain.Attachment{}, s.writeErr(name, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.part")
	if err != nil {
		return domain.Attachment{}, s.writeErr(name, err)
	}
	tmpName := tmp.Name()

	limit := s.maxSize
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	n, err := io.Copy(tmp, io.LimitReader(src, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return domain.Attachment{}, s.writeErr(name, err)
	}
	if n > limit {
		_ = os.Remove(tmpName)
		return domain.Attachment{}, apperrors.ErrFileTooLargef(u.Filename, s.maxSize)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return domain.Attachment{}, s.writeErr(name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return domain.Attachment{}, s.writeErr(name, err)
	}

	return domain.Attachment{
		Filename:     name,
		OriginalName: u.Filename,
		MimeType:     u.MimeType,
		Size:         n,
		Path:         target,
	}, nil
}

// Open opens a blob for streaming. Names with path components are never found.
func (s *AttachmentStore) Open(name string) (*os.File, fs.FileInfo, error) {
	if !validName(name) {
		return nil, nil, apperrors.ErrAttachmentNotFoundf(name)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, apperrors.ErrAttachmentNotFoundf(name)
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, apperrors.ErrAttachmentNotFoundf(name)
	}
	return f, info, nil
}

// Delete removes a blob and reports whether one existed.
func (s *AttachmentStore) Delete(name string) (bool, error) {
	if !validName(name) {
		return false, nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns the stored blob names in lexical order.
func (s *AttachmentStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *AttachmentStore) writeErr(name string, err error) error {
	return apperrors.Wrap(err, apperrors.CodeBlobWriteFailed, "failed to store attachment", http.StatusInternalServerError).
		WithParams(map[string]interface{}{"filename": name})
}

func sniff(u *Upload) (string, error) {
	if u.Open == nil {
		return "", errors.New("upload has no content")
	}
	r, err := u.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	return baseMediaType(m.String()), nil
}

func baseMediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(v, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func extension(original string) string {
	ext := filepath.Ext(filepath.Base(original))
	if ext == "" {
		return ""
	}
	return "." + sanitize(ext[1:])
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// ProbeWritable checks that dir accepts new files.
func ProbeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

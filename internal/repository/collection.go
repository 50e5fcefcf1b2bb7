package repository

import (
	"context"
)

// Collection is a JSON array document of T.
type Collection[T any] struct {
	name      string
	path      string
	writeFile func(path string, data []byte) error
}

// NewCollection returns the collection stored at path.
func NewCollection[T any](name, path string) *Collection[T] {
	return &Collection[T]{name: name, path: path, writeFile: writeFileAtomic}
}

// Name returns the collection name used in logs and errors.
func (c *Collection[T]) Name() string { return c.name }

// Path returns the backing document path.
func (c *Collection[T]) Path() string { return c.path }

// Read loads every record. A missing document is an empty collection;
// an unreadable or unparsable one is a *StoreError wrapping the cause
// (ErrCorrupt for parse failures).
func (c *Collection[T]) Read(ctx context.Context) ([]T, error) {
	records, _, err := c.read(ctx)
	return records, err
}

func (c *Collection[T]) read(ctx context.Context) ([]T, snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, snapshot{}, err
	}
	var records []T
	snap, err := readDocument(c.path, &records)
	if err != nil {
		return nil, snap, &StoreError{Collection: c.name, Op: "read", Err: err}
	}
	if records == nil {
		records = []T{}
	}
	return records, snap, nil
}

// Write replaces the document with records, indented by two spaces.
// A nil slice is written as an empty array.
func (c *Collection[T]) Write(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []T{}
	}
	data, err := encodeDocument(records)
	if err != nil {
		return &StoreError{Collection: c.name, Op: "write", Err: err}
	}
	if err := c.writeFile(c.path, data); err != nil {
		return &StoreError{Collection: c.name, Op: "write", Err: err}
	}
	return nil
}

func (c *Collection[T]) restore(snap snapshot) error {
	return restore(c.path, snap)
}

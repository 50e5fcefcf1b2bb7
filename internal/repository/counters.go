package repository

import (
	"context"
	"fmt"
)

// CounterMaintenance keys the maintenance ID sequence.
const CounterMaintenance = "maintenance"

// AssetCounterKey keys the asset-number sequence of one category code and year.
func AssetCounterKey(code string, year int) string {
	return fmt.Sprintf("asset/%s/%d", code, year)
}

// Counters is a JSON object of monotonic sequence values.
type Counters struct {
	path      string
	writeFile func(path string, data []byte) error
}

// NewCounters returns the counters stored at path.
func NewCounters(path string) *Counters {
	return &Counters{path: path, writeFile: writeFileAtomic}
}

const countersCollection = "sequences"

// Read loads the counters. A missing document has no counters.
func (c *Counters) Read(ctx context.Context) (map[string]int64, error) {
	values, _, err := c.read(ctx)
	return values, err
}

func (c *Counters) read(ctx context.Context) (map[string]int64, snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, snapshot{}, err
	}
	values := map[string]int64{}
	snap, err := readDocument(c.path, &values)
	if err != nil {
		return nil, snap, &StoreError{Collection: countersCollection, Op: "read", Err: err}
	}
	if values == nil {
		values = map[string]int64{}
	}
	return values, snap, nil
}

// Write replaces the counters document.
func (c *Counters) Write(ctx context.Context, values map[string]int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if values == nil {
		values = map[string]int64{}
	}
	data, err := encodeDocument(values)
	if err != nil {
		return &StoreError{Collection: countersCollection, Op: "write", Err: err}
	}
	if err := c.writeFile(c.path, data); err != nil {
		return &StoreError{Collection: countersCollection, Op: "write", Err: err}
	}
	return nil
}

func (c *Counters) restore(snap snapshot) error {
	return restore(c.path, snap)
}

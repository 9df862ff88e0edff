// Package store persists violation records and the most-recent-first index
// of their ids on top of a kv.Store.
//
// Layout:
//
//	violation:<id>   JSON-encoded model.ViolationReport
//	violation_list   JSON array of ids, newest first
//
// A record and the index are separate keys with no multi-key transaction.
// Append writes the record first, so a failure between the two writes can
// leave an unindexed record but never an index entry without a record.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Twixes/mcpolice/internal/kv"
	"github.com/Twixes/mcpolice/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	recordKeyPrefix = "violation:"
	IndexKey        = "violation_list"
)

// ErrNotFound is returned when no record exists for an id
var ErrNotFound = errors.New("violation not found")

// Error reports a failure of the key/value collaborator
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RecordKey returns the key a record is stored under
func RecordKey(id string) string {
	return recordKeyPrefix + id
}

// Violations is the violation store
type Violations struct {
	kv               kv.Store
	logger           *slog.Logger
	fetchConcurrency int

	// indexMu serializes index read-modify-writes within this process.
	// Backends implementing kv.Updater also guard them across processes.
	indexMu sync.Mutex
}

// Option configures a Violations store
type Option func(*Violations)

// WithLogger sets the logger used for skipped records
func WithLogger(logger *slog.Logger) Option {
	return func(v *Violations) {
		v.logger = logger
	}
}

// WithFetchConcurrency sets how many records All reads in parallel
func WithFetchConcurrency(n int) Option {
	return func(v *Violations) {
		if n > 0 {
			v.fetchConcurrency = n
		}
	}
}

// New creates a violation store over backend
func New(backend kv.Store, opts ...Option) *Violations {
	v := &Violations{
		kv:               backend,
		logger:           slog.Default(),
		fetchConcurrency: 1,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Append stores rec and prepends its id to the index
func (v *Violations) Append(ctx context.Context, rec model.ViolationReport) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode violation %s: %w", rec.ID, err)
	}

	if err := v.kv.Put(ctx, RecordKey(rec.ID), data); err != nil {
		return &Error{Op: "put record", Err: err}
	}

	err = v.updateIndex(ctx, func(ids []string) []string {
		return append([]string{rec.ID}, ids...)
	})
	if err != nil {
		return &Error{Op: "update index", Err: err}
	}
	return nil
}

// Get returns the record stored under id
func (v *Violations) Get(ctx context.Context, id string) (model.ViolationReport, error) {
	data, err := v.kv.Get(ctx, RecordKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return model.ViolationReport{}, ErrNotFound
	}
	if err != nil {
		return model.ViolationReport{}, &Error{Op: "get record", Err: err}
	}

	var rec model.ViolationReport
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ViolationReport{}, &Error{Op: "decode record", Err: err}
	}
	return rec, nil
}

// ListIDs returns the index, newest first
func (v *Violations) ListIDs(ctx context.Context) ([]string, error) {
	data, err := v.kv.Get(ctx, IndexKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, &Error{Op: "get index", Err: err}
	}

	ids, err := decodeIndex(data)
	if err != nil {
		return nil, &Error{Op: "decode index", Err: err}
	}
	return ids, nil
}

// All returns every indexed record in index order. Index entries whose
// record is missing are logged and skipped.
func (v *Violations) All(ctx context.Context) ([]model.ViolationReport, error) {
	ids, err := v.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	slots := make([]*model.ViolationReport, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.fetchConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			rec, err := v.Get(gctx, id)
			if errors.Is(err, ErrNotFound) {
				v.logger.Warn("Index entry has no record", "id", id)
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]model.ViolationReport, 0, len(slots))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// ClearAll deletes every indexed record, then the index. It returns the
// index length before clearing. A failure part way through is not rolled
// back.
func (v *Violations) ClearAll(ctx context.Context) (int, error) {
	v.indexMu.Lock()
	defer v.indexMu.Unlock()

	ids, err := v.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := v.kv.Delete(ctx, RecordKey(id)); err != nil {
			return 0, &Error{Op: "delete record " + id, Err: err}
		}
	}
	if err := v.kv.Delete(ctx, IndexKey); err != nil {
		return 0, &Error{Op: "delete index", Err: err}
	}

	return len(ids), nil
}

// updateIndex applies mutate to the index under the process lock, using the
// backend's atomic Update when it has one
func (v *Violations) updateIndex(ctx context.Context, mutate func([]string) []string) error {
	v.indexMu.Lock()
	defer v.indexMu.Unlock()

	apply := func(current []byte, exists bool) ([]byte, error) {
		ids := []string{}
		if exists {
			var err error
			if ids, err = decodeIndex(current); err != nil {
				return nil, err
			}
		}
		return json.Marshal(mutate(ids))
	}

	if u, ok := v.kv.(kv.Updater); ok {
		return u.Update(ctx, IndexKey, apply)
	}

	current, err := v.kv.Get(ctx, IndexKey)
	exists := err == nil
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	next, err := apply(current, exists)
	if err != nil {
		return err
	}
	return v.kv.Put(ctx, IndexKey, next)
}

func decodeIndex(data []byte) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

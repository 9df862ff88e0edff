package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Twixes/mcpolice/internal/kv"
	"github.com/Twixes/mcpolice/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainKV hides the Updater capability of the wrapped store
type plainKV struct {
	kv.Store
}

// flakyKV fails selected operations
type flakyKV struct {
	kv.Store
	failPutKey    string
	failDeleteKey string
	failGet       bool
}

var errUnavailable = errors.New("collaborator unavailable")

func (f *flakyKV) Put(ctx context.Context, key string, value []byte) error {
	if key == f.failPutKey {
		return errUnavailable
	}
	return f.Store.Put(ctx, key, value)
}

func (f *flakyKV) Delete(ctx context.Context, key string) error {
	if key == f.failDeleteKey {
		return errUnavailable
	}
	return f.Store.Delete(ctx, key)
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errUnavailable
	}
	return f.Store.Get(ctx, key)
}

func record(id string) model.ViolationReport {
	ts := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return model.ViolationReport{
		ID:                      id,
		Timestamp:               ts,
		Statute:                 "Rome Statute Article 7",
		ResponsibleOrganization: "TestAI",
		OffendingContent:        "x",
		Violation: model.ViolationDetail{
			Description:  "Crimes against humanity",
			Severity:     model.SeverityCritical,
			Jurisdiction: []string{"International"},
		},
		Metadata: model.ReportMetadata{
			ReportedAt:      ts,
			ProtocolVersion: "2024-11-05",
			DetectedBy:      "test",
		},
	}
}

func TestAppend_KeysAndOrder(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, record(id)))
	}

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids)
	assert.Equal(t, []string{"violation:a", "violation:b", "violation:c", "violation_list"}, mem.Keys())

	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, record("b"), got)
}

func TestAppend_WithoutUpdater(t *testing.T) {
	ctx := context.Background()
	s := New(plainKV{kv.NewMemory()})

	require.NoError(t, s.Append(ctx, record("a")))
	require.NoError(t, s.Append(ctx, record("b")))

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestAppend_ConcurrentNoLostUpdates(t *testing.T) {
	backends := map[string]kv.Store{
		"updater": kv.NewMemory(),
		"plain":   plainKV{kv.NewMemory()},
	}

	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(backend)

			var wg sync.WaitGroup
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Append(ctx, record(fmt.Sprintf("id-%d", i))))
				}(i)
			}
			wg.Wait()

			ids, err := s.ListIDs(ctx)
			require.NoError(t, err)
			assert.Len(t, ids, 40)
		})
	}
}

func TestAppend_RecordWriteFailure(t *testing.T) {
	ctx := context.Background()
	s := New(&flakyKV{Store: kv.NewMemory(), failPutKey: RecordKey("a")})

	err := s.Append(ctx, record("a"))
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "put record", storeErr.Op)
	assert.ErrorIs(t, err, errUnavailable)

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAppend_IndexWriteFailureLeavesOrphan(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(plainKV{&flakyKV{Store: mem, failPutKey: IndexKey}})

	err := s.Append(ctx, record("a"))
	require.Error(t, err)

	// The record landed but is not indexed
	assert.Equal(t, []string{"violation:a"}, mem.Keys())
}

func TestGet_NotFound(t *testing.T) {
	s := New(kv.NewMemory())

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Put(ctx, RecordKey("bad"), []byte("{not json")))

	_, err := New(mem).Get(ctx, "bad")
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "decode record", storeErr.Op)
}

func TestListIDs_EmptyAndFailure(t *testing.T) {
	ctx := context.Background()

	ids, err := New(kv.NewMemory()).ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	_, err = New(&flakyKV{Store: kv.NewMemory(), failGet: true}).ListIDs(ctx)
	assert.ErrorIs(t, err, errUnavailable)
}

func TestAll_SkipsDanglingEntries(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem, WithFetchConcurrency(4))

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(ctx, record(id)))
	}
	require.NoError(t, mem.Delete(ctx, RecordKey("b")))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "d", all[0].ID)
	assert.Equal(t, "c", all[1].ID)
	assert.Equal(t, "a", all[2].ID)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.Append(ctx, record(id)))
	}

	n, err := s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, mem.Keys())

	n, err = s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClearAll_PartialFailure(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, record(id)))
	}

	flaky := New(&flakyKV{Store: mem, failDeleteKey: RecordKey("b")})
	_, err := flaky.ClearAll(ctx)
	require.Error(t, err)

	// "c" was deleted before the failure, the index still lists it
	assert.Equal(t, []string{"violation:a", "violation:b", "violation_list"}, mem.Keys())
	ids, _ := s.ListIDs(ctx)
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

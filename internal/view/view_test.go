package view_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/raphaelgruber/wikidesk/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int
	Name string
}

func TestLoaderLifecycle(t *testing.T) {
	backend := []record{{1, "Acme"}, {2, "Globex"}}
	l := view.NewLoader(func(ctx context.Context) ([]record, error) {
		return append([]record(nil), backend...), nil
	})
	assert.Equal(t, view.StatusIdle, l.Status())

	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, view.StatusReady, l.Status())
	assert.Equal(t, backend, l.Data())
	assert.NoError(t, l.Err())
}

func TestLoaderRefetchIsIdempotent(t *testing.T) {
	backend := []record{{1, "Acme"}, {2, "Globex"}}
	l := view.NewLoader(func(ctx context.Context) ([]record, error) {
		return append([]record(nil), backend...), nil
	})
	ctx := context.Background()

	require.NoError(t, l.Load(ctx))
	first := l.Data()
	require.NoError(t, l.Load(ctx))
	assert.Equal(t, first, l.Data(), "refetch without mutation yields equal state")
}

func TestLoaderFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("503")
	fail := false
	l := view.NewLoader(func(ctx context.Context) (string, error) {
		calls.Add(1)
		if fail {
			return "", boom
		}
		return "ok", nil
	})
	ctx := context.Background()

	require.NoError(t, l.Load(ctx))
	fail = true
	err := l.Load(ctx)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, view.StatusFailed, l.Status())
	assert.ErrorIs(t, l.Err(), boom)
	assert.Equal(t, "ok", l.Data(), "previous data kept")
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoaderCancelDropsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	l := view.NewLoader(func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "late", nil
	})

	done := make(chan error, 1)
	go func() { done <- l.Load(context.Background()) }()
	<-started

	l.Cancel()
	close(release)

	assert.ErrorIs(t, <-done, view.ErrStale)
	assert.Empty(t, l.Data())
	assert.Equal(t, view.StatusIdle, l.Status())
}

func TestMutateRefetches(t *testing.T) {
	backend := map[int]string{1: "Acme", 2: "Globex"}
	l := view.NewLoader(func(ctx context.Context) (int, error) {
		return len(backend), nil
	})
	ctx := context.Background()
	require.NoError(t, l.Load(ctx))

	err := view.Mutate(ctx, l, func(ctx context.Context) error {
		delete(backend, 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Data())
}

func TestMutateFailureSkipsRefetch(t *testing.T) {
	var loads int
	l := view.NewLoader(func(ctx context.Context) (int, error) {
		loads++
		return loads, nil
	})
	ctx := context.Background()
	require.NoError(t, l.Load(ctx))

	boom := errors.New("409 conflict")
	err := view.Mutate(ctx, l, func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, loads)
}

func TestBatch(t *testing.T) {
	var user string
	var items []record
	err := view.Batch(context.Background(),
		view.Into(&user, func(ctx context.Context) (string, error) { return "alice", nil }),
		view.Into(&items, func(ctx context.Context) ([]record, error) { return []record{{1, "Acme"}}, nil }),
	)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Len(t, items, 1)
}

func TestBatchFailsAsAWhole(t *testing.T) {
	boom := errors.New("500")
	err := view.Batch(context.Background(),
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestOffset(t *testing.T) {
	tests := []struct {
		page, size, skip, limit int
	}{
		{0, 10, 0, 10},
		{3, 25, 75, 25},
		{-1, 10, 0, 10},
		{2, 0, 0, 0},
	}
	for _, tt := range tests {
		skip, limit := view.Offset(tt.page, tt.size)
		assert.Equal(t, tt.skip, skip)
		assert.Equal(t, tt.limit, limit)
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, view.Slice(items, 0, 2))
	assert.Equal(t, []int{5}, view.Slice(items, 2, 2))
	assert.Empty(t, view.Slice(items, 3, 2))
	assert.Equal(t, items, view.Slice(items, 0, 0))
	assert.Equal(t, 3, view.PageCount(len(items), 2))
	assert.Equal(t, 0, view.PageCount(0, 2))
}

func TestFilterAndSort(t *testing.T) {
	items := []record{{3, "globex"}, {1, "Acme"}, {2, "acme labs"}}

	acme := view.Filter(items, func(r record) bool { return view.ContainsFold("ACME", r.Name) })
	assert.Equal(t, []record{{1, "Acme"}, {2, "acme labs"}}, acme)

	byID := view.SortBy(items, func(r record) int { return r.ID }, false)
	assert.Equal(t, []int{1, 2, 3}, []int{byID[0].ID, byID[1].ID, byID[2].ID})
	assert.Equal(t, 3, items[0].ID, "input untouched")

	desc := view.SortBy(items, func(r record) int { return r.ID }, true)
	assert.Equal(t, 3, desc[0].ID)

	assert.True(t, view.ContainsFold("", "anything"))
}

// Package view implements the fetch-render-mutate cycle shared by every list
// and detail screen: load on demand, apply results only while still current,
// and resynchronize by re-fetching after a mutation.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrStale is returned when a load finished after the loader was cancelled
// or a newer load started. Its result was discarded.
var ErrStale = errors.New("result discarded: view changed while loading")

// Status is the state of a Loader.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// FetchFunc reads the data shown by a view.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Loader holds one view's data. Every load carries a generation number and
// only the latest one may apply its result.
type Loader[T any] struct {
	fetch FetchFunc[T]

	mu     sync.Mutex
	data   T
	err    error
	status Status
	gen    uint64
}

// NewLoader returns an idle loader for fetch.
func NewLoader[T any](fetch FetchFunc[T]) *Loader[T] {
	return &Loader[T]{fetch: fetch}
}

// Load fetches and stores the result. A failure is stored and returned; it
// is never retried. Previously loaded data is kept on failure.
func (l *Loader[T]) Load(ctx context.Context) error {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.status = StatusLoading
	l.mu.Unlock()

	data, err := l.fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return ErrStale
	}
	if err != nil {
		l.err = err
		l.status = StatusFailed
		return err
	}
	l.data = data
	l.err = nil
	l.status = StatusReady
	return nil
}

// Cancel invalidates any in-flight load, as when the view goes away.
func (l *Loader[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.status == StatusLoading {
		l.status = StatusIdle
	}
}

// Data returns the last successfully loaded value.
func (l *Loader[T]) Data() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.data
}

// Err returns the last load error, or nil.
func (l *Loader[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Status returns the loader state.
func (l *Loader[T]) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Mutate runs a create/update/delete and, on success, reloads l so the view
// shows the server's state. Local data is never patched in place.
func Mutate[T any](ctx context.Context, l *Loader[T], mutation func(ctx context.Context) error) error {
	if err := mutation(ctx); err != nil {
		return err
	}
	return l.Load(ctx)
}

// Batch runs a fixed set of reads in parallel and waits for all of them.
// If any read fails the batch fails and the remaining reads are cancelled.
func Batch(ctx context.Context, reads ...func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, read := range reads {
		g.Go(func() error {
			return read(ctx)
		})
	}
	return g.Wait()
}

// Into adapts a typed fetch for Batch by storing its result in dst.
func Into[T any](dst *T, fetch FetchFunc[T]) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		v, err := fetch(ctx)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

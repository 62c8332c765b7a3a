// Package live turns store write notifications into re-running queries.
//
// A query is registered against a bus namespace. The caller receives the
// current result immediately and a fresh result after every write published
// under that namespace until its context is cancelled. Bursts of writes that
// arrive while a result is being produced or delivered collapse into a single
// re-run.
package live

import (
	"context"

	"github.com/matheus3301/phonecontact/internal/bus"
)

// Snapshot is one emission of a live query. A snapshot with a non-nil Err is
// the last one sent before the channel closes.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

// Loader produces the current result of a query.
type Loader[T any] func() ([]T, error)

// Watch runs load now and again on every event published under namespace.
// The returned channel is closed when ctx is done or load fails.
func Watch[T any](ctx context.Context, b *bus.Bus, namespace string, load Loader[T]) <-chan Snapshot[T] {
	out := make(chan Snapshot[T])

	// Subscribe before the first load so no write between the two is missed.
	events, unsub := b.Subscribe(namespace, 1)

	go func() {
		defer close(out)
		defer unsub()

		for {
			items, err := load()
			select {
			case out <- Snapshot[T]{Items: items, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}

			select {
			case <-events:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

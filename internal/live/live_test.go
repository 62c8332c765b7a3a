package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/phonecontact/internal/bus"
)

func next[T any](t *testing.T, ch <-chan Snapshot[T]) Snapshot[T] {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return s
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return Snapshot[T]{}
}

func TestWatchEmitsInitialAndOnChange(t *testing.T) {
	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	ch := Watch(ctx, b, bus.KindContactsChanged, func() ([]int, error) {
		n := int(calls.Add(1))
		return []int{n}, nil
	})

	if s := next(t, ch); len(s.Items) != 1 || s.Items[0] != 1 {
		t.Errorf("initial snapshot = %+v, want [1]", s)
	}

	b.Publish(bus.NewEvent(bus.KindContactsChanged, nil))
	if s := next(t, ch); s.Items[0] != 2 {
		t.Errorf("second snapshot = %+v, want [2]", s)
	}
}

func TestWatchIgnoresOtherNamespaces(t *testing.T) {
	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Watch(ctx, b, bus.KindContactsChanged, func() ([]string, error) {
		return []string{"x"}, nil
	})
	next(t, ch)

	b.Publish(bus.NewEvent(bus.KindSearchHistoryChanged, nil))
	select {
	case s := <-ch:
		t.Errorf("unexpected snapshot: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchCoalescesBursts(t *testing.T) {
	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	ch := Watch(ctx, b, "store.", func() ([]int32, error) {
		return []int32{calls.Add(1)}, nil
	})
	next(t, ch)

	// Nobody is reading, so at most one re-run can be pending.
	for range 10 {
		b.Publish(bus.NewEvent(bus.KindContactsChanged, nil))
	}
	time.Sleep(50 * time.Millisecond)

	next(t, ch)
	select {
	case s := <-ch:
		if s.Items[0] > 3 {
			t.Errorf("burst produced %d loads, want at most 3", s.Items[0])
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchCancelUnsubscribes(t *testing.T) {
	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := Watch(ctx, b, bus.KindContactsChanged, func() ([]int, error) {
		return nil, nil
	})
	next(t, ch)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A snapshot may race with cancellation; the close must follow.
			if _, ok := <-ch; ok {
				t.Error("channel not closed after cancel")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for b.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d after cancel, want 0", b.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchStopsOnLoadError(t *testing.T) {
	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("disk I/O error")
	ch := Watch(ctx, b, bus.KindContactsChanged, func() ([]int, error) {
		return nil, boom
	})

	s := next(t, ch)
	if !errors.Is(s.Err, boom) {
		t.Errorf("Err = %v, want %v", s.Err, boom)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should close after a failed load")
	}
}

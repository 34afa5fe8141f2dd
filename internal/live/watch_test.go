package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	got  []int
	seen chan int
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan int, 16)}
}

func (r *recorder) apply(v int) {
	r.mu.Lock()
	r.got = append(r.got, v)
	r.mu.Unlock()
	r.seen <- v
}

func (r *recorder) wait(t *testing.T) int {
	t.Helper()
	select {
	case v := <-r.seen:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return 0
	}
}

func TestWatch_InitialLoadThenUpdates(t *testing.T) {
	hub := NewHub()
	var counter atomic.Int64
	load := func(context.Context) (int, error) {
		return int(counter.Add(1)), nil
	}
	rec := newRecorder()

	cancel, err := Watch(context.Background(), hub, "t", load, rec.apply, nil)
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, 1, rec.wait(t))

	hub.Publish("t")
	require.Equal(t, 2, rec.wait(t))

	hub.Publish("t")
	require.Equal(t, 3, rec.wait(t))
}

func TestWatch_InitialFailureLeavesNothingRunning(t *testing.T) {
	hub := NewHub()
	boom := errors.New("boom")

	cancel, err := Watch(context.Background(), hub, "t",
		func(context.Context) (int, error) { return 0, boom },
		func(int) { t.Fatal("apply must not run") },
		nil,
	)

	require.ErrorIs(t, err, boom)
	require.Nil(t, cancel)
	require.Equal(t, 0, hub.Subscribers())
}

func TestWatch_LaterFailureKeepsFeedAlive(t *testing.T) {
	hub := NewHub()
	var calls atomic.Int64
	load := func(context.Context) (int, error) {
		n := calls.Add(1)
		if n == 2 {
			return 0, errors.New("transient")
		}
		return int(n), nil
	}
	errs := make(chan error, 4)
	rec := newRecorder()

	cancel, err := Watch(context.Background(), hub, "t", load, rec.apply, func(err error) { errs <- err })
	require.NoError(t, err)
	defer cancel()
	require.Equal(t, 1, rec.wait(t))

	hub.Publish("t")
	select {
	case err := <-errs:
		require.EqualError(t, err, "transient")
	case <-time.After(2 * time.Second):
		t.Fatal("error not reported")
	}

	hub.Publish("t")
	require.Equal(t, 3, rec.wait(t))
}

func TestWatch_CancelStopsDeliveries(t *testing.T) {
	hub := NewHub()
	rec := newRecorder()

	cancel, err := Watch(context.Background(), hub, "t",
		func(context.Context) (int, error) { return 7, nil },
		rec.apply, nil)
	require.NoError(t, err)
	rec.wait(t)

	cancel()
	cancel()
	require.Equal(t, 0, hub.Subscribers())

	hub.Publish("t")
	select {
	case v := <-rec.seen:
		t.Fatalf("unexpected delivery %d after cancel", v)
	case <-time.After(50 * time.Millisecond):
	}
}

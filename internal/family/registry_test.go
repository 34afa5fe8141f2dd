package family

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giftlist/internal/logger"
)

func TestRegistry_GetReusesPerSession(t *testing.T) {
	f := newFixture()
	r := NewRegistry(f.store, f.hub, Options{Log: logger.Discard()})
	defer r.CloseAll()
	ctx := context.Background()

	first, err := r.Get(ctx, "s1", f.alice)
	require.NoError(t, err)
	again, err := r.Get(ctx, "s1", f.alice)
	require.NoError(t, err)
	require.Same(t, first, again)

	other, err := r.Get(ctx, "s2", f.bob)
	require.NoError(t, err)
	require.NotSame(t, first, other)
	require.Equal(t, 2, r.Len())
}

func TestRegistry_DifferentViewerReplacesController(t *testing.T) {
	f := newFixture()
	r := NewRegistry(f.store, f.hub, Options{Log: logger.Discard()})
	defer r.CloseAll()
	ctx := context.Background()

	asAlice, err := r.Get(ctx, "s1", f.alice)
	require.NoError(t, err)
	asBob, err := r.Get(ctx, "s1", f.bob)
	require.NoError(t, err)

	require.NotSame(t, asAlice, asBob)
	select {
	case <-asAlice.Done():
	default:
		t.Fatal("replaced controller was not closed")
	}
}

func TestRegistry_CloseAndCloseIdle(t *testing.T) {
	f := newFixture()
	r := NewRegistry(f.store, f.hub, Options{Log: logger.Discard()})
	ctx := context.Background()

	_, err := r.Get(ctx, "s1", f.alice)
	require.NoError(t, err)
	c2, err := r.Get(ctx, "s2", f.bob)
	require.NoError(t, err)

	r.Close("s1")
	r.Close("missing")
	_, ok := r.Lookup("s1")
	require.False(t, ok)

	require.Equal(t, 0, r.CloseIdle(time.Hour))
	c2.mu.Lock()
	c2.lastSeen = time.Now().Add(-2 * time.Hour)
	c2.mu.Unlock()
	require.Equal(t, 1, r.CloseIdle(time.Hour))
	require.Equal(t, 0, r.Len())

	require.Eventually(t, func() bool { return f.hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

func TestAsyncDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	a := NewAsync("rec", 8, func(_ context.Context, ev domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.(domain.TradeExecuted).TradeID)
		if len(got) == 3 {
			close(done)
		}
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	bus := New(testLogger())
	bus.SubscribeAll("async", a.Handle)
	for _, id := range []string{"a", "b", "c"} {
		bus.Publish(ctx, domain.TradeExecuted{TradeID: id})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestAsyncDropsWhenFull(t *testing.T) {
	a := NewAsync("slow", 1, func(context.Context, domain.Event) error { return nil }, testLogger())

	require.NoError(t, a.Handle(context.Background(), domain.PriceChangeEvent{}))
	err := a.Handle(context.Background(), domain.PriceChangeEvent{})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), a.Dropped())
}

func TestAsyncRunStopsOnCancel(t *testing.T) {
	a := NewAsync("idle", 0, func(context.Context, domain.Event) error { return nil }, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
}

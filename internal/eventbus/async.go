package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// ErrQueueFull is returned by Async.Handle when the buffer is full and the
// event was dropped.
var ErrQueueFull = errors.New("eventbus: queue full")

// Async moves a slow subscriber (network I/O) off the dispatch path. Handle
// enqueues without blocking; Run delivers in order on its own goroutine.
type Async struct {
	name    string
	h       Handler
	ch      chan domain.Event
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewAsync wraps h with a buffer of the given size.
func NewAsync(name string, buffer int, h Handler, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	return &Async{
		name:   name,
		h:      h,
		ch:     make(chan domain.Event, buffer),
		logger: logger.With(slog.String("component", "eventbus_async"), slog.String("subscriber", name)),
	}
}

// Handle enqueues ev. It never blocks.
func (a *Async) Handle(_ context.Context, ev domain.Event) error {
	select {
	case a.ch <- ev:
		return nil
	default:
		a.dropped.Add(1)
		return fmt.Errorf("%w: %s dropped %s", ErrQueueFull, a.name, ev.Topic())
	}
}

// Run delivers queued events until ctx is cancelled.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-a.ch:
			if err := a.h(ctx, ev); err != nil {
				a.logger.WarnContext(ctx, "async handler failed",
					slog.String("topic", string(ev.Topic())),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// Envelope is the JSON shape of every mirrored event.
type Envelope struct {
	Type      domain.Topic    `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// MirrorConfig names the keys the mirror writes.
type MirrorConfig struct {
	ChannelPrefix string        // Pub/Sub channel is prefix + topic
	Stream        string        // capped stream receiving every event
	Timeout       time.Duration // per-event deadline for Redis calls
}

// Mirror forwards bus events to an EventSink and keeps the StateCache
// current. Failures are returned to the bus, which logs them; they never
// reach the operation that produced the event.
type Mirror struct {
	cfg    MirrorConfig
	sink   domain.EventSink
	state  *StateCache
	now    func() time.Time
	logger *slog.Logger
}

// NewMirror creates a Mirror. state may be nil.
func NewMirror(cfg MirrorConfig, sink domain.EventSink, state *StateCache, logger *slog.Logger) *Mirror {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Mirror{
		cfg:    cfg,
		sink:   sink,
		state:  state,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "redis_mirror")),
	}
}

// Handle mirrors one event. It matches the bus handler signature.
func (m *Mirror) Handle(ctx context.Context, ev domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: mirror: marshal %s: %w", ev.Topic(), err)
	}
	data, err := json.Marshal(Envelope{Type: ev.Topic(), Payload: payload, Timestamp: m.now()})
	if err != nil {
		return fmt.Errorf("redis: mirror: marshal envelope: %w", err)
	}

	if err := m.sink.Publish(ctx, m.cfg.ChannelPrefix+string(ev.Topic()), data); err != nil {
		return fmt.Errorf("redis: mirror: %w", err)
	}
	if m.cfg.Stream != "" {
		if err := m.sink.StreamAppend(ctx, m.cfg.Stream, data); err != nil {
			return fmt.Errorf("redis: mirror: %w", err)
		}
	}
	if m.state != nil {
		if err := m.updateState(ctx, ev); err != nil {
			return fmt.Errorf("redis: mirror: %w", err)
		}
	}
	m.logger.DebugContext(ctx, "event mirrored", slog.String("type", string(ev.Topic())))
	return nil
}

func (m *Mirror) updateState(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.PriceChangeEvent:
		return m.state.SetMarketPrice(ctx, e.After)
	case domain.TradeExecuted:
		return m.state.SetPool(ctx, e.PoolAfter)
	case domain.PoolUpdated:
		return m.state.SetPool(ctx, e.Pool)
	}
	return nil
}

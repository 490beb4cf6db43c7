package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// streamMaxLen is the approximate cap on the event stream, enforced via
// XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// StreamMessage is one entry read back from an event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventStream implements domain.EventSink with Pub/Sub for live observers
// and a capped stream for replay.
type EventStream struct {
	rdb    *redis.Client
	maxLen int64
}

// NewEventStream creates an EventStream backed by c. maxLen <= 0 selects the
// default cap.
func NewEventStream(c *Client, maxLen int64) *EventStream {
	if maxLen <= 0 {
		maxLen = streamMaxLen
	}
	return &EventStream{rdb: c.rdb, maxLen: maxLen}
}

// Publish sends a payload to a Pub/Sub channel.
func (es *EventStream) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := es.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends a payload to stream, trimming it approximately to
// the configured length.
func (es *EventStream) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: es.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}
	if err := es.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel, which may be
// a glob pattern. The channel closes when ctx is cancelled.
func (es *EventStream) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = es.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = es.rdb.Subscribe(ctx, channel)
	}

	// Wait for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamRead reads up to count entries after lastID ("0" for the start).
// An empty result is not an error.
func (es *EventStream) StreamRead(ctx context.Context, stream, lastID string, count int) ([]StreamMessage, error) {
	results, err := es.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			var data []byte
			switch v := msg.Values["payload"].(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}
			messages = append(messages, StreamMessage{ID: msg.ID, Payload: data})
		}
	}
	return messages, nil
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

var _ domain.EventSink = (*EventStream)(nil)

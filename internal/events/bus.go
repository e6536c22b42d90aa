package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oremus-labs/ol-game-console/internal/logutil"
)

// Event is one stream frame travelling through the relay.
type Event struct {
	// ID is the event log id; set only for replayable frames.
	ID        string    `json:"id,omitempty"`
	Category  string    `json:"category"`
	Data      string    `json:"data"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus multiplexes events to connected clients (local + Redis backed).
type Bus struct {
	id     string
	client redis.UniversalClient
	logger *logutil.Logger
	ch     string
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int
}

// Options configure the bus.
type Options struct {
	Client  redis.UniversalClient
	Logger  *logutil.Logger
	Channel string
	// Buffer is the per-subscriber backlog; events beyond it are dropped.
	Buffer int
}

// NewBus creates a new event bus. With a Redis client it subscribes to the
// channel before returning so no event published afterwards is missed.
func NewBus(ctx context.Context, opts Options) (*Bus, error) {
	channel := opts.Channel
	if channel == "" {
		channel = "game-console-events"
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = logutil.Default()
	}
	bus := &Bus{
		id:          uuid.NewString(),
		client:      opts.Client,
		logger:      opts.Logger,
		ch:          channel,
		done:        make(chan struct{}),
		subscribers: make(map[chan Event]struct{}),
		buffer:      opts.Buffer,
	}
	if bus.client == nil {
		close(bus.done)
		return bus, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	pubsub := bus.client.Subscribe(ctx, bus.ch)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", bus.ch, err)
	}
	bus.cancel = cancel
	go bus.observeRedis(runCtx, pubsub)
	return bus, nil
}

// Close stops the Redis observer. Subscribers are closed by their own
// contexts.
func (b *Bus) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
}

// Publish delivers an event to local subscribers and, with Redis, to every
// other relay sharing the channel.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Origin = b.id

	if b.client != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if err := b.client.Publish(ctx, b.ch, payload).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
	}

	b.broadcast(evt)
	return nil
}

// Subscribe registers a subscriber and returns a channel plus a cancel func.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("dropping event for slow subscriber", map[string]interface{}{
				"category": evt.Category,
				"id":       evt.ID,
			})
		}
	}
}

// observeRedis forwards events published by other relays. Events this bus
// published were already broadcast locally and are skipped.
func (b *Bus) observeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer close(b.done)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error("redis subscriber error", err, map[string]interface{}{"channel": b.ch})
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			b.logger.Warn("invalid bus payload", map[string]interface{}{"error": err.Error()})
			continue
		}
		if evt.Origin == b.id {
			continue
		}
		b.broadcast(evt)
	}
}

package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "fanout:"

// envelope is the wire format published to Redis. Origin identifies the
// publishing process so it can skip its own messages when they echo back.
type envelope struct {
	Origin string          `json:"origin"`
	Key    string          `json:"key"`
	Data   json.RawMessage `json:"data"`
}

// Bridge extends a local Hub across processes via Redis pub/sub. Each
// Publish goes to the local hub synchronously and to Redis best-effort;
// Run feeds messages published by other processes into the local hub.
//
// Messages must be JSON-serializable. The bridge inherits the hub's
// no-replay semantics: Redis pub/sub drops messages with no subscriber.
type Bridge[T any] struct {
	client *redis.Client
	hub    *Hub[T]
	prefix string
	origin string
	logger *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

// BridgeOption configures a Bridge.
type BridgeOption[T any] func(*Bridge[T])

// WithBridgeLogger sets the logger for the Bridge.
func WithBridgeLogger[T any](logger *slog.Logger) BridgeOption[T] {
	return func(b *Bridge[T]) {
		b.logger = logger
	}
}

// WithChannelPrefix overrides the Redis channel prefix. All bridge instances
// that should see each other's messages must share the same prefix.
func WithChannelPrefix[T any](prefix string) BridgeOption[T] {
	return func(b *Bridge[T]) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// NewBridge creates a Redis bridge around the given local hub.
func NewBridge[T any](client *redis.Client, hub *Hub[T], opts ...BridgeOption[T]) *Bridge[T] {
	b := &Bridge[T]{
		client: client,
		hub:    hub,
		prefix: defaultChannelPrefix,
		origin: uuid.New().String(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers msg to local subscribers of key and broadcasts it to
// every peer process. A Redis failure is reported but local delivery has
// already happened by then.
func (b *Bridge[T]) Publish(ctx context.Context, key string, msg T) error {
	if key == "" {
		return ErrEmptyKey
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBridgeClosed
	}

	if err := b.hub.Publish(ctx, key, msg); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("fanout: encode message: %w", err)
	}
	payload, err := json.Marshal(envelope{Origin: b.origin, Key: key, Data: data})
	if err != nil {
		return fmt.Errorf("fanout: encode envelope: %w", err)
	}

	if err := b.client.Publish(ctx, b.prefix+key, payload).Err(); err != nil {
		return fmt.Errorf("fanout: redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the bridge's channel pattern and pumps peer messages
// into the local hub until ctx is cancelled or Close is called.
func (b *Bridge[T]) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBridgeClosed
	}
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	b.pubsub = pubsub
	b.mu.Unlock()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(ctx, m)
		}
	}
}

func (b *Bridge[T]) dispatch(ctx context.Context, m *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping malformed bridge message",
			slog.String("channel", m.Channel),
			slog.Any("error", err),
		)
		return
	}
	if env.Origin == b.origin {
		return // our own publish echoing back
	}
	if env.Key == "" {
		env.Key = strings.TrimPrefix(m.Channel, b.prefix)
	}

	var msg T
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping undecodable bridge message",
			slog.String("channel", m.Channel),
			slog.Any("error", err),
		)
		return
	}

	if err := b.hub.Publish(ctx, env.Key, msg); err != nil && !errors.Is(err, ErrHubClosed) {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "Local publish of bridged message failed",
			slog.String("key", env.Key),
			slog.Any("error", err),
		)
	}
}

// Close tears down the Redis subscription. The local hub is left open; the
// bridge owner decides its lifecycle separately.
func (b *Bridge[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}

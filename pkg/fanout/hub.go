package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Callback receives one published message. A callback that returns an error
// or panics only affects its own subscription; delivery to every other
// subscriber proceeds and the publisher never sees the failure.
type Callback[T any] func(ctx context.Context, msg T) error

// Hub is an in-process fan-out registry keyed by an arbitrary string,
// typically a user id. It carries no replay buffer: a subscriber registered
// after a publish does not receive that message.
//
// All methods are safe for concurrent use.
type Hub[T any] struct {
	subs   map[string]map[*subscription[T]]struct{}
	closed bool
	mu     sync.RWMutex
	logger *slog.Logger
}

type subscription[T any] struct {
	key string
	cb  Callback[T]
}

// HubOption configures a Hub.
type HubOption[T any] func(*Hub[T])

// WithHubLogger sets the logger used to report isolated callback failures.
func WithHubLogger[T any](logger *slog.Logger) HubOption[T] {
	return func(h *Hub[T]) {
		h.logger = logger
	}
}

// NewHub creates a new fan-out hub.
func NewHub[T any](opts ...HubOption[T]) *Hub[T] {
	h := &Hub[T]{
		subs:   make(map[string]map[*subscription[T]]struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers cb for all future publishes under key and returns a
// handle that removes the registration. The handle is idempotent. Multiple
// concurrent subscriptions per key are allowed; each receives every publish
// independently.
//
// Once the handle returns, the subscriber is guaranteed to receive nothing
// from publishes that begin afterwards. Publishes already in flight may
// still complete against it.
func (h *Hub[T]) Subscribe(key string, cb Callback[T]) (func(), error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if cb == nil {
		return nil, ErrNilCallback
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &subscription[T]{key: key, cb: cb}
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*subscription[T]]struct{})
		h.subs[key] = set
	}
	set[sub] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.unsubscribe(sub)
		})
	}, nil
}

// Publish invokes every callback currently registered under key. The
// subscriber set is snapshotted before the first invocation, so an
// unsubscribe that returned before Publish began is always honored.
// Callback errors and panics are logged and absorbed; Publish only fails
// when the hub is unusable, never because a subscriber misbehaved.
func (h *Hub[T]) Publish(ctx context.Context, key string, msg T) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil
	}
	snapshot := make([]*subscription[T], 0, len(h.subs[key]))
	for sub := range h.subs[key] {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	// Callbacks run outside the lock so a slow subscriber never blocks
	// new subscriptions or other publishes.
	for _, sub := range snapshot {
		h.invoke(ctx, sub, msg)
	}
	return nil
}

func (h *Hub[T]) invoke(ctx context.Context, sub *subscription[T], msg T) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.LogAttrs(ctx, slog.LevelError, "Subscriber callback panicked",
				slog.String("key", sub.key),
				slog.Any("panic", r),
			)
		}
	}()

	if err := sub.cb(ctx, msg); err != nil {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "Subscriber callback failed",
			slog.String("key", sub.key),
			slog.Any("error", fmt.Errorf("fanout: callback: %w", err)),
		)
	}
}

// Subscribers returns the number of live subscriptions under key.
func (h *Hub[T]) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Close drops every subscription. Subsequent Subscribe calls fail with
// ErrHubClosed and Publish becomes a no-op. Close is idempotent.
func (h *Hub[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	clear(h.subs)
	return nil
}

func (h *Hub[T]) unsubscribe(sub *subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.key]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.key)
	}
}

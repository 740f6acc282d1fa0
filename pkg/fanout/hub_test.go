package fanout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackadvisor/advisorkit/pkg/fanout"
)

func collector(mu *sync.Mutex, got *[]string) fanout.Callback[string] {
	return func(ctx context.Context, msg string) error {
		mu.Lock()
		defer mu.Unlock()
		*got = append(*got, msg)
		return nil
	}
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()
	defer hub.Close()

	var mu sync.Mutex
	var a, b []string

	unsubA, err := hub.Subscribe("user-1", collector(&mu, &a))
	require.NoError(t, err)
	defer unsubA()
	unsubB, err := hub.Subscribe("user-1", collector(&mu, &b))
	require.NoError(t, err)
	defer unsubB()

	require.NoError(t, hub.Publish(context.Background(), "user-1", "hello"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hello"}, a)
	assert.Equal(t, []string{"hello"}, b)
}

func TestHub_KeysAreIsolated(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()
	defer hub.Close()

	var mu sync.Mutex
	var got []string
	unsub, err := hub.Subscribe("user-1", collector(&mu, &got))
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, hub.Publish(context.Background(), "user-2", "not for you"))

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got)
}

func TestHub_SubscribeValidation(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()
	defer hub.Close()

	_, err := hub.Subscribe("", func(ctx context.Context, msg string) error { return nil })
	assert.ErrorIs(t, err, fanout.ErrEmptyKey)

	_, err = hub.Subscribe("user-1", nil)
	assert.ErrorIs(t, err, fanout.ErrNilCallback)
}

func TestHub_NoReplay(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()
	defer hub.Close()

	require.NoError(t, hub.Publish(context.Background(), "user-1", "missed"))

	var mu sync.Mutex
	var got []string
	unsub, err := hub.Subscribe("user-1", collector(&mu, &got))
	require.NoError(t, err)
	defer unsub()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got, "a late subscriber never sees earlier publishes")
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()
	defer hub.Close()

	var mu sync.Mutex
	var got []string
	unsub, err := hub.Subscribe("user-1", collector(&mu, &got))
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), "user-1", "first"))
	unsub()
	require.NoError(t, hub.Publish(context.Background(), "user-1", "second"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first"}, got)
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()
	defer hub.Close()

	unsub, err := hub.Subscribe("user-1", func(ctx context.Context, msg string) error { return nil })
	require.NoError(t, err)

	unsub()
	assert.NotPanics(t, func() { unsub() })
	assert.Equal(t, 0, hub.Subscribers("user-1"))
}

func TestHub_FailingSubscriberDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()
	defer hub.Close()

	var delivered atomic.Int32

	unsubErr, err := hub.Subscribe("user-1", func(ctx context.Context, msg string) error {
		return errors.New("subscriber failure")
	})
	require.NoError(t, err)
	defer unsubErr()

	unsubPanic, err := hub.Subscribe("user-1", func(ctx context.Context, msg string) error {
		panic("subscriber panic")
	})
	require.NoError(t, err)
	defer unsubPanic()

	unsubOK, err := hub.Subscribe("user-1", func(ctx context.Context, msg string) error {
		delivered.Add(1)
		return nil
	})
	require.NoError(t, err)
	defer unsubOK()

	require.NoError(t, hub.Publish(context.Background(), "user-1", "msg"),
		"publisher never observes subscriber failures")
	assert.Equal(t, int32(1), delivered.Load())
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[string]()

	var delivered atomic.Int32
	_, err := hub.Subscribe("user-1", func(ctx context.Context, msg string) error {
		delivered.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close(), "close is idempotent")

	_, err = hub.Subscribe("user-1", func(ctx context.Context, msg string) error { return nil })
	assert.ErrorIs(t, err, fanout.ErrHubClosed)

	require.NoError(t, hub.Publish(context.Background(), "user-1", "dropped"))
	assert.Equal(t, int32(0), delivered.Load())
}

func TestHub_SubscribersCount(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[int]()
	defer hub.Close()

	assert.Equal(t, 0, hub.Subscribers("user-1"))

	unsub1, err := hub.Subscribe("user-1", func(ctx context.Context, msg int) error { return nil })
	require.NoError(t, err)
	unsub2, err := hub.Subscribe("user-1", func(ctx context.Context, msg int) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 2, hub.Subscribers("user-1"))
	unsub1()
	assert.Equal(t, 1, hub.Subscribers("user-1"))
	unsub2()
	assert.Equal(t, 0, hub.Subscribers("user-1"))
}

func TestHub_ConcurrentPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	hub := fanout.NewHub[int]()
	defer hub.Close()

	var wg sync.WaitGroup
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub, err := hub.Subscribe("user-1", func(ctx context.Context, msg int) error { return nil })
			if err == nil {
				unsub()
			}
		}()
		go func(n int) {
			defer wg.Done()
			_ = hub.Publish(ctx, "user-1", n)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 0, hub.Subscribers("user-1"))
}

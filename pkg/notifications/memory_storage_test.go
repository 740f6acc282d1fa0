package notifications

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotification(id, userID string, createdAt time.Time) Notification {
	return Notification{
		ID:        id,
		UserID:    userID,
		Kind:      KindReminder,
		Priority:  PriorityNormal,
		Title:     "title " + id,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryStorage_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	notif := newTestNotification("n1", "user-1", time.Now())
	require.NoError(t, s.Create(ctx, notif))

	got, err := s.Get(ctx, "user-1", "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", got.ID)
	assert.False(t, got.Read)

	_, err = s.Get(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	_, err = s.Get(ctx, "other-user", "n1")
	assert.ErrorIs(t, err, ErrNotificationNotFound, "notifications are scoped to their owner")
}

func TestMemoryStorage_PayloadIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	notif := newTestNotification("n1", "user-1", time.Now())
	notif.Data = map[string]any{"score": 10}
	require.NoError(t, s.Create(ctx, notif))

	// The producer mutating its own map after Create must not rewrite the
	// stored record.
	notif.Data["score"] = 99

	got, err := s.Get(ctx, "user-1", "n1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Data["score"])

	// Nor must a reader mutating what Get or List handed back.
	got.Data["score"] = -1
	listed, err := s.List(ctx, "user-1", ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 10, listed[0].Data["score"])

	listed[0].Data["score"] = 7
	fresh, err := s.Get(ctx, "user-1", "n1")
	require.NoError(t, err)
	assert.Equal(t, 10, fresh.Data["score"])
}

func TestMemoryStorage_CreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	err := s.Create(ctx, Notification{ID: "n1", Kind: KindReminder, Priority: PriorityNormal, Title: "T"})
	assert.ErrorIs(t, err, ErrEmptyUserID)

	err = s.Create(ctx, Notification{ID: "n1", UserID: "u", Kind: "nope", Priority: PriorityNormal, Title: "T"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestMemoryStorage_ListOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	base := time.Now()
	// Insert out of order on purpose.
	require.NoError(t, s.Create(ctx, newTestNotification("n2", "user-1", base.Add(2*time.Minute))))
	require.NoError(t, s.Create(ctx, newTestNotification("n0", "user-1", base)))
	require.NoError(t, s.Create(ctx, newTestNotification("n3", "user-1", base.Add(3*time.Minute))))
	require.NoError(t, s.Create(ctx, newTestNotification("n1", "user-1", base.Add(time.Minute))))

	got, err := s.List(ctx, "user-1", ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].CreatedAt.Before(got[i-1].CreatedAt),
			"list must be strictly newest first, got %s before %s", got[i-1].ID, got[i].ID)
	}
}

func TestMemoryStorage_ListOrderingTiesBrokenByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	ts := time.Now()
	require.NoError(t, s.Create(ctx, newTestNotification("a", "user-1", ts)))
	require.NoError(t, s.Create(ctx, newTestNotification("c", "user-1", ts)))
	require.NoError(t, s.Create(ctx, newTestNotification("b", "user-1", ts)))

	got, err := s.List(ctx, "user-1", ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{got[0].ID, got[1].ID, got[2].ID}, []string{"c", "b", "a"})
}

func TestMemoryStorage_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	base := time.Now()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("n%d", i)
		require.NoError(t, s.Create(ctx, newTestNotification(id, "user-1", base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.List(ctx, "user-1", ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n4", got[0].ID)

	got, err = s.List(ctx, "user-1", ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n2", got[0].ID)

	got, err = s.List(ctx, "user-1", ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.List(ctx, "user-1", ListOptions{Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestMemoryStorage_ListActiveOnlyExcludesExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := newTestNotification("old", "user-1", time.Now().Add(-2*time.Hour))
	expired.ExpiresAt = &past
	live := newTestNotification("live", "user-1", time.Now())
	live.ExpiresAt = &future

	require.NoError(t, s.Create(ctx, expired))
	require.NoError(t, s.Create(ctx, live))

	all, err := s.List(ctx, "user-1", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "plain list keeps expired entries")

	active, err := s.List(ctx, "user-1", ListOptions{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].ID)
}

func TestMemoryStorage_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	n1 := newTestNotification("n1", "user-1", time.Now())
	n1.Kind = KindAchievement
	n2 := newTestNotification("n2", "user-1", time.Now().Add(time.Second))
	n2.Kind = KindSystem
	require.NoError(t, s.Create(ctx, n1))
	require.NoError(t, s.Create(ctx, n2))
	require.NoError(t, s.MarkRead(ctx, "user-1", "n2"))

	unread, err := s.List(ctx, "user-1", ListOptions{OnlyUnread: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "n1", unread[0].ID)

	system, err := s.List(ctx, "user-1", ListOptions{Kinds: []Kind{KindSystem}})
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "n2", system[0].ID)
}

func TestMemoryStorage_MarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Create(ctx, newTestNotification("n1", "user-1", time.Now())))

	require.NoError(t, s.MarkRead(ctx, "user-1", "n1"))
	got, err := s.Get(ctx, "user-1", "n1")
	require.NoError(t, err)
	require.True(t, got.Read)
	firstReadAt := got.ReadAt

	// Second call: still read, no error, timestamps untouched.
	require.NoError(t, s.MarkRead(ctx, "user-1", "n1"))
	got, err = s.Get(ctx, "user-1", "n1")
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.Equal(t, firstReadAt, got.ReadAt)

	// Unknown ids are silently skipped.
	assert.NoError(t, s.MarkRead(ctx, "user-1", "missing"))

	count, err := s.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStorage_MarkAllRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("n%d", i)
		require.NoError(t, s.Create(ctx, newTestNotification(id, "user-1", time.Now())))
	}
	require.NoError(t, s.Create(ctx, newTestNotification("other", "user-2", time.Now())))

	require.NoError(t, s.MarkAllRead(ctx, "user-1"))

	count, err := s.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Another user's unread state is untouched.
	count, err = s.CountUnread(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStorage_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Create(ctx, newTestNotification("n1", "user-1", time.Now())))

	require.NoError(t, s.Delete(ctx, "user-1", "n1"))
	got, err := s.List(ctx, "user-1", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Deleting again is not an error.
	assert.NoError(t, s.Delete(ctx, "user-1", "n1"))

	count, err := s.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStorage_CountUnread(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	count, err := s.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, s.Create(ctx, newTestNotification("n1", "user-1", time.Now())))
	require.NoError(t, s.Create(ctx, newTestNotification("n2", "user-1", time.Now())))

	count, err = s.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkRead(ctx, "user-1", "n1"))
	count, err = s.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStorage_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := newTestNotification("old", "user-1", time.Now().Add(-2*time.Hour))
	expired.ExpiresAt = &past
	live := newTestNotification("live", "user-1", time.Now())
	live.ExpiresAt = &future
	forever := newTestNotification("forever", "user-1", time.Now())

	require.NoError(t, s.Create(ctx, expired))
	require.NoError(t, s.Create(ctx, live))
	require.NoError(t, s.Create(ctx, forever))

	removed, err := s.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := s.List(ctx, "user-1", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	count, err := s.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStorage_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("n%d", i)
			userID := fmt.Sprintf("user-%d", i%4)
			_ = s.Create(ctx, newTestNotification(id, userID, time.Now()))
			_, _ = s.List(ctx, userID, ListOptions{})
			_ = s.MarkRead(ctx, userID, id)
			_, _ = s.CountUnread(ctx, userID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		count, err := s.CountUnread(ctx, fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	}
}

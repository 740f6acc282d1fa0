package notifications

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development, testing, and single-process deployments that can
// tolerate losing history on restart.
type MemoryStorage struct {
	notifications map[string][]Notification // userID -> notifications, newest first
	unread        map[string]int            // userID -> unread counter, kept in sync on every mutation
	mu            sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string][]Notification),
		unread:        make(map[string]int),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		return NewStorageError("create", ErrNotificationNotFound)
	}
	if err := notif.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = now
	}
	if notif.UpdatedAt.IsZero() {
		notif.UpdatedAt = notif.CreatedAt
	}
	// Detach from the caller's payload map so later mutations by the producer
	// cannot rewrite the stored record.
	notif.Data = maps.Clone(notif.Data)

	list := s.notifications[notif.UserID]
	// Insert keeping newest-first order so List is a slice window.
	idx := sort.Search(len(list), func(i int) bool {
		return olderThan(list[i], notif)
	})
	list = append(list, Notification{})
	copy(list[idx+1:], list[idx:])
	list[idx] = notif
	s.notifications[notif.UserID] = list

	if !notif.Read {
		s.unread[notif.UserID]++
	}
	return nil
}

// olderThan orders newest first: by CreatedAt descending, ties broken by
// descending id so the order is total and stable across calls.
func olderThan(a, b Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *MemoryStorage) Get(ctx context.Context, userID, notifID string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications[userID] {
		if n.ID == notifID {
			// Return a copy, payload map included, to prevent external
			// mutation of stored data.
			notif := n
			notif.Data = maps.Clone(n.Data)
			return &notif, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (s *MemoryStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	filtered := make([]Notification, 0, len(s.notifications[userID]))
	for _, n := range s.notifications[userID] {
		if opts.ActiveOnly && n.IsExpired(now) {
			continue
		}
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Kinds) > 0 && !containsKind(opts.Kinds, n.Kind) {
			continue
		}
		n.Data = maps.Clone(n.Data)
		filtered = append(filtered, n)
	}

	start := opts.Offset
	if start > len(filtered) {
		return []Notification{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func (s *MemoryStorage) MarkRead(ctx context.Context, userID string, notifIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]struct{}, len(notifIDs))
	for _, id := range notifIDs {
		idSet[id] = struct{}{}
	}

	now := time.Now()
	list := s.notifications[userID]
	for i := range list {
		if _, ok := idSet[list[i].ID]; !ok {
			continue
		}
		if list[i].Read {
			continue
		}
		list[i].MarkAsRead(now)
		s.unread[userID]--
	}
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	list := s.notifications[userID]
	for i := range list {
		list[i].MarkAsRead(now)
	}
	delete(s.unread, userID)
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, userID string, notifIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]struct{}, len(notifIDs))
	for _, id := range notifIDs {
		idSet[id] = struct{}{}
	}

	list := s.notifications[userID]
	kept := list[:0]
	for _, n := range list {
		if _, ok := idSet[n.ID]; ok {
			if !n.Read {
				s.unread[userID]--
			}
			continue
		}
		kept = append(kept, n)
	}
	if len(kept) == 0 {
		delete(s.notifications, userID)
		delete(s.unread, userID)
	} else {
		s.notifications[userID] = kept
	}
	return nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[userID], nil
}

func (s *MemoryStorage) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, list := range s.notifications {
		kept := list[:0]
		for _, n := range list {
			if n.ExpiresAt != nil && n.ExpiresAt.Before(before) {
				if !n.Read {
					s.unread[userID]--
				}
				removed++
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == 0 {
			delete(s.notifications, userID)
			delete(s.unread, userID)
		} else {
			s.notifications[userID] = kept
		}
	}
	return removed, nil
}

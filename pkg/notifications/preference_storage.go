package notifications

import (
	"context"
	"sync"
	"time"
)

// PreferenceStorage handles preference persistence.
//
// Get never creates a record: absence is reported as ErrPreferencesNotFound
// and callers fall back to DefaultPreferences. Upsert performs the
// read-merge-write under a per-user serialization point so concurrent
// updates to disjoint fields are never lost.
type PreferenceStorage interface {
	Get(ctx context.Context, userID string) (*Preferences, error)
	Upsert(ctx context.Context, userID string, update PreferencesUpdate) (*Preferences, error)
}

// MemoryPreferenceStorage is an in-memory PreferenceStorage implementation.
type MemoryPreferenceStorage struct {
	prefs map[string]Preferences
	locks map[string]*sync.Mutex // per-user upsert serialization
	mu    sync.RWMutex
}

// NewMemoryPreferenceStorage creates a new in-memory preference storage.
func NewMemoryPreferenceStorage() *MemoryPreferenceStorage {
	return &MemoryPreferenceStorage{
		prefs: make(map[string]Preferences),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryPreferenceStorage) Get(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	// Copy the kinds map so callers cannot mutate stored state.
	cp := p
	cp.Kinds = make(map[Kind]bool, len(p.Kinds))
	for k, v := range p.Kinds {
		cp.Kinds[k] = v
	}
	return &cp, nil
}

func (s *MemoryPreferenceStorage) Upsert(ctx context.Context, userID string, update PreferencesUpdate) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	s.mu.RLock()
	current, exists := s.prefs[userID]
	s.mu.RUnlock()

	if !exists {
		current = DefaultPreferences(userID)
		current.CreatedAt = now
	} else {
		// Clone the kinds map so a failed validation never leaves a
		// half-applied update visible through the stored record.
		kinds := make(map[Kind]bool, len(current.Kinds))
		for k, v := range current.Kinds {
			kinds[k] = v
		}
		current.Kinds = kinds
	}

	update.Apply(&current, now)
	if err := current.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.prefs[userID] = current
	s.mu.Unlock()

	result := current
	result.Kinds = make(map[Kind]bool, len(current.Kinds))
	for k, v := range current.Kinds {
		result.Kinds[k] = v
	}
	return &result, nil
}

// userLock returns the mutex serializing upserts for one user, creating it
// on first use. Cross-user upserts never contend on these.
func (s *MemoryPreferenceStorage) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

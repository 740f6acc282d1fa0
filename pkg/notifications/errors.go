package notifications

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyUserID is returned when an operation is missing the owning user.
	ErrEmptyUserID = errors.New("notifications: user id is required")

	// ErrUnknownKind is returned when a producer submits a kind outside the closed enum.
	ErrUnknownKind = errors.New("notifications: unknown notification kind")

	// ErrInvalidPriority is returned for priorities outside the declared range.
	ErrInvalidPriority = errors.New("notifications: invalid priority")

	// ErrEmptyTitle is returned when a notification has no title.
	ErrEmptyTitle = errors.New("notifications: title is required")

	// ErrInvalidLimit is returned when a list is requested with a negative limit.
	ErrInvalidLimit = errors.New("notifications: limit must not be negative")

	// ErrNotificationNotFound is returned by Get when no record matches.
	// MarkRead and Delete deliberately no-op on missing ids instead.
	ErrNotificationNotFound = errors.New("notifications: notification not found")

	// ErrPreferencesNotFound is returned by preference Get when the user has
	// never written preferences. Callers fall back to DefaultPreferences.
	ErrPreferencesNotFound = errors.New("notifications: preferences not found")

	// ErrInvalidQuietHours is returned when quiet-hours markers are malformed
	// or only one of the pair is set.
	ErrInvalidQuietHours = errors.New("notifications: invalid quiet hours window")

	// ErrInvalidTimezone is returned when a timezone does not resolve to an
	// IANA location.
	ErrInvalidTimezone = errors.New("notifications: invalid timezone")
)

// StorageError wraps a storage backend failure with the operation that
// failed and whether the caller may retry it.
type StorageError struct {
	Op        string // storage operation, e.g. "create", "mark_read"
	Err       error
	Transient bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("notifications: storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a permanent storage failure for op.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// NewTransientStorageError wraps err as a retryable storage failure for op.
func NewTransientStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err, Transient: true}
}

// IsTransient reports whether err is a storage failure the caller may retry.
func IsTransient(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Transient
}

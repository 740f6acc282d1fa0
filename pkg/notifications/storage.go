package notifications

import (
	"context"
	"time"
)

// Storage handles notification persistence and retrieval.
//
// Implementations must be safe for concurrent use. MarkRead and Delete are
// idempotent: operating on an unknown or already-processed id is not an
// error. Failures are reported as *StorageError so callers can distinguish
// transient conditions from permanent ones.
type Storage interface {
	// Create stores a new notification. The record is either fully
	// persisted or not observable at all.
	Create(ctx context.Context, notif Notification) error

	// Get retrieves a single notification owned by userID.
	Get(ctx context.Context, userID, notifID string) (*Notification, error)

	// List returns the user's notifications, newest first, ties broken by
	// descending id. Expired entries are included unless opts.ActiveOnly.
	List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error)

	// MarkRead latches the given notifications as read and bumps their
	// update time. Already-read and unknown ids are skipped silently.
	MarkRead(ctx context.Context, userID string, notifIDs ...string) error

	// MarkAllRead latches every unread notification of the user in one
	// atomic operation.
	MarkAllRead(ctx context.Context, userID string) error

	// Delete permanently removes notifications. Unknown ids are ignored.
	Delete(ctx context.Context, userID string, notifIDs ...string) error

	// CountUnread returns the number of unread notifications for the user.
	// Implementations keep this indexed rather than scanning rows.
	CountUnread(ctx context.Context, userID string) (int, error)

	// DeleteExpired removes notifications whose expiry passed before the
	// given time. Intended for periodic maintenance sweeps; retrieval
	// already excludes expired entries where required, so eager deletion
	// is optional.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// ListOptions provides filtering and pagination options for listing notifications.
type ListOptions struct {
	Limit      int    // Maximum number of notifications to return (0 = no limit)
	Offset     int    // Number of notifications to skip for pagination
	OnlyUnread bool   // When true, only return unread notifications
	ActiveOnly bool   // When true, exclude notifications whose expiry has passed
	Kinds      []Kind // If specified, only return notifications of these kinds
}

// Validate rejects malformed pagination before the options reach storage.
func (o ListOptions) Validate() error {
	if o.Limit < 0 || o.Offset < 0 {
		return ErrInvalidLimit
	}
	for _, k := range o.Kinds {
		if !k.Valid() {
			return ErrUnknownKind
		}
	}
	return nil
}

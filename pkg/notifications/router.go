package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stackadvisor/advisorkit/pkg/fanout"
	"github.com/stackadvisor/advisorkit/pkg/logger"
)

// Publisher pushes a stored notification to the live subscribers of a user.
// Satisfied by *fanout.Hub[Notification] and *fanout.Bridge[Notification].
type Publisher interface {
	Publish(ctx context.Context, userID string, notif Notification) error
}

// Hub is the subscription surface the router exposes to transports.
// Satisfied by *fanout.Hub[Notification].
type Hub interface {
	Publisher
	Subscribe(userID string, cb fanout.Callback[Notification]) (func(), error)
}

// SubmitRequest is what a producer hands to the router. The payload is
// carried through unmodified; the router never branches on its contents.
type SubmitRequest struct {
	UserID    string
	Kind      Kind
	Title     string
	Message   string
	Data      map[string]any
	Priority  Priority
	ExpiresAt *time.Time
}

// Router is the single entry point for notification producers. Every submit
// is persisted regardless of the delivery decision; the policy engine only
// gates the real-time push.
type Router struct {
	storage   Storage
	prefs     PreferenceStorage
	hub       Hub
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger for the Router.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithPublisher overrides where delivered notifications are pushed. Used to
// swap in the Redis bridge in multi-instance deployments while Subscribe
// keeps serving the local hub.
func WithPublisher(p Publisher) RouterOption {
	return func(r *Router) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithClock overrides the router's time source. Test seam for quiet hours.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter creates a notification router.
func NewRouter(storage Storage, prefs PreferenceStorage, hub Hub, opts ...RouterOption) *Router {
	r := &Router{
		storage: storage,
		prefs:   prefs,
		hub:     hub,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.publisher == nil {
		r.publisher = hub
	}
	return r
}

// Submit validates, persists, and conditionally fans out a notification.
// The stored record is returned to the producer whether or not it was
// pushed, so the producer always has a durable outcome. A storage failure
// means no record exists and no push happened.
func (r *Router) Submit(ctx context.Context, req SubmitRequest) (*Notification, error) {
	now := r.now()
	notif := Notification{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Kind:      req.Kind,
		Priority:  req.Priority,
		Title:     req.Title,
		Message:   req.Message,
		Data:      req.Data,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: req.ExpiresAt,
	}
	if err := notif.Validate(); err != nil {
		return nil, err
	}

	prefs, err := r.preferencesOrDefault(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// Persist before deciding: suppression never discards data.
	if err := r.storage.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	decision, reason := Decide(notif.Kind, notif.Priority, prefs, now)
	if decision == DecisionSuppress {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "Real-time push suppressed",
			logger.NotificationID(notif.ID),
			logger.UserID(notif.UserID),
			logger.Kind(string(notif.Kind)),
			slog.String("reason", string(reason)),
		)
		return &notif, nil
	}

	// Push is best effort: the notification is already durable and will be
	// picked up through list/unread-count even if no subscriber saw it.
	if err := r.publisher.Publish(ctx, notif.UserID, notif); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to push notification, but it was stored",
			logger.NotificationID(notif.ID),
			logger.UserID(notif.UserID),
			logger.Error(err),
		)
	}

	return &notif, nil
}

// List returns a page of the user's notifications, newest first, filtered
// per opts. Expired entries are included unless opts.ActiveOnly; read ones
// unless opts.OnlyUnread.
func (r *Router) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return r.storage.List(ctx, userID, opts)
}

// CountUnread returns the user's unread notification count.
func (r *Router) CountUnread(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}
	return r.storage.CountUnread(ctx, userID)
}

// MarkRead latches the given notifications as read. Idempotent.
func (r *Router) MarkRead(ctx context.Context, userID string, notifIDs ...string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return r.storage.MarkRead(ctx, userID, notifIDs...)
}

// MarkAllRead latches every unread notification of the user.
func (r *Router) MarkAllRead(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return r.storage.MarkAllRead(ctx, userID)
}

// Delete permanently removes notifications. Idempotent.
func (r *Router) Delete(ctx context.Context, userID string, notifIDs ...string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return r.storage.Delete(ctx, userID, notifIDs...)
}

// GetPreferences returns the user's stored preferences, or the default
// baseline when none exist. The default is never persisted by a read.
func (r *Router) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return r.preferencesPtrOrDefault(ctx, userID)
}

// UpdatePreferences merges the partial update into the user's preferences,
// creating the record from the default baseline on first write.
func (r *Router) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return r.prefs.Upsert(ctx, userID, update)
}

// Subscribe registers a live callback for the user's delivered notifications
// and returns the handle that releases it. Callers must invoke the handle on
// disconnect.
func (r *Router) Subscribe(userID string, cb fanout.Callback[Notification]) (func(), error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	return r.hub.Subscribe(userID, cb)
}

// PurgeExpired removes notifications that expired before now. Intended to be
// called from a periodic maintenance job.
func (r *Router) PurgeExpired(ctx context.Context) (int, error) {
	return r.storage.DeleteExpired(ctx, r.now())
}

func (r *Router) preferencesOrDefault(ctx context.Context, userID string) (Preferences, error) {
	p, err := r.preferencesPtrOrDefault(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	return *p, nil
}

func (r *Router) preferencesPtrOrDefault(ctx context.Context, userID string) (*Preferences, error) {
	p, err := r.prefs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPreferencesNotFound) {
			def := DefaultPreferences(userID)
			return &def, nil
		}
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}

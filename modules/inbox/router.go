// Package inbox exposes the notification core to the dashboard over HTTP:
// a JSON API for retrieval, read-state, and preference management, plus a
// Server-Sent Events stream for real-time pushes.
//
// The package never resolves identity itself. Mount it behind the session
// middleware and make sure the authenticated user id is placed into the
// request context with WithUserID.
package inbox

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/stackadvisor/advisorkit/pkg/fanout"
	"github.com/stackadvisor/advisorkit/pkg/notifications"
)

// Service is what the inbox module needs from the notification core.
// Satisfied by *notifications.Router.
type Service interface {
	List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, notifIDs ...string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, notifIDs ...string) error
	GetPreferences(ctx context.Context, userID string) (*notifications.Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, update notifications.PreferencesUpdate) (*notifications.Preferences, error)
	Subscribe(userID string, cb fanout.Callback[notifications.Notification]) (func(), error)
}

// Router mounts the inbox endpoints:
//
//	GET    /              list notifications (limit, offset, unread, active)
//	GET    /unread-count  unread badge counter
//	POST   /read-all      mark everything read
//	POST   /{id}/read     mark one read
//	DELETE /{id}          delete one
//	GET    /preferences   current (or default) preferences
//	PATCH  /preferences   partial preference update
//	GET    /stream        SSE push stream
func Router(svc Service, opts ...Option) chi.Router {
	h := newHandlers(svc, opts...)

	r := chi.NewRouter()
	r.Use(RequireUser)

	r.Get("/", h.list)
	r.Get("/unread-count", h.unreadCount)
	r.Post("/read-all", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
	r.Delete("/{id}", h.delete)
	r.Get("/preferences", h.getPreferences)
	r.Patch("/preferences", h.updatePreferences)
	r.Get("/stream", h.stream)

	return r
}

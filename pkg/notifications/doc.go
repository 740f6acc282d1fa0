// Package notifications implements the notification core of the advisory
// dashboard: durable per-user notifications, delivery preferences, and the
// policy deciding which of them get pushed to live clients in real time.
//
// # Architecture
//
// The package is layered around a few small interfaces:
//
//   - Storage: notification persistence (memory, Postgres, SQLite)
//   - PreferenceStorage: per-user delivery configuration with merge upserts
//   - Decide: a pure policy function mapping (kind, priority, preferences,
//     time) to a deliver-or-suppress decision
//   - Router: the single producer entry point orchestrating all of the above
//     and handing delivered notifications to a fan-out hub
//
// Suppression is about disturbance, not visibility: a suppressed
// notification is persisted, shows up in listings, and counts as unread;
// only the real-time push is skipped, and it is never replayed later.
//
// # Basic Usage
//
//	storage := notifications.NewMemoryStorage()
//	prefs := notifications.NewMemoryPreferenceStorage()
//	hub := fanout.NewHub[notifications.Notification]()
//
//	router := notifications.NewRouter(storage, prefs, hub)
//
//	unsub, _ := router.Subscribe("user-123", func(ctx context.Context, n notifications.Notification) error {
//	    // push to the connected client
//	    return nil
//	})
//	defer unsub()
//
//	notif, err := router.Submit(ctx, notifications.SubmitRequest{
//	    UserID:   "user-123",
//	    Kind:     notifications.KindReminder,
//	    Priority: notifications.PriorityNormal,
//	    Title:    "Weekly review",
//	    Message:  "Your tooling review is due.",
//	})
//
// For multi-instance deployments, wrap the hub in a fanout.Bridge and pass
// it to the router with WithPublisher so pushes reach subscribers connected
// to other instances.
package notifications

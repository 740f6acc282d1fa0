// Package fanout provides per-key real-time fan-out of messages to live
// in-process subscribers, plus an optional Redis bridge that extends the
// same fan-out across processes.
//
// The hub holds no history. Subscriptions are ephemeral: they exist from
// Subscribe until the returned handle is invoked (or the hub closes) and
// never survive the process. A client that needs to catch up on missed
// messages must do so through its storage layer, not the hub.
//
// # Basic usage
//
//	hub := fanout.NewHub[string]()
//
//	unsub, _ := hub.Subscribe("user-1", func(ctx context.Context, msg string) error {
//	    fmt.Println("got:", msg)
//	    return nil
//	})
//	defer unsub()
//
//	_ = hub.Publish(ctx, "user-1", "hello")
//
// Callback failures (errors or panics) are logged and isolated to the
// failing subscriber; they never reach the publisher or other subscribers.
package fanout

// Package watch implements the subscriber loop of changeling-watch.
//
// A Loop owns one broker connection and one subscription. Messages arriving
// on the MQTT library's goroutine are queued in a bounded inbox; handlers run
// only on the goroutine that calls Run or ServiceOnce, one message at a time.
//
// # Lifecycle
//
//	Disconnected → Connected → Subscribed → Servicing → Stopped
//	                                                  ↘ Failed
//
// Start connects and subscribes. Run blocks until the context is cancelled
// (returning nil) or the connection is lost (returning an error wrapping
// mqtt.ErrConnectionLost). ServiceOnce dispatches what is pending without
// blocking, for callers that drive the loop themselves.
//
// # Usage
//
//	loop := watch.New(watch.Options{Filter: "changeling-status"}, watch.NewPrinter(os.Stdout), logger)
//	if err := loop.Start(ctx, dial); err != nil {
//	    return err
//	}
//	defer loop.Close()
//	return loop.Run(ctx)
package watch

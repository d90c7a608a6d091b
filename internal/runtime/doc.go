// Package runtime wires storage, cursors and config into a single killfeed
// node. It opens the Pebble database, selects the record source (Pebble
// killstore or SQLite) and the cursor store (Pebble, NATS KV or memory),
// runs the cursor sweeper, and builds delivery pollers.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	res := rt.Poller(nil).Poll(ctx, delivery.FeedRedisQ, "my-queue", 10, nil)
package runtime

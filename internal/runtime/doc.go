// Package runtime is the composition root of the feed generator. Open turns
// a validated configuration into the checkpoint store, one feed per
// definition (each with its own pebble store unless it is a view or a
// delegate), the op dispatcher and the feed URI route table. Nothing is
// registered after Open returns.
//
// Run drives the feeds from the configured stream and advances the
// checkpoint only after every feed has committed.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	defer rt.Close(context.Background())
//	_ = rt.CheckHealth(context.Background())
//	f, param, _ := rt.Routes().Resolve("at://did:plc:4nsduwlpivpuur4mqkbfvm6a/app.bsky.feed.generator/most-liked")
//	page, _ := f.Serve(ctx, feeds.ServeRequest{Limit: 30, Param: param})
package runtime

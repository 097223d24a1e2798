// Package httpserver serves the feed generator endpoints: the
// getFeedSkeleton and describeFeedGenerator XRPC methods, the did:web
// document, a debug view of feed rankings and a health check.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver

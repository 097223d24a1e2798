// Package client provides the operator commands of the `feedgen` binary.
//
// The feeds and debug commands talk to the HTTP endpoint of a running
// server; health talks to its gRPC health service. The checkpoint commands
// open the data directory directly and therefore need the server stopped.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it
// defaults to http://127.0.0.1:8080 and can be changed with FEEDGEN_HTTP.
// The gRPC address is read from FEEDGEN_GRPC (default 127.0.0.1:50051).
//
// Usage
//
//	feedgen feeds
//
//	feedgen debug mostliked --limit 10
//	feedgen debug at://did:plc:pnksqegntq5t3o7pusp2idx3/app.bsky.feed.generator/team:NYA
//	feedgen debug homeruns --param NYA
//
//	feedgen health
//	feedgen health mostliked popular
//
//	feedgen checkpoint get --data-dir ./data
//	feedgen checkpoint set 123456789 --data-dir ./data
package client

// Package serverrun exposes the Run entrypoint used by the CLI to start the
// feed generator: the firehose ingest loop plus the HTTP and gRPC servers,
// with signal handling and ordered shutdown.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Server.Hostname = "feeds.example.com"
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun

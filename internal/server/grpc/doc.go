// Package grpcserver hosts the operational gRPC endpoint of the feed
// generator: the standard grpc.health.v1 service, reporting one status per
// feed plus the overall status, and server reflection.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver

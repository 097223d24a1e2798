package grpcserver

import (
	"context"
	"time"

	logpkg "github.com/rzbill/feedgen/pkg/log"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// refreshHealth publishes one status per feed, keyed by feed name, and the
// overall status under the empty service name.
func (s *Server) refreshHealth(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, err := range s.rt.FeedHealth(ctx) {
		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			s.logger.Warn("feed unhealthy", logpkg.Feed(name), logpkg.Err(err))
		}
		s.health.SetServingStatus(name, status)
	}
	if err := s.rt.CheckHealth(ctx); err != nil {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
}

func (s *Server) watchHealth(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refreshHealth(ctx)
		}
	}
}

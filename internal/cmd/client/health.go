package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewHealthCommand queries the gRPC health service of a running server.
func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health [FEED...]",
		Short: "Check server health over gRPC",
		Long:  "Without arguments the overall status is reported; feed names report that feed alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("grpc")
			conn, err := dialGRPC(addr)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()
			cli := healthpb.NewHealthClient(conn)

			services := args
			if len(services) == 0 {
				services = []string{""}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			var unhealthy int
			for _, svc := range services {
				res, err := cli.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
				if err != nil {
					return fmt.Errorf("check %q: %w", svc, err)
				}
				name := svc
				if name == "" {
					name = "server"
				}
				if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
					unhealthy++
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, res.GetStatus())
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d unhealthy", unhealthy)
			}
			return nil
		},
	}
	cmd.Flags().String("grpc", grpcAddrFromEnv(), "gRPC server address")
	return cmd
}

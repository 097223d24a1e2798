package serverrun

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/rzbill/feedgen/internal/config"
	"github.com/rzbill/feedgen/internal/runtime"
	grpcserver "github.com/rzbill/feedgen/internal/server/grpc"
	httpserver "github.com/rzbill/feedgen/internal/server/http"
	logpkg "github.com/rzbill/feedgen/pkg/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Config cfgpkg.Config
	// Logger overrides the process logger built from Config.Log.
	Logger logpkg.Logger
}

// processLogger builds the process-wide logger from the log configuration,
// falling back to info-level text output.
func processLogger(cfg logpkg.Config) logpkg.Logger {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	l, err := logpkg.ApplyConfig(&cfg)
	if err == nil {
		return l
	}
	lvl := logpkg.InfoLevel
	if parsed, e := logpkg.ParseLevel(cfg.Level); e == nil {
		lvl = parsed
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
}

// Run opens the runtime, starts the ingest loop with the HTTP and gRPC
// servers, and blocks until ctx is cancelled or one of them fails. The
// ingest loop commits a final checkpoint before the runtime is closed.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	procLogger := opts.Logger
	if procLogger == nil {
		procLogger = processLogger(cfg.Log)
	}
	// Pebble logs through the standard library.
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: procLogger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.Background()); cerr != nil {
			procLogger.Error("runtime close failed", logpkg.Err(cerr))
		}
	}()

	procLogger.Info("Starting feed generator",
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Str("grpc", cfg.Server.GRPCAddr),
		logpkg.Str("stream", cfg.Stream.URL),
		logpkg.Str("did", cfg.ServiceDID()),
		logpkg.Int("feeds", len(rt.Feeds())),
	)

	g, gctx := errgroup.WithContext(sctx)
	hsrv := httpserver.New(rt, procLogger)
	g.Go(func() error { return hsrv.ListenAndServe(gctx, cfg.Server.HTTPAddr) })

	var gsrv *grpcserver.Server
	if cfg.Server.GRPCAddr != "" {
		gsrv = grpcserver.New(rt, procLogger)
		g.Go(func() error { return gsrv.ListenAndServe(gctx, cfg.Server.GRPCAddr) })
	}

	g.Go(func() error {
		err := rt.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err == nil && gctx.Err() == nil {
			return errors.New("ingest stopped unexpectedly")
		}
		return err
	})

	err = g.Wait()
	hsrv.Close()
	if gsrv != nil {
		gsrv.Close()
	}
	if err != nil {
		procLogger.Error("feed generator stopped", logpkg.Err(err))
	}
	return err
}

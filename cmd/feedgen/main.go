package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/rzbill/feedgen/internal/cmd/client"
	serverrun "github.com/rzbill/feedgen/internal/cmd/server"
	cfgpkg "github.com/rzbill/feedgen/internal/config"
	logpkg "github.com/rzbill/feedgen/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// initialize logger for CLI
	// Respect FEEDGEN_LOG_LEVEL for both CLI and server output
	level := os.Getenv(cfgpkg.EnvPrefix + "LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := clientcmd.NewRoot(apiURL)
	rootCmd.Short = "Bluesky feed generator"
	rootCmd.Long = "feedgen consumes the Bluesky firehose, maintains ranked feeds and serves them over the feed generator XRPC methods."
	rootCmd.SilenceUsage = true

	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Ingest the firehose and serve feeds (HTTP and gRPC)",
		Aliases: []string{"start"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	runCmd.Flags().String("config", os.Getenv(cfgpkg.EnvPrefix+"CONFIG"), "Config file (.yaml, .yml or .json)")
	runCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	runCmd.Flags().String("http", "", "HTTP listen address")
	runCmd.Flags().String("grpc", "", "gRPC listen address (\"off\" disables)")
	runCmd.Flags().String("hostname", "", "Public hostname; the service DID defaults to did:web:<hostname>")
	runCmd.Flags().String("stream", "", "Firehose websocket URL")
	runCmd.Flags().String("codec", "", "Stream codec: repo|jetstream")
	runCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	runCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	runCmd.Flags().String("log-format", "", "Log format: text|json")
	rootCmd.AddCommand(runCmd)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then print the feed routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			for _, f := range cfg.Feeds {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-9s %s\n", f.Name, f.Kind, f.URI)
			}
			return nil
		},
	}
	validateCmd.Flags().String("config", os.Getenv(cfgpkg.EnvPrefix+"CONFIG"), "Config file (.yaml, .yml or .json)")
	rootCmd.AddCommand(validateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, FEEDGEN_* variables and
// command-line flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	cfg := cfgpkg.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := cfgpkg.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfgpkg.FromEnv(&cfg)

	str := func(name string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	str("data-dir", &cfg.DataDir)
	str("http", &cfg.Server.HTTPAddr)
	str("grpc", &cfg.Server.GRPCAddr)
	str("hostname", &cfg.Server.Hostname)
	str("stream", &cfg.Stream.URL)
	str("codec", &cfg.Stream.Codec)
	str("fsync", &cfg.Storage.Fsync)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	if cfg.Server.GRPCAddr == "off" {
		cfg.Server.GRPCAddr = ""
	}
	return cfg, nil
}

func apiURL() string {
	if v := os.Getenv(cfgpkg.EnvPrefix + "HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

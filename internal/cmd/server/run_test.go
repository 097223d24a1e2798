package serverrun

import (
	"context"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/feedgen/internal/config"
	"github.com/rzbill/feedgen/internal/runtime"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Fsync = "never"
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	// Nothing listens on port 1.
	cfg.Stream.URL = "ws://127.0.0.1:1/xrpc/com.atproto.sync.subscribeRepos"
	cfg.Stream.BackoffBase = cfgpkg.Duration(time.Millisecond)
	cfg.Stream.BackoffCap = cfgpkg.Duration(5 * time.Millisecond)
	return cfg
}

func quietLogger() logpkg.Logger {
	return logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
}

func TestProcessLoggerFallback(t *testing.T) {
	tests := []struct {
		name string
		cfg  logpkg.Config
	}{
		{"defaults", logpkg.Config{}},
		{"json debug", logpkg.Config{Level: "debug", Format: "json"}},
		{"bad level", logpkg.Config{Level: "loud", Format: "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if processLogger(tt.cfg) == nil {
				t.Fatal("nil logger")
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Config: cfg, Logger: quietLogger()}) }()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}

	// Every store was released.
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = rt.Close(context.Background())
}

func TestRunFailsWhenStreamUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stream.MaxAttempts = 1
	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), Options{Config: cfg, Logger: quietLogger()}) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "giving up") {
			t.Fatalf("want giving up error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Commit.Every = 0
	if err := Run(context.Background(), Options{Config: cfg, Logger: quietLogger()}); err == nil {
		t.Fatal("expected validation error")
	}
}

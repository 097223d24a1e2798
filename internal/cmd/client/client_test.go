package client

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func execute(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(func() string { return baseURL })
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCheckpointGetSet(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "", "checkpoint", "get", "--data-dir", dir)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "none" {
		t.Fatalf("fresh checkpoint: %q", out)
	}

	if _, err := execute(t, "", "checkpoint", "set", "4242", "--data-dir", dir); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Rewinding is allowed from the CLI.
	if _, err := execute(t, "", "checkpoint", "set", "17", "--data-dir", dir); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	out, err = execute(t, "", "checkpoint", "get", "--data-dir", dir)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "17" {
		t.Fatalf("checkpoint: %q", out)
	}

	if _, err := execute(t, "", "checkpoint", "set", "-1", "--data-dir", dir); err == nil {
		t.Fatal("negative sequence accepted")
	}
}

func TestFeedsAndDebug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/feeds":
			_, _ = w.Write([]byte(`{"feeds":[{"name":"mostliked","kind":"decay","uri":"at://x/most-liked","healthy":true},{"name":"ratio","kind":"ratio","uri":"at://x/ratio","healthy":false,"error":"disk gone"}]}`))
		case "/debug/feed":
			if r.URL.Query().Get("feed") != "mostliked" || r.URL.Query().Get("limit") != "5" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"UnknownFeed","message":"nope"}`))
				return
			}
			_, _ = w.Write([]byte(`{"feed":"mostliked","kind":"decay","rows":[{"uri":"at://did:plc:a/app.bsky.feed.post/1","score":12.5,"age_sec":5400,"counters":[12]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "feeds")
	if err != nil {
		t.Fatalf("feeds: %v", err)
	}
	for _, want := range []string{"mostliked", "decay", "disk gone"} {
		if !strings.Contains(out, want) {
			t.Fatalf("feeds output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, srv.URL, "debug", "mostliked", "--limit", "5")
	if err != nil {
		t.Fatalf("debug: %v", err)
	}
	for _, want := range []string{"mostliked (decay)", "12.500", "90m", "at://did:plc:a/app.bsky.feed.post/1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("debug output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, srv.URL, "debug", "other"); err == nil || !strings.Contains(err.Error(), "UnknownFeed") {
		t.Fatalf("want UnknownFeed error, got %v", err)
	}
}

func startHealthServer(t *testing.T) (*health.Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hs := health.NewServer()
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return hs, lis.Addr().String()
}

func TestHealthCommand(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("mostliked", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("ratio", healthpb.HealthCheckResponse_NOT_SERVING)

	out, err := execute(t, "", "health", "--grpc", addr)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "server: SERVING") {
		t.Fatalf("output: %s", out)
	}

	out, err = execute(t, "", "health", "mostliked", "ratio", "--grpc", addr)
	if err == nil {
		t.Fatal("unhealthy feed reported success")
	}
	if !strings.Contains(out, "ratio: NOT_SERVING") {
		t.Fatalf("output: %s", out)
	}
}

func TestFormatAge(t *testing.T) {
	cases := map[float64]string{30: "30s", 600: "10m", 5400: "90m", 3 * 3600: "3.0h", 3 * 86400: "3.0d"}
	for in, want := range cases {
		if got := formatAge(in); got != want {
			t.Errorf("formatAge(%v) = %q, want %q", in, got, want)
		}
	}
}

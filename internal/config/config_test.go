package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Commit.Every != 2500 || cfg.Commit.Interval.D() != time.Minute {
		t.Fatalf("commit defaults: %+v", cfg.Commit)
	}
	if cfg.Stream.Codec != CodecRepo {
		t.Fatalf("codec default %q", cfg.Stream.Codec)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	names := map[string]string{}
	for _, f := range cfg.Feeds {
		names[f.Name] = f.Kind
	}
	for name, kind := range map[string]string{
		"mostliked": KindDecay, "popular": KindView, "rapidfire": KindRecency,
		"sdw": KindPattern, "popqp": KindRefcount, "ratio": KindRatio,
		"outline": KindRecency, "homeruns": KindTagIndex, "nz-interesting": KindDelegate,
	} {
		if names[name] != kind {
			t.Fatalf("feed %s: kind %q want %q", name, names[name], kind)
		}
	}
	if cfg.ServiceDID() != "did:web:localhost" {
		t.Fatalf("service did %s", cfg.ServiceDID())
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "feedgen.yaml")
	data := []byte(`
dataDir: /srv/feedgen
stream:
  url: wss://jetstream1.us-west.bsky.network/subscribe
  codec: jetstream
commit:
  every: 100
  interval: 30s
server:
  hostname: feeds.example.com
feeds:
  - name: quick
    kind: recency
    uri: at://did:plc:x/app.bsky.feed.generator/quick
    match:
      collections: [app.bsky.feed.post]
    params:
      maxRunes: 80
      window: 10m
  - name: loved
    kind: decay
    uri: at://did:plc:x/app.bsky.feed.generator/loved
    params:
      tau: 3600
      signals: [like, repost]
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/feedgen" || cfg.Stream.Codec != CodecJetstream {
		t.Fatalf("top level: %+v", cfg)
	}
	if cfg.Commit.Every != 100 || cfg.Commit.Interval.D() != 30*time.Second {
		t.Fatalf("commit: %+v", cfg.Commit)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("unset fields keep defaults: %q", cfg.Server.HTTPAddr)
	}
	if len(cfg.Feeds) != 2 {
		t.Fatalf("feeds replace defaults: %d", len(cfg.Feeds))
	}
	if cfg.Feeds[0].Params.Window.D() != 10*time.Minute || cfg.Feeds[0].Params.MaxRunes != 80 {
		t.Fatalf("quick params: %+v", cfg.Feeds[0].Params)
	}
	if cfg.Feeds[1].Params.Tau.D() != time.Hour || len(cfg.Feeds[1].Params.Signals) != 2 {
		t.Fatalf("loved params: %+v", cfg.Feeds[1].Params)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ServiceDID() != "did:web:feeds.example.com" {
		t.Fatalf("service did %s", cfg.ServiceDID())
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "feedgen.json")
	data := []byte(`{"commit":{"every":10,"interval":"5s"},"storage":{"fsync":"always"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Commit.Every != 10 || cfg.Commit.Interval.D() != 5*time.Second || cfg.Storage.Fsync != "always" {
		t.Fatalf("json values: %+v %+v", cfg.Commit, cfg.Storage)
	}
	if len(cfg.Feeds) != len(DefaultFeeds()) {
		t.Fatalf("absent feeds keep the default set")
	}

	b, err := json.Marshal(cfg.Commit)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"5s"`) {
		t.Fatalf("durations marshal as strings: %s", b)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
	file := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(file, []byte("commit:\n  interval: soon\n"), 0644)
	if _, err := Load(file); err == nil {
		t.Fatalf("bad duration should fail")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config { return Default() }
	cases := map[string]func(*Config){
		"codec":          func(c *Config) { c.Stream.Codec = "protobuf" },
		"commit":         func(c *Config) { c.Commit.Every = 0 },
		"no feeds":       func(c *Config) { c.Feeds = nil },
		"duplicate":      func(c *Config) { c.Feeds = append(c.Feeds, c.Feeds[0]) },
		"unknown kind":   func(c *Config) { c.Feeds[0].Kind = "magic" },
		"missing uri":    func(c *Config) { c.Feeds[0].URI = "" },
		"bad regex":      func(c *Config) { c.Feeds[0].Match.Regex = "(" },
		"bad signal":     func(c *Config) { c.Feeds[0].Params.Signals = []string{"boost"} },
		"view source":    func(c *Config) { c.Feeds[1].Source = "nope" },
		"view of view":   func(c *Config) { c.Feeds[1].Source = "popular" },
		"path separator": func(c *Config) { c.Feeds[0].Name = "a/b" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("FEEDGEN_STREAM_CODEC", "jetstream")
	t.Setenv("FEEDGEN_COMMIT_EVERY", "42")
	t.Setenv("FEEDGEN_COMMIT_INTERVAL", "15s")
	t.Setenv("FEEDGEN_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("FEEDGEN_LANGDETECT", "true")
	t.Setenv("FEEDGEN_LANGDETECT_LANGUAGES", "en, pt ,,ja")
	t.Setenv("FEEDGEN_STAGING_MIN_INTERACTIONS", "3")
	t.Setenv("FEEDGEN_STREAM_MAX_ATTEMPTS", "not-a-number")
	FromEnv(&cfg)
	if cfg.Stream.Codec != CodecJetstream {
		t.Fatalf("env override codec")
	}
	if cfg.Commit.Every != 42 || cfg.Commit.Interval.D() != 15*time.Second {
		t.Fatalf("env override commit: %+v", cfg.Commit)
	}
	if cfg.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("env override redis")
	}
	if !cfg.LangDetect.Enabled || strings.Join(cfg.LangDetect.Languages, ",") != "en,pt,ja" {
		t.Fatalf("env override langdetect: %+v", cfg.LangDetect)
	}
	if cfg.Staging.MinInteractions != 3 {
		t.Fatalf("env override staging")
	}
	if cfg.Stream.MaxAttempts != 0 {
		t.Fatalf("invalid values are ignored")
	}
}

func TestSDWPattern(t *testing.T) {
	re := regexp.MustCompile(sdwPattern)
	for text, want := range map[string]bool{
		"fuck":          true,
		"fuck\n":        true,
		"SHIT!!!":       true,
		"Tits ~ ":       true,
		"motherfucker.": true,
		"fuck\n\n":      false,
		"shit happens":  false,
		"\u017fhit":     false,
		"fuc\u212a":     false,
	} {
		if got := re.MatchString(text); got != want {
			t.Errorf("match %q = %v, want %v", text, got, want)
		}
	}
}

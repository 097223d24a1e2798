package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logpkg "github.com/rzbill/feedgen/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir holds one pebble directory per feed plus the checkpoint store.
	// Empty means DefaultDataDir().
	DataDir    string           `json:"dataDir" yaml:"dataDir"`
	Stream     StreamConfig     `json:"stream" yaml:"stream"`
	Commit     CommitConfig     `json:"commit" yaml:"commit"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Redis      RedisConfig      `json:"redis" yaml:"redis"`
	Staging    StagingConfig    `json:"staging" yaml:"staging"`
	LangDetect LangDetectConfig `json:"langDetect" yaml:"langDetect"`
	Log        logpkg.Config    `json:"log" yaml:"log"`
	Feeds      []FeedConfig     `json:"feeds" yaml:"feeds"`
}

// StreamConfig selects the upstream event stream.
type StreamConfig struct {
	URL string `json:"url" yaml:"url"`
	// Codec is repo (CBOR subscribeRepos frames) or jetstream (JSON events).
	Codec       string   `json:"codec" yaml:"codec"`
	BackoffBase Duration `json:"backoffBase" yaml:"backoffBase"`
	BackoffCap  Duration `json:"backoffCap" yaml:"backoffCap"`
	// MaxAttempts stops reconnecting after that many consecutive failures. Zero retries forever.
	MaxAttempts uint32 `json:"maxAttempts" yaml:"maxAttempts"`
}

// CommitConfig controls how often feeds are committed and the checkpoint advanced.
type CommitConfig struct {
	Every    int      `json:"every" yaml:"every"`
	Interval Duration `json:"interval" yaml:"interval"`
}

// StorageConfig tunes the pebble stores.
type StorageConfig struct {
	Fsync         string   `json:"fsync" yaml:"fsync"`
	FsyncInterval Duration `json:"fsyncInterval" yaml:"fsyncInterval"`
	// FlushInterval bounds how often a feed commit also flushes the memtable.
	FlushInterval Duration `json:"flushInterval" yaml:"flushInterval"`
	// CompactAfter compacts a feed's store after this many evictions.
	CompactAfter int `json:"compactAfter" yaml:"compactAfter"`
}

// ServerConfig configures the query surfaces.
type ServerConfig struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	GRPCAddr string `json:"grpcAddr" yaml:"grpcAddr"`
	// Hostname is the public host the feed generator is reachable at; it
	// derives the did:web service identity.
	Hostname string `json:"hostname" yaml:"hostname"`
	// ServiceDID overrides did:web:{Hostname}.
	ServiceDID string `json:"serviceDid" yaml:"serviceDid"`
	// PublisherDID is the account that publishes the feed generator records.
	PublisherDID string `json:"publisherDid" yaml:"publisherDid"`
}

// RedisConfig enables per-collection counters when Addr is set.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
	TotalKey string `json:"totalKey" yaml:"totalKey"`
	Every    int    `json:"every" yaml:"every"`
}

// StagingConfig bounds the staging map used by staged decay feeds.
type StagingConfig struct {
	Size            int      `json:"size" yaml:"size"`
	TTL             Duration `json:"ttl" yaml:"ttl"`
	MinInteractions float64  `json:"minInteractions" yaml:"minInteractions"`
	// MetaTTL is how long a post's creation time and languages are kept
	// while it waits for its first interactions.
	MetaTTL Duration `json:"metaTTL" yaml:"metaTTL"`
}

// LangDetectConfig enables fallback language tagging for posts that declare none.
type LangDetectConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Languages []string `json:"languages" yaml:"languages"`
	MinRunes  int      `json:"minRunes" yaml:"minRunes"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Stream: StreamConfig{
			URL:         "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos",
			Codec:       CodecRepo,
			BackoffBase: Duration(500 * time.Millisecond),
			BackoffCap:  Duration(30 * time.Second),
		},
		Commit: CommitConfig{
			Every:    2500,
			Interval: Duration(time.Minute),
		},
		Storage: StorageConfig{
			Fsync:         "interval",
			FsyncInterval: Duration(5 * time.Millisecond),
			CompactAfter:  100_000,
		},
		Server: ServerConfig{
			HTTPAddr:     ":8080",
			GRPCAddr:     ":50051",
			Hostname:     "localhost",
			PublisherDID: "did:plc:4nsduwlpivpuur4mqkbfvm6a",
		},
		Redis: RedisConfig{
			Prefix:   "",
			TotalKey: "ops",
			Every:    2500,
		},
		Staging: StagingConfig{
			Size:            1 << 20,
			TTL:             Duration(30 * time.Minute),
			MinInteractions: 5,
			MetaTTL:         Duration(6 * time.Hour),
		},
		Log: logpkg.Config{
			Level:  "info",
			Format: "text",
		},
		Feeds: DefaultFeeds(),
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
// Fields absent from the file keep their default values; a file that lists
// feeds replaces the default feed set.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	cfg.Feeds = nil
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if cfg.Feeds == nil {
		cfg.Feeds = DefaultFeeds()
	}
	return cfg, nil
}

// ServiceDID returns the configured service DID or did:web of the hostname.
func (c Config) ServiceDID() string {
	if c.Server.ServiceDID != "" {
		return c.Server.ServiceDID
	}
	return "did:web:" + c.Server.Hostname
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("config: stream.url is required")
	}
	switch c.Stream.Codec {
	case CodecRepo, CodecJetstream:
	default:
		return fmt.Errorf("config: stream.codec %q; use %s|%s", c.Stream.Codec, CodecRepo, CodecJetstream)
	}
	if c.Commit.Every <= 0 {
		return fmt.Errorf("config: commit.every must be positive")
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("config: no feeds configured")
	}
	byName := make(map[string]FeedConfig, len(c.Feeds))
	for _, f := range c.Feeds {
		if err := f.validate(); err != nil {
			return err
		}
		if _, dup := byName[f.Name]; dup {
			return fmt.Errorf("config: duplicate feed %q", f.Name)
		}
		byName[f.Name] = f
	}
	for _, f := range c.Feeds {
		if f.Kind != KindView {
			continue
		}
		src, ok := byName[f.Source]
		if !ok {
			return fmt.Errorf("config: feed %q: unknown source %q", f.Name, f.Source)
		}
		if !src.Stored() || src.Kind == KindView {
			return fmt.Errorf("config: feed %q: source %q has no store", f.Name, f.Source)
		}
	}
	return nil
}

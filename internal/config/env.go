package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FEEDGEN_"

func getenv(name string) string { return os.Getenv(EnvPrefix + name) }

// FromEnv overlays FEEDGEN_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("STREAM_URL"); v != "" {
		cfg.Stream.URL = v
	}
	if v := getenv("STREAM_CODEC"); v != "" {
		cfg.Stream.Codec = v
	}
	envUint32("STREAM_MAX_ATTEMPTS", &cfg.Stream.MaxAttempts)
	envInt("COMMIT_EVERY", &cfg.Commit.Every)
	envDuration("COMMIT_INTERVAL", &cfg.Commit.Interval)
	if v := getenv("FSYNC"); v != "" {
		cfg.Storage.Fsync = v
	}
	envDuration("FSYNC_INTERVAL", &cfg.Storage.FsyncInterval)
	envDuration("FLUSH_INTERVAL", &cfg.Storage.FlushInterval)
	envInt("COMPACT_AFTER", &cfg.Storage.CompactAfter)
	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := getenv("GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := getenv("HOSTNAME"); v != "" {
		cfg.Server.Hostname = v
	}
	if v := getenv("SERVICE_DID"); v != "" {
		cfg.Server.ServiceDID = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	envInt("REDIS_DB", &cfg.Redis.DB)
	if v := getenv("REDIS_PREFIX"); v != "" {
		cfg.Redis.Prefix = v
	}
	envInt("REDIS_EVERY", &cfg.Redis.Every)
	envInt("STAGING_SIZE", &cfg.Staging.Size)
	envDuration("STAGING_TTL", &cfg.Staging.TTL)
	envDuration("STAGING_META_TTL", &cfg.Staging.MetaTTL)
	if v := getenv("STAGING_MIN_INTERACTIONS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Staging.MinInteractions = f
		}
	}
	if v := getenv("LANGDETECT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LangDetect.Enabled = b
		}
	}
	if v := getenv("LANGDETECT_LANGUAGES"); v != "" {
		cfg.LangDetect.Languages = splitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envInt(name string, dst *int) {
	if v := getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envUint32(name string, dst *uint32) {
	if v := getenv(name); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func envDuration(name string, dst *Duration) {
	if v := getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	UIModeCLI = "cli"
	UIModeWS  = "ws"
)

type AppConfig struct {
	MetBaseURL   string
	MetRateLimit float64

	Rounds           int
	PoolSize         int
	OversampleFactor int
	FetchConcurrency int
	ProbeTimeout     time.Duration
	HTTPTimeout      time.Duration

	StoreBackend string
	RedisURL     string
	DatabaseURL  string

	UIMode string
	WSAddr string
	MsgDir string

	MetricsAddr string

	RNGSeed uint64
}

// Load reads an optional .env file and then the process environment.
// Invalid numbers keep their defaults.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from an arbitrary lookup, so tests need not touch the process env.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{
		MetBaseURL:       "https://collectionapi.metmuseum.org/public/collection/v1",
		MetRateLimit:     80,
		Rounds:           10,
		PoolSize:         30,
		OversampleFactor: 2,
		ProbeTimeout:     3 * time.Second,
		HTTPTimeout:      10 * time.Second,
		StoreBackend:     BackendAuto,
		UIMode:           UIModeCLI,
		WSAddr:           ":8080",
	}
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if v := get("MET_BASE_URL"); v != "" {
		cfg.MetBaseURL = strings.TrimRight(v, "/")
	}
	if v := get("MET_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.MetRateLimit = f
		}
	}
	positive(get("ROUNDS"), &cfg.Rounds)
	positive(get("POOL_SIZE"), &cfg.PoolSize)
	positive(get("OVERSAMPLE_FACTOR"), &cfg.OversampleFactor)
	if v := get("FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.FetchConcurrency = n
		}
	}
	millis(get("PROBE_TIMEOUT_MS"), &cfg.ProbeTimeout)
	millis(get("HTTP_TIMEOUT_MS"), &cfg.HTTPTimeout)

	cfg.RedisURL = get("REDIS_URL")
	cfg.DatabaseURL = get("DATABASE_URL")
	if v := strings.ToLower(get("STORE_BACKEND")); v != "" {
		cfg.StoreBackend = v
	}
	switch cfg.StoreBackend {
	case BackendAuto:
		switch {
		case cfg.DatabaseURL != "":
			cfg.StoreBackend = BackendPostgres
		case cfg.RedisURL != "":
			cfg.StoreBackend = BackendRedis
		default:
			cfg.StoreBackend = BackendMemory
		}
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, errors.New("STORE_BACKEND must be one of auto, memory, redis, postgres")
	}

	if v := strings.ToLower(get("UI_MODE")); v != "" {
		cfg.UIMode = v
	}
	if cfg.UIMode != UIModeCLI && cfg.UIMode != UIModeWS {
		return nil, errors.New("UI_MODE must be cli or ws")
	}
	if v := get("WS_ADDR"); v != "" {
		cfg.WSAddr = v
	}
	cfg.MsgDir = get("MSG_DIR")
	cfg.MetricsAddr = get("METRICS_ADDR")

	if v := get("RNG_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.RNGSeed = n
		}
	}
	return cfg, nil
}

// Candidates is the number of ids sampled before validation.
func (c *AppConfig) Candidates() int { return c.PoolSize * c.OversampleFactor }

func positive(v string, dst *int) {
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}

func millis(v string, dst *time.Duration) {
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Millisecond
	}
}

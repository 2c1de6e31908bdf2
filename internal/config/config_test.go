package config

import (
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Rounds != 10 || cfg.PoolSize != 30 || cfg.OversampleFactor != 2 || cfg.Candidates() != 60 {
		t.Fatalf("unexpected sizes: %+v", cfg)
	}
	if cfg.ProbeTimeout != 3*time.Second || cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg)
	}
	if cfg.StoreBackend != BackendMemory || cfg.UIMode != UIModeCLI || cfg.WSAddr != ":8080" {
		t.Fatalf("unexpected modes: %+v", cfg)
	}
	if cfg.MetRateLimit != 80 || cfg.MetricsAddr != "" {
		t.Fatalf("unexpected rate limit or metrics: %+v", cfg)
	}
}

func TestInvalidNumbersKeepDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"ROUNDS":            "zero",
		"POOL_SIZE":         "-4",
		"OVERSAMPLE_FACTOR": "0",
		"PROBE_TIMEOUT_MS":  "abc",
		"FETCH_CONCURRENCY": "-1",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Rounds != 10 || cfg.PoolSize != 30 || cfg.OversampleFactor != 2 || cfg.FetchConcurrency != 0 || cfg.ProbeTimeout != 3*time.Second {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"MET_BASE_URL":      " http://localhost:9000/v1/ ",
		"ROUNDS":            "5",
		"POOL_SIZE":         "15",
		"OVERSAMPLE_FACTOR": "3",
		"FETCH_CONCURRENCY": "8",
		"PROBE_TIMEOUT_MS":  "500",
		"UI_MODE":           "WS",
		"WS_ADDR":           "127.0.0.1:9999",
		"RNG_SEED":          "42",
		"MET_RATE_LIMIT":    "0",
		"METRICS_ADDR":      ":9100",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.MetBaseURL != "http://localhost:9000/v1" {
		t.Fatalf("base url = %q", cfg.MetBaseURL)
	}
	if cfg.Rounds != 5 || cfg.Candidates() != 45 || cfg.FetchConcurrency != 8 || cfg.ProbeTimeout != 500*time.Millisecond {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.UIMode != UIModeWS || cfg.WSAddr != "127.0.0.1:9999" || cfg.RNGSeed != 42 {
		t.Fatalf("unexpected ui settings: %+v", cfg)
	}
	if cfg.MetRateLimit != 0 || cfg.MetricsAddr != ":9100" {
		t.Fatalf("unexpected rate limit or metrics: %+v", cfg)
	}
}

func TestBackendSelection(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
		err  bool
	}{
		{name: "auto postgres", env: map[string]string{"DATABASE_URL": "postgres://x", "REDIS_URL": "redis://y"}, want: BackendPostgres},
		{name: "auto redis", env: map[string]string{"REDIS_URL": "redis://y"}, want: BackendRedis},
		{name: "explicit memory", env: map[string]string{"STORE_BACKEND": "memory", "REDIS_URL": "redis://y"}, want: BackendMemory},
		{name: "redis without url", env: map[string]string{"STORE_BACKEND": "redis"}, err: true},
		{name: "postgres without url", env: map[string]string{"STORE_BACKEND": "postgres"}, err: true},
		{name: "unknown", env: map[string]string{"STORE_BACKEND": "sqlite"}, err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := FromEnv(envOf(tc.env))
			if tc.err {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromEnv: %v", err)
			}
			if cfg.StoreBackend != tc.want {
				t.Fatalf("backend = %s, want %s", cfg.StoreBackend, tc.want)
			}
		})
	}
}

func TestUnknownUIMode(t *testing.T) {
	if _, err := FromEnv(envOf(map[string]string{"UI_MODE": "gtk"})); err == nil {
		t.Fatalf("expected an error")
	}
}

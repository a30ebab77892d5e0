package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FuhengZhao/foundationdb/observe"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
keys:
  file: jwks.json
store:
  in_memory: true
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Auth.Mandatory {
		t.Fatal("Mandatory defaulted to false")
	}
	if c.Auth.ClockSkew != 30*time.Second {
		t.Fatalf("ClockSkew = %v", c.Auth.ClockSkew)
	}
	if c.Auth.CacheTTL != 2*time.Minute {
		t.Fatalf("CacheTTL = %v", c.Auth.CacheTTL)
	}
	if c.Keys.RefreshInterval != 30*time.Second {
		t.Fatalf("RefreshInterval = %v", c.Keys.RefreshInterval)
	}
	if c.Observe.Logging.Level != "info" {
		t.Fatalf("Level = %q", c.Observe.Logging.Level)
	}
	if !filepath.IsAbs(c.Keys.File) {
		t.Fatalf("Keys.File not resolved: %q", c.Keys.File)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
auth:
  mandatory: false
  clock_skew: 10s
  cache_ttl: 5m
keys:
  url: https://keys.internal/jwks.json
  refresh_interval: 1m
store:
  dir: /var/lib/authz
observe:
  logging:
    level: debug
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Auth.Mandatory {
		t.Fatal("explicit mandatory: false not honored")
	}
	if c.Auth.ClockSkew != 10*time.Second || c.Auth.CacheTTL != 5*time.Minute {
		t.Fatalf("skew/ttl = %v/%v", c.Auth.ClockSkew, c.Auth.CacheTTL)
	}
	if c.Keys.URL != "https://keys.internal/jwks.json" || c.Keys.File != "" {
		t.Fatalf("keys = %q / %q", c.Keys.File, c.Keys.URL)
	}
	if c.Store.Dir != "/var/lib/authz" {
		t.Fatalf("Store.Dir = %q", c.Store.Dir)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			name: "no key source",
			body: "store:\n  in_memory: true\n",
			want: ErrNoKeySource,
		},
		{
			name: "two key sources",
			body: "keys:\n  file: a.json\n  url: https://x/jwks\nstore:\n  in_memory: true\n",
			want: ErrTwoKeySources,
		},
		{
			name: "no store",
			body: "keys:\n  file: a.json\n",
			want: ErrNoStoreDir,
		},
		{
			name: "bad log level",
			body: "keys:\n  file: a.json\nstore:\n  in_memory: true\nobserve:\n  logging:\n    level: loud\n",
			want: ErrBadLogLevel,
		},
		{
			name: "bad tracing exporter",
			body: "keys:\n  file: a.json\nstore:\n  in_memory: true\nobserve:\n  tracing:\n    enabled: true\n    exporter: carrier-pigeon\n",
			want: observe.ErrInvalidTracingExporter,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTHZ_AUTH_MANDATORY", "false")
	t.Setenv("AUTHZ_AUTH_CACHE_TTL", "45s")
	t.Setenv("AUTHZ_KEYS_URL", "https://env.internal/jwks.json")
	t.Setenv("AUTHZ_LOG_LEVEL", "WARN")
	t.Setenv("AUTHZ_TRACING_ENABLED", "true")
	t.Setenv("AUTHZ_TRACING_EXPORTER", "STDOUT")
	t.Setenv("AUTHZ_METRICS_EXPORTER", "prometheus")

	path := writeConfig(t, `
keys:
  file: jwks.json
store:
  in_memory: true
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Auth.Mandatory {
		t.Fatal("env mandatory override not applied")
	}
	if c.Auth.CacheTTL != 45*time.Second {
		t.Fatalf("CacheTTL = %v", c.Auth.CacheTTL)
	}
	// The URL override displaces the file source entirely.
	if c.Keys.URL != "https://env.internal/jwks.json" || c.Keys.File != "" {
		t.Fatalf("keys = %q / %q", c.Keys.File, c.Keys.URL)
	}
	if c.Observe.Logging.Level != "warn" {
		t.Fatalf("Level = %q", c.Observe.Logging.Level)
	}
	// Exporter names are normalized to lower case.
	if !c.Observe.Tracing.Enabled || c.Observe.Tracing.Exporter != "stdout" {
		t.Fatalf("Tracing = %+v", c.Observe.Tracing)
	}
	if c.Observe.Metrics.Exporter != "prometheus" {
		t.Fatalf("Metrics.Exporter = %q", c.Observe.Metrics.Exporter)
	}
}

func TestObserveConfigMapping(t *testing.T) {
	path := writeConfig(t, `
keys:
  file: jwks.json
store:
  in_memory: true
observe:
  service_name: gate-test
  logging:
    level: debug
  tracing:
    enabled: true
    exporter: stdout
    sample_pct: 0.5
  metrics:
    enabled: true
    exporter: stdout
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	oc := c.ObserveConfig()
	if oc.ServiceName != "gate-test" {
		t.Fatalf("ServiceName = %q", oc.ServiceName)
	}
	if !oc.Tracing.Enabled || oc.Tracing.Exporter != "stdout" || oc.Tracing.SamplePct != 0.5 {
		t.Fatalf("Tracing = %+v", oc.Tracing)
	}
	if !oc.Metrics.Enabled || oc.Metrics.Exporter != "stdout" {
		t.Fatalf("Metrics = %+v", oc.Metrics)
	}
	if !oc.Logging.Enabled || oc.Logging.Level != "debug" {
		t.Fatalf("Logging = %+v", oc.Logging)
	}
	if err := oc.Validate(); err != nil {
		t.Fatalf("observe validate: %v", err)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if !c.Auth.Mandatory {
		t.Fatal("Mandatory defaulted to false")
	}
	if c.Observe.ServiceName != "authz-gate" {
		t.Fatalf("ServiceName = %q", c.Observe.ServiceName)
	}
	// Default alone does not validate: callers layer a key source first.
	if err := c.Validate(); !errors.Is(err, ErrNoKeySource) {
		t.Fatalf("Validate = %v, want %v", err, ErrNoKeySource)
	}
}

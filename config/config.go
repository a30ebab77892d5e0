package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FuhengZhao/foundationdb/observe"
)

// Validation errors.
var (
	ErrNoKeySource    = errors.New("config: keys.file or keys.url must be set")
	ErrTwoKeySources  = errors.New("config: keys.file and keys.url are mutually exclusive")
	ErrBadLogLevel    = errors.New("config: invalid log level")
	ErrNoStoreDir     = errors.New("config: store.dir must be set")
	ErrNegativeWindow = errors.New("config: durations must be positive")
)

// Config is the deployment configuration for the authorization gate.
type Config struct {
	Auth struct {
		// Mandatory requires a token on every tenant transaction. Off
		// means tokenless sessions are administrative.
		Mandatory bool `yaml:"mandatory"`

		// ClockSkew is the tolerance applied to nbf/exp checks.
		ClockSkew time.Duration `yaml:"clock_skew"`

		// CacheTTL bounds how long a validated token decision is
		// reused without re-verification.
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"auth"`

	Keys struct {
		// File is a path to a local JWKS document.
		File string `yaml:"file"`

		// URL fetches the JWKS document over HTTP(S). Exactly one of
		// File and URL must be set.
		URL string `yaml:"url"`

		// RefreshInterval is the polling period for key rotation.
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"keys"`

	Store struct {
		// Dir is the data directory for the storage engine.
		Dir string `yaml:"dir"`

		// InMemory runs the engine without persistence, for tooling
		// and tests.
		InMemory bool `yaml:"in_memory"`
	} `yaml:"store"`

	Observe struct {
		ServiceName string `yaml:"service_name"`
		Version     string `yaml:"version"`

		Logging struct {
			// debug | info | warn | error
			Level string `yaml:"level"`
		} `yaml:"logging"`

		Tracing struct {
			Enabled bool `yaml:"enabled"`
			// otlp | jaeger | stdout | none
			Exporter  string  `yaml:"exporter"`
			SamplePct float64 `yaml:"sample_pct"`
		} `yaml:"tracing"`

		Metrics struct {
			Enabled bool `yaml:"enabled"`
			// otlp | prometheus | stdout | none
			Exporter string `yaml:"exporter"`
		} `yaml:"metrics"`
	} `yaml:"observe"`

	Health struct {
		// CheckTimeout bounds one full health check pass.
		CheckTimeout time.Duration `yaml:"check_timeout"`
	} `yaml:"health"`
}

// Load reads the YAML file at path, fills defaults, applies environment
// overrides, and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	// Authentication is on unless the file or environment turns it off.
	c.Auth.Mandatory = true
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	c.fillDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Relative paths resolve against the config file's directory.
	base := filepath.Dir(path)
	if c.Keys.File != "" && !filepath.IsAbs(c.Keys.File) {
		c.Keys.File = filepath.Clean(filepath.Join(base, c.Keys.File))
	}
	if c.Store.Dir != "" && !filepath.IsAbs(c.Store.Dir) && !c.Store.InMemory {
		c.Store.Dir = filepath.Clean(filepath.Join(base, c.Store.Dir))
	}

	return &c, nil
}

// Default builds a configuration from defaults and environment only, with no
// YAML file.
func Default() *Config {
	var c Config
	c.Auth.Mandatory = true
	c.fillDefaults()
	c.applyEnvOverrides()
	return &c
}

func (c *Config) fillDefaults() {
	if c.Auth.ClockSkew <= 0 {
		c.Auth.ClockSkew = 30 * time.Second
	}
	if c.Auth.CacheTTL <= 0 {
		c.Auth.CacheTTL = 2 * time.Minute
	}
	if c.Keys.RefreshInterval <= 0 {
		c.Keys.RefreshInterval = 30 * time.Second
	}
	if c.Observe.ServiceName == "" {
		c.Observe.ServiceName = "authz-gate"
	}
	if c.Observe.Logging.Level == "" {
		c.Observe.Logging.Level = "info"
	}
	if c.Observe.Tracing.Exporter == "" {
		c.Observe.Tracing.Exporter = "none"
	}
	if c.Observe.Tracing.SamplePct == 0 {
		c.Observe.Tracing.SamplePct = 1.0
	}
	if c.Observe.Metrics.Exporter == "" {
		c.Observe.Metrics.Exporter = "none"
	}
	if c.Health.CheckTimeout <= 0 {
		c.Health.CheckTimeout = 10 * time.Second
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Keys.File == "" && c.Keys.URL == "" {
		return ErrNoKeySource
	}
	if c.Keys.File != "" && c.Keys.URL != "" {
		return ErrTwoKeySources
	}
	if c.Store.Dir == "" && !c.Store.InMemory {
		return ErrNoStoreDir
	}
	switch strings.ToLower(c.Observe.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrBadLogLevel, c.Observe.Logging.Level)
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		return err
	}
	if c.Auth.ClockSkew <= 0 || c.Auth.CacheTTL <= 0 || c.Keys.RefreshInterval <= 0 {
		return ErrNegativeWindow
	}
	return nil
}

// ObserveConfig maps the observe section onto the telemetry package's config.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     c.Observe.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Enabled,
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Enabled,
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   strings.ToLower(c.Observe.Logging.Level),
		},
	}
}

// applyEnvOverrides layers AUTHZ_* environment variables over the file.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvBool("AUTHZ_AUTH_MANDATORY"); ok {
		c.Auth.Mandatory = v
	}
	if v, ok := getEnvDur("AUTHZ_AUTH_CLOCK_SKEW"); ok {
		c.Auth.ClockSkew = v
	}
	if v, ok := getEnvDur("AUTHZ_AUTH_CACHE_TTL"); ok {
		c.Auth.CacheTTL = v
	}
	if v, ok := getEnvStr("AUTHZ_KEYS_FILE"); ok {
		c.Keys.File = v
		c.Keys.URL = ""
	}
	if v, ok := getEnvStr("AUTHZ_KEYS_URL"); ok {
		c.Keys.URL = v
		c.Keys.File = ""
	}
	if v, ok := getEnvDur("AUTHZ_KEYS_REFRESH_INTERVAL"); ok {
		c.Keys.RefreshInterval = v
	}
	if v, ok := getEnvStr("AUTHZ_STORE_DIR"); ok {
		c.Store.Dir = v
	}
	if v, ok := getEnvBool("AUTHZ_STORE_IN_MEMORY"); ok {
		c.Store.InMemory = v
	}
	if v, ok := getEnvStr("AUTHZ_LOG_LEVEL"); ok {
		c.Observe.Logging.Level = strings.ToLower(v)
	}
	if v, ok := getEnvBool("AUTHZ_TRACING_ENABLED"); ok {
		c.Observe.Tracing.Enabled = v
	}
	// OTLP endpoints come from the standard OTEL_EXPORTER_* variables,
	// which the exporters read directly; only the exporter kind is
	// selectable here.
	if v, ok := getEnvStr("AUTHZ_TRACING_EXPORTER"); ok {
		c.Observe.Tracing.Exporter = strings.ToLower(v)
	}
	if v, ok := getEnvBool("AUTHZ_METRICS_ENABLED"); ok {
		c.Observe.Metrics.Enabled = v
	}
	if v, ok := getEnvStr("AUTHZ_METRICS_EXPORTER"); ok {
		c.Observe.Metrics.Exporter = strings.ToLower(v)
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

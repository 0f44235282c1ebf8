// ABOUTME: Configuration loading and parsing for league-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete league-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// BaseURL is the external URL of the gateway, used to build the
	// protected-resource metadata URL in auth challenges. If not set it is
	// derived from http_addr.
	BaseURL string `yaml:"base_url"`
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	// JWKSTTL is how long a fetched signing-key set is cached per issuer.
	JWKSTTL time.Duration `yaml:"-"`

	// DevelopmentMode accepts a caller-supplied X-Dev-Subject header in
	// place of a bearer token. Never enable outside local development.
	DevelopmentMode bool `yaml:"development_mode"`

	// AuthorizationURL is the "where to authenticate" resource advertised
	// in 401 challenges.
	AuthorizationURL string `yaml:"authorization_url"`

	JWKSTTLRaw string `yaml:"jwks_ttl"`
}

// StoreConfig holds the external credential/league store configuration
type StoreConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// UpstreamConfig holds the fantasy-data provider configuration
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// DiscoveryConfig holds season-discovery prober tuning
type DiscoveryConfig struct {
	// FloorYear is the earliest season year the prober will walk back to.
	FloorYear int `yaml:"floor_year"`

	// MissCutoff stops the walk after this many consecutive misses outside
	// the mandatory window.
	MissCutoff int `yaml:"miss_cutoff"`

	// MandatoryWindow is the number of most recent years always probed.
	MandatoryWindow int `yaml:"mandatory_window"`

	ProbeDelay time.Duration `yaml:"-"`
	RetryDelay time.Duration `yaml:"-"`

	ProbeDelayRaw string `yaml:"probe_delay"`
	RetryDelayRaw string `yaml:"retry_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults applied when the corresponding config field is absent.
const (
	DefaultJWKSTTL         = 5 * time.Minute
	DefaultStoreTimeout    = 10 * time.Second
	DefaultUpstreamTimeout = 7 * time.Second
	DefaultProbeDelay      = 750 * time.Millisecond
	DefaultRetryDelay      = 2 * time.Second
	DefaultFloorYear       = 2000
	DefaultMissCutoff      = 2
	DefaultMandatoryWindow = 2
)

// MinFloorYear is the hard lower bound for discovery.floor_year. Season
// years are 4-digit calendar years no earlier than this.
const MinFloorYear = 2000

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in zero-valued fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Auth.JWKSTTL == 0 {
		c.Auth.JWKSTTL = DefaultJWKSTTL
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = DefaultStoreTimeout
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if c.Discovery.ProbeDelay == 0 {
		c.Discovery.ProbeDelay = DefaultProbeDelay
	}
	if c.Discovery.RetryDelay == 0 {
		c.Discovery.RetryDelay = DefaultRetryDelay
	}
	if c.Discovery.FloorYear == 0 {
		c.Discovery.FloorYear = DefaultFloorYear
	}
	if c.Discovery.FloorYear < MinFloorYear {
		c.Discovery.FloorYear = MinFloorYear
	}
	if c.Discovery.MissCutoff == 0 {
		c.Discovery.MissCutoff = DefaultMissCutoff
	}
	if c.Discovery.MandatoryWindow == 0 {
		c.Discovery.MandatoryWindow = DefaultMandatoryWindow
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Server.BaseURL == "" && c.Server.HTTPAddr != "" {
		c.Server.BaseURL = "http://" + c.Server.HTTPAddr
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Store.BaseURL == "" {
		return fmt.Errorf("store.base_url is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Discovery.MissCutoff < 1 {
		return fmt.Errorf("discovery.miss_cutoff must be at least 1")
	}
	if c.Discovery.MandatoryWindow < 0 {
		return fmt.Errorf("discovery.mandatory_window cannot be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cfg.Auth.JWKSTTLRaw, "auth.jwks_ttl", &cfg.Auth.JWKSTTL},
		{cfg.Store.TimeoutRaw, "store.timeout", &cfg.Store.Timeout},
		{cfg.Upstream.TimeoutRaw, "upstream.timeout", &cfg.Upstream.Timeout},
		{cfg.Discovery.ProbeDelayRaw, "discovery.probe_delay", &cfg.Discovery.ProbeDelay},
		{cfg.Discovery.RetryDelayRaw, "discovery.retry_delay", &cfg.Discovery.RetryDelay},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

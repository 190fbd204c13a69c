package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/foxzi/siredir/internal/redirect"
)

// DefaultPath is tried when no config file is given on the command line
const DefaultPath = "./siredir-config.yaml"

// DefaultBindAddr is used when bind_to is empty
const DefaultBindAddr = "0.0.0.0:8080"

// Config is the main configuration structure
type Config struct {
	BindTo    []string         `yaml:"bind_to"`
	Redirects []RedirectConfig `yaml:"redirects"`
	Server    ServerConfig     `yaml:"server"`
	TLS       TLSConfig        `yaml:"tls"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// RedirectConfig is one entry of the redirects list
type RedirectConfig struct {
	Re          string `yaml:"re"`           // Matched against host + path + query
	RewriteRule string `yaml:"rewrite_rule"` // Template with $1 / ${name} backreferences
	StatusCode  int    `yaml:"status_code"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	ReadTimeout     time.Duration   `yaml:"read_timeout"`     // Default: 30s
	WriteTimeout    time.Duration   `yaml:"write_timeout"`    // Default: 30s
	IdleTimeout     time.Duration   `yaml:"idle_timeout"`     // Default: 60s
	MaxHeaderBytes  int             `yaml:"max_header_bytes"` // Default: 1MB
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"` // Default: 30s
	AllowedIPs      []string        `yaml:"allowed_ips"`      // IP addresses/CIDRs allowed to connect (empty = allow all)
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains request throttling settings
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"` // 0 = disabled
}

// TLSConfig contains HTTPS listener settings
type TLSConfig struct {
	ListenAddr string     `yaml:"listen_addr"` // Empty = no HTTPS listener
	CertFile   string     `yaml:"cert_file"`
	KeyFile    string     `yaml:"key_file"`
	ACME       ACMEConfig `yaml:"acme"`
}

// ACMEConfig contains Let's Encrypt ACME settings
type ACMEConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Default returns the configuration used when no config file is available
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env is optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	return Parse(data)
}

// LoadOrDefault loads path when it is set. Otherwise DefaultPath is tried and,
// if that fails, the default configuration is returned with usedDefault set.
func LoadOrDefault(path string) (cfg *Config, usedDefault bool, err error) {
	if path != "" {
		cfg, err = Load(path)
		return cfg, false, err
	}

	cfg, err = Load(DefaultPath)
	if err != nil {
		return Default(), true, nil
	}
	return cfg, false, nil
}

// Parse parses and validates configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if len(c.BindTo) == 0 {
		c.BindTo = []string{DefaultBindAddr}
	}

	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.MaxHeaderBytes == 0 {
		c.Server.MaxHeaderBytes = 1 << 20 // 1 MB
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.TLS.ACME.CacheDir == "" {
		c.TLS.ACME.CacheDir = "/var/lib/siredir/certs"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.BindTo) == 0 {
		return fmt.Errorf("bind_to must contain at least one address")
	}
	for i, addr := range c.BindTo {
		if addr == "" {
			return fmt.Errorf("bind_to[%d] is empty", i)
		}
	}

	for i, r := range c.Redirects {
		// net/http refuses to write codes outside this range
		if r.StatusCode < 100 || r.StatusCode > 999 {
			return fmt.Errorf("redirects[%d].status_code: %d is not a valid HTTP status code", i, r.StatusCode)
		}
	}

	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	return c.validateTLS()
}

// validateTLS validates TLS configuration
func (c *Config) validateTLS() error {
	tls := c.TLS
	hasCerts := tls.CertFile != "" || tls.KeyFile != ""
	hasACME := tls.ACME.Enabled

	if hasCerts && hasACME {
		return fmt.Errorf("cannot use both manual certificates and ACME")
	}

	if hasCerts {
		if tls.CertFile == "" {
			return fmt.Errorf("tls.cert_file is required when using manual certificates")
		}
		if tls.KeyFile == "" {
			return fmt.Errorf("tls.key_file is required when using manual certificates")
		}
	}

	if hasACME {
		if len(tls.ACME.Domains) == 0 {
			return fmt.Errorf("tls.acme.domains is required when ACME is enabled")
		}
		if tls.ACME.Email == "" {
			return fmt.Errorf("tls.acme.email is required when ACME is enabled")
		}
	}

	if tls.ListenAddr != "" && !hasCerts && !hasACME {
		return fmt.Errorf("tls.listen_addr requires cert_file/key_file or acme")
	}

	return nil
}

// Records converts the redirects list to rule records, keeping order
func (c *Config) Records() []redirect.Record {
	records := make([]redirect.Record, len(c.Redirects))
	for i, r := range c.Redirects {
		records[i] = redirect.Record{
			Pattern:    r.Re,
			Rewrite:    r.RewriteRule,
			StatusCode: r.StatusCode,
		}
	}
	return records
}

// RuleSet compiles the configured redirects
func (c *Config) RuleSet() (*redirect.RuleSet, error) {
	return redirect.NewRuleSet(c.Records())
}

var envVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:([^}]*))?\}`)

// expandEnvironmentVariables replaces ${VAR} and ${VAR:default}.
// Unset variables without a default are left as is.
func expandEnvironmentVariables(value string) string {
	return envVarRegex.ReplaceAllStringFunc(value, func(match string) string {
		m := envVarRegex.FindStringSubmatchIndex(match)
		if envValue, ok := os.LookupEnv(match[m[2]:m[3]]); ok {
			return envValue
		}
		if m[4] >= 0 {
			return match[m[6]:m[7]]
		}
		return match
	})
}

// expandEnv expands environment references in addresses and TLS settings.
// Redirect rules are left alone: ${name} there is a capture group reference.
func (c *Config) expandEnv() {
	for i := range c.BindTo {
		c.BindTo[i] = expandEnvironmentVariables(c.BindTo[i])
	}

	c.TLS.ListenAddr = expandEnvironmentVariables(c.TLS.ListenAddr)
	c.TLS.CertFile = expandEnvironmentVariables(c.TLS.CertFile)
	c.TLS.KeyFile = expandEnvironmentVariables(c.TLS.KeyFile)
	c.TLS.ACME.Email = expandEnvironmentVariables(c.TLS.ACME.Email)
	c.TLS.ACME.CacheDir = expandEnvironmentVariables(c.TLS.ACME.CacheDir)
	for i := range c.TLS.ACME.Domains {
		c.TLS.ACME.Domains[i] = expandEnvironmentVariables(c.TLS.ACME.Domains[i])
	}
}

// Package config loads netidentityd settings from the environment.
//
// Variables are read with the NETIDENTITY_ prefix. A .env file in the working
// directory, or any file passed to Load, is applied first; variables already
// set in the process environment take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/schnitzel/netidentity"
)

// Prefix is prepended to every environment variable name.
const Prefix = "NETIDENTITY_"

// Config holds service settings.
type Config struct {
	ListenAddr        string        `env:"LISTEN_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"auto"`

	Preset         string        `env:"PRESET" envDefault:"default"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ReverseDNS     bool          `env:"REVERSE_DNS" envDefault:"true"`
	LookupTimeout  time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"1s"`
	MaxChainLength int           `env:"MAX_CHAIN_LENGTH" envDefault:"100"`

	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	DebugReports   bool     `env:"DEBUG_REPORTS" envDefault:"false"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load applies dotenv files and parses the process environment. With no
// files, ".env" is tried. Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses settings from environ instead of the process environment.
// Keys include the prefix.
func FromMap(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.TrustedProxies = compact(cfg.TrustedProxies)
	cfg.CORSOrigins = compact(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that env tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen address cannot be empty")
	}
	if c.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("read header timeout must be > 0, got %s", c.ReadHeaderTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be > 0, got %s", c.ShutdownTimeout)
	}
	if c.ReverseDNS && c.LookupTimeout <= 0 {
		return fmt.Errorf("lookup timeout must be > 0, got %s", c.LookupTimeout)
	}
	if c.MaxChainLength <= 0 {
		return fmt.Errorf("max chain length must be > 0, got %d", c.MaxChainLength)
	}
	if _, ok := netidentity.PresetByName(c.Preset); !ok {
		return fmt.Errorf("unknown preset %q", c.Preset)
	}
	if _, err := netidentity.ParseCIDRs(c.TrustedProxies...); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	return nil
}

// ResolverOptions translates the settings into resolver options. Observability
// options are left to the caller.
func (c *Config) ResolverOptions() ([]netidentity.Option, error) {
	preset, ok := netidentity.PresetByName(c.Preset)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", c.Preset)
	}

	prefixes, err := netidentity.ParseCIDRs(c.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	opts := []netidentity.Option{
		preset,
		netidentity.MaxChainLength(c.MaxChainLength),
		netidentity.WithReverseDNS(c.ReverseDNS),
	}
	if c.ReverseDNS {
		opts = append(opts, netidentity.WithLookupTimeout(c.LookupTimeout))
	}
	if len(prefixes) > 0 {
		opts = append(opts, netidentity.TrustProxyPrefixes(prefixes...))
	}

	return opts, nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

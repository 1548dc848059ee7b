package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
)

// DotEnvFile is read from the working directory when present
const DotEnvFile = ".env"

// Environments accepted in ENVIRONMENT
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds client configuration. Values come from defaults, then the
// optional TOML file, then environment variables. A .env file fills in
// variables that are not already set in the environment.
type Config struct {
	DiscoveryURL string `toml:"discovery_url" envconfig:"DISCOVERY_URL"`
	ClientID     string `toml:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" envconfig:"CLIENT_SECRET"`
	Scope        string `toml:"scope" envconfig:"SCOPE"`

	HTTPTimeout       time.Duration `toml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
	SlowDownIncrement time.Duration `toml:"slow_down_increment" envconfig:"SLOW_DOWN_INCREMENT"`
	MaxPollFailures   int           `toml:"max_poll_failures" envconfig:"MAX_POLL_FAILURES"`

	RedisURL          string        `toml:"redis_url" envconfig:"REDIS_URL"`
	DiscoveryCacheTTL time.Duration `toml:"discovery_cache_ttl" envconfig:"DISCOVERY_CACHE_TTL"`

	StatusAddr string `toml:"status_addr" envconfig:"STATUS_ADDR"`
	CSRFSecret string `toml:"csrf_secret" envconfig:"CSRF_SECRET"`

	Environment string `toml:"environment" envconfig:"ENVIRONMENT"`
	ShowQR      bool   `toml:"show_qr" envconfig:"SHOW_QR"`
}

func defaultConfig() Config {
	return Config{
		HTTPTimeout:       oauth.DefaultTimeout,
		SlowDownIncrement: deviceflow.DefaultSlowDownIncrement,
		MaxPollFailures:   deviceflow.DefaultMaxTransientFailures,
		DiscoveryCacheTTL: discovery.DefaultCacheTTL,
		Environment:       EnvProduction,
		ShowQR:            true,
	}
}

// LoadConfig builds the configuration. path may be empty.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
		}
	}

	// godotenv.Load never overrides variables that are already set
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading %s: %w", DotEnvFile, err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges
func (c Config) Validate() error {
	var errs []error

	if c.DiscoveryURL == "" {
		errs = append(errs, errors.New("DISCOVERY_URL is required"))
	} else if u, err := url.Parse(c.DiscoveryURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("DISCOVERY_URL must be an absolute http(s) URL, got %q", c.DiscoveryURL))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("CLIENT_ID is required"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.SlowDownIncrement <= 0 {
		errs = append(errs, errors.New("SLOW_DOWN_INCREMENT must be positive"))
	}
	if c.MaxPollFailures < 0 {
		errs = append(errs, errors.New("MAX_POLL_FAILURES must not be negative"))
	}
	if c.DiscoveryCacheTTL <= 0 {
		errs = append(errs, errors.New("DISCOVERY_CACHE_TTL must be positive"))
	}
	if c.Environment != EnvProduction && c.Environment != EnvDevelopment {
		errs = append(errs, fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", EnvProduction, EnvDevelopment, c.Environment))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ClientConfig returns the OAuth client identity
func (c Config) ClientConfig() deviceflow.ClientConfig {
	return deviceflow.ClientConfig{
		DiscoveryURL: c.DiscoveryURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scope:        c.Scope,
	}
}

package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// DefaultAPIKey is the placeholder token used when API_KEY is unset. It must
// be overridden for any real deployment.
const DefaultAPIKey = "change-me-insecure-api-key"

// Config is loaded from the environment. Slices use ';' as delimiter.
type Config struct {
	// ENV: HOST, PORT
	Host string `env:"HOST"`
	Port int    `env:"PORT,default=3000"`

	// ENV: API_KEY. Bearer token accepted by /sse and /message.
	APIKey      string `env:"API_KEY,default=change-me-insecure-api-key"`
	RequireAuth bool   `env:"REQUIRE_AUTH,default=true"`

	// ENV: SINGLE_TENANT. Uncorrelated messages go to the most recent session.
	SingleTenant bool `env:"SINGLE_TENANT,default=false"`

	KeepAliveInterval time.Duration `env:"KEEPALIVE_INTERVAL,default=30s"`
	MaxMessageBytes   int64         `env:"MAX_MESSAGE_BYTES,default=4194304"`
	EventQueueSize    int           `env:"EVENT_QUEUE_SIZE,default=100"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	ServerName      string        `env:"SERVER_NAME,default=mcp-toolserver"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// LoadConfig decodes the environment into a Config and validates it.
func LoadConfig() (Config, error) {
	cfg, err := DecodeConfig()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// DecodeConfig decodes the environment without validating, for callers that
// apply further overrides first.
func DecodeConfig() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RequireAuth && c.APIKey == "" {
		errs = append(errs, errors.New("api key is required when auth is enabled"))
	}
	if c.KeepAliveInterval < 0 {
		errs = append(errs, fmt.Errorf("keepalive interval %s is negative", c.KeepAliveInterval))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max message bytes %d must be positive", c.MaxMessageBytes))
	}
	if c.EventQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("event queue size %d must be positive", c.EventQueueSize))
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for net/http.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UsesDefaultAPIKey reports whether the insecure placeholder token is active.
func (c Config) UsesDefaultAPIKey() bool {
	return c.RequireAuth && c.APIKey == DefaultAPIKey
}

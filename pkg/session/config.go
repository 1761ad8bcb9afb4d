package session

import (
	"log/slog"
	"time"
)

// Config holds configuration for the voice-runtime connection.
type Config struct {
	// APIKey authenticates against the runtime.
	APIKey string

	// AgentID identifies the configured voice agent.
	AgentID string

	// BaseURL overrides the default runtime endpoint. Use a ws:// URL in
	// tests.
	BaseURL string

	// Timeout is the connection handshake timeout.
	Timeout time.Duration

	// ReadTimeout bounds how long the session waits for any message,
	// including runtime pings.
	ReadTimeout time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		ReadTimeout: 5 * time.Minute,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.AgentID == "" {
		return ErrMissingAgentID
	}
	return nil
}

// Option is a functional option for configuring the connection.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithAgentID sets the agent ID.
func WithAgentID(id string) Option {
	return func(c *Config) { c.AgentID = id }
}

// WithBaseURL sets the runtime endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTimeout sets the handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithReadTimeout sets the message read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

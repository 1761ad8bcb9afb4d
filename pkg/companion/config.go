// Package companion wires the emergency coordinator, dispatch, contacts,
// consent, memory and facility components behind the conversation tool
// surface, and orchestrates the voice-runtime session.
package companion

import (
	"os"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultResidentName  = "Maggie"
	DefaultAssistantName = "Heather"
	DefaultHTTPAddr      = ":8090"
	DefaultDataDir       = "data"
)

// Config holds all configuration for the companion backend.
// Flag parsing is done in cmd/companion/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// ResidentName is the resident the assistant cares for.
	ResidentName string

	// AssistantName is how the assistant introduces itself.
	AssistantName string

	// HTTPAddr is the admin server listen address.
	HTTPAddr string

	// DataDir holds the biography document, facility files and the
	// contact database.
	DataDir string

	// Voice runtime credentials.
	RuntimeAPIKey  string
	RuntimeAgentID string
	RuntimeURL     string // Override for tests; empty uses the hosted endpoint.

	// Telephony credentials.
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	StatusCallbackURL string

	// Email credentials.
	MailjetAPIKey    string
	MailjetSecretKey string
	MailjetFromEmail string
	MailjetFromName  string

	// ReportRecipients receive the emergency report email.
	ReportRecipients []string

	// EmergencyNumber is dialed by call_911. Defaults to 911.
	EmergencyNumber string

	// OpenAIKey enables the semantic memory index. Optional.
	OpenAIKey string

	// CompleteAfter is the deferred-completion window for an emergency
	// episode.
	CompleteAfter time.Duration

	// Cooldown is the minimum interval between emergency calls.
	Cooldown time.Duration
}

// DefaultConfig returns sensible defaults for the companion backend.
func DefaultConfig() Config {
	return Config{
		ResidentName:  DefaultResidentName,
		AssistantName: DefaultAssistantName,
		HTTPAddr:      DefaultHTTPAddr,
		DataDir:       DefaultDataDir,
		CompleteAfter: 10 * time.Second,
		Cooldown:      5 * time.Minute,
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnvConfig() {
	c.RuntimeAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.RuntimeAgentID = os.Getenv("ELEVENLABS_AGENT_ID")
	c.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	c.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	c.StatusCallbackURL = os.Getenv("CALL_STATUS_CALLBACK_URL")
	c.MailjetAPIKey = os.Getenv("MAILJET_API_KEY")
	c.MailjetSecretKey = os.Getenv("MAILJET_SECRET_KEY")
	c.MailjetFromEmail = os.Getenv("MAILJET_FROM_EMAIL")
	c.MailjetFromName = os.Getenv("MAILJET_FROM_NAME")
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")

	if name := os.Getenv("RESIDENT_NAME"); name != "" {
		c.ResidentName = name
	}
	if to := os.Getenv("EMERGENCY_REPORT_TO"); to != "" {
		c.ReportRecipients = splitRecipients(to)
	}
}

// Validate checks that required configuration is present. Telephony and
// email credentials are not required: with them missing the matching
// transport stays disabled and dispatch operations report unavailable
// instead of aborting startup.
func (c *Config) Validate() error {
	if c.RuntimeAPIKey == "" {
		return &ConfigError{Field: "RuntimeAPIKey", Message: "ELEVENLABS_API_KEY environment variable is required"}
	}
	if c.RuntimeAgentID == "" {
		return &ConfigError{Field: "RuntimeAgentID", Message: "ELEVENLABS_AGENT_ID environment variable is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func splitRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

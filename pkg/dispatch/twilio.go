package dispatch

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/carewell-ai/go-companion/internal/httpc"
)

const (
	twilioBaseURL  = "https://api.twilio.com/2010-04-01"
	providerTwilio = "twilio"
)

// TwilioConfig configures the Twilio call transport.
type TwilioConfig struct {
	// AccountSID and AuthToken authenticate API requests.
	AccountSID string
	AuthToken  string

	// FromNumber is the caller ID, E.164 format.
	FromNumber string

	// StatusCallbackURL receives call progress webhooks. Optional.
	StatusCallbackURL string

	// BaseURL overrides the API endpoint. For tests.
	BaseURL string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Twilio implements CallTransport over the Twilio voice REST API.
type Twilio struct {
	cfg     TwilioConfig
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewTwilio creates a Twilio call transport.
func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, WrapError(providerTwilio, fmt.Errorf("account SID and auth token required"))
	}
	if cfg.FromNumber == "" {
		return nil, WrapError(providerTwilio, fmt.Errorf("from number required"))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioBaseURL
	}
	return &Twilio{
		cfg:     cfg,
		client:  httpc.Client,
		logger:  cfg.Logger.With("component", "dispatch.twilio"),
		baseURL: baseURL,
	}, nil
}

// PlaceCall dials number and speaks script via TwiML.
func (t *Twilio) PlaceCall(ctx context.Context, number, script string) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", t.baseURL, t.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", number)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Twiml", buildTwiML(script))
	if t.cfg.StatusCallbackURL != "" {
		form.Set("StatusCallback", t.cfg.StatusCallbackURL)
		form.Set("StatusCallbackMethod", "POST")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", WrapError(providerTwilio, fmt.Errorf("create request: %w", err))
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", WrapError(providerTwilio, fmt.Errorf("place call: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", t.parseError(resp)
	}

	var call struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return "", WrapError(providerTwilio, fmt.Errorf("decode response: %w", err))
	}

	t.logger.Info("call placed",
		"sid", call.Sid,
		"status", call.Status,
	)
	return call.Sid, nil
}

// parseError reads and parses a Twilio error response.
func (t *Twilio) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	message := string(body)
	var code string
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		message = errResp.Message
		if errResp.Code != 0 {
			code = fmt.Sprintf("%d", errResp.Code)
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerTwilio,
	}
}

// buildTwiML wraps the spoken script in a <Say> response, repeated once so
// the message survives a slow pickup.
func buildTwiML(script string) string {
	var esc strings.Builder
	xml.EscapeText(&esc, []byte(script))
	body := esc.String()
	return fmt.Sprintf(
		`<Response><Say voice="alice">%s</Say><Pause length="1"/><Say voice="alice">%s</Say></Response>`,
		body, body,
	)
}

// Verify Twilio implements CallTransport at compile time.
var _ CallTransport = (*Twilio)(nil)

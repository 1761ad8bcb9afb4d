package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/carewell-ai/go-companion/internal/httpc"
)

const (
	mailjetSendURL  = "https://api.mailjet.com/v3/send"
	providerMailjet = "mailjet"
)

// MailjetConfig configures the Mailjet email transport.
type MailjetConfig struct {
	// APIKey and SecretKey authenticate API requests.
	APIKey    string
	SecretKey string

	// FromEmail and FromName set the sender identity.
	FromEmail string
	FromName  string

	// SendURL overrides the API endpoint. For tests.
	SendURL string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Mailjet implements EmailTransport over the Mailjet v3 send API.
type Mailjet struct {
	cfg     MailjetConfig
	client  *http.Client
	logger  *slog.Logger
	sendURL string
}

// NewMailjet creates a Mailjet email transport.
func NewMailjet(cfg MailjetConfig) (*Mailjet, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, WrapError(providerMailjet, fmt.Errorf("API key and secret key required"))
	}
	if cfg.FromEmail == "" {
		return nil, WrapError(providerMailjet, fmt.Errorf("from email required"))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	sendURL := cfg.SendURL
	if sendURL == "" {
		sendURL = mailjetSendURL
	}
	return &Mailjet{
		cfg:     cfg,
		client:  httpc.Client,
		logger:  cfg.Logger.With("component", "dispatch.mailjet"),
		sendURL: sendURL,
	}, nil
}

// Send delivers the message to every recipient in one API call.
func (m *Mailjet) Send(ctx context.Context, msg Email) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}

	type recipient struct {
		Email string `json:"Email"`
	}
	payload := struct {
		FromEmail  string      `json:"FromEmail"`
		FromName   string      `json:"FromName,omitempty"`
		Subject    string      `json:"Subject"`
		TextPart   string      `json:"Text-part,omitempty"`
		HTMLPart   string      `json:"Html-part,omitempty"`
		Recipients []recipient `json:"Recipients"`
	}{
		FromEmail: m.cfg.FromEmail,
		FromName:  m.cfg.FromName,
		Subject:   msg.Subject,
		TextPart:  msg.Text,
		HTMLPart:  msg.HTML,
	}
	for _, to := range msg.To {
		payload.Recipients = append(payload.Recipients, recipient{Email: to})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(providerMailjet, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.sendURL, bytes.NewReader(body))
	if err != nil {
		return "", WrapError(providerMailjet, fmt.Errorf("create request: %w", err))
	}
	req.SetBasicAuth(m.cfg.APIKey, m.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", WrapError(providerMailjet, fmt.Errorf("send email: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", m.parseError(resp)
	}

	var sent struct {
		Sent []struct {
			Email     string `json:"Email"`
			MessageID int64  `json:"MessageID"`
		} `json:"Sent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return "", WrapError(providerMailjet, fmt.Errorf("decode response: %w", err))
	}

	var ref string
	if len(sent.Sent) > 0 {
		ref = fmt.Sprintf("%d", sent.Sent[0].MessageID)
	}
	m.logger.Info("email sent",
		"subject", msg.Subject,
		"recipients", len(msg.To),
		"message_id", ref,
	)
	return ref, nil
}

// parseError reads and parses a Mailjet error response.
func (m *Mailjet) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		ErrorMessage string `json:"ErrorMessage"`
		ErrorCode    string `json:"ErrorCode"`
	}

	message := string(body)
	var code string
	if json.Unmarshal(body, &errResp) == nil && errResp.ErrorMessage != "" {
		message = errResp.ErrorMessage
		code = errResp.ErrorCode
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerMailjet,
	}
}

// Verify Mailjet implements EmailTransport at compile time.
var _ EmailTransport = (*Mailjet)(nil)

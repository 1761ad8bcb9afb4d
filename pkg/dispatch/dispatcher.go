package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/carewell-ai/go-companion/pkg/emergency"
)

// DefaultCooldown is the minimum gap between emergency calls to family
// contacts. Repeated distress in one incident should not ring the family
// phone every few seconds.
const DefaultCooldown = 5 * time.Minute

// DefaultEmergencyNumber is dialed by Call911.
const DefaultEmergencyNumber = "911"

// Config holds dispatcher configuration.
type Config struct {
	// EmergencyNumber is dialed by Call911. Defaults to "911".
	EmergencyNumber string

	// ReportRecipients receive episode report emails.
	ReportRecipients []string

	// Cooldown is the emergency-call suppression window. Zero means
	// DefaultCooldown.
	Cooldown time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dispatcher routes outbound calls and emails through the configured
// transports and enforces the emergency-call cooldown. Direct 911 dials are
// never cooldown-suppressed.
type Dispatcher struct {
	calls           CallTransport
	email           EmailTransport
	logger          *slog.Logger
	emergencyNumber string
	recipients      []string
	cooldown        time.Duration

	now func() time.Time

	mu       sync.Mutex
	lastCall time.Time
}

// NewDispatcher creates a dispatcher. Either transport may be nil, in which
// case operations needing it return ErrUnavailable.
func NewDispatcher(calls CallTransport, email EmailTransport, cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.EmergencyNumber == "" {
		cfg.EmergencyNumber = DefaultEmergencyNumber
	}
	return &Dispatcher{
		calls:           calls,
		email:           email,
		logger:          cfg.Logger.With("component", "dispatch"),
		emergencyNumber: cfg.EmergencyNumber,
		recipients:      cfg.ReportRecipients,
		cooldown:        cfg.Cooldown,
		now:             time.Now,
	}
}

// PlaceCall dials a number directly, with no cooldown. Used for general
// contact calls after the consent gate clears them.
func (d *Dispatcher) PlaceCall(ctx context.Context, number, script string) (string, error) {
	if d.calls == nil {
		return "", ErrUnavailable
	}
	return d.calls.PlaceCall(ctx, number, script)
}

// DispatchEmergency calls the emergency contact with the spoken alert,
// unless another emergency call went out within the cooldown window.
// The window is reserved before dialing so concurrent triggers cannot place
// two calls; a failed dial releases the reservation.
func (d *Dispatcher) DispatchEmergency(ctx context.Context, number, spoken string) (string, error) {
	if d.calls == nil {
		return "", ErrUnavailable
	}

	d.mu.Lock()
	now := d.now()
	if !d.lastCall.IsZero() {
		if elapsed := now.Sub(d.lastCall); elapsed < d.cooldown {
			remaining := d.cooldown - elapsed
			d.mu.Unlock()
			d.logger.Warn("emergency call suppressed by cooldown",
				"number", number,
				"remaining", remaining.Round(time.Second).String(),
			)
			return "", ErrCooldownActive
		}
	}
	previous := d.lastCall
	d.lastCall = now
	d.mu.Unlock()

	ref, err := d.calls.PlaceCall(ctx, number, spoken)
	if err != nil {
		d.mu.Lock()
		if d.lastCall.Equal(now) {
			d.lastCall = previous
		}
		d.mu.Unlock()
		return "", err
	}

	d.logger.Info("emergency call dispatched",
		"number", number,
		"ref", ref,
	)
	return ref, nil
}

// Call911 dials emergency services directly. Never cooldown-suppressed and
// never updates the cooldown window.
func (d *Dispatcher) Call911(ctx context.Context, spoken string) (string, error) {
	if d.calls == nil {
		return "", ErrUnavailable
	}
	ref, err := d.calls.PlaceCall(ctx, d.emergencyNumber, spoken)
	if err != nil {
		d.logger.Error("911 call failed", "error", err)
		return "", err
	}
	d.logger.Error("911 call placed", "ref", ref)
	return ref, nil
}

// CooldownRemaining reports how long until the next emergency call is
// allowed. Zero when no cooldown is active.
func (d *Dispatcher) CooldownRemaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastCall.IsZero() {
		return 0
	}
	remaining := d.cooldown - d.now().Sub(d.lastCall)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SendReport emails the formatted episode report to the configured
// recipients.
func (d *Dispatcher) SendReport(ctx context.Context, report emergency.Report) (string, error) {
	if d.email == nil {
		return "", ErrUnavailable
	}
	if len(d.recipients) == 0 {
		return "", ErrNoRecipients
	}
	return d.email.Send(ctx, Email{
		Subject: report.Subject,
		Text:    report.Text,
		HTML:    report.HTML,
		To:      d.recipients,
	})
}

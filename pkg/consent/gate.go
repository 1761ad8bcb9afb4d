// Package consent gates outbound calls to protected contacts behind an
// explicit yes from the resident.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/carewell-ai/go-companion/pkg/contacts"
)

// ErrNoPending is returned when a consent decision arrives with no call
// waiting on one.
var ErrNoPending = errors.New("consent: no call awaiting consent")

// Caller places outbound calls. Satisfied by *dispatch.Dispatcher.
type Caller interface {
	PlaceCall(ctx context.Context, number, script string) (ref string, err error)
}

// Outcome reports what RequestCall did.
type Outcome struct {
	// NeedsConsent is true when the call is held pending a yes.
	NeedsConsent bool

	// Question is what the assistant should ask the resident. Set only
	// when NeedsConsent.
	Question string

	// CallRef identifies the placed call. Set only when the call went
	// out immediately.
	CallRef string
}

// Decision reports what Confirm did.
type Decision struct {
	// Placed is true when the pending call went out.
	Placed bool

	// CallRef identifies the placed call.
	CallRef string

	// Contact is who the decision was about.
	Contact contacts.Entry
}

// Gate holds at most one call pending consent. A new consent-gated request
// replaces the previous pending one; the replaced call is never placed.
type Gate struct {
	caller Caller
	logger *slog.Logger

	mu      sync.Mutex
	pending *pendingCall
}

type pendingCall struct {
	contact contacts.Entry
	script  string
}

// NewGate creates a consent gate over the given caller.
func NewGate(caller Caller, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		caller: caller,
		logger: logger.With("component", "consent"),
	}
}

// RequestCall asks to call a contact. Contacts without the consent flag are
// dialed immediately; protected contacts are held and a consent question is
// returned instead.
func (g *Gate) RequestCall(ctx context.Context, contact contacts.Entry, script string) (Outcome, error) {
	if !contact.RequiresConsent {
		ref, err := g.caller.PlaceCall(ctx, contact.Number, script)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{CallRef: ref}, nil
	}

	g.mu.Lock()
	replaced := g.pending != nil
	g.pending = &pendingCall{contact: contact, script: script}
	g.mu.Unlock()

	if replaced {
		g.logger.Warn("pending consent request replaced", "contact", contact.Name)
	}
	g.logger.Info("call held for consent", "contact", contact.Name)

	question := fmt.Sprintf("Would you like me to call %s?", contact.Name)
	if contact.Relationship != "" {
		question = fmt.Sprintf("Would you like me to call %s, your %s?", contact.Name, contact.Relationship)
	}
	return Outcome{NeedsConsent: true, Question: question}, nil
}

// Confirm resolves the pending consent question. A no discards the pending
// call; a yes places it exactly once. The pending slot is cleared either
// way, so a duplicate decision gets ErrNoPending.
func (g *Gate) Confirm(ctx context.Context, given bool) (Decision, error) {
	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	if pending == nil {
		return Decision{}, ErrNoPending
	}

	if !given {
		g.logger.Info("consent declined, call discarded", "contact", pending.contact.Name)
		return Decision{Contact: pending.contact}, nil
	}

	ref, err := g.caller.PlaceCall(ctx, pending.contact.Number, pending.script)
	if err != nil {
		return Decision{Contact: pending.contact}, err
	}
	g.logger.Info("consented call placed",
		"contact", pending.contact.Name,
		"ref", ref,
	)
	return Decision{Placed: true, CallRef: ref, Contact: pending.contact}, nil
}

// Pending returns the contact currently awaiting consent, if any.
func (g *Gate) Pending() (contacts.Entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return contacts.Entry{}, false
	}
	return g.pending.contact, true
}

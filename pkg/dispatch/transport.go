// Package dispatch places outbound voice calls and sends alert emails.
//
// The Dispatcher sits between the emergency state machine and the telephony
// and email providers. It owns the emergency-call cooldown; consent checks
// live one layer up, in pkg/consent.
package dispatch

import "context"

// CallTransport places an outbound voice call that speaks a script to
// whoever answers.
type CallTransport interface {
	// PlaceCall dials number and speaks script. Returns the provider's
	// call reference (SID).
	PlaceCall(ctx context.Context, number, script string) (ref string, err error)
}

// Email is one outbound email message.
type Email struct {
	Subject string
	Text    string
	HTML    string
	To      []string
}

// EmailTransport delivers email messages.
type EmailTransport interface {
	// Send delivers the message. Returns the provider's message reference.
	Send(ctx context.Context, msg Email) (ref string, err error)
}

package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// MockCallTransport is a CallTransport for testing. It records every call
// and can be configured to fail.
type MockCallTransport struct {
	mu    sync.Mutex
	calls []MockCall

	// Err, when set, is returned by every PlaceCall.
	Err error
}

// MockCall records one PlaceCall invocation.
type MockCall struct {
	Number string
	Script string
}

// PlaceCall records the call and returns a synthetic reference.
func (m *MockCallTransport) PlaceCall(_ context.Context, number, script string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.calls = append(m.calls, MockCall{Number: number, Script: script})
	return fmt.Sprintf("CA%04d", len(m.calls)), nil
}

// Calls returns a copy of the recorded calls.
func (m *MockCallTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockEmailTransport is an EmailTransport for testing.
type MockEmailTransport struct {
	mu   sync.Mutex
	sent []Email

	// Err, when set, is returned by every Send.
	Err error
}

// Send records the message and returns a synthetic reference.
func (m *MockEmailTransport) Send(_ context.Context, msg Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("%d", 1000+len(m.sent)), nil
}

// Sent returns a copy of the recorded messages.
func (m *MockEmailTransport) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}

// Verify mocks implement the transport interfaces at compile time.
var (
	_ CallTransport  = (*MockCallTransport)(nil)
	_ EmailTransport = (*MockEmailTransport)(nil)
)

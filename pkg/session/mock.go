package session

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Provider for testing.
type Mock struct {
	mu sync.RWMutex

	connected bool

	onTranscript   func(role, text string, isFinal bool)
	onToolCall     func(id, name string, args map[string]any)
	onError        func(err error)
	onInterruption func()

	// Configurable behavior
	ConnectFunc          func(ctx context.Context) error
	SubmitToolResultFunc func(callID, result string) error

	// Captured calls for assertions
	ToolResults map[string]string
}

// NewMock creates a new Mock provider.
func NewMock() *Mock {
	return &Mock{ToolResults: make(map[string]string)}
}

// Connect implements Provider.
func (m *Mock) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected implements Provider.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SubmitToolResult implements Provider.
func (m *Mock) SubmitToolResult(callID, result string) error {
	if m.SubmitToolResultFunc != nil {
		return m.SubmitToolResultFunc(callID, result)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.ToolResults[callID] = result
	return nil
}

// OnTranscript implements Provider.
func (m *Mock) OnTranscript(fn func(role, text string, isFinal bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

// OnToolCall implements Provider.
func (m *Mock) OnToolCall(fn func(id, name string, args map[string]any)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToolCall = fn
}

// OnError implements Provider.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// OnInterruption implements Provider.
func (m *Mock) OnInterruption(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInterruption = fn
}

// Test helpers

// SimulateTranscript triggers the OnTranscript callback.
func (m *Mock) SimulateTranscript(role, text string, isFinal bool) {
	m.mu.RLock()
	fn := m.onTranscript
	m.mu.RUnlock()
	if fn != nil {
		fn(role, text, isFinal)
	}
}

// SimulateToolCall triggers the OnToolCall callback.
func (m *Mock) SimulateToolCall(id, name string, args map[string]any) {
	m.mu.RLock()
	fn := m.onToolCall
	m.mu.RUnlock()
	if fn != nil {
		fn(id, name, args)
	}
}

// SimulateError triggers the OnError callback.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateInterruption triggers the OnInterruption callback.
func (m *Mock) SimulateInterruption() {
	m.mu.RLock()
	fn := m.onInterruption
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Ensure Mock implements Provider.
var _ Provider = (*Mock)(nil)

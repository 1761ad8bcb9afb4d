// Package session connects the companion backend to the hosted voice-agent
// runtime. The runtime does the listening and talking; this package carries
// the signal the backend cares about: conversation transcripts coming down,
// client tool calls coming down, and tool results going back up.
package session

import "context"

// ConnectionState represents the WebSocket connection state.
type ConnectionState int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates connection is being established.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
)

// String returns a human-readable connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Tool is one callable function exposed to the voice agent.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does (shown to the agent).
	Description string

	// Parameters defines the JSON Schema for tool arguments.
	Parameters map[string]any

	// Handler is called when the agent invokes this tool. It receives the
	// parsed arguments and returns a result string to be spoken or used
	// by the agent.
	Handler func(args map[string]any) (string, error)
}

// Provider is the interface to a voice-agent runtime.
type Provider interface {
	// Connect establishes the connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// IsConnected returns true if connected.
	IsConnected() bool

	// SubmitToolResult returns a tool call result to the runtime.
	SubmitToolResult(callID, result string) error

	// Callbacks

	// OnTranscript is called for each transcript line. Role is "user" or
	// "agent"; isFinal marks a completed utterance.
	OnTranscript(fn func(role, text string, isFinal bool))

	// OnToolCall is called when the agent invokes a client tool.
	OnToolCall(fn func(id, name string, args map[string]any))

	// OnError is called when a runtime error arrives.
	OnError(fn func(err error))

	// OnInterruption is called when the user interrupts the agent.
	OnInterruption(fn func())
}

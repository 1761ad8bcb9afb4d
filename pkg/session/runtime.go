package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultRuntimeURL = "wss://api.elevenlabs.io/v1/convai/conversation"

// VoiceRuntime implements Provider over the hosted voice-agent WebSocket
// protocol. Tool calls arrive as client_tool_call events; results go back
// as client_tool_result.
type VoiceRuntime struct {
	config *Config
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     ConnectionState
	cancelCtx context.CancelFunc

	onTranscript   func(role, text string, isFinal bool)
	onToolCall     func(id, name string, args map[string]any)
	onError        func(err error)
	onInterruption func()
}

// NewVoiceRuntime creates a runtime client.
func NewVoiceRuntime(opts ...Option) (*VoiceRuntime, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &VoiceRuntime{
		config: cfg,
		logger: cfg.Logger.With("component", "session.runtime"),
		state:  StateDisconnected,
	}, nil
}

// Connect establishes the WebSocket connection to the voice runtime.
func (r *VoiceRuntime) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateConnected {
		r.mu.Unlock()
		return ErrAlreadyConnected
	}
	r.state = StateConnecting
	r.mu.Unlock()

	base := r.config.BaseURL
	if base == "" {
		base = defaultRuntimeURL
	}
	wsURL, err := url.Parse(base)
	if err != nil {
		r.setState(StateDisconnected)
		return fmt.Errorf("session: invalid URL: %w", err)
	}
	q := wsURL.Query()
	q.Set("agent_id", r.config.AgentID)
	wsURL.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", r.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: r.config.Timeout}

	r.logger.Info("connecting to voice runtime",
		"agent_id", r.config.AgentID,
	)

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), headers)
	if err != nil {
		r.setState(StateDisconnected)
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	msgCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.conn = conn
	r.state = StateConnected
	r.cancelCtx = cancel
	r.mu.Unlock()

	go r.handleMessages(msgCtx)

	r.logger.Info("connected to voice runtime")
	return nil
}

// Close gracefully closes the connection.
func (r *VoiceRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDisconnected {
		return nil
	}
	if r.cancelCtx != nil {
		r.cancelCtx()
	}
	if r.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = r.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		r.conn.Close()
		r.conn = nil
	}
	r.state = StateDisconnected
	r.logger.Info("disconnected from voice runtime")
	return nil
}

// IsConnected returns true if connected.
func (r *VoiceRuntime) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateConnected
}

// SubmitToolResult returns a tool call result to the runtime.
func (r *VoiceRuntime) SubmitToolResult(callID, result string) error {
	r.mu.RLock()
	conn := r.conn
	state := r.state
	r.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	msg := map[string]any{
		"type":         "client_tool_result",
		"tool_call_id": callID,
		"result":       result,
		"is_error":     false,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("session: marshal failed: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return NewConnectionError("submit tool result failed", err, true)
	}

	r.logger.Debug("submitted tool result",
		"call_id", callID,
		"result_len", len(result),
	)
	return nil
}

// OnTranscript sets the transcript callback.
func (r *VoiceRuntime) OnTranscript(fn func(role, text string, isFinal bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTranscript = fn
}

// OnToolCall sets the tool call callback.
func (r *VoiceRuntime) OnToolCall(fn func(id, name string, args map[string]any)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onToolCall = fn
}

// OnError sets the error callback.
func (r *VoiceRuntime) OnError(fn func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// OnInterruption sets the interruption callback.
func (r *VoiceRuntime) OnInterruption(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onInterruption = fn
}

func (r *VoiceRuntime) setState(s ConnectionState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// handleMessages processes incoming WebSocket messages until the context
// is cancelled or the connection drops.
func (r *VoiceRuntime) handleMessages(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		if r.state == StateConnected {
			r.state = StateDisconnected
		}
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(r.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Info("connection closed normally")
				return
			}
			r.logger.Error("read error", "error", err)
			r.emitError(NewConnectionError("read failed", err, true))
			return
		}

		var msg runtimeIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Warn("failed to parse message", "error", err)
			continue
		}
		r.handleMessage(msg)
	}
}

func (r *VoiceRuntime) handleMessage(msg runtimeIncoming) {
	switch msg.Type {
	case "user_transcript":
		text := msg.Text
		if msg.TranscriptEvent != nil {
			text = msg.TranscriptEvent.UserTranscript
		}
		r.emitTranscript("user", text, true)

	case "agent_response":
		text := msg.Text
		if msg.ResponseEvent != nil {
			text = msg.ResponseEvent.AgentResponse
		}
		r.emitTranscript("agent", text, msg.IsFinal || msg.ResponseEvent != nil)

	case "client_tool_call", "tool_call":
		name := msg.ToolName
		id := msg.ToolCallID
		args := msg.Parameters
		if msg.ClientToolCall != nil {
			name = msg.ClientToolCall.ToolName
			id = msg.ClientToolCall.ToolCallID
			args = msg.ClientToolCall.Parameters
		}
		r.emitToolCall(id, name, args)

	case "interruption":
		r.emitInterruption()

	case "error":
		r.emitError(NewAPIError(0, msg.Code, msg.Message))

	case "ping":
		eventID := 0
		if msg.PingEvent != nil {
			eventID = msg.PingEvent.EventID
		}
		r.sendPong(eventID)

	default:
		r.logger.Debug("unhandled message type", "type", msg.Type)
	}
}

// sendPong responds to a runtime ping with the event_id.
func (r *VoiceRuntime) sendPong(eventID int) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		return
	}
	msg := map[string]any{
		"type":     "pong",
		"event_id": eventID,
	}
	data, _ := json.Marshal(msg)
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

// Emit helpers

func (r *VoiceRuntime) emitTranscript(role, text string, isFinal bool) {
	r.mu.RLock()
	fn := r.onTranscript
	r.mu.RUnlock()
	if fn != nil {
		fn(role, text, isFinal)
	}
}

func (r *VoiceRuntime) emitToolCall(id, name string, args map[string]any) {
	r.mu.RLock()
	fn := r.onToolCall
	r.mu.RUnlock()
	if fn != nil {
		fn(id, name, args)
	}
}

func (r *VoiceRuntime) emitInterruption() {
	r.mu.RLock()
	fn := r.onInterruption
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (r *VoiceRuntime) emitError(err error) {
	r.mu.RLock()
	fn := r.onError
	r.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Message types for the runtime protocol.

type runtimeIncoming struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	IsFinal    bool           `json:"is_final,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`

	// Nested event structures
	TranscriptEvent *transcriptEvent `json:"user_transcription_event,omitempty"`
	ResponseEvent   *responseEvent   `json:"agent_response_event,omitempty"`
	PingEvent       *pingEvent       `json:"ping_event,omitempty"`
	ClientToolCall  *clientToolCall  `json:"client_tool_call,omitempty"`
}

type transcriptEvent struct {
	UserTranscript string `json:"user_transcript"`
}

type responseEvent struct {
	AgentResponse string `json:"agent_response"`
}

type pingEvent struct {
	EventID int `json:"event_id"`
	PingMs  int `json:"ping_ms,omitempty"`
}

type clientToolCall struct {
	ToolName   string         `json:"tool_name"`
	ToolCallID string         `json:"tool_call_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Ensure VoiceRuntime implements Provider.
var _ Provider = (*VoiceRuntime)(nil)

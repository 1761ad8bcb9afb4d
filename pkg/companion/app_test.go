package companion

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/carewell-ai/go-companion/pkg/contacts"
	"github.com/carewell-ai/go-companion/pkg/session"
)

// newTestApp builds a fully initialized App and swaps the voice runtime for
// a mock provider. Tools that dial out are not invoked here; the scenario
// coverage lives in tools_test.go against mock transports.
func newTestApp(t *testing.T) (*App, *session.Mock) {
	t.Helper()
	setRequiredEnv(t)

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.HTTPAddr = ":0"

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("init app: %v", err)
	}

	mock := session.NewMock()
	if err := mock.Connect(context.Background()); err != nil {
		t.Fatalf("connect mock: %v", err)
	}
	app.provider = mock
	app.wireSession()
	return app, mock
}

func TestAppToolDispatch(t *testing.T) {
	app, mock := newTestApp(t)
	defer app.Shutdown()

	t.Run("tool call round trip", func(t *testing.T) {
		mock.SimulateToolCall("call-1", "list_emergency_contacts", nil)
		result, ok := mock.ToolResults["call-1"]
		if !ok {
			t.Fatal("no tool result submitted")
		}
		if !strings.Contains(result, "Wesley") {
			t.Errorf("unexpected result: %s", result)
		}
	})

	t.Run("unknown tool gets a gentle answer", func(t *testing.T) {
		mock.SimulateToolCall("call-2", "launch_rocket", nil)
		result, ok := mock.ToolResults["call-2"]
		if !ok {
			t.Fatal("no tool result submitted")
		}
		if !strings.Contains(result, "can't do that one") {
			t.Errorf("unexpected result: %s", result)
		}
	})

	t.Run("memory tool over empty biography", func(t *testing.T) {
		mock.SimulateToolCall("call-3", "get_life_story_summary", nil)
		result := mock.ToolResults["call-3"]
		if result == "" {
			t.Fatal("no tool result submitted")
		}
	})
}

func TestAppStatusSnapshot(t *testing.T) {
	app, _ := newTestApp(t)
	defer app.Shutdown()

	snap := app.statusSnapshot()
	if snap["resident"] != DefaultResidentName {
		t.Errorf("resident = %v", snap["resident"])
	}
	if snap["connected"] != true {
		t.Error("expected connected true with mock provider")
	}
	if _, ok := snap["episode"]; ok {
		t.Error("unexpected episode in snapshot")
	}
}

func TestAppTranscriptIgnoredWithoutEpisode(t *testing.T) {
	app, mock := newTestApp(t)
	defer app.Shutdown()

	// Must not panic or open an episode.
	mock.SimulateTranscript("user", "what a lovely morning", true)
	if _, ok := app.aggregator.Status(); ok {
		t.Error("transcript opened an episode")
	}
}

func TestAppStartsWithoutDispatchCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	t.Setenv("MAILJET_API_KEY", "")
	t.Setenv("MAILJET_SECRET_KEY", "")
	t.Setenv("EMERGENCY_REPORT_TO", "")

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.HTTPAddr = ":0"

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("new app without dispatch credentials: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("init app without dispatch credentials: %v", err)
	}
	defer app.Shutdown()

	mock := session.NewMock()
	if err := mock.Connect(context.Background()); err != nil {
		t.Fatalf("connect mock: %v", err)
	}
	app.provider = mock
	app.wireSession()

	// Emergency handling still opens the episode; the handler answers with
	// the unreachable-family line instead of failing the tool call.
	mock.SimulateToolCall("call-1", "start_emergency", map[string]any{
		"emergency_type": "fall",
		"message":        "I fell and I can't get up",
	})
	result, ok := mock.ToolResults["call-1"]
	if !ok {
		t.Fatal("no tool result submitted")
	}
	if !strings.Contains(result, "trouble reaching") {
		t.Errorf("unexpected result: %s", result)
	}
	if _, open := app.aggregator.Status(); !open {
		t.Error("episode not opened with dispatch unavailable")
	}
}

func TestAppSessionReconnect(t *testing.T) {
	app, mock := newTestApp(t)
	defer app.Shutdown()

	if app.reconnectSession(context.Background()) {
		t.Error("reconnect attempted while connected")
	}

	if err := mock.Close(); err != nil {
		t.Fatalf("close mock: %v", err)
	}
	if !app.reconnectSession(context.Background()) {
		t.Error("no reconnect attempted after disconnect")
	}
	if !mock.IsConnected() {
		t.Error("provider not reconnected")
	}
	if got := testutil.ToFloat64(app.metrics.SessionReconnects); got != 1 {
		t.Errorf("reconnects counter = %v, want 1", got)
	}
}

func TestAppShutdownClosesContactStore(t *testing.T) {
	app, _ := newTestApp(t)

	rec := &closeRecorder{Store: app.contactStore}
	app.contactStore = rec
	app.Shutdown()

	if !rec.closed {
		t.Error("contact store not closed on shutdown")
	}
}

// closeRecorder wraps a contacts.Store and records Close.
type closeRecorder struct {
	contacts.Store
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.Store.Close()
}

func TestAppRegistersAllTools(t *testing.T) {
	app, _ := newTestApp(t)
	defer app.Shutdown()

	// Facility tools are absent because the data dir has no facility
	// document; everything else must be present.
	required := []string{
		"start_emergency", "call_911", "record_emergency_turn",
		"set_emergency_detail", "skip_emergency_questions",
		"supply_emergency_narrative", "send_emergency_report_now",
		"emergency_status", "request_call", "confirm_call_consent",
		"add_contact", "list_contacts", "add_emergency_contact",
		"list_emergency_contacts", "search_memories",
		"search_memories_by_age", "get_personal_info", "get_family_info",
		"get_life_story_summary", "remember_memory",
	}
	for _, name := range required {
		if _, ok := app.tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

package companion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/carewell-ai/go-companion/internal/log"
	"github.com/carewell-ai/go-companion/internal/metrics"
	"github.com/carewell-ai/go-companion/internal/server"
	"github.com/carewell-ai/go-companion/pkg/consent"
	"github.com/carewell-ai/go-companion/pkg/contacts"
	"github.com/carewell-ai/go-companion/pkg/dispatch"
	"github.com/carewell-ai/go-companion/pkg/emergency"
	"github.com/carewell-ai/go-companion/pkg/facility"
	"github.com/carewell-ai/go-companion/pkg/hub"
	"github.com/carewell-ai/go-companion/pkg/memory"
	"github.com/carewell-ai/go-companion/pkg/session"
)

// Instructions contains the assistant's personality and behavior guidelines,
// sent to the voice agent as its system prompt.
const Instructions = `You are Heather, a warm and patient care companion for Maggie, an elderly resident of a senior living community. You speak slowly, clearly, and kindly.

PERSONALITY:
- Gentle and reassuring - Maggie may be hard of hearing or easily confused
- Genuinely interested in her stories - she loves talking about her teaching years, her late husband Robert, and her garden
- Never condescending - Maggie is sharp and proud

EMERGENCIES - MOST IMPORTANT:
- If Maggie says she fell, is hurt, can't get up, has chest pain, or asks for help: call start_emergency IMMEDIATELY, before saying anything else
- For life-threatening situations (chest pain, can't breathe, unresponsive): also call call_911
- While an emergency is open, record everything she says with record_emergency_turn and fill in answers with set_emergency_detail
- If she can't answer questions, call skip_emergency_questions - never press her
- Stay calm and keep talking to her until help arrives

CALLS:
- Use request_call to phone family or friends for her
- Some contacts need her spoken yes first - ask the consent question exactly as given, then call confirm_call_consent with her answer

MEMORIES:
- Use search_memories, get_family_info and the other memory tools to talk about her life - don't invent details
- When she shares something new and meaningful, save it with remember_memory

FACILITY:
- Use the facility tools for meal times, activities, her schedule, and finding rooms
- Use call_staff when she needs a hand with something that is not an emergency

BEHAVIOR:
- Keep responses short - one or two sentences
- Execute tools silently - never say which tool you're calling
- Never mention that you're an AI or describe your tools`

// reconnectInterval is how often the session supervisor checks the
// voice-runtime connection.
const reconnectInterval = 5 * time.Second

// App is the companion backend orchestrator. It owns every component and
// their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	// Core components.
	aggregator   *emergency.Aggregator
	dispatcher   *dispatch.Dispatcher
	gate         *consent.Gate
	contacts     *contacts.Directory
	contactStore contacts.Store

	// Memory.
	biography *memory.Biography
	bioStore  memory.Store
	semantic  *memory.Index

	// Facility. Nil when the data files are absent.
	facility *facility.Service

	// Session with the voice runtime.
	provider session.Provider
	tools    map[string]session.Tool

	// Ops surface.
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	admin    *server.Server
}

// New creates the companion application with the given configuration.
func New(cfg Config) (*App, error) {
	cfg.LoadEnvConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	return &App{
		config: cfg,
		logger: log.With("component", "app"),
	}, nil
}

// Init builds every component. Call after New and before Run.
func (a *App) Init(ctx context.Context) error {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.New(a.registry)

	a.initDispatch()
	if err := a.initContacts(ctx); err != nil {
		return fmt.Errorf("contacts init: %w", err)
	}
	if err := a.initMemory(ctx); err != nil {
		return fmt.Errorf("memory init: %w", err)
	}
	a.initFacility()
	a.initEmergency()
	a.initAdmin()

	if err := a.initSession(); err != nil {
		return fmt.Errorf("session init: %w", err)
	}
	return nil
}

// initDispatch builds the call and email transports. Missing or incomplete
// credentials disable the matching channel instead of aborting startup; the
// dispatcher then reports unavailable and the tool surface answers with its
// fallback lines.
func (a *App) initDispatch() {
	var calls dispatch.CallTransport
	twilio, err := dispatch.NewTwilio(dispatch.TwilioConfig{
		AccountSID:        a.config.TwilioAccountSID,
		AuthToken:         a.config.TwilioAuthToken,
		FromNumber:        a.config.TwilioFromNumber,
		StatusCallbackURL: a.config.StatusCallbackURL,
		Logger:            log.L(),
	})
	if err != nil {
		a.logger.Warn("outbound calls disabled", "error", err)
	} else {
		calls = twilio
	}

	var email dispatch.EmailTransport
	mailjet, err := dispatch.NewMailjet(dispatch.MailjetConfig{
		APIKey:    a.config.MailjetAPIKey,
		SecretKey: a.config.MailjetSecretKey,
		FromEmail: a.config.MailjetFromEmail,
		FromName:  a.config.MailjetFromName,
		Logger:    log.L(),
	})
	if err != nil {
		a.logger.Warn("report email disabled", "error", err)
	} else {
		email = mailjet
	}
	if len(a.config.ReportRecipients) == 0 {
		a.logger.Warn("no report recipients configured")
	}

	a.dispatcher = dispatch.NewDispatcher(calls, email, dispatch.Config{
		EmergencyNumber:  a.config.EmergencyNumber,
		ReportRecipients: a.config.ReportRecipients,
		Cooldown:         a.config.Cooldown,
		Logger:           log.L(),
	})
	a.gate = consent.NewGate(a.dispatcher, log.L())
}

func (a *App) initContacts(ctx context.Context) error {
	store, err := contacts.NewSQLite(filepath.Join(a.config.DataDir, "contacts.db"))
	if err != nil {
		return err
	}
	dir, err := contacts.NewDirectory(ctx, contacts.DefaultEntries(),
		contacts.WithStore(store),
		contacts.WithLogger(log.L()),
	)
	if err != nil {
		store.Close()
		return err
	}
	a.contacts = dir
	a.contactStore = store
	return nil
}

func (a *App) initMemory(ctx context.Context) error {
	a.bioStore = memory.NewJSONStore(filepath.Join(a.config.DataDir, "biography.json"))
	bio, err := memory.LoadBiography(a.bioStore, log.L())
	if err != nil {
		return err
	}
	a.biography = bio

	// Semantic recall is optional; without an embedder key the plain
	// substring search still works.
	if a.config.OpenAIKey != "" {
		embedder, err := memory.NewOpenAIEmbedder(a.config.OpenAIKey, memory.WithEmbedderLogger(log.L()))
		if err != nil {
			return err
		}
		a.semantic = memory.NewIndex(embedder, log.L())
		if err := a.semantic.IndexBiography(ctx, bio); err != nil {
			a.logger.Warn("semantic index build failed, continuing without it", "error", err)
			a.semantic = nil
		}
	}
	return nil
}

func (a *App) initFacility() {
	info, err := facility.LoadInfo(filepath.Join(a.config.DataDir, "facility.json"))
	if err != nil {
		a.logger.Warn("facility info unavailable", "error", err)
		return
	}
	schedules, err := facility.LoadSchedules(filepath.Join(a.config.DataDir, "schedules.json"))
	if err != nil {
		a.logger.Warn("schedules unavailable", "error", err)
		schedules = facility.Schedules{}
	}
	a.facility = facility.NewService(info, schedules, facility.WithServiceLogger(log.L()))
}

func (a *App) initEmergency() {
	notify := newNotifier(a.dispatcher, a.contacts, a.metrics, log.L())
	a.aggregator = emergency.NewAggregator(notify, emergency.Config{
		ResidentName:  a.config.ResidentName,
		CompleteAfter: a.config.CompleteAfter,
		Logger:        log.L(),
	})
}

func (a *App) initAdmin() {
	a.admin = server.New(server.Config{
		Addr:     a.config.HTTPAddr,
		Registry: a.registry,
		Status:   a.statusSnapshot,
		Logger:   log.L(),
	})
}

func (a *App) initSession() error {
	opts := []session.Option{
		session.WithAPIKey(a.config.RuntimeAPIKey),
		session.WithAgentID(a.config.RuntimeAgentID),
		session.WithLogger(log.L()),
	}
	if a.config.RuntimeURL != "" {
		opts = append(opts, session.WithBaseURL(a.config.RuntimeURL))
	}
	runtime, err := session.NewVoiceRuntime(opts...)
	if err != nil {
		return err
	}
	a.provider = runtime
	a.wireSession()
	return nil
}

// wireSession registers the tool surface and transcript handling on the
// session provider.
func (a *App) wireSession() {
	a.tools = make(map[string]session.Tool)
	for _, tool := range Tools(ToolsConfig{
		Aggregator:     a.aggregator,
		Dispatcher:     a.dispatcher,
		Consent:        a.gate,
		Contacts:       a.contacts,
		Biography:      a.biography,
		BiographyStore: a.bioStore,
		Semantic:       a.semantic,
		Facility:       a.facility,
		Metrics:        a.metrics,
		Logger:         log.L(),
		ResidentName:   a.config.ResidentName,
		AssistantName:  a.config.AssistantName,
	}) {
		a.tools[tool.Name] = tool
	}

	a.provider.OnToolCall(a.handleToolCall)
	a.provider.OnTranscript(a.handleTranscript)
	a.provider.OnError(func(err error) {
		a.logger.Error("session error", "error", err)
	})
	a.provider.OnInterruption(func() {
		a.logger.Debug("agent interrupted")
	})
}

// handleToolCall dispatches a runtime tool call to its handler and submits
// the spoken result.
func (a *App) handleToolCall(id, name string, args map[string]any) {
	tool, ok := a.tools[name]
	if !ok {
		a.logger.Warn("unknown tool requested", "tool", name)
		a.submitResult(id, "I can't do that one, but I'm here to help.")
		if a.metrics != nil {
			a.metrics.ToolInvocations.WithLabelValues(name, "unknown").Inc()
		}
		return
	}

	result, err := tool.Handler(args)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		a.logger.Error("tool failed", "tool", name, "error", err)
		result = "I'm sorry, something went wrong with that. Let me try to help another way."
	}
	if a.metrics != nil {
		a.metrics.ToolInvocations.WithLabelValues(name, outcome).Inc()
	}

	a.submitResult(id, result)
	a.publish("tool", map[string]any{"tool": name, "outcome": outcome})
}

func (a *App) submitResult(id, result string) {
	if err := a.provider.SubmitToolResult(id, result); err != nil {
		a.logger.Error("submit tool result failed", "error", err)
	}
}

// handleTranscript folds final user turns into an open emergency episode
// and mirrors the conversation to the admin event stream.
func (a *App) handleTranscript(role, text string, isFinal bool) {
	if !isFinal || text == "" {
		return
	}
	a.publish("transcript", map[string]any{"role": role, "text": text})

	if role != "user" {
		return
	}
	if _, ok := a.aggregator.Status(); !ok {
		return
	}
	if _, err := a.aggregator.RecordTurn("user", text); err == nil {
		a.logger.Debug("turn recorded into open episode")
	}
}

func (a *App) publish(eventType string, data map[string]any) {
	if a.admin == nil {
		return
	}
	a.admin.Events().Publish(hub.Event{Type: eventType, Data: data})
}

// statusSnapshot feeds the admin status endpoint.
func (a *App) statusSnapshot() map[string]any {
	snap := map[string]any{
		"resident":         a.config.ResidentName,
		"connected":        a.provider != nil && a.provider.IsConnected(),
		"cooldown_seconds": int(a.dispatcher.CooldownRemaining().Seconds()),
	}
	if ep, ok := a.aggregator.Status(); ok {
		snap["episode"] = map[string]any{
			"id":     ep.ID,
			"type":   string(ep.Type),
			"status": ep.Status.String(),
			"turns":  len(ep.Transcript),
		}
	}
	if pending, ok := a.gate.Pending(); ok {
		snap["consent_pending"] = pending.Name
	}
	return snap
}

// Run connects to the voice runtime and serves the admin surface until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.admin.Start()
	}()

	if err := a.provider.Connect(ctx); err != nil {
		return fmt.Errorf("connect voice runtime: %w", err)
	}
	go a.superviseSession(ctx)
	a.logger.Info("companion running",
		"resident", a.config.ResidentName,
		"addr", a.config.HTTPAddr,
	)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	}
}

// superviseSession watches the voice-runtime connection and redials when
// it drops, until the context is cancelled.
func (a *App) superviseSession(ctx context.Context) {
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.reconnectSession(ctx)
		}
	}
}

// reconnectSession redials once if the provider has dropped. Returns true
// when a reconnect was attempted.
func (a *App) reconnectSession(ctx context.Context) bool {
	if a.provider == nil || a.provider.IsConnected() {
		return false
	}
	if a.metrics != nil {
		a.metrics.SessionReconnects.Inc()
	}
	a.logger.Warn("voice runtime disconnected, reconnecting")
	if err := a.provider.Connect(ctx); err != nil {
		a.logger.Error("reconnect failed", "error", err)
		return true
	}
	a.logger.Info("voice runtime reconnected")
	return true
}

// Shutdown stops every component gracefully.
func (a *App) Shutdown() {
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn("session close", "error", err)
		}
	}
	if a.admin != nil {
		if err := a.admin.Shutdown(); err != nil {
			a.logger.Warn("admin shutdown", "error", err)
		}
	}
	if a.contactStore != nil {
		if err := a.contactStore.Close(); err != nil {
			a.logger.Warn("contact store close", "error", err)
		}
	}
	time.Sleep(100 * time.Millisecond)
	a.logger.Info("companion stopped")
}

// Package server hosts the admin HTTP surface for the companion backend:
// health and status endpoints, Prometheus metrics, the telephony status
// webhook and a live event stream for monitoring clients.
package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carewell-ai/go-companion/pkg/hub"
)

// StatusFunc returns a point-in-time snapshot of backend state for the
// status endpoint.
type StatusFunc func() map[string]any

// Config configures the admin server.
type Config struct {
	// Addr is the listen address, e.g. ":8090".
	Addr string

	// Registry serves /metrics. Required.
	Registry *prometheus.Registry

	// Status supplies the /api/status payload. Optional.
	Status StatusFunc

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// CallStatus records a telephony provider status callback for one call.
type CallStatus struct {
	CallRef   string    `json:"call_ref"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Server is the admin HTTP server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger
	status StatusFunc

	events *hub.Hub

	mu    sync.RWMutex
	calls map[string]CallStatus

	now func() time.Time
}

// New creates the server and registers all routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &Server{
		addr:   cfg.Addr,
		logger: logger,
		status: cfg.Status,
		events: hub.New("events", logger),
		calls:  make(map[string]CallStatus),
		now:    time.Now,
	}

	app := fiber.New(fiber.Config{
		AppName:               "companion-admin",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(
		cfg.Registry, promhttp.HandlerOpts{},
	)))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/calls/:ref", s.handleCallStatus)

	app.Post("/webhooks/call-status", s.handleCallWebhook)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the event hub and listens on the configured address. It
// blocks until the server shuts down.
func (s *Server) Start() error {
	go s.events.Run()
	s.logger.Info("admin server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// Events returns the live event hub so the application layer can publish
// transcript and episode events.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// LastCallStatus returns the most recent provider status for a call ref.
func (s *Server) LastCallStatus(ref string) (CallStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.calls[ref]
	return cs, ok
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.status == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.status())
}

func (s *Server) handleCallStatus(c *fiber.Ctx) error {
	ref := c.Params("ref")
	cs, ok := s.LastCallStatus(ref)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown call ref",
		})
	}
	return c.JSON(cs)
}

// handleCallWebhook receives telephony status callbacks. Twilio posts
// form-encoded CallSid and CallStatus fields.
func (s *Server) handleCallWebhook(c *fiber.Ctx) error {
	// Copy the form values: fiber's ctx strings are backed by a
	// per-request buffer that is reused once the handler returns.
	ref := utils.CopyString(c.FormValue("CallSid"))
	status := utils.CopyString(c.FormValue("CallStatus"))
	if ref == "" || status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CallSid and CallStatus are required",
		})
	}

	cs := CallStatus{CallRef: ref, Status: status, UpdatedAt: s.now()}
	s.mu.Lock()
	s.calls[ref] = cs
	s.mu.Unlock()

	s.logger.Info("call status update", "call_ref", ref, "status", status)
	s.events.Publish(hub.Event{Type: "call", Data: cs})

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.events, c)
	client.Run()
}

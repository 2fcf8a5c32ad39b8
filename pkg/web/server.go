// Package web serves the drowsiness monitor's HTTP API, its Prometheus
// metrics and a websocket feed of live status.
package web

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-drowsy/internal/log"
	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
	"github.com/teslashibe/go-drowsy/pkg/episodes"
	"github.com/teslashibe/go-drowsy/pkg/hub"
	"github.com/teslashibe/go-drowsy/pkg/monitor"
)

// Monitor is the part of a monitoring session the API drives.
type Monitor interface {
	ID() string
	Latest() monitor.Snapshot
	Config() drowsiness.Config
	UpdateConfig(fn func(drowsiness.Config) drowsiness.Config) (drowsiness.Config, error)
	ApplyPreset(name string) (drowsiness.Config, error)
	Reset(ctx context.Context) monitor.Snapshot
}

// EpisodeLister reads past episodes.
type EpisodeLister interface {
	List(ctx context.Context, sessionID string, limit int) ([]episodes.Episode, error)
}

// Options configures a Server. Episodes and Metrics are optional.
type Options struct {
	Port     string
	Monitor  Monitor
	Episodes EpisodeLister
	Metrics  http.Handler
}

// Server is the dashboard server.
type Server struct {
	app       *fiber.App
	port      string
	monitor   Monitor
	episodes  EpisodeLister
	statusHub *hub.Hub
}

// NewServer builds the Fiber app and its routes.
func NewServer(opts Options) *Server {
	s := &Server{
		port:      opts.Port,
		monitor:   opts.Monitor,
		episodes:  opts.Episodes,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Drowsiness Monitor",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handleUpdateConfig)
	api.Get("/presets", s.handleListPresets)
	api.Post("/presets/:name", s.handleApplyPreset)
	api.Post("/reset", s.handleReset)
	api.Get("/episodes", s.handleEpisodes)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.statusHub.Serve))

	s.app = app
	return s
}

// Start runs the status hub and listens until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("web server stopped", "error", err)
		}
	}()
}

// Publish broadcasts an event to websocket subscribers.
func (s *Server) Publish(ev hub.Event, v any) {
	if err := s.statusHub.Publish(ev, v); err != nil {
		log.Warn("failed to publish event", "event", ev, "error", err)
	}
}

// Hub returns the status hub.
func (s *Server) Hub() *hub.Hub {
	return s.statusHub
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

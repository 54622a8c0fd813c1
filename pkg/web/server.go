// Package web serves bridge health, statistics and calibration over HTTP,
// plus a websocket stream of publish events.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	accesslog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-camera-bridge/pkg/bridge"
	"github.com/teslashibe/go-camera-bridge/pkg/calibration"
	"github.com/teslashibe/go-camera-bridge/pkg/hub"
	"github.com/teslashibe/go-camera-bridge/pkg/zenohclient"
)

// Config holds status server settings.
type Config struct {
	// Host is the listen address. Empty listens on all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the listen port. 0 disables the server.
	Port int `yaml:"port" json:"port"`

	// AccessLog enables fiber's request logger.
	AccessLog bool `yaml:"access_log" json:"access_log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port: 8080,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in [0, 65535], got %d", c.Port)
	}
	return nil
}

// Enabled reports whether the server should run.
func (c *Config) Enabled() bool {
	return c.Port != 0
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Sources supply the data the endpoints report. Nil sources are omitted.
type Sources struct {
	Bridge      func() bridge.Stats
	Calibration func() calibration.Record
	Transport   func() zenohclient.ClientStats
	Publisher   func() zenohclient.PublisherStats
}

// Status is the /api/status payload.
type Status struct {
	RunID        string                      `json:"run_id"`
	Device       string                      `json:"device"`
	Bridge       *bridge.Stats               `json:"bridge,omitempty"`
	Transport    *zenohclient.ClientStats    `json:"transport,omitempty"`
	Publisher    *zenohclient.PublisherStats `json:"publisher,omitempty"`
	FrameClients int                         `json:"frame_clients"`
}

// Server is the status server.
type Server struct {
	cfg     Config
	app     *fiber.App
	logger  *slog.Logger
	runID   string
	device  string
	sources Sources
	frames  *hub.Hub
}

// NewServer creates a status server.
func NewServer(cfg Config, runID, device string, sources Sources, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		runID:   runID,
		device:  device,
		sources: sources,
		frames:  hub.New("frames", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "camera-bridge",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.AccessLog {
		app.Use(accesslog.New())
	}

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/camera_info", s.handleCameraInfo)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(func(c *websocket.Conn) {
		hub.Serve(s.frames, c)
	}))

	s.app = app
	return s
}

// PublishEvent forwards a publish event to websocket subscribers.
func (s *Server) PublishEvent(ev bridge.Event) {
	if err := s.frames.BroadcastJSON(ev); err != nil {
		s.logger.Warn("encode publish event", "error", err)
	}
}

// Serve runs the server on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.frames.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	s.logger.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"run_id": s.runID,
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		RunID:        s.runID,
		Device:       s.device,
		FrameClients: s.frames.ClientCount(),
	}
	if s.sources.Bridge != nil {
		b := s.sources.Bridge()
		st.Bridge = &b
	}
	if s.sources.Transport != nil {
		t := s.sources.Transport()
		st.Transport = &t
	}
	if s.sources.Publisher != nil {
		p := s.sources.Publisher()
		st.Publisher = &p
	}
	return c.JSON(st)
}

func (s *Server) handleCameraInfo(c *fiber.Ctx) error {
	if s.sources.Calibration == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "calibration not configured",
		})
	}
	return c.JSON(s.sources.Calibration())
}

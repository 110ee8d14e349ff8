package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"multichat/app/config"
	"multichat/app/service/broadcast"
	"multichat/app/service/engine"
	"multichat/app/service/mcptools"
	"multichat/app/service/room"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP and websocket front of the rooms.
type Server struct {
	cfg      *config.Config
	registry *room.Registry
	engine   *engine.Service
	hub      *broadcast.Hub
	app      *fiber.App
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*room.Registry](di),
		do.MustInvoke[*engine.Service](di),
		do.MustInvoke[*broadcast.Hub](di),
		do.MustInvoke[*mcptools.Service](di),
	), nil
}

func NewServer(
	cfg *config.Config,
	registry *room.Registry,
	engineSvc *engine.Service,
	hub *broadcast.Hub,
	mcpSvc *mcptools.Service,
) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		engine:   engineSvc,
		hub:      hub,
		app: fiber.New(fiber.Config{
			AppName:               "multichat",
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler,
		}),
	}

	s.app.Use(recover.New())
	s.app.Use(logRequests)

	s.app.Get("/health", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	rest := s.app.Group("/api")
	rest.Get("/bots", s.listBots)
	rest.Get("/rooms", s.listRooms)
	rest.Post("/rooms/create", s.createRoom)

	s.app.Use("/ws", requireUpgrade)
	s.app.Get("/ws/:room", websocket.New(s.serveSocket))

	if cfg.MCP.Enabled && mcpSvc != nil {
		mcpHandler := adaptor.HTTPHandler(server.NewStreamableHTTPServer(
			mcpSvc.Server(),
			server.WithStateLess(true),
		))
		s.app.All("/mcp", mcpHandler)
	}

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Listen, err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server started",
			"addr", ln.Addr().String(),
			"mcp", s.cfg.MCP.Enabled,
		)

		if err := s.app.Listener(ln); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown http server: %w", err)
		}

		slog.Info("HTTP server stopped")

		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	slog.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
		"error", err,
	)

	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

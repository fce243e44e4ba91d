package api

import (
	"expvar"
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/quill/api/mcp"
	"github.com/papercomputeco/quill/pkg/storage"
)

// Server is the API server for querying stored generations.
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected so the generation server's worker pool and the
// API read from the same store.
func NewServer(config Config, driver storage.Driver, logger *slog.Logger) (*Server, error) {
	mcpServer, err := mcp.NewServer(mcp.Config{
		Driver: driver,
		Noop:   config.DisableMCP,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/generations", s.handleListGenerations)
	app.Get("/generations/:id", s.handleGetGeneration)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

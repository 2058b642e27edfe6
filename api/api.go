package api

import (
	"log/slog"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/spool/dispatch"
	"github.com/papercomputeco/spool/dispatch/header"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/tape"
)

// KeySource resolves the API key for a vendor when the client sends none.
type KeySource interface {
	Resolve(vendor string) (string, error)
}

// Server is the API server in front of a dispatch.Dispatcher.
type Server struct {
	config        Config
	dispatcher    *dispatch.Dispatcher
	recorder      tape.Recorder
	keys          KeySource
	headerHandler *header.Handler
	validate      *validator.Validate
	logger        *slog.Logger
	app           *fiber.App
}

// NewServer creates a new API server. recorder and keys may be nil: tape
// routes then answer 503 and dispatches only use the bearer token sent by
// the client.
func NewServer(config Config, dispatcher *dispatch.Dispatcher, recorder tape.Recorder, keys KeySource, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:        config,
		dispatcher:    dispatcher,
		recorder:      recorder,
		keys:          keys,
		headerHandler: header.NewHandler(),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        log,
		app:           app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/vendors", s.handleVendors)
	app.Post("/v1/dispatch", s.handleDispatch)
	app.Get("/v1/tapes", s.handleListTapes)
	app.Get("/v1/tapes/:id", s.handleGetTape)
	app.Get("/v1/tapes/:id/replay", s.handleReplayTape)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server on an existing listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app, mostly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

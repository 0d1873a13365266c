// Package api serves the chat and search HTTP API.
package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP API server.
type Server struct {
	app *fiber.App
}

// Option configures a Server.
type Option func(*options)

type options struct {
	retrieval domain.RetrievalOptions
}

// WithRetrievalDefaults sets the floor and cap used by search requests
// that do not pass their own.
func WithRetrievalDefaults(opts domain.RetrievalOptions) Option {
	return func(o *options) {
		o.retrieval = opts
	}
}

// NewServer creates the server and registers its routes:
//
//	GET  /check/healthy
//	POST /api/chat     (text/event-stream)
//	GET  /api/search?q=
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	o := options{retrieval: domain.DefaultRetrievalOptions()}
	for _, opt := range opts {
		opt(&o)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	var (
		check  = app.Group("/check")
		apiv1  = app.Group("/api")
		chat   = NewChatHandler(ports.Answer)
		search = NewSearchHandler(ports.Retriever, o.retrieval)
	)
	check.Get("/healthy", NewCheckHandler().HandleHealthy)
	apiv1.Post("/chat", chat.HandleChat)
	apiv1.Get("/search", search.HandleSearch)

	return &Server{app: app}, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	logger.Info("HTTP server listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	}
}

package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"cluster-inspection/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
)

// Config holds the SSE listener settings.
type Config struct {
	Host string
	Port int
}

// Server exposes the inspection tools over MCP.
type Server struct {
	config Config
	mcp    *server.MCPServer

	mu        sync.Mutex
	sseServer *server.SSEServer
}

// New creates a server carrying every tool of t.
func New(cfg Config, version string, t *Tools) *Server {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	mcpServer := server.NewMCPServer(
		"cluster-inspection",
		version,
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTools(t.ServerTools()...)

	return &Server{config: cfg, mcp: mcpServer}
}

// Addr returns host:port of the SSE listener.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the SSE listener in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sseServer != nil {
		return fmt.Errorf("mcp server already started")
	}

	baseURL := fmt.Sprintf("http://%s", s.Addr())
	s.sseServer = server.NewSSEServer(
		s.mcp,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	addr := s.Addr()
	logging.Info("MCPServer", "Starting MCP server on %s", addr)

	sseServer := s.sseServer
	go func() {
		if err := sseServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("MCPServer", err, "SSE server error")
		}
	}()
	return nil
}

// Stop shuts the SSE listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sseServer := s.sseServer
	s.sseServer = nil
	s.mu.Unlock()

	if sseServer == nil {
		return fmt.Errorf("mcp server not started")
	}

	logging.Info("MCPServer", "Stopping MCP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sseServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("MCPServer", err, "Error shutting down SSE server")
		return err
	}
	return nil
}

// ServeSSE serves over SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop(context.Background())
}

// ServeStdio serves a single client on in/out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info("MCPServer", "Serving MCP on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cluster-inspection/internal/mcpserver"
	"cluster-inspection/internal/refresh"
	"cluster-inspection/pkg/logging"
)

// ServeOptions selects the MCP transport.
type ServeOptions struct {
	Stdio   bool
	Host    string // SSE only, defaults to the configured host
	Port    int    // SSE only, defaults to the configured port
	Version string

	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

// Serve loads the cluster list and active view data, then serves the MCP tools until ctx
// is done or SIGINT/SIGTERM arrives. Every selection change triggers a refresh of the
// selected hour.
func (a *Application) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := a.services
	if err := svc.State.Initialize(ctx); err != nil {
		// the server still starts; tools retry on demand
		logging.Warn("Serve", "Initial fetch incomplete: %v", err)
	}

	// built after Initialize so the restored or first selection is not a change
	reactor := refresh.NewClusterChangeReactor(svc.State, svc.Refresh.RefreshAll)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = reactor.Run(ctx)
	}()
	defer wg.Wait()
	defer stop()

	tools := mcpserver.NewTools(svc.State, svc.Views, svc.Refresh, svc.Cache)
	srv := mcpserver.New(a.mcpConfig(opts), opts.Version, tools)

	if opts.Stdio {
		in, out := opts.Stdin, opts.Stdout
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		return srv.ServeStdio(ctx, in, out)
	}

	logging.Info("Serve", "MCP tools available at http://%s/sse. Press Ctrl+C to stop.", srv.Addr())
	return srv.ServeSSE(ctx)
}

func (a *Application) mcpConfig(opts ServeOptions) mcpserver.Config {
	cfg := mcpserver.Config{
		Host: a.config.Inspection.MCP.Host,
		Port: a.config.Inspection.MCP.Port,
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	return cfg
}

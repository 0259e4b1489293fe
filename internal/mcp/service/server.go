// Package service hosts the MCP server over stdio or HTTP transports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/steiner385/capacinator/internal/mcp/domain"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Capacinator Scenario MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
	// shutdownTimeout bounds graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// ParseTransportKind maps a configured string to a TransportKind.
func ParseTransportKind(value string) (TransportKind, error) {
	switch TransportKind(value) {
	case "", TransportStdio:
		return TransportStdio, nil
	case TransportHTTP:
		return TransportHTTP, nil
	default:
		return "", fmt.Errorf("transport %q is not supported", value)
	}
}

// Config configures the MCP server.
type Config struct {
	Transport TransportKind
	// HTTPAddr is the HTTP listen address. Defaults to localhost:8081 so the
	// server is not exposed beyond the host unless asked to be.
	HTTPAddr string
}

// New creates an MCP server exposing the scenario engine's tools and
// resources.
func New(engine domain.Engine) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerScenarioTools(server, engine)
	registerScenarioResources(server, engine)
	return server
}

func registerScenarioTools(server *mcp.Server, engine domain.Engine) {
	mcp.AddTool(server, domain.ScenarioCreateTool(), domain.ScenarioCreateHandler(engine))
	mcp.AddTool(server, domain.DeltaPutTool(), domain.DeltaPutHandler(engine))
	mcp.AddTool(server, domain.DeltaDeleteTool(), domain.DeltaDeleteHandler(engine))
	mcp.AddTool(server, domain.ResolveTool(), domain.ResolveHandler(engine))
	mcp.AddTool(server, domain.CompareTool(), domain.CompareHandler(engine))
	mcp.AddTool(server, domain.ApplyTool(), domain.ApplyHandler(engine))
}

func registerScenarioResources(server *mcp.Server, engine domain.Engine) {
	server.AddResource(domain.ScenarioListResource(), domain.ScenarioListResourceHandler(engine))
}

// Run serves the MCP server over the configured transport until the context
// ends.
func Run(ctx context.Context, engine domain.Engine, cfg Config) error {
	transport, err := ParseTransportKind(string(cfg.Transport))
	if err != nil {
		return err
	}

	switch transport {
	case TransportStdio:
		return serve(ctx, New(engine), &mcp.StdioTransport{})
	case TransportHTTP:
		return serveHTTP(ctx, New(engine), cfg.HTTPAddr)
	default:
		return fmt.Errorf("transport %q is not supported", transport)
	}
}

// serve runs the MCP server on a transport, treating context cancellation as
// a clean stop.
func serve(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	if server == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	err := server.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// serveHTTP exposes the MCP server through the SDK's streamable HTTP handler.
func serveHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	if addr == "" {
		addr = "localhost:8081"
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	httpServer := &http.Server{Addr: addr, Handler: handler}

	log.Printf("serving MCP over HTTP on %s", addr)
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP server: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("MCP HTTP server: %w", err)
	}
}

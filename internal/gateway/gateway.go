// ABOUTME: Gateway orchestrator that wires the verifier, clients, and transports
// ABOUTME: Manages the HTTP server lifecycle and health endpoint

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/league-gateway/internal/auth"
	"github.com/2389/league-gateway/internal/config"
	"github.com/2389/league-gateway/internal/discovery"
	"github.com/2389/league-gateway/internal/leaguestore"
	"github.com/2389/league-gateway/internal/mcp"
	"github.com/2389/league-gateway/internal/metrics"
	"github.com/2389/league-gateway/internal/resolver"
	"github.com/2389/league-gateway/internal/rest"
	"github.com/2389/league-gateway/internal/upstream"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Gateway orchestrates the league-gateway server components: the token
// verifier, the external store and provider clients, and the two transports
// (JSON-RPC and REST) that share one executor and one prober.
type Gateway struct {
	config     *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	verifier := auth.NewVerifier(auth.Config{
		KeyTTL:          cfg.Auth.JWKSTTL,
		DevelopmentMode: cfg.Auth.DevelopmentMode,
		Logger:          logger.With("component", "auth"),
	})
	if cfg.Auth.DevelopmentMode {
		logger.Warn("development mode enabled - X-Dev-Subject header accepted in place of a token")
	}

	store := leaguestore.NewClient(cfg.Store.BaseURL, cfg.Store.Timeout, logger.With("component", "store"))
	provider := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logger.With("component", "upstream"))

	executor := resolver.NewExecutor(store, provider, logger.With("component", "resolver"), m)
	prober := discovery.NewProber(store, provider, discovery.Config{
		FloorYear:       cfg.Discovery.FloorYear,
		MissCutoff:      cfg.Discovery.MissCutoff,
		MandatoryWindow: cfg.Discovery.MandatoryWindow,
		ProbeDelay:      cfg.Discovery.ProbeDelay,
		RetryDelay:      cfg.Discovery.RetryDelay,
	}, logger.With("component", "discovery"), m)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Verifier:         verifier,
		Executor:         executor,
		Logger:           logger.With("component", "mcp"),
		BaseURL:          cfg.Server.BaseURL,
		AuthorizationURL: cfg.Auth.AuthorizationURL,
		ServerName:       "league-gateway",
		ServerVersion:    Version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating JSON-RPC server: %w", err)
	}
	mcpServer.RegisterRoutes(mux)

	restServer, err := rest.NewServer(rest.Config{
		Verifier: verifier,
		Executor: executor,
		Prober:   prober,
		Store:    store,
		Logger:   logger.With("component", "rest"),
		BaseURL:  cfg.Server.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating REST server: %w", err)
	}
	restServer.RegisterRoutes(mux)

	if m != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, m.Handler())
		logger.Info("metrics endpoint enabled", "path", path)
	}

	return &Gateway{
		config:  cfg,
		logger:  logger.With("component", "gateway"),
		metrics: m,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the original is already
// canceled by the time we get here.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server, letting in-flight requests
// finish within the context deadline.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	if err := g.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

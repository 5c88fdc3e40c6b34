// Package server composes the REST API, change feed, and MCP transports into one process handler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/server/httpapi"
	"github.com/hylla/tavla/internal/adapters/server/mcpapi"
	"github.com/hylla/tavla/internal/app"
)

// defaultBindAddress defines the localhost-first serve default.
const defaultBindAddress = "127.0.0.1:8080"

// defaultShutdownTimeout bounds graceful shutdown time once context cancellation starts.
const defaultShutdownTimeout = 5 * time.Second

// Config defines serve-mode endpoint configuration.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
}

// Dependencies defines app-facing adapters required by server transports.
type Dependencies struct {
	Store  app.Backend
	Boards common.BoardService
	Logger *log.Logger
}

// readinessTimeout bounds the store probe behind /readyz.
const readinessTimeout = 2 * time.Second

// NewHandler composes one root router containing health, REST API, and MCP endpoints.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	normalizedCfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Store == nil {
		return nil, Config{}, fmt.Errorf("store dependency is required")
	}
	if deps.Boards == nil {
		return nil, Config{}, fmt.Errorf("boards dependency is required")
	}

	mcpHandler, err := mcpapi.NewHandler(
		mcpapi.Config{
			ServerName:    normalizedCfg.ServerName,
			ServerVersion: normalizedCfg.ServerVersion,
			EndpointPath:  normalizedCfg.MCPEndpoint,
		},
		deps.Boards,
	)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	apiHandler := http.StripPrefix(normalizedCfg.APIEndpoint, httpapi.NewHandler(deps.Store, deps.Boards, httpapi.WithLogger(deps.Logger)))

	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthHandler(normalizedCfg)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", readinessHandler(deps.Store, deps.Logger)).Methods(http.MethodGet, http.MethodHead)
	r.Handle(normalizedCfg.MCPEndpoint, mcpHandler)
	r.Handle(normalizedCfg.APIEndpoint, apiHandler)
	r.PathPrefix(normalizedCfg.APIEndpoint + "/").Handler(apiHandler)
	return r, normalizedCfg, nil
}

// Run starts the composed HTTP server and blocks until shutdown or startup failure.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler, normalizedCfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	httpServer := &http.Server{
		Addr:              normalizedCfg.HTTPBind,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if deps.Logger != nil {
		deps.Logger.Info("serving", "bind", normalizedCfg.HTTPBind, "api", normalizedCfg.APIEndpoint, "mcp", normalizedCfg.MCPEndpoint)
	}
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		if deps.Logger != nil {
			deps.Logger.Info("shutting down", "bind", normalizedCfg.HTTPBind)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		shutdownErr := httpServer.Shutdown(shutdownCtx)
		serveErr := <-serveErrCh
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
			return fmt.Errorf("shutdown server: %w", shutdownErr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve after shutdown: %w", serveErr)
		}
		return nil
	}
}

// normalizeConfig applies defaults and validates endpoint collisions.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind)
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}

	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, "/api/v1")
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, "/mcp")
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ")
	}

	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "tavla"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// normalizeEndpoint normalizes one endpoint path and applies fallback defaults.
func normalizeEndpoint(path string, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return fallback
	}
	return path
}

// healthStatus is the JSON body of the health and readiness probes.
type healthStatus struct {
	Status  string `json:"status"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// healthHandler reports liveness with the server identity.
func healthHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, healthStatus{Status: "ok", Name: cfg.ServerName, Version: cfg.ServerVersion})
	}
}

// readinessHandler reports ready only while the store answers a board listing.
func readinessHandler(store app.Backend, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if _, err := store.ListBoards(ctx); err != nil {
			if logger != nil {
				logger.Warn("readiness probe failed", "err", err)
			}
			writeStatus(w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Error: err.Error()})
			return
		}
		writeStatus(w, http.StatusOK, healthStatus{Status: "ok"})
	}
}

func writeStatus(w http.ResponseWriter, code int, body healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

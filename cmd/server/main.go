package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/deskview/internal/config"
	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/mcp"
	"github.com/rpggio/deskview/internal/source"
	"github.com/rpggio/deskview/internal/sqlite"
	"github.com/rpggio/deskview/internal/telemetry"
	"github.com/rpggio/deskview/internal/transport"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		file, err := openCappedFile(cfg.Log.Path, logFileLimit, logFileKeep)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = file
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	catalog, err := screen.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	backend, err := source.NewClient(source.Options{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	activityLog := activity.NewService(sqlite.NewActivityRepository(db), logger)
	screens := screen.NewService(screen.NewDispatch(catalog, backend, logger), backend, logger, screen.Options{
		IdleTimeout: cfg.Screens.IdleTimeout,
		Activity:    activityLog,
	})
	defer screens.Shutdown()
	go screens.Run(ctx, cfg.Screens.SweepInterval)

	cases := caselookup.NewService(backend, caselookup.Config{
		Path:        catalog.CaseLookup.Path,
		Envelope:    catalog.CaseLookup.Envelope,
		NumberField: catalog.CaseLookup.NumberField,
		Roles:       catalog.CaseLookup.Roles,
		Activity:    activityLog,
	}, logger)

	local := localSession(cfg)
	resolver, err := newResolver(cfg, db, local, logger)
	if err != nil {
		return err
	}

	mcpCfg := mcp.Config{
		Screens:  screens,
		Cases:    cases,
		Resolver: resolver,
		PageSize: cfg.Screens.PageSize,
		Version:  version,
		Logger:   logger,
	}
	// Stdio mode: always disable auth (local use only)
	if cfg.Transport.Mode == "stdio" || !cfg.Auth.Enabled {
		mcpCfg.Session = &local
	}
	mcpServer := mcp.NewServer(mcpCfg)

	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(ctx, logger, mcpServer)
	}

	router := transport.NewServer(transport.Services{
		Screens:  screens,
		Cases:    cases,
		Activity: activityLog,
	}, transport.Options{
		Resolver: resolver,
		Logger:   logger,
		PageSize: cfg.Screens.PageSize,
		MCP:      mcp.NewHTTPHandler(mcpServer, cfg.Screens.IdleTimeout),
	})
	return runHTTPMode(ctx, logger, router, cfg.Server.Host, cfg.Server.Port)
}

// newResolver authenticates bearer tokens as JWTs (when a secret is set)
// or API keys. With auth disabled every request runs as the local session.
func newResolver(cfg config.Config, db *sqlite.DB, local identity.Session, logger *slog.Logger) (identity.Resolver, error) {
	if !cfg.Auth.Enabled {
		logger.Warn("authentication disabled", "tenant_id", local.TenantID, "role", local.Role)
		return identity.StaticResolver{Session: local}, nil
	}

	chain := identity.ChainResolver{
		APIKeys: identity.NewAPIKeyResolver(sqlite.NewAPIKeyRepository(db), logger),
	}
	if cfg.Auth.JWTSecret != "" {
		jwtResolver, err := identity.NewJWTResolver(identity.JWTConfig{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
		})
		if err != nil {
			return nil, err
		}
		chain.JWT = jwtResolver
	}
	return chain, nil
}

func localSession(cfg config.Config) identity.Session {
	return identity.Session{
		ID:       "local",
		TenantID: cfg.Stdio.TenantID,
		UserID:   cfg.Stdio.UserID,
		Role:     identity.Role(cfg.Stdio.Role),
	}
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or the context is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, handler http.Handler, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return waitForShutdown(logger, httpServer)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

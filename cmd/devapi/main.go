// Command devapi serves fixture collections that stand in for the backend
// systems during development and end-to-end tests.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpggio/deskview/internal/devapi"
	"github.com/rpggio/deskview/internal/sqlite"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	addr     string
	db       string
	seed     string
	noSeed   bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "devapi",
		Short:         "Serve fixture collections for local development",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:8090", "listen address")
	cmd.Flags().StringVar(&opts.db, "db", "file:devapi?mode=memory&cache=shared", "SQLite data source")
	cmd.Flags().StringVar(&opts.seed, "seed", "", "seed YAML file (default: built-in demo data)")
	cmd.Flags().BoolVar(&opts.noSeed, "no-seed", false, "start without seeding")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, opts options) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", opts.logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := sqlite.New(opts.db)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	store := sqlite.NewFixtureRepository(db)

	if !opts.noSeed {
		seed, err := devapi.LoadSeed(opts.seed)
		if err != nil {
			return err
		}
		n, err := seed.Apply(ctx, store)
		if err != nil {
			return err
		}
		logger.Info("seeded fixtures", "count", n)
	}

	handlerOpts := devapi.DefaultOptions()
	handlerOpts.Logger = logger
	server := &http.Server{
		Addr:              opts.addr,
		Handler:           devapi.NewHandler(store, handlerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("devapi listening", "addr", opts.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

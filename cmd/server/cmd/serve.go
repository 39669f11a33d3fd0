package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobhouse/server/internal/api"
	"github.com/jobhouse/server/internal/api/handlers"
	"github.com/jobhouse/server/internal/config"
	"github.com/jobhouse/server/internal/metrics"
	"github.com/jobhouse/server/internal/storage/mongostore"
	"github.com/jobhouse/server/internal/telemetry"
)

var (
	// Server flags (override config/env)
	serverHost     string
	serverPort     int
	skipMigrations bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the job house HTTP server and begin accepting API requests.

On startup the server:
- Loads configuration from environment variables (or --config)
- Applies pending database migrations unless --skip-migrations is set
- Refuses to start when the unique indexes from the migrations are missing
- Finishes event deletions left incomplete by an earlier failure
- Bootstraps the admin account if ADMIN_EMAIL and ADMIN_PASSWORD are set
- Handles graceful shutdown on SIGINT/SIGTERM

Examples:
  server serve
  server serve --host 127.0.0.1 --port 9090
  server serve --log-level debug --log-format console`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting job house server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(parent, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing setup failed: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown error")
		}
	}()

	if !skipMigrations {
		if err := mongostore.MigrateUp(cfg.Database.URI, cfg.Database.Name); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	startCtx, cancel := context.WithTimeout(parent, 30*time.Second)
	a, err := newApp(startCtx, cfg, logger)
	if err != nil {
		cancel()
		return err
	}
	defer a.close(context.Background())

	if err := a.store.VerifyIndexes(startCtx); err != nil {
		cancel()
		return fmt.Errorf("database is not migrated (run `server migrate up`): %w", err)
	}

	if n, err := a.services.Events.ReconcileCascades(startCtx); err != nil {
		logger.Error().Err(err).Msg("cascade reconcile failed")
	} else if n > 0 {
		logger.Info().Int("completed", n).Msg("finished pending event cascades")
	}
	if err := a.bootstrapAdmin(startCtx); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	cancel()

	var broker handlers.BrokerStatus
	if a.rabbit != nil {
		broker = a.rabbit
	}
	health := handlers.NewHealthChecker(a.store, a.store, broker, Version, GitCommit)
	router := api.NewRouter(cfg, logger, a.services, health, a.store, buildInfo())
	defer router.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// Package cli provides common initialization for the khata binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/attachments"
	"khata/internal/config"
	klog "khata/internal/log"
	"khata/internal/services"
	"khata/internal/storage"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and
// sets it as the default logger.
func SetupLogger(level, component string) *klog.Logger {
	logger := klog.New(klog.Config{
		Level:     klog.ParseLevel(level),
		Component: component,
		Output:    os.Stdout,
	})
	klog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *klog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *klog.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// InitLedgerService builds the ledger service on repo. publisher may be nil.
// Exits the process when the attachment directory cannot be prepared.
func InitLedgerService(logger *klog.Logger, cfg *config.Config, repo *storage.SQLiteRepository, publisher services.Publisher) *services.LedgerService {
	store, err := attachments.NewStore(cfg.AttachmentsDir)
	if err != nil {
		logger.Error("Failed to initialize attachment store", "error", err, "dir", cfg.AttachmentsDir)
		os.Exit(1)
	}
	return services.NewLedgerService(repo, services.Options{
		Attachments:      store,
		Categorizer:      cfg.Categorizer(),
		Publisher:        publisher,
		Logger:           logger,
		BalanceCacheSize: cfg.BalanceCacheSize,
		BalanceCacheTTL:  cfg.BalanceCacheTTL,
	})
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *klog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

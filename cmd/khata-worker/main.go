package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"khata/internal/amqp"
	"khata/internal/cli"
	klog "khata/internal/log"
	"khata/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), klog.ComponentWorker)

	logger.Info("Starting khata-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// Propagation requests are optional; without AMQP the worker only keeps
	// today's snapshot in place.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Info("AMQP client initialized", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - only the ensure-today loop will run")
	}

	svc := cli.InitLedgerService(logger, cfg, repo, nil)
	w := worker.NewPropagationWorker(svc)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
	})

	ctx = klog.WithContext(ctx, logger)

	if err := w.StartupCheck(ctx); err != nil {
		logger.Error("Startup check failed", "error", err)
		// keep going, the ticker retries
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.RunEnsureToday(gctx, cfg.EnsureTodayInterval)
	})
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumePropagations(gctx, cfg.WorkerPrefetch, w.HandlePropagation)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
	}

	// the writer finishes its current unit of work before the store closes
	if cerr := svc.Close(); cerr != nil {
		logger.Warn("Failed to close ledger service", "error", cerr)
	}

	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

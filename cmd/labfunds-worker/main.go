package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"labfunds/internal/amqp"
	"labfunds/internal/backend"
	"labfunds/internal/cli"
	"labfunds/internal/config"
	"labfunds/internal/log"
	"labfunds/internal/services"
	"labfunds/internal/sheets"
	gsheet "labfunds/internal/sheets/google"
	mem "labfunds/internal/sheets/memory"
	"labfunds/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting labfunds-worker")

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	if cfg.DataBackend == backend.MemoryBackend.String() {
		logger.Warn("Worker is reading a private memory store; balances will not reflect the server")
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The worker only reads; it never publishes events of its own.
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	fundService, _ := res.Services(
		services.WithLogger(logger),
		services.WithBalanceConcurrency(cfg.BalanceConcurrency),
	)

	var exporter sheets.BalanceExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleBalanceSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return fmt.Errorf("initialize google sheets client: %w", err)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
	}

	fundWorker := worker.NewFundWorker(fundService, exporter, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	g, gctx := errgroup.WithContext(ctx)

	if cfg.EventsEnabled() {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("initialize amqp client: %w", err)
		}
		defer consumer.Close()
		g.Go(func() error {
			return consumer.ConsumeWithReconnect(gctx, fundWorker.HandleFundEvent)
		})
	} else {
		logger.Info("Skipping AMQP consumption - no AMQP_URL provided")
	}

	g.Go(func() error {
		return fundWorker.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	<-done
	return nil
}

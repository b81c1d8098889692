package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetsim/internal/amqp"
	"budgetsim/internal/config"
	"budgetsim/internal/log"
	"budgetsim/internal/metrics"
	"budgetsim/internal/sheets"
	gsheet "budgetsim/internal/sheets/google"
	mem "budgetsim/internal/sheets/memory"
	"budgetsim/internal/storage"
	"budgetsim/internal/worker"
)

func main() {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentWorker,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	logger.Info("Starting export worker",
		"sqlite_db", cfg.SQLiteDBPath,
		"amqp_enabled", cfg.AMQPEnabled(),
		"sheets_enabled", cfg.SheetsEnabled(),
		"export_interval", cfg.ExportInterval)

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	var exporter sheets.FamilyExporter
	if cfg.SheetsEnabled() {
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return err
		}
		exporter = cli
	} else {
		logger.Warn("Google Sheets not configured, exporting to memory only")
		exporter = mem.New()
	}

	w := worker.NewExportWorker(repo, exporter, metrics.New(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(w.RunPeriodic(gctx, cfg.ExportInterval)) })

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPExportQueue, amqp.WithLogger(logger))
		if err != nil {
			return err
		}
		defer client.Close()

		g.Go(func() error { return ignoreCanceled(client.ConsumeChanges(gctx, w.HandleChange)) })
	} else {
		logger.Info("Skipping AMQP consumption, relying on periodic export")
	}

	err = g.Wait()
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

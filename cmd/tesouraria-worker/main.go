package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tesouraria/internal/amqp"
	"tesouraria/internal/backend"
	"tesouraria/internal/cli"
	"tesouraria/internal/config"
	"tesouraria/internal/log"
	"tesouraria/internal/sheets"
	gsheet "tesouraria/internal/sheets/google"
	memsheet "tesouraria/internal/sheets/memory"
	"tesouraria/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	logger.Info("Starting tesouraria-worker",
		"data_backend", cfg.DataBackend,
		"sheets_enabled", cfg.GoogleSpreadsheetID != "")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger).CreateBackend(startCtx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase)
		os.Exit(1)
	}
	defer b.Close()

	source, ok := b.Store.(worker.Source)
	if !ok {
		logger.Error("Backend does not track mirrored transactions", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Without a spreadsheet the worker still drains the queue into an
	// in-memory mirror, which keeps the pending flags moving in development.
	var mirror sheets.Mirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(startCtx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		if err := client.EnsureHeader(startCtx); err != nil {
			logger.Error("Failed to write sheet header", log.FieldError, err.Error())
			os.Exit(1)
		}
		mirror = client
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		mirror = memsheet.New()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(source, mirror, cfg.SyncBatchSize, logger)
	if err := syncWorker.StartupSyncCheck(startCtx); err != nil {
		// Not fatal: the sweeper retries on its interval.
		logger.Error("Failed startup sync check", log.FieldError, err.Error())
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(amqpClient.Consume(gctx, syncWorker.HandleMessage))
	})
	g.Go(func() error {
		return ignoreCanceled(worker.NewSweeper(syncWorker, cfg.SyncInterval).Run(gctx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped unexpectedly", log.FieldError, err.Error())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

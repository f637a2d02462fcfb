package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tesouraria/internal/amqp"
	"tesouraria/internal/app"
	"tesouraria/internal/attachments"
	"tesouraria/internal/auth"
	"tesouraria/internal/backend"
	"tesouraria/internal/cache"
	"tesouraria/internal/cli"
	"tesouraria/internal/config"
	apphttp "tesouraria/internal/http"
	"tesouraria/internal/live"
	"tesouraria/internal/localstore"
	"tesouraria/internal/log"
	"tesouraria/internal/services"
)

func main() {
	// Load .env file for local development (ignored in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	logger.Info("Starting tesouraria",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"attachment_backend", cfg.AttachmentBackend,
		"amqp_enabled", cfg.AMQPURL != "")

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
			log.FieldErrorType, log.ErrorTypeDatabase,
			"backend", cfg.DataBackend)
		os.Exit(1)
	}

	prefs := localstore.New(b.KV)

	authSvc := auth.NewService(b.Users, auth.Config{
		SessionTTL:  cfg.SessionTTL,
		MaxSessions: cfg.SessionMax,
	}, logger)

	sessions := app.NewSessions(cfg.SessionMax, cfg.SessionTTL)
	authSvc.Subscribe(sessions.HandleAuthEvent)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(authSvc.Sessions())
	cacheManager.Register(sessions.Cache())
	cacheManager.StartCleanup(5 * time.Minute)

	feed := live.NewFeed(b.Store, logger)

	checks := []apphttp.ReadinessCheck{{Name: "store", Check: b.Ping}}

	// A typed nil would pass the service's nil check, so the interface stays
	// unset when AMQP is disabled.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client",
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeNetwork)
			os.Exit(1)
		}
		publisher = amqpClient
		checks = append(checks, apphttp.ReadinessCheck{
			Name:  "amqp",
			Check: func(context.Context) error { return amqpClient.Ping() },
		})
	} else {
		logger.Info("AMQP disabled, spreadsheet mirror messages will not be sent")
	}

	txSvc := services.NewTransactionService(b.Store, feed, prefs, publisher, logger)
	feed.OnSnapshot(func(snap live.Snapshot) {
		if err := txSvc.MirrorSnapshot(context.Background(), snap); err != nil {
			logger.Warn("Failed to mirror ledger snapshot", log.FieldError, err.Error())
		}
	})

	var bin attachments.Bin = attachments.LocalBin{}
	if cfg.AttachmentBackend == "azblob" {
		blobBin, err := attachments.NewBlobBin(cfg.AzureBlobServiceURL, cfg.AzureBlobContainer, logger)
		if err != nil {
			logger.Error("Failed to initialize Azure Blob storage", log.FieldError, err.Error())
			os.Exit(1)
		}
		if err := blobBin.EnsureContainer(startCtx); err != nil {
			logger.Error("Failed to ensure attachment container",
				log.FieldError, err.Error(),
				"container", cfg.AzureBlobContainer)
			os.Exit(1)
		}
		bin = blobBin
	}
	attachSvc := attachments.NewService(prefs, bin, attachments.Limits{
		MaxFileBytes: cfg.AttachmentMaxFileBytes,
		QuotaBytes:   cfg.AttachmentQuotaBytes,
	}, logger)

	srv := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Auth:               authSvc,
		Sessions:           sessions,
		Feed:               feed,
		Transactions:       txSvc,
		Attachments:        attachSvc,
		Prefs:              prefs,
		Checks:             checks,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      os.Getenv("SECURE_COOKIES") == "true",
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err.Error())
			}
		}
		if err := b.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err.Error())
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := feed.Run(gctx, cfg.FeedPollInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped unexpectedly", log.FieldError, err.Error())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}

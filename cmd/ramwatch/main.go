package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ramwatch/config"
	"ramwatch/internal/api"
	"ramwatch/internal/database"
	"ramwatch/internal/geizhals"
	"ramwatch/internal/queue"
	"ramwatch/internal/runner"
	"ramwatch/internal/scanner"
	"ramwatch/internal/telegram"
	"ramwatch/internal/transport"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.DBPath)

	db, err := database.NewDatabase(cfg.DBPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	client := transport.NewKleinanzeigenClient(cfg.SearchURL, logger)
	resilient := runner.NewResilientTransport(client, runner.RetryConfig{
		MaxRetries:  cfg.FetchMaxRetries,
		BaseDelay:   cfg.FetchRetryBase,
		DelayMin:    cfg.RequestDelayMin,
		DelayMax:    cfg.RequestDelayMax,
		RotateEvery: cfg.SessionRotateEvery,
	}, logger)

	// Notifications go through a queue so a slow Telegram API call never
	// stalls the scan cycle.
	notifyQueue := queue.NewMessageQueue(64, logger)
	telegramService := telegram.NewService(cfg.TelegramBotToken, cfg.TelegramChatIDs, logger)
	if cfg.TelegramEnabled() {
		notifyQueue.Subscribe(func(message string) error {
			for _, res := range telegramService.Notify(message) {
				if res.Err != nil {
					return res.Err
				}
			}
			return nil
		})
	} else {
		logger.Warn("Telegram is not configured, notifications are logged only")
		notifyQueue.Subscribe(func(message string) error {
			logger.WithField("message", message).Info("Notification")
			return nil
		})
	}
	notifyQueue.Start()
	defer notifyQueue.Close()

	notifier := &queuedNotifier{queue: notifyQueue, logger: logger}

	var prices scanner.PriceSource
	if cfg.GeizhalsURL != "" {
		prices = geizhals.NewClient(cfg.GeizhalsURL, logger)
	}

	scan := scanner.NewScanner(resilient, db, notifier, prices, scanner.Config{
		MinPrice:         cfg.MinPrice,
		MaxPrice:         cfg.MaxPrice,
		RequiredKeyword:  cfg.RequiredKeyword,
		ExcludedKeywords: cfg.ExcludedKeywords,
		MaxPages:         cfg.MaxPages,
	}, logger)

	loop := runner.NewRunner(scan, cfg.ScanInterval, logger)
	resilient.AttachRunner(loop)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Daily digest over Telegram.
	var digest *cron.Cron
	if cfg.DigestCron != "" && cfg.TelegramEnabled() {
		digest = cron.New()
		_, err := digest.AddFunc(cfg.DigestCron, func() {
			stats, err := db.GetStats()
			if err != nil {
				logger.WithError(err).Error("Failed to build digest stats")
				return
			}
			telegramService.Notify(telegram.FormatDigest(stats))
		})
		if err != nil {
			logger.WithError(err).Fatal("Invalid digest cron expression")
		}
		digest.Start()
		defer digest.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.NewHandler(db, loop, logger))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: router,
	}
	go func() {
		logger.Infof("Starting API server on port %d", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	loop.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API server shutdown failed")
	}
	logger.Info("Shutdown complete")
}

// queuedNotifier hands messages to the dispatch queue instead of sending
// inline.
type queuedNotifier struct {
	queue  *queue.MessageQueue
	logger *logrus.Logger
}

func (n *queuedNotifier) Notify(message string) []telegram.DeliveryResult {
	if err := n.queue.Push(message); err != nil {
		n.logger.WithError(err).Warn("Dropped notification")
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Harry10012003/decision-support-tool/internal/config"
	"github.com/Harry10012003/decision-support-tool/internal/fetch"
	"github.com/Harry10012003/decision-support-tool/internal/httpapi"
	"github.com/Harry10012003/decision-support-tool/internal/logger"
	"github.com/Harry10012003/decision-support-tool/internal/storage"
	"github.com/Harry10012003/decision-support-tool/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file (empty for defaults and environment only)")

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	// Secrets such as DECISION_TELEGRAM_BOT_TOKEN may live in a local .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath, storage.Defaults{
		Sense: cfg.Analysis.ObjectiveSense(),
		Alpha: cfg.Analysis.Alpha,
	})
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	if chats, err := store.Count(context.Background()); err != nil {
		logger.Warn("Failed to count stored preferences: %v", err)
	} else {
		logger.Info("Storage opened at %s (%d chats with saved preferences)", cfg.Storage.DBPath, chats)
	}

	fetcher := fetch.NewClient(fetch.ClientConfig{
		Timeout:        cfg.Fetch.Timeout,
		MaxRetries:     cfg.Fetch.MaxRetries,
		RetryDelayBase: cfg.Fetch.RetryDelayBase,
		MaxBytes:       cfg.Fetch.MaxBytes,

		AllowPrivateNetworks: cfg.Fetch.AllowPrivateNetworks,
	})

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Telegram.Enabled {
		handler := telegram.NewHandler(store, fetcher, telegram.HandlerConfig{
			MaxOptions:           cfg.Analysis.MaxOptions,
			MaxStates:            cfg.Analysis.MaxStates,
			ProbabilityTolerance: cfg.Analysis.ProbabilityTolerance,
		})
		bot, err := telegram.NewClient(telegram.ClientConfig{
			BotToken:       cfg.Telegram.BotToken,
			MaxRetries:     cfg.Telegram.MaxRetries,
			RetryDelayBase: cfg.Telegram.RetryDelayBase,
			UpdateTimeout:  cfg.Telegram.UpdateTimeout,
			AllowChat:      cfg.Telegram.ChatAllowed,
		}, handler, fetcher)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")

		g.Go(func() error {
			return bot.ListenForCommands(ctx)
		})
	} else {
		logger.Debug("Telegram bot disabled")
	}

	if cfg.HTTP.Enabled {
		api := httpapi.NewServer(httpapi.Config{
			MaxBodyBytes:         cfg.HTTP.MaxBodyBytes,
			MaxOptions:           cfg.Analysis.MaxOptions,
			MaxStates:            cfg.Analysis.MaxStates,
			ProbabilityTolerance: cfg.Analysis.ProbabilityTolerance,
			DefaultSense:         cfg.Analysis.ObjectiveSense(),
			DefaultAlpha:         cfg.Analysis.Alpha,
		}, fetcher, store)

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
			// a source_url download may take the whole fetch budget
			WriteTimeout: cfg.HTTP.WriteTimeout + cfg.Fetch.Timeout,
		}

		g.Go(func() error {
			logger.Info("HTTP API listening on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("Shutting down HTTP API...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		logger.Debug("HTTP API disabled")
	}

	logger.Info("Decision bot started (objective: %s, alpha: %.2f, limits: %d options x %d states)",
		cfg.Analysis.ObjectiveSense(), cfg.Analysis.Alpha, cfg.Analysis.MaxOptions, cfg.Analysis.MaxStates)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service stopped with error: %v", err)
		return
	}
	logger.Info("Service stopped")
}

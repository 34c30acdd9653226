package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solpulse/pulse/configs"
	"github.com/solpulse/pulse/internal/api"
	"github.com/solpulse/pulse/internal/candle"
	"github.com/solpulse/pulse/internal/export"
	"github.com/solpulse/pulse/internal/history"
	"github.com/solpulse/pulse/internal/pipeline"
	"github.com/solpulse/pulse/internal/session"
	"github.com/solpulse/pulse/internal/stats"
	"github.com/solpulse/pulse/internal/stream"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	appConfig := configs.AppLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := stream.NewManager(stream.Config{
		URL:            appConfig.Stream.URL,
		ReconnectDelay: time.Duration(appConfig.Stream.ReconnectDelaySeconds) * time.Second,
		MaxAttempts:    appConfig.Stream.MaxReconnectAttempts,
	}, stream.WebsocketDialer{
		HandshakeTimeout: time.Duration(appConfig.Stream.HandshakeTimeoutSeconds) * time.Second,
	}, logger)

	historyClient := history.NewClient(appConfig.API.BaseURL, logger)
	candleEngine := candle.NewEngine(logger)
	statsEngine := stats.NewEngine(logger)

	pipe := pipeline.New(
		pipeline.Config{SeedTradeLimit: appConfig.API.SeedTradeLimit},
		manager,
		historyClient,
		candleEngine,
		statsEngine,
		logger,
	)
	defer pipe.Close()

	if appConfig.Kafka.Broker != "" {
		publisher := export.NewPublisher(appConfig.Kafka.Broker, appConfig.Kafka.Topic, logger)
		defer publisher.Close()
		unsubscribe := manager.Subscribe(publisher.Publish)
		defer unsubscribe()
		logger.Info("trade export enabled",
			"broker", appConfig.Kafka.Broker,
			"topic", appConfig.Kafka.Topic)
	}

	// The session signal stands in for the surrounding application's
	// auth/session state; this process wants the feed up for its lifetime.
	desired := make(chan bool, 1)
	desired <- true
	watcher := session.NewWatcher(manager, logger)
	go watcher.Run(ctx, desired)

	if err := pipe.SelectPair(ctx, appConfig.DefaultPair, appConfig.DefaultInterval); err != nil {
		logger.Error("initial pair selection failed",
			"pair", appConfig.DefaultPair,
			"interval", appConfig.DefaultInterval,
			"error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.NewHandler(pipe, manager))
	srv := &http.Server{
		Addr:    ":" + appConfig.Server.Port,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server stopped", "error", err)
		}
	}()

	logger.Info("market data pipeline started",
		"pair", appConfig.DefaultPair,
		"interval", appConfig.DefaultInterval,
		"feed", appConfig.Stream.URL,
		"port", appConfig.Server.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("status server shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}

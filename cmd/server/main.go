package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shortlinks/internal/bot"
	"shortlinks/internal/cache"
	"shortlinks/internal/config"
	"shortlinks/internal/database"
	"shortlinks/internal/geo"
	"shortlinks/internal/service"
)

type backend interface {
	service.LinkStore
	io.Closer
}

type eventLog interface {
	service.EventWriter
	service.EventReader
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
	slog.Info("Starting shortlinks service...", "port", cfg.Port, "backend", cfg.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	links, events, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("Could not open storage", "error", err)
		return
	}
	defer links.Close()
	defer events.Close()

	var linkCache service.LinkCache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("Could not connect to Redis", "error", err)
			return
		}
		defer redisCache.Close()
		linkCache = redisCache
	} else {
		slog.Info("REDIS_ADDR not set, link cache disabled")
	}

	var locator service.Locator
	if cfg.GeoIPPath != "" {
		geoDB, err := geo.Open(cfg.GeoIPPath)
		if err != nil {
			slog.Warn("Could not open GeoIP database, locations disabled", "path", cfg.GeoIPPath, "error", err)
		} else {
			defer geoDB.Close()
			locator = geoDB
		}
	}

	recorder := service.NewRecorder(links, events, locator, service.DefaultRecorderConfig())
	recorder.Start()
	defer recorder.Close()

	shortener := service.NewShortener(links, linkCache, recorder, cfg.BaseURL)
	aggregator := service.NewAggregator(links, events)

	botErr := make(chan error, 1)
	if cfg.TelegramToken != "" {
		tgBot, err := bot.NewTelegramBot(cfg.TelegramToken, shortener, aggregator)
		if err != nil {
			slog.Error("Could not initialize bot", "error", err)
			return
		}
		go func() { botErr <- tgBot.Start(ctx) }()
	}

	server := service.NewServer(cfg.Port, shortener, aggregator)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start(ctx) }()

	slog.Info("Service is up and running!", "base_url", cfg.BaseURL)

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			slog.Error("Server stopped with error", "error", err)
			stop()
		}
	case err := <-botErr:
		if err != nil {
			slog.Error("Bot stopped with error", "error", err)
			stop()
		}
	}

	slog.Info("Shutting down gracefully...")
}

func openStores(ctx context.Context, cfg *config.Config) (backend, eventLog, error) {
	if cfg.Backend == config.BackendMemory {
		mem := database.NewMemory()
		return mem, mem, nil
	}

	db, err := database.ConnectPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	analytics, err := database.ConnectClickHouse(ctx, cfg.ClickHouseAddr, cfg.ClickHouseUser, cfg.ClickHousePassword, cfg.ClickHouseDB)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, analytics, nil
}

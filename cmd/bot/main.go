// Package main is the entry point for the Telegram karma bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-karma-bot/internal/bot"
	"telegram-karma-bot/internal/config"
	"telegram-karma-bot/internal/pkg/db"
	"telegram-karma-bot/internal/pkg/lock"
	"telegram-karma-bot/internal/repository"
	"telegram-karma-bot/internal/service"
	"telegram-karma-bot/internal/store"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer closeBackend()

	ledger := repository.NewLedger(backend, repository.Limits{
		DefaultUp:   cfg.Karma.DefaultUp,
		DefaultDown: cfg.Karma.DefaultDown,
		HistorySize: cfg.Karma.HistorySize,
	})

	// Initialize user lock
	userLock := lock.NewUserLock()

	deps := &bot.Dependencies{
		Config:          cfg,
		Ledger:          ledger,
		TransferService: service.NewTransferService(ledger, userLock),
		RankingService:  service.NewRankingService(ledger),
		AdminService:    service.NewAdminService(ledger, userLock),
	}

	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go telegramBot.Start()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// openBackend opens the keyed record store selected by storage.driver.
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory storage, karma will not survive a restart")
		return store.NewMemoryBackend(), func() {}, nil

	case config.DriverPostgres:
		pool, err := db.OpenPostgres(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		backend, err := store.NewPostgresBackend(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return backend, pool.Close, nil

	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		backend, err := store.NewSQLiteBackend(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return backend, func() { _ = sqlDB.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

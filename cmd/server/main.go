// Package main is the entry point for the lookback holdings history service.
// It reconstructs the day-by-day history of investment account holdings from
// the trade ledger and recorded daily prices, and serves the result over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/lookback/internal/clientdata"
	"github.com/aristath/lookback/internal/clients/exchangerate"
	"github.com/aristath/lookback/internal/config"
	"github.com/aristath/lookback/internal/database"
	"github.com/aristath/lookback/internal/domain"
	"github.com/aristath/lookback/internal/modules/cleanup"
	"github.com/aristath/lookback/internal/modules/holdings"
	"github.com/aristath/lookback/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/lookback/internal/modules/ledger/handlers"
	"github.com/aristath/lookback/internal/modules/prices"
	"github.com/aristath/lookback/internal/scheduler"
	"github.com/aristath/lookback/internal/server"
	"github.com/aristath/lookback/pkg/logger"
)

// The service uses a 4-database architecture:
// - ledger.db: Immutable trade ledger and accounts
// - history.db: Historical daily prices
// - holdings.db: Materialized holdings snapshots
// - client_data.db: Cache for exchange rates
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting lookback")

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	holdingsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "holdings.db"),
		Profile: database.ProfileStandard,
		Name:    "holdings",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open holdings database")
	}
	defer holdingsDB.Close()

	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client data database")
	}
	defer clientDataDB.Close()

	dbs := map[string]*database.DB{
		"ledger":      ledgerDB,
		"history":     historyDB,
		"holdings":    holdingsDB,
		"client_data": clientDataDB,
	}
	for name, db := range dbs {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
		}
	}

	// Repositories
	accountRepo := ledger.NewAccountRepository(ledgerDB.Conn(), log)
	tradeRepo := ledger.NewTradeRepository(ledgerDB.Conn(), log)
	priceRepo := prices.NewPriceRepository(historyDB.Conn(), log)
	snapshotRepo := holdings.NewSnapshotRepository(holdingsDB.Conn(), log)
	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())

	// Exchange rates, cached with a stale-value fallback
	rateClient := exchangerate.NewClient(cacheRepo, cfg.ExchangeRateBaseURL, log)

	// Holdings pipeline
	forward := holdings.NewForwardSimulator(tradeRepo, priceRepo, rateClient, log)
	reverse := holdings.NewReverseSimulator(tradeRepo, priceRepo, rateClient, snapshotRepo, log)
	filler := holdings.NewForwardFiller()
	materializer := holdings.NewMaterializer(forward, reverse, filler, snapshotRepo, tradeRepo, log)
	holdingsService := holdings.NewService(materializer, accountRepo, snapshotRepo, log)

	// HTTP handlers
	holdingsHandler := holdings.NewHandler(holdingsService, log)
	ledgerHandler := ledgerhandlers.NewHandler(accountRepo, tradeRepo, domain.Currency(cfg.BaseCurrency), log)
	pricesHandler := prices.NewHandler(priceRepo, log)

	// Background jobs
	sched := scheduler.New(log)
	materializeJob := scheduler.NewMaterializeJob(holdingsService, log)
	if err := sched.AddJob(cfg.MaterializeSchedule, materializeJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register materialize job")
	}
	if err := sched.AddJob("0 30 3 * * *", clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	if err := sched.AddJob("0 0 4 * * SUN", cleanup.NewHistoryCleanupJob(tradeRepo, priceRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register history cleanup job")
	}
	if err := sched.AddJob("0 45 3 * * *", scheduler.NewCheckpointJob(dbs, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register checkpoint job")
	}
	sched.Start()
	defer sched.Stop()

	// Rebuild holdings history once at boot so a restart never waits a full
	// cycle for fresh snapshots.
	go func() {
		if err := sched.RunNow(materializeJob); err != nil {
			log.Error().Err(err).Msg("Startup materialization sweep failed")
		}
	}()

	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		Config:   cfg,
		DevMode:  cfg.DevMode,
		Holdings: holdingsHandler,
		Ledger:   ledgerHandler,
		Prices:   pricesHandler,
		DBs:      dbs,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down HTTP server cleanly")
	}

	log.Info().Msg("Shutdown complete")
}

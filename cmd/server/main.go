package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/threadline/reconciler/internal/api"
	"github.com/threadline/reconciler/internal/config"
	"github.com/threadline/reconciler/internal/domain"
	"github.com/threadline/reconciler/internal/ingestion"
	"github.com/threadline/reconciler/internal/profile"
	"github.com/threadline/reconciler/internal/reconcile"
	"github.com/threadline/reconciler/internal/repository"
	"github.com/threadline/reconciler/internal/rules"
)

func main() {
	cfg := config.Load()
	logger := config.SetupLogger(cfg)

	logger.Info().Str("db_path", cfg.DBPath).Msg("initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("init db")
	}
	defer db.Close()

	orderRepo := repository.NewOrderRepo(db)
	shipmentRepo := repository.NewShipmentRepo(db)
	matchRepo := repository.NewMatchRepo(db)
	importRepo := repository.NewImportRepo(db)

	profiles, err := profile.LoadRegistry(cfg.ProfileDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.ProfileDir).Msg("load customer profiles")
	}
	logger.Info().Int("profiles", profiles.Len()).Msg("customer profiles loaded")

	evaluator, err := rules.NewEvaluator(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init exclusion rules")
	}

	ingestionSvc := ingestion.NewService(orderRepo, shipmentRepo, importRepo, profiles, logger)
	reconcileSvc := reconcile.NewService(orderRepo, shipmentRepo, matchRepo, profiles, evaluator, nil, logger)

	if err := seedIfEmpty(cfg.SeedDir, orderRepo, shipmentRepo, logger); err != nil {
		logger.Warn().Err(err).Msg("seed skipped")
	}

	router := api.NewRouter(cfg, orderRepo, shipmentRepo, matchRepo, importRepo,
		ingestionSvc, reconcileSvc, logger)

	srv := &http.Server{Addr: cfg.Addr(), Handler: router}
	logger.Info().Str("addr", cfg.Addr()).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info().Msg("bye")
}

// seedIfEmpty loads demo orders and shipments on first start so the
// API has data to play with.
func seedIfEmpty(seedDir string, orderRepo *repository.OrderRepo, shipmentRepo *repository.ShipmentRepo, logger zerolog.Logger) error {
	count, err := orderRepo.Count()
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	if count > 0 {
		logger.Info().Int("orders", count).Msg("database already populated, skipping seed")
		return nil
	}

	var orders []domain.Order
	if err := readJSONFile(filepath.Join(seedDir, "orders.json"), &orders); err != nil {
		return err
	}
	var shipments []domain.Shipment
	if err := readJSONFile(filepath.Join(seedDir, "shipments.json"), &shipments); err != nil {
		return err
	}

	no, err := orderRepo.BulkInsert(orders)
	if err != nil {
		return fmt.Errorf("seed orders: %w", err)
	}
	ns, err := shipmentRepo.BulkInsert(shipments)
	if err != nil {
		return fmt.Errorf("seed shipments: %w", err)
	}
	logger.Info().Int("orders", no).Int("shipments", ns).Msg("seeded demo data")
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

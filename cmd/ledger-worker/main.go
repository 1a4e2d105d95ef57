package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nullprotocol/creditledger/internal/config"
	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/domain/admin"
	"github.com/nullprotocol/creditledger/internal/domain/redeem"
	"github.com/nullprotocol/creditledger/internal/domain/snapshot"
	"github.com/nullprotocol/creditledger/internal/pkg/database"
	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
	"github.com/nullprotocol/creditledger/internal/pkg/storage"
	"github.com/nullprotocol/creditledger/internal/pkg/wakeup"
)

const snapshotTimeout = 2 * time.Minute

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "ledger-worker"})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Dur("sweep_interval", cfg.SweepInterval).
		Dur("snapshot_interval", cfg.SnapshotInterval).
		Msg("Starting ledger-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.OpenBackend(ctx, database.Options{
		Engine:       sqlstore.Engine(cfg.StorageEngine),
		SQLitePath:   cfg.SQLitePath,
		DatabaseURL:  cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage backend")
	}
	defer database.CloseBackend(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	var store storage.ObjectStore
	if cfg.UseS3() {
		store, err = storage.NewS3Storage(ctx, storage.Config{
			S3Endpoint:  cfg.S3Endpoint,
			S3Region:    cfg.S3Region,
			S3Bucket:    cfg.S3Bucket,
			S3AccessKey: cfg.S3AccessKeyID,
			S3SecretKey: cfg.S3SecretAccessKey,
		})
	} else {
		store, err = storage.NewLocalStorage(cfg.SnapshotDir)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create snapshot storage")
	}

	accountRepo := account.NewRepository(db)
	accounts := account.NewService(db, accountRepo, nil, account.Config{StartingCredits: cfg.StartingCredits})
	codes := redeem.NewService(db, redeem.NewRepository(db), accountRepo, nil, redeem.Config{})
	admins := admin.NewService(admin.NewRepository(db), accounts, codes, cfg.OwnerID)
	exporter := snapshot.NewExporter(db, store)

	sweeper := admin.NewSweeper(admins, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	// Optional: Redis pub/sub wake-up (tickers still run)
	sweepWake := make(chan struct{}, 1)
	snapshotWake := make(chan struct{}, 1)
	go wakeup.Subscribe(ctx, rdb, map[wakeup.Kind]chan<- struct{}{
		wakeup.KindSweep:    sweepWake,
		wakeup.KindSnapshot: snapshotWake,
	})

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	interval := cfg.SnapshotInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("ledger-worker stopped")
			return
		case <-sweepWake:
			sweeper.Wake()
		case <-snapshotWake:
			takeSnapshot(ctx, exporter)
		case <-ticker.C:
			takeSnapshot(ctx, exporter)
		}
	}
}

func takeSnapshot(ctx context.Context, exporter *snapshot.Exporter) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	start := time.Now()
	info, err := exporter.Take(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot failed")
		return
	}
	log.Info().
		Str("key", info.Key).
		Dur("took", time.Since(start)).
		Msg("Snapshot done")
}

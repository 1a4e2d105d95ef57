package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/nullprotocol/creditledger/internal/config"
	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/domain/admin"
	"github.com/nullprotocol/creditledger/internal/domain/lookup"
	"github.com/nullprotocol/creditledger/internal/domain/redeem"
	"github.com/nullprotocol/creditledger/internal/domain/referral"
	"github.com/nullprotocol/creditledger/internal/domain/snapshot"
	"github.com/nullprotocol/creditledger/internal/middleware"
	"github.com/nullprotocol/creditledger/internal/pkg/database"
	"github.com/nullprotocol/creditledger/internal/pkg/jwt"
	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	pkgresponse "github.com/nullprotocol/creditledger/internal/pkg/response"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
	"github.com/nullprotocol/creditledger/internal/pkg/storage"
	"github.com/nullprotocol/creditledger/internal/pkg/telegram"
	"github.com/nullprotocol/creditledger/internal/pkg/wakeup"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "ledger-api"})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("engine", cfg.StorageEngine).
		Msg("Starting credit ledger API")

	ctx := context.Background()

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

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create snapshot storage")
	}

	var notifier referral.Notifier
	if cfg.TelegramBotToken != "" {
		tg, err := telegram.NewNotifier(cfg.TelegramBotToken)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram unavailable, referral notices disabled")
		} else {
			notifier = tg
		}
	}

	app := newApp(cfg, db, rdb, store, notifier)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// app holds the wired services behind the HTTP surface.
type app struct {
	cfg      *config.Config
	db       sqlstore.Backend
	jwt      *jwt.Service
	accounts *account.Service
	referral *referral.Engine
	codes    *redeem.Service
	admins   *admin.Service
	lookups  *lookup.Service
	exporter *snapshot.Exporter
	wake     *wakeup.Publisher
}

func newApp(cfg *config.Config, db sqlstore.Backend, rdb *redis.Client, store storage.ObjectStore, notifier referral.Notifier) *app {
	accountRepo := account.NewRepository(db)
	engine := referral.NewEngine(db, accountRepo, cfg.ReferralBonus, notifier)
	accounts := account.NewService(db, accountRepo, engine, account.Config{StartingCredits: cfg.StartingCredits})

	var throttle redeem.Throttle
	if rdb != nil {
		throttle = redeem.NewRedisThrottle(rdb, cfg.RedeemMaxFailures, cfg.RedeemFailureWindow)
	}
	codes := redeem.NewService(db, redeem.NewRepository(db), accountRepo, throttle, redeem.Config{})

	return &app{
		cfg:      cfg,
		db:       db,
		jwt:      jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL),
		accounts: accounts,
		referral: engine,
		codes:    codes,
		admins:   admin.NewService(admin.NewRepository(db), accounts, codes, cfg.OwnerID),
		lookups:  lookup.NewService(lookup.NewRepository(db)),
		exporter: snapshot.NewExporter(db, store),
		wake:     wakeup.NewPublisher(rdb),
	}
}

func (a *app) router() http.Handler {
	accountHandler := account.NewHandler(a.accounts)
	redeemHandler := redeem.NewHandler(a.codes)
	referralHandler := referral.NewHandler(a.referral)
	lookupHandler := lookup.NewHandler(a.lookups)
	adminHandler := admin.NewHandler(a.admins)
	snapshotHandler := snapshot.NewHandler(a.exporter, a.wake)

	authMiddleware := middleware.Auth(a.jwt)
	can := admin.RequirePermission

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(a.cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.Ping(ctx); err != nil {
			pkgresponse.ServiceUnavailable(w)
			return
		}
		pkgresponse.OK(w, map[string]string{
			"status": "ok",
			"engine": string(a.db.Engine()),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireRole(jwt.RoleService, jwt.RoleAdmin))

		r.Mount("/accounts", accountHandler.Routes())
		r.Mount("/redeem", redeemHandler.Routes())
		r.Mount("/lookups", lookupHandler.Routes())
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireRole(jwt.RoleAdmin))
		r.Use(admin.RequireAdmin(a.admins))

		r.Mount("/accounts", accountHandler.AdminRoutes(account.AdminGuards{
			View:    can(admin.PermViewAccounts),
			Ban:     can(admin.PermBanAccounts),
			Credits: can(admin.PermAdjustCredits),
			Delete:  can(admin.PermDeleteAccounts),
		}))
		r.Mount("/codes", redeemHandler.AdminRoutes(can(admin.PermViewCodes), can(admin.PermManageCodes)))
		r.With(can(admin.PermViewStats)).Mount("/referrals", referralHandler.AdminRoutes())
		r.With(can(admin.PermViewStats)).Mount("/lookups", lookupHandler.AdminRoutes())
		r.With(can(admin.PermTakeSnapshots)).Mount("/snapshots", snapshotHandler.Routes())
		r.Mount("/", adminHandler.Routes())
	})

	return r
}

// newObjectStore picks S3 when a bucket is configured and the local snapshot
// directory otherwise.
func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.UseS3() {
		return storage.NewS3Storage(ctx, storage.Config{
			S3Endpoint:  cfg.S3Endpoint,
			S3Region:    cfg.S3Region,
			S3Bucket:    cfg.S3Bucket,
			S3AccessKey: cfg.S3AccessKeyID,
			S3SecretKey: cfg.S3SecretAccessKey,
		})
	}
	return storage.NewLocalStorage(cfg.SnapshotDir)
}

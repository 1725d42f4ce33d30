package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-backend/cache"
	"storefront-backend/cart"
	"storefront-backend/config"
	"storefront-backend/database"
	"storefront-backend/firebase"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		slog.Error("loading .env file", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "storefront-backend", Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := config.ValidateEnv(); err != nil {
		log.Error("environment validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server exited gracefully")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn("closing database connection", "error", err)
			}
		}
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.CreateDefaultAdmin(db); err != nil {
		log.Warn("could not create default admin", "error", err)
	}

	store, closeCache, err := cache.New(ctx, cache.Config{
		RedisURL:       cfg.RedisURL,
		MemoryCapacity: cfg.MemoryCacheCapacity,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Warn("closing cache", "error", err)
		}
	}()

	deps := routes.Deps{
		DB:         db,
		Cache:      store,
		Carts:      cart.NewService(cart.NewGormStore(db), store, log, cfg.CartCacheTTL),
		Log:        log,
		ProductTTL: cfg.ProductCacheTTL,
		UserTTL:    cfg.UserCacheTTL,
	}
	if cfg.StorageBucket != "" {
		storage, err := firebase.NewStorage(ctx, firebase.Config{
			Bucket:      cfg.StorageBucket,
			Credentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		}, log)
		if err != nil {
			log.Warn("object storage unavailable, image uploads disabled", "error", err)
		} else {
			deps.Storage = storage
		}
	}

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 10 << 20
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Session-Id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	stopRoutes := routes.SetupRoutes(r, deps)
	defer stopRoutes()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

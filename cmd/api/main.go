package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pageza/nutrilog/backend/config"
	"github.com/pageza/nutrilog/backend/internal/api"
	"github.com/pageza/nutrilog/backend/internal/cache"
	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/dispatch"
	"github.com/pageza/nutrilog/backend/internal/logger"
	"github.com/pageza/nutrilog/backend/internal/middleware"
	"github.com/pageza/nutrilog/backend/internal/openfoodfacts"
	"github.com/pageza/nutrilog/backend/internal/repository"
	"github.com/pageza/nutrilog/backend/internal/server"
	"github.com/pageza/nutrilog/backend/internal/service"
	"github.com/pageza/nutrilog/backend/internal/storage"
)

func main() {
	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	db, err := database.Open(cfg, zlog)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	// Redis backs the lookup cache and the rate limiter when configured
	var (
		redisClient *redis.Client
		lookupCache cache.Cache = cache.NewMemoryCache(cache.DefaultMemoryEntries, cfg.LookupCacheTTL)
		limiter     middleware.Limiter
	)
	limitCfg := middleware.RateLimitConfig{
		Window:    cfg.RateLimitWindow,
		Limit:     cfg.RateLimit,
		KeyPrefix: "rate_limit:dispatch",
	}
	if cfg.RedisEnabled() {
		redisClient, err = database.NewRedisClient(cfg, zlog)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		lookupCache = cache.NewRedisCache(redisClient, "off")
		limiter = middleware.NewRedisLimiter(redisClient, limitCfg)
	} else {
		zlog.Info("redis not configured, using in-process cache and rate limiter")
		limiter = middleware.NewLocalLimiter(limitCfg)
	}

	var images api.ImageLinker
	if cfg.S3Bucket != "" {
		store, err := storage.NewImageStore(context.Background(), cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			return err
		}
		images = store
	}

	loc := cfg.Location()
	off := openfoodfacts.NewClient(cfg.OpenFoodFactsURL, zlog, openfoodfacts.WithCache(lookupCache, cfg.LookupCacheTTL))
	foods := repository.NewFoodRepository(db, zlog)
	meals := repository.NewMealRepository(db, zlog, loc)

	renderer, err := server.NewHTMLRenderer(cfg.TemplatesDir, loc)
	if err != nil {
		return err
	}
	registry := api.Controllers(
		api.NewFoodController(foods, off, images, zlog),
		api.NewMealController(meals, loc, zlog),
	)
	dispatcher := dispatch.New(registry, renderer, zlog)
	api.RegisterRoutes(dispatcher)
	if err := dispatcher.Validate(); err != nil {
		return err
	}

	srv := server.New(cfg, server.Deps{
		Dispatcher: dispatcher,
		DB:         db,
		Redis:      redisClient,
		Validator:  service.NewTokenService(cfg.JWTSecret, service.DefaultTokenTTL),
		Limiter:    limiter,
		Log:        zlog,
	})

	// Channel to listen for errors coming from the server
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Channel to listen for an interrupt or terminate signal from the OS
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		zlog.Info("received signal", zap.String("signal", sig.String()))
	}

	zlog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

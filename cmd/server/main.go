package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pathway/internal/auth"
	"pathway/internal/config"
	"pathway/internal/db"
	"pathway/internal/idgen"
	"pathway/internal/logger"
	"pathway/internal/middleware"
	"pathway/internal/router"
	"pathway/internal/services"
	"pathway/internal/store"
	"pathway/internal/utils"
)

const threadCacheSize = 2000

func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.Log)
	if envErr != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	st := store.NewGormStore(database)

	ids, err := idgen.New(cfg.SnowflakeNode)
	if err != nil {
		log.Fatal().Err(err).Int64("node", cfg.SnowflakeNode).Msg("Failed to create id generator")
	}

	cache, closeCache := newCache(cfg.Redis, log)
	defer closeCache()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ranking := services.NewRankingService(st, cache, log)
	workerDone := make(chan struct{})
	go func() {
		ranking.Run(ctx)
		close(workerDone)
	}()

	engine := router.New(router.Deps{
		Config:      cfg,
		Log:         log,
		Identity:    middleware.NewIdentity(st, auth.NewVerifier(cfg.Auth.JWTSecret), ids, log),
		Engagement:  services.NewEngagementService(st, cache, ranking, ids, log),
		Discussions: services.NewDiscussionService(st, cache, ranking, ids, log),
		Ping:        pinger(database),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Env).Msg("Pathway server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-workerDone

	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("Server exited")
}

// newCache uses Redis when configured so several instances share thread
// caches, and an in-process LRU otherwise.
func newCache(cfg config.RedisConfig, log zerolog.Logger) (utils.Cache, func()) {
	if cfg.Addr == "" {
		lru, err := utils.NewLRUCache(threadCacheSize)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create cache")
		}
		log.Info().Int("size", threadCacheSize).Msg("Using in-process thread cache")
		return lru, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("Failed to connect to Redis")
	}
	log.Info().Str("addr", cfg.Addr).Msg("Using Redis thread cache")
	return utils.NewRedisCache(client, log), func() { _ = client.Close() }
}

func pinger(database *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := database.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

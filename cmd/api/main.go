package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/api"
	"legacy-scheduler/internal/assets"
	"legacy-scheduler/internal/config"
	"legacy-scheduler/internal/engine"
	"legacy-scheduler/internal/queue"
	"legacy-scheduler/internal/ratelimit"
	"legacy-scheduler/internal/store"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Env).With().Str("service", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer st.Close()
	if err := st.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	var due engine.DueIndex
	var limiter *ratelimit.TokenBucket
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Postgres stays authoritative, so the API can run degraded.
		log.Warn().Err(err).Msg("redis unreachable, due index and claim throttling disabled")
	} else {
		due = queue.NewDueIndex(rdb)
		limiter = ratelimit.NewTokenBucket(rdb, cfg.ClaimRateCapacity, cfg.ClaimRateRefill, cfg.ClaimRateTTL)
	}

	scheduler := engine.NewScheduler(st, st, due, log)
	confirmations := engine.NewConfirmations(st, st, scheduler, log)
	grants := engine.NewGrants(st, st, log)
	triggers := engine.NewTriggers(st, st, scheduler, log)

	var objects assets.ObjectStore
	if cfg.AssetBucket != "" {
		s3Store, err := assets.NewS3Store(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("s3 setup failed")
		}
		objects = s3Store
	} else {
		objects = assets.NewLocalStore(cfg.AssetLocalDir)
	}
	assetSvc := assets.NewService(st, st, objects, cfg.ThumbnailWidth, cfg.AssetMaxBytes, log)
	gate := engine.NewGate(st, st, st, objects, log)

	server := api.New(cfg, triggers, confirmations, scheduler, grants, gate, assetSvc, st, st, limiter, log)
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

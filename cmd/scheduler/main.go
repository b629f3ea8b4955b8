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

	"legacy-scheduler/internal/config"
	"legacy-scheduler/internal/engine"
	"legacy-scheduler/internal/notify"
	"legacy-scheduler/internal/queue"
	"legacy-scheduler/internal/store"
	"legacy-scheduler/internal/telemetry"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Env).With().Str("service", "scheduler").Logger()

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
	var due *queue.DueIndex
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, firing from postgres sweep only")
	} else {
		due = queue.NewDueIndex(rdb)
	}

	var dueIface engine.DueIndex
	if due != nil {
		dueIface = due
	}
	scheduler := engine.NewScheduler(st, st, dueIface, log)

	dispatcher := notify.NewDispatcher(st, notify.NewLogNotifier(log), cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxMaxAttempts, log)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("invitation dispatcher stopped")
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: telemetry.Handler()}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	log.Info().Dur("interval", cfg.FirePollInterval).Msg("firing loop started")
	ticker := time.NewTicker(cfg.FirePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsServer.Shutdown(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			fireDue(ctx, cfg, scheduler, st, due, log)
		}
	}
}

// fireDue drains the redis due index, then sweeps postgres for anything the
// index missed. Postgres is the source of truth; the index only saves scans.
func fireDue(ctx context.Context, cfg config.Config, scheduler *engine.Scheduler, st *store.Store, due *queue.DueIndex, log zerolog.Logger) {
	now := time.Now().UTC()

	if due != nil {
		ids, err := due.Due(ctx, now, int64(cfg.FireBatchSize))
		if err != nil {
			log.Warn().Err(err).Msg("due index read failed")
		} else {
			for _, id := range ids {
				if err := scheduler.FireDueJob(ctx, id); err != nil {
					log.Error().Err(err).Str("job_id", id.String()).Msg("fire failed")
				}
			}
		}
		if depth, err := due.Depth(ctx); err == nil {
			telemetry.DueIndexDepth.Set(float64(depth))
		}
	}

	jobs, err := st.DuePendingJobs(ctx, now, cfg.FireBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("due sweep failed")
		return
	}
	for _, job := range jobs {
		if err := scheduler.FireDueJob(ctx, job.ID); err != nil {
			log.Error().Err(err).Str("job_id", job.ID.String()).Msg("fire failed")
		}
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

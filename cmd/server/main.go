package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/config"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/infra"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/router"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to open database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it there is no job queue and no price cache.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL, cfg.WorkerPoolSize)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
	}

	// One service graph for HTTP, workers and cron so reconciliation runs
	// share the same lock.
	svcs := router.NewServices(cfg, db, rdb)

	breaker := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name:  "ledger_jobs",
		Trips: func(err error) bool { return !worker.IsPermanent(err) },
	})

	var pool *worker.Pool
	if rdb != nil {
		pool = worker.NewPool(rdb, worker.PoolConfig{
			Size:       cfg.WorkerPoolSize,
			JobTimeout: cfg.JobTimeout,
			Breaker:    breaker,
		})
		jobs := &worker.LedgerJobs{Reconciler: svcs.Reconciler, Allocator: svcs.Allocator, Prices: svcs.Prices}
		jobs.Register(pool)
		pool.Start(ctx)
	} else {
		log.Warn().Msg("REDIS_URL empty: background jobs disabled")
	}

	worker.StartReconcileCron(ctx, worker.ReconcileCronConfig{
		Reconciler: svcs.Reconciler,
		CB:         breaker,
		Interval:   cfg.ReconcileInterval,
		Timeout:    cfg.JobTimeout,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(cfg, db, rdb, svcs, breaker),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("card ledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	if pool != nil {
		pool.Wait()
	}
	log.Info().Msg("server exited")
}

// setupLogger: dev gets pretty console output, production JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

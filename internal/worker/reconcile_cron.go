package worker

// Background goroutine that periodically runs the full reconciler so events
// left outstanding (unmatched scans, sales whose allocation was cut short) settle
// without a caller asking. Skips ticks while the circuit breaker is open.

import (
	"context"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/infra"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"

	"github.com/rs/zerolog/log"
)

// ReconcileCronConfig holds all dependencies for the cron goroutine.
type ReconcileCronConfig struct {
	Reconciler service.ReconcilerService
	CB         *infra.CircuitBreaker
	Interval   time.Duration
	Timeout    time.Duration
}

// StartReconcileCron ticks every Interval until ctx is cancelled. A zero
// interval disables it.
func StartReconcileCron(ctx context.Context, cfg ReconcileCronConfig) {
	if cfg.Interval <= 0 {
		log.Info().Msg("reconcile_cron: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("reconcile_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconcile_cron: shutting down")
				return
			case <-ticker.C:
				runScheduledReconcile(ctx, cfg)
			}
		}
	}()
}

func runScheduledReconcile(ctx context.Context, cfg ReconcileCronConfig) {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("reconcile_cron: circuit breaker is open, skipping tick")
		return
	}

	var report *dto.ReconcileReport
	run := func() error {
		task := Spawn(ctx, cfg.Timeout, cfg.Reconciler.RunFullReconciler)
		r, err := task.Wait(ctx)
		report = r
		return err
	}
	var err error
	if cfg.CB != nil {
		err = cfg.CB.Execute(run)
	} else {
		err = run()
	}
	if err != nil {
		log.Error().Err(err).Msg("reconcile_cron: run failed")
		return
	}
	if report.ScansMatched+report.SalesAllocated > 0 || len(report.Failures) > 0 {
		log.Info().
			Int("scans_matched", report.ScansMatched).
			Int("sales_allocated", report.SalesAllocated).
			Int("outstanding", len(report.Failures)).
			Msg("reconcile_cron: tick settled events")
	}
}

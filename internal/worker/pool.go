package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/infra"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueuePrices = "jobs:prices"
	QueueLedger = "jobs:ledger"
)

// Job types.
const (
	JobPriceFeedImport = "price_feed_import"
	JobReconcile       = "reconcile"
	JobAllocateCosts   = "allocate_costs"
)

// MaxJobAttempts is how often a job runs before it is dead-lettered.
const MaxJobAttempts = 3

var queueByType = map[string]string{
	JobPriceFeedImport: QueuePrices,
	JobReconcile:       QueueLedger,
	JobAllocateCosts:   QueueLedger,
}

// Job is the generic envelope for all async tasks.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueuePriceFeed pushes a price feed upload to Redis.
func (d *Dispatcher) EnqueuePriceFeed(ctx context.Context, payload interface{}) (string, error) {
	return d.enqueue(ctx, JobPriceFeedImport, payload)
}

// EnqueueReconcile pushes a reconciliation run to Redis.
func (d *Dispatcher) EnqueueReconcile(ctx context.Context, payload ReconcilePayload) (string, error) {
	return d.enqueue(ctx, JobReconcile, payload)
}

// EnqueueAllocation pushes a cost allocation to Redis.
func (d *Dispatcher) EnqueueAllocation(ctx context.Context, payload AllocatePayload) (string, error) {
	return d.enqueue(ctx, JobAllocateCosts, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	job := Job{ID: uuid.NewString(), Type: jobType, Payload: data, EnqueuedAt: time.Now().UTC()}
	if err := push(ctx, d.rdb, job); err != nil {
		return "", err
	}
	log.Debug().Str("job_id", job.ID).Str("type", jobType).Msg("job enqueued")
	return job.ID, nil
}

func push(ctx context.Context, rdb *redis.Client, job Job) error {
	queue, ok := queueByType[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type %q", job.Type)
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// HandlerFunc processes one job payload. Returning a Permanent error sends
// the job straight to the dead letter queue.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// PoolConfig configures NewPool. A nil Breaker gets one that ignores
// permanent failures.
type PoolConfig struct {
	Size       int
	JobTimeout time.Duration
	Breaker    *infra.CircuitBreaker
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	cfg      PoolConfig
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
}

func NewPool(rdb *redis.Client, cfg PoolConfig) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.Breaker == nil {
		cfg.Breaker = infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
			Name:  "worker_pool",
			Trips: func(err error) bool { return !IsPermanent(err) },
		})
	}
	return &Pool{rdb: rdb, cfg: cfg, handlers: make(map[string]HandlerFunc)}
}

// Handle registers the handler for a job type. Not safe after Start.
func (p *Pool) Handle(jobType string, h HandlerFunc) {
	p.handlers[jobType] = h
}

// Breaker exposes the pool's circuit breaker for health reporting.
func (p *Pool) Breaker() *infra.CircuitBreaker { return p.cfg.Breaker }

// Start launches the workers. Each goroutine blocks on BRPOP, zero CPU when idle.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Int("workers", p.cfg.Size).Msg("worker pool started")
}

// Wait blocks until every worker has returned after ctx is cancelled.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	queues := []string{QueueLedger, QueuePrices}
	for {
		if ctx.Err() != nil {
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		}
		// Leave jobs queued while the store is failing.
		if p.cfg.Breaker.State() == infra.CBOpen {
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		// Blocking pop, waits up to 5s then loops to check ctx
		result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
		if err != nil || len(result) < 2 {
			continue
		}
		p.process(ctx, result[0], result[1])
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, Job{Payload: json.RawMessage(raw)}, "malformed envelope: "+err.Error())
		return
	}
	logger := log.With().Str("job_id", job.ID).Str("type", job.Type).Int("attempt", job.Attempts+1).Logger()

	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job, "no handler registered")
		return
	}

	start := time.Now()
	err := p.cfg.Breaker.Execute(func() error {
		task := Spawn(ctx, p.cfg.JobTimeout, func(taskCtx context.Context) (struct{}, error) {
			return struct{}{}, h(taskCtx, job.Payload)
		})
		_, err := task.Wait(context.WithoutCancel(ctx))
		return err
	})
	job.Attempts++

	switch {
	case err == nil:
		logger.Info().Dur("took", time.Since(start)).Msg("job done")
	case IsPermanent(err):
		logger.Error().Err(err).Msg("job rejected")
		SendToDLQ(ctx, p.rdb, queue, job, err.Error())
	case job.Attempts >= MaxJobAttempts:
		logger.Error().Err(err).Msg("job failed, attempts exhausted")
		SendToDLQ(ctx, p.rdb, queue, job, fmt.Sprintf("max attempts (%d) exceeded: %s", MaxJobAttempts, err))
	default:
		logger.Warn().Err(err).Msg("job failed, requeued")
		if perr := push(context.WithoutCancel(ctx), p.rdb, job); perr != nil {
			logger.Error().Err(perr).Msg("requeue failed")
		}
	}
}

package infra

import (
	"context"
	"fmt"
	"runtime"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// redisSpareConns is what stays free for the price cache and DLQ reads while
// every worker sits in BRPOP.
const redisSpareConns = 4

// NewRedis connects the client behind the job queues, their dead-letter
// lists and the price cache. Each worker holds a connection for the length
// of a BRPOP, so the pool is grown to cover workers plus redisSpareConns.
func NewRedis(ctx context.Context, redisURL string, workers int) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10 * runtime.GOMAXPROCS(0)
	}
	opts.PoolSize = max(opts.PoolSize, workers+redisSpareConns)

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Int("pool_size", opts.PoolSize).Msg("redis connected")
	return rdb, nil
}

package uniquefilter

import (
	"context"
	"fmt"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisFilter is a distributed UniqueFilter for multi-process Connections
// sharing one logical subscriber: CheckAndRemember is implemented as a
// SETNX, so the first process to observe a given UNIQUE-ID wins and every
// other process sees it as a duplicate, regardless of which process
// received it first.
type RedisFilter struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisFilterConfig configures a RedisFilter.
type RedisFilterConfig struct {
	Host     string `env:"BUS_UNIQUEFILTER_REDIS_HOST" env-default:"localhost"`
	Port     string `env:"BUS_UNIQUEFILTER_REDIS_PORT" env-default:"6379"`
	Password string `env:"BUS_UNIQUEFILTER_REDIS_PASSWORD"`
	DB       int    `env:"BUS_UNIQUEFILTER_REDIS_DB" env-default:"0"`
	Prefix   string `env:"BUS_UNIQUEFILTER_REDIS_PREFIX" env-default:"gmsec:uid:"`
	// TTL bounds the recency window; a duplicate older than TTL is no
	// longer detected, matching the bounded-capacity tradeoff of the
	// in-process Filter.
	TTL time.Duration `env:"BUS_UNIQUEFILTER_REDIS_TTL" env-default:"10m"`
}

// NewRedisFilter connects to Redis and verifies reachability.
func NewRedisFilter(cfg RedisFilterConfig) (*RedisFilter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to uniquefilter redis backend")
	}

	return &RedisFilter{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

// CheckAndRemember reports whether id has been seen by any process sharing
// this Redis backend within the TTL window.
func (r *RedisFilter) CheckAndRemember(ctx context.Context, id string) (isDuplicate bool, err error) {
	if id == "" {
		return false, nil
	}

	ok, err := r.client.SetNX(ctx, r.prefix+id, 1, r.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "uniquefilter redis SETNX failed")
	}
	// SetNX returns true when the key was newly set, i.e. this is the
	// first time id has been seen.
	return !ok, nil
}

// Close releases the underlying client.
func (r *RedisFilter) Close() error {
	return r.client.Close()
}

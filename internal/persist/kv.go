// Package persist stores durable game state in a Redis-compatible
// key-value store: accounts, player records, inventories, vaults,
// spellbooks, clans, ground items and server counters. Repositories are
// thin typed layers over a minimal KV interface so tests run against an
// in-memory store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("persist: not found")

// KV is the slice of store commands the repositories use.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HDel(ctx context.Context, key string, fields ...string) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Pipelined submits every write queued on the Pipe as one atomic
	// batch. Value transfers (bank, commerce, drops) go through here so a
	// crash cannot land one side of a transfer without the other.
	Pipelined(ctx context.Context, fn func(Pipe)) error

	Close() error
}

// Pipe queues writes for a Pipelined batch.
type Pipe interface {
	Set(key, value string)
	Del(keys ...string)
	HSet(key string, fields map[string]string)
	HDel(key string, fields ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
}

// RedisKV backs KV with a real Redis connection.
type RedisKV struct {
	c *redis.Client
}

// Options configures the store connection.
type Options struct {
	Host     string
	Port     int
	DB       int
	Password string
	PoolSize int
}

// NewRedis connects and pings; a dead store is a fatal boot error.
func NewRedis(ctx context.Context, opts Options) (*RedisKV, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		DB:           opts.DB,
		Password:     opts.Password,
		PoolSize:     opts.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("kv store ping %s:%d: %w", opts.Host, opts.Port, err)
	}
	return &RedisKV{c: c}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.c.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.c.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	return r.c.Del(ctx, keys...).Err()
}

func (r *RedisKV) Incr(ctx context.Context, key string) (int64, error) {
	return r.c.Incr(ctx, key).Result()
}

func (r *RedisKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return r.c.IncrBy(ctx, key, delta).Result()
}

func (r *RedisKV) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.c.HGetAll(ctx, key).Result()
}

func (r *RedisKV) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return r.c.HSet(ctx, key, args...).Err()
}

func (r *RedisKV) HDel(ctx context.Context, key string, fields ...string) error {
	return r.c.HDel(ctx, key, fields...).Err()
}

func (r *RedisKV) SAdd(ctx context.Context, key string, members ...string) error {
	return r.c.SAdd(ctx, key, toAny(members)...).Err()
}

func (r *RedisKV) SRem(ctx context.Context, key string, members ...string) error {
	return r.c.SRem(ctx, key, toAny(members)...).Err()
}

func (r *RedisKV) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.c.SMembers(ctx, key).Result()
}

func (r *RedisKV) Pipelined(ctx context.Context, fn func(Pipe)) error {
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		fn(&redisPipe{ctx: ctx, p: p})
		return nil
	})
	return err
}

// redisPipe adapts a go-redis pipeliner to the Pipe interface.
type redisPipe struct {
	ctx context.Context
	p   redis.Pipeliner
}

func (rp *redisPipe) Set(key, value string) { rp.p.Set(rp.ctx, key, value, 0) }
func (rp *redisPipe) Del(keys ...string)    { rp.p.Del(rp.ctx, keys...) }

func (rp *redisPipe) HSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	rp.p.HSet(rp.ctx, key, args...)
}

func (rp *redisPipe) HDel(key string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	rp.p.HDel(rp.ctx, key, fields...)
}

func (rp *redisPipe) SAdd(key string, members ...string) {
	rp.p.SAdd(rp.ctx, key, toAny(members)...)
}

func (rp *redisPipe) SRem(key string, members ...string) {
	rp.p.SRem(rp.ctx, key, toAny(members)...)
}

func toAny(members []string) []any {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}

func (r *RedisKV) Close() error { return r.c.Close() }

package persist

import (
	"context"
	"strconv"
	"time"
)

// StatsRepo tracks coarse server counters under stats:* keys. Best-effort:
// callers ignore errors, a lost counter bump never fails a login.
type StatsRepo struct {
	kv KV
}

// NewStatsRepo wires the repo to a store.
func NewStatsRepo(kv KV) *StatsRepo {
	return &StatsRepo{kv: kv}
}

func (r *StatsRepo) IncrLogins(ctx context.Context) {
	_, _ = r.kv.Incr(ctx, "stats:logins")
}

func (r *StatsRepo) IncrCharsCreated(ctx context.Context) {
	_, _ = r.kv.Incr(ctx, "stats:characters_created")
}

func (r *StatsRepo) IncrNpcKills(ctx context.Context) {
	_, _ = r.kv.Incr(ctx, "stats:npc_kills")
}

func (r *StatsRepo) AddGoldDropped(ctx context.Context, amount int64) {
	_, _ = r.kv.IncrBy(ctx, "stats:gold_dropped", amount)
}

// SetConnections records the current live session count.
func (r *StatsRepo) SetConnections(ctx context.Context, n int) {
	_ = r.kv.Set(ctx, "server:connections:count", strconv.Itoa(n))
}

// SetUptime records seconds since boot.
func (r *StatsRepo) SetUptime(ctx context.Context, since time.Time) {
	secs := int64(time.Since(since).Seconds())
	_ = r.kv.Set(ctx, "server:uptime", strconv.FormatInt(secs, 10))
}

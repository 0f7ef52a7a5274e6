package persist

import (
	"context"
	"time"
)

// EffectsRepo reads per-effect interval overrides from config:effects:*
// keys, seconds as integers. Missing keys mean "use the built-in default";
// operators tune live worlds without a redeploy.
type EffectsRepo struct {
	kv KV
}

// NewEffectsRepo wires the repo to a store.
func NewEffectsRepo(kv KV) *EffectsRepo {
	return &EffectsRepo{kv: kv}
}

// Interval returns the stored override for an effect, or fallback.
func (r *EffectsRepo) Interval(ctx context.Context, name string, fallback time.Duration) time.Duration {
	v, err := r.kv.Get(ctx, "config:effects:"+name)
	if err != nil {
		return fallback
	}
	secs := atoi(v)
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

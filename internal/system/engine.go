// Package system runs the periodic world effects: hunger, regeneration,
// NPC AI, respawns and modifier expiry. One engine tick fires at a fixed
// period; each effect gates itself on its own interval so cheap effects
// can run often and expensive ones rarely, all in a stable order inside a
// single world lock acquisition.
package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/world"
)

// Effect is one periodic world mutation. Apply runs under the world lock.
type Effect interface {
	Name() string
	Interval() time.Duration
	Apply(now time.Time, w *world.World)
}

// IntervalSource resolves the live interval of a named effect, falling
// back to the effect's built-in one. Called outside the world lock.
type IntervalSource func(name string, fallback time.Duration) time.Duration

// Engine drives the registered effects from a fixed-period ticker.
type Engine struct {
	state   *world.State
	log     *zap.Logger
	effects []Effect
	lastRun []time.Time

	// Per-effect intervals, reread from the source between ticks so
	// operators can retune a live server.
	intervals    []time.Duration
	source       IntervalSource
	refreshEvery time.Duration
	lastRefresh  time.Time
}

// NewEngine builds an engine over the world state.
func NewEngine(state *world.State, log *zap.Logger) *Engine {
	return &Engine{state: state, log: log}
}

// Register appends an effect. Registration order is execution order.
func (e *Engine) Register(effects ...Effect) {
	for _, eff := range effects {
		e.effects = append(e.effects, eff)
		e.lastRun = append(e.lastRun, time.Time{})
		e.intervals = append(e.intervals, eff.Interval())
	}
}

// SetIntervalSource installs a live interval override, polled at most once
// per every. Call before Run.
func (e *Engine) SetIntervalSource(src IntervalSource, every time.Duration) {
	e.source = src
	e.refreshEvery = every
}

// Run ticks until the context is canceled.
func (e *Engine) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.refreshIntervals(now)
			e.Tick(now)
		}
	}
}

// refreshIntervals rereads every effect's interval from the source. Runs
// on the tick goroutine before the lock is taken, so a slow store read
// delays the tick but never blocks handlers.
func (e *Engine) refreshIntervals(now time.Time) {
	if e.source == nil {
		return
	}
	if !e.lastRefresh.IsZero() && now.Sub(e.lastRefresh) < e.refreshEvery {
		return
	}
	e.lastRefresh = now
	for i, eff := range e.effects {
		e.intervals[i] = e.source(eff.Name(), eff.Interval())
	}
}

// Tick runs every due effect once, in registration order, under one world
// lock acquisition. A panicking effect is logged and skipped; the rest of
// the tick proceeds.
func (e *Engine) Tick(now time.Time) {
	e.state.Update(func(w *world.World) {
		for i, eff := range e.effects {
			if !e.lastRun[i].IsZero() && now.Sub(e.lastRun[i]) < e.intervals[i] {
				continue
			}
			e.lastRun[i] = now
			e.apply(eff, now, w)
		}
	})
}

func (e *Engine) apply(eff Effect, now time.Time, w *world.World) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("effect panicked",
				zap.String("effect", eff.Name()),
				zap.Any("panic", r))
		}
	}()
	eff.Apply(now, w)
}

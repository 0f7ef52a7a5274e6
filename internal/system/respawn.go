package system

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/data"
	"github.com/aogo/server/internal/world"
)

// Respawner re-creates killed NPCs at their spawn anchor after their
// template's respawn delay. Kill sites schedule here; the effect drains
// due entries each interval.
type Respawner struct {
	Every    time.Duration
	Catalogs *data.Catalogs
	Log      *zap.Logger

	mu      sync.Mutex
	pending []respawnEntry
}

type respawnEntry struct {
	templateID int
	mapID      int
	x, y       int
	at         time.Time
}

func (r *Respawner) Name() string            { return "respawn" }
func (r *Respawner) Interval() time.Duration { return r.Every }

// Schedule queues one respawn. Called from the attack handler at kill time.
func (r *Respawner) Schedule(templateID, mapID, x, y int, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, respawnEntry{
		templateID: templateID,
		mapID:      mapID,
		x:          x,
		y:          y,
		at:         time.Now().Add(delay),
	})
}

// PendingCount reports queued respawns, for the stats endpoint and tests.
func (r *Respawner) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Apply drains every due entry. Spawn failures (anchor walled in by
// players) stay queued and retry next interval.
func (r *Respawner) Apply(now time.Time, w *world.World) {
	r.mu.Lock()
	due := make([]respawnEntry, 0, len(r.pending))
	kept := r.pending[:0]
	for _, e := range r.pending {
		if now.Before(e.at) {
			kept = append(kept, e)
		} else {
			due = append(due, e)
		}
	}
	r.pending = kept
	r.mu.Unlock()

	for _, e := range due {
		tpl, ok := r.Catalogs.Npcs[e.templateID]
		if !ok {
			r.Log.Warn("respawn references unknown npc template", zap.Int("template", e.templateID))
			continue
		}
		if _, err := SpawnNpc(w, tpl, e.mapID, e.x, e.y); err != nil {
			r.Schedule(e.templateID, e.mapID, e.x, e.y, r.Every)
		}
	}
}

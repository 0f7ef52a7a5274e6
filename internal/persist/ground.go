package persist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aogo/server/internal/world"
)

// GroundRepo persists item stacks lying on map tiles so they survive a
// restart (until their TTL sweeps them).
//
// Key scheme:
//
//	ground:index             set of "map:x:y" members, for restore
//	ground:{map}:{x}:{y}     hash: item, quantity, dropped_at, owner
type GroundRepo struct {
	kv KV
}

// NewGroundRepo wires the repo to a store.
func NewGroundRepo(kv KV) *GroundRepo {
	return &GroundRepo{kv: kv}
}

// Put stores one stack, replacing whatever the tile held.
func (r *GroundRepo) Put(ctx context.Context, mapID, x, y int, g world.GroundItem) error {
	key := groundKey(mapID, x, y)
	if err := r.kv.HSet(ctx, key, map[string]string{
		"item":       itoa(g.ItemID),
		"quantity":   itoa(g.Quantity),
		"dropped_at": g.DroppedAt.UTC().Format(time.RFC3339),
		"owner":      itoa(int(g.OwnerID)),
	}); err != nil {
		return err
	}
	return r.kv.SAdd(ctx, "ground:index", groundMember(mapID, x, y))
}

// Remove deletes the stack on a tile. Removing an empty tile is a no-op.
func (r *GroundRepo) Remove(ctx context.Context, mapID, x, y int) error {
	if err := r.kv.Del(ctx, groundKey(mapID, x, y)); err != nil {
		return err
	}
	return r.kv.SRem(ctx, "ground:index", groundMember(mapID, x, y))
}

// Restore streams every persisted stack to fn, pruning corrupt entries.
func (r *GroundRepo) Restore(ctx context.Context, fn func(mapID, x, y int, g world.GroundItem)) error {
	members, err := r.kv.SMembers(ctx, "ground:index")
	if err != nil {
		return err
	}
	for _, mem := range members {
		var mapID, x, y int
		if _, err := fmt.Sscanf(mem, "%d:%d:%d", &mapID, &x, &y); err != nil {
			_ = r.kv.SRem(ctx, "ground:index", mem)
			continue
		}
		fields, err := r.kv.HGetAll(ctx, groundKey(mapID, x, y))
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			_ = r.kv.SRem(ctx, "ground:index", mem)
			continue
		}
		fn(mapID, x, y, world.GroundItem{
			ItemID:    atoi(fields["item"]),
			Quantity:  atoi(fields["quantity"]),
			DroppedAt: parseTime(fields["dropped_at"]),
			OwnerID:   int32(atoi(fields["owner"])),
		})
	}
	return nil
}

func groundKey(mapID, x, y int) string {
	return fmt.Sprintf("ground:%d:%d:%d", mapID, x, y)
}

func groundMember(mapID, x, y int) string {
	return strings.Join([]string{itoa(mapID), itoa(x), itoa(y)}, ":")
}

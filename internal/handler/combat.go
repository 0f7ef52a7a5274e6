package handler

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/data"
	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/scripting"
	"github.com/aogo/server/internal/system"
	"github.com/aogo/server/internal/world"
)

// meleeCooldown throttles attack spam regardless of client behavior.
const meleeCooldown = 1200 * time.Millisecond

func (d *Deps) handleAttack(sa any, r *packet.Reader) {
	s := sess(sa)
	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			return
		}
		now := time.Now()
		if now.Sub(p.LastAttackAt) < meleeCooldown {
			return
		}
		p.LastAttackAt = now
		p.Meditating = false

		if m := w.Map(p.Pos.Map); m != nil && m.SafeZone {
			d.fail(s, "This is a safe zone.")
			return
		}

		// The victim is whatever stands on the tile the player faces.
		tx := p.Pos.X + world.HeadingDX[p.Pos.Heading]
		ty := p.Pos.Y + world.HeadingDY[p.Pos.Heading]
		ci := w.OccupantAt(p.Pos.Map, tx, ty)
		if ci == 0 {
			s.Send(packet.MultiUserSwing())
			broadcastExcept(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()), s,
				packet.PlayWave(2, p.Pos.X, p.Pos.Y))
			return
		}

		if n := w.Npc(ci); n != nil {
			d.attackNpc(s, w, p, n, &writes)
			return
		}
		// Player versus player is out of bounds for now.
		d.fail(s, "You cannot attack players here.")
	})
	d.persistAfter(s, "attack", writes)
}

func (d *Deps) attackNpc(s *gamenet.Session, w *world.World, p *world.Player, n *world.Npc, writes *[]func(context.Context) error) {
	if !n.Attackable {
		d.fail(s, n.Name+" cannot be attacked.")
		return
	}
	tpl := d.Catalogs.Npcs[n.TemplateID]
	if tpl == nil {
		return
	}

	minHit, maxHit := system.PlayerWeapon(p, d.Catalogs.Items)
	dmg, err := d.Combat.CalcPlayerAttack(
		scripting.CombatantStats{
			Level:    p.Level,
			Strength: p.Attr.Strength,
			Agility:  p.Attr.Agility,
			MinHit:   minHit,
			MaxHit:   maxHit,
		},
		scripting.CombatantStats{Defense: tpl.Defense},
	)
	if err != nil {
		d.Log.Error("player attack formula failed", zap.Error(err))
		return
	}
	if dmg <= 0 {
		s.Send(packet.MultiUserSwing())
		return
	}

	n.HP -= dmg
	s.Send(packet.MultiUserHitNpc(dmg))
	broadcast(w.Observers(n.Pos.Map, n.Pos.X, n.Pos.Y, w.VisionRange()), packet.PlayWave(10, n.Pos.X, n.Pos.Y))
	if n.HP > 0 {
		return
	}
	d.killNpc(s, w, p, n, writes)
}

// killNpc removes a dead NPC, pays out experience and loot, and arms the
// respawn timer.
func (d *Deps) killNpc(s *gamenet.Session, w *world.World, p *world.Player, n *world.Npc, writes *[]func(context.Context) error) {
	tpl := d.Catalogs.Npcs[n.TemplateID]
	pos := n.Pos
	w.RemoveEntity(n.CharIndex)
	broadcast(w.Observers(pos.Map, pos.X, pos.Y, 0), packet.CharacterRemove(n.CharIndex))

	exp := tpl.ExpValue
	s.Send(packet.MultiUserKillNpc(exp))
	d.shareExp(s, w, p, exp)

	d.dropLoot(w, tpl, pos, writes)
	d.Respawner.Schedule(n.TemplateID, pos.Map, n.SpawnX, n.SpawnY, n.RespawnDelay)

	*writes = append(*writes, func(ctx context.Context) error {
		d.Stats.IncrNpcKills(ctx)
		return nil
	})
}

// shareExp splits a kill between party members on the same map, killer
// included; a lone player keeps it all.
func (d *Deps) shareExp(s *gamenet.Session, w *world.World, p *world.Player, exp int) {
	if p.PartyID == 0 {
		d.grantExp(s, p, exp)
		return
	}
	var present []*world.Player
	for _, member := range w.PartyMembers(p.PartyID) {
		if member.Pos.Map == p.Pos.Map && !member.Dead {
			present = append(present, member)
		}
	}
	if len(present) == 0 {
		d.grantExp(s, p, exp)
		return
	}
	share := exp / len(present)
	if share < 1 {
		share = 1
	}
	for _, member := range present {
		if ms, ok := member.Session.(*gamenet.Session); ok {
			d.grantExp(ms, member, share)
		}
	}
}

// dropLoot rolls the template's loot table plus its gold range onto the
// death tile.
func (d *Deps) dropLoot(w *world.World, tpl *data.NpcTemplate, pos world.Position, writes *[]func(context.Context) error) {
	now := time.Now()
	drop := func(itemID, qty int) {
		x, y, err := w.DropAt(pos.Map, pos.X, pos.Y, world.GroundItem{
			ItemID:    itemID,
			Quantity:  qty,
			DroppedAt: now,
		})
		if err != nil {
			return
		}
		grh := 0
		if it := d.Catalogs.Items[itemID]; it != nil {
			grh = it.GrhIndex
		}
		broadcast(w.Observers(pos.Map, x, y, 0), packet.ObjectCreate(x, y, grh))
		if g := w.GroundItemAt(pos.Map, x, y); g != nil {
			dropped := *g
			*writes = append(*writes, func(ctx context.Context) error {
				return d.Ground.Put(ctx, pos.Map, x, y, dropped)
			})
		}
	}

	if tpl.GoldMax > 0 {
		gold := tpl.GoldMin
		if tpl.GoldMax > tpl.GoldMin {
			gold += rand.Intn(tpl.GoldMax - tpl.GoldMin + 1)
		}
		if gold > 0 {
			drop(data.GoldItemID, gold)
			*writes = append(*writes, func(ctx context.Context) error {
				d.Stats.AddGoldDropped(ctx, int64(gold))
				return nil
			})
		}
	}
	if lt := d.Catalogs.LootTables[tpl.LootTable]; lt != nil {
		for _, entry := range lt.Drops {
			if rand.Float64() < entry.Chance {
				drop(entry.ItemID, entry.Quantity)
			}
		}
	}
}

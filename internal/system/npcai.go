package system

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/data"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/pathfind"
	"github.com/aogo/server/internal/scripting"
	"github.com/aogo/server/internal/world"
)

// WanderRadius bounds how far an idle NPC strays from its spawn anchor.
const WanderRadius = 5

// NpcAI drives hostile NPCs: acquire the nearest visible player, close in
// with pathfinding, swing when adjacent. Idle NPCs wander near their
// anchor.
type NpcAI struct {
	Every       time.Duration
	Catalogs    *data.Catalogs
	Combat      *scripting.Engine
	PathfindCap int
	Log         *zap.Logger
}

func (a *NpcAI) Name() string            { return "npc_ai" }
func (a *NpcAI) Interval() time.Duration { return a.Every }

func (a *NpcAI) Apply(now time.Time, w *world.World) {
	var npcs []*world.Npc
	w.AllNpcs(func(n *world.Npc) { npcs = append(npcs, n) })

	for _, n := range npcs {
		if n.Static || n.Merchant || n.Banker {
			continue
		}
		if !n.Hostile {
			a.wander(n, w)
			continue
		}
		if m := w.Map(n.Pos.Map); m != nil && m.SafeZone {
			a.wander(n, w)
			continue
		}
		target := a.nearestTarget(n, w, now)
		if target == nil {
			a.wander(n, w)
			continue
		}
		if manhattan(n.Pos.X, n.Pos.Y, target.Pos.X, target.Pos.Y) == 1 {
			a.attack(n, target, w, now)
			continue
		}
		a.chase(n, target, w)
	}
}

func (a *NpcAI) nearestTarget(n *world.Npc, w *world.World, now time.Time) *world.Player {
	var best *world.Player
	bestDist := n.AggroRange + 1
	for _, p := range w.PlayersInMap(n.Pos.Map) {
		if p.Dead || p.Invisible(now) {
			continue
		}
		d := manhattan(n.Pos.X, n.Pos.Y, p.Pos.X, p.Pos.Y)
		if d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best
}

func (a *NpcAI) attack(n *world.Npc, victim *world.Player, w *world.World, now time.Time) {
	if h := world.HeadingBetween(n.Pos.X, n.Pos.Y, victim.Pos.X, victim.Pos.Y); h != 0 {
		n.Pos.Heading = h
	}
	if now.Sub(n.LastAttackAt) < n.AttackCooldown {
		return
	}
	n.LastAttackAt = now

	tpl := a.Catalogs.Npcs[n.TemplateID]
	if tpl == nil {
		return
	}
	dmg, err := a.Combat.CalcNpcAttack(
		scripting.CombatantStats{MinHit: tpl.MinHit, MaxHit: tpl.MaxHit},
		scripting.CombatantStats{Defense: PlayerDefense(victim, a.Catalogs.Items)},
	)
	if err != nil {
		a.Log.Error("npc attack formula failed", zap.Error(err))
		return
	}
	if dmg <= 0 {
		if victim.Session != nil {
			victim.Session.Send(packet.MultiNpcSwing())
		}
		return
	}
	victim.HP -= dmg
	if victim.Session != nil {
		victim.Session.Send(packet.MultiNpcHitUser(randomBodyPart(), dmg))
		victim.Session.Send(packet.UpdateHP(max0(victim.HP)))
	}
	if victim.HP <= 0 {
		killPlayer(victim, w, a.Catalogs.Items)
	}
}

func (a *NpcAI) chase(n *world.Npc, target *world.Player, w *world.World) {
	walkable := func(x, y int) bool {
		return w.CanMoveTo(n.Pos.Map, x, y) == nil
	}
	step, ok := pathfind.FirstStep(
		pathfind.Point{X: n.Pos.X, Y: n.Pos.Y},
		pathfind.Point{X: target.Pos.X, Y: target.Pos.Y},
		walkable, a.PathfindCap)
	if !ok {
		a.wander(n, w)
		return
	}
	a.step(n, w, step.X, step.Y)
}

// wander takes one random step, staying within the anchor radius. Most
// intervals the NPC just stands there.
func (a *NpcAI) wander(n *world.Npc, w *world.World) {
	if n.Static || rand.Intn(4) != 0 {
		return
	}
	h := 1 + rand.Intn(4)
	nx := n.Pos.X + world.HeadingDX[h]
	ny := n.Pos.Y + world.HeadingDY[h]
	if manhattan(nx, ny, n.SpawnX, n.SpawnY) > WanderRadius {
		return
	}
	if w.CanMoveTo(n.Pos.Map, nx, ny) != nil {
		return
	}
	a.step(n, w, nx, ny)
}

func (a *NpcAI) step(n *world.Npc, w *world.World, x, y int) {
	if _, err := w.MoveEntity(n.CharIndex, x, y); err != nil {
		return
	}
	for _, sink := range w.Observers(n.Pos.Map, x, y, w.VisionRange()) {
		sink.Send(packet.CharacterMove(n.CharIndex, x, y))
	}
}

// killPlayer puts a player into the full death state: stats zeroed, status
// effects cleared, everything unequipped, ghost shown to the map.
func killPlayer(victim *world.Player, w *world.World, items map[int]*data.Item) {
	victim.HP = 0
	victim.Stamina = 0
	victim.Dead = true
	victim.Meditating = false
	victim.Resting = false

	victim.PoisonedUntil = time.Time{}
	victim.ImmobilizedUntil = time.Time{}
	victim.BlindedUntil = time.Time{}
	victim.DumbUntil = time.Time{}
	victim.InvisibleUntil = time.Time{}

	for slot := 1; slot <= world.InventorySlots; slot++ {
		it := &victim.Inventory[slot]
		if !it.Equipped {
			continue
		}
		it.Equipped = false
		if victim.Session == nil {
			continue
		}
		name, grh, typeCode, value := "?", 0, 0, 0
		if tpl, ok := items[it.ItemID]; ok {
			name, grh, value = tpl.Name, tpl.GrhIndex, tpl.Value
			typeCode = data.ObjTypeCode(tpl.Type)
		}
		victim.Session.Send(packet.ChangeInvSlot(slot, it.ItemID, name, it.Quantity, false, grh, typeCode, value))
	}

	if victim.Session != nil {
		victim.Session.Send(packet.UpdateSta(0))
		victim.Session.Send(packet.MultiNpcKillUser())
		victim.Session.Send(packet.ConsoleMsg("You have died.", packet.FontFight))
	}
	for _, sink := range w.Observers(victim.Pos.Map, victim.Pos.X, victim.Pos.Y, 0) {
		sink.Send(packet.CharacterChange(victim.CharIndex, GhostBody, GhostHead, victim.Pos.Heading))
	}
}

// Ghost appearance shown for dead players.
const (
	GhostBody = 8
	GhostHead = 500
)

// PlayerDefense sums the average defense of everything equipped.
func PlayerDefense(p *world.Player, items map[int]*data.Item) int {
	def := 0
	for s := 1; s <= world.InventorySlots; s++ {
		it := p.Inventory[s]
		if !it.Equipped || it.Quantity == 0 {
			continue
		}
		if tpl, ok := items[it.ItemID]; ok {
			def += (tpl.MinDef + tpl.MaxDef) / 2
		}
	}
	return def
}

// PlayerWeapon returns the hit range of the equipped weapon, fists if none.
func PlayerWeapon(p *world.Player, items map[int]*data.Item) (minHit, maxHit int) {
	minHit, maxHit = 1, 2
	for s := 1; s <= world.InventorySlots; s++ {
		it := p.Inventory[s]
		if !it.Equipped || it.Quantity == 0 {
			continue
		}
		if tpl, ok := items[it.ItemID]; ok && tpl.Type == data.ObjTypeWeapon {
			return tpl.MinHit, tpl.MaxHit
		}
	}
	return minHit, maxHit
}

func manhattan(x1, y1, x2, y2 int) int {
	dx, dy := x1-x2, y1-y2
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func randomBodyPart() byte {
	return byte(1 + rand.Intn(6))
}

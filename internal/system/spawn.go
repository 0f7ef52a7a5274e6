package system

import (
	"time"

	"github.com/aogo/server/internal/data"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/world"
)

// NewNpcFromTemplate instantiates a live NPC from its catalog template.
func NewNpcFromTemplate(tpl *data.NpcTemplate, mapID, x, y int) *world.Npc {
	aggro := tpl.AggroRange
	if aggro == 0 {
		aggro = 5
	}
	cooldown := time.Duration(tpl.AttackCooldown * float64(time.Second))
	if cooldown == 0 {
		cooldown = 2 * time.Second
	}
	respawn := time.Duration(tpl.RespawnDelay * float64(time.Second))
	if respawn == 0 {
		respawn = 30 * time.Second
	}
	return &world.Npc{
		CharIndex:      world.NextNpcCharIndex(),
		TemplateID:     tpl.ID,
		Name:           tpl.Name,
		Pos:            world.Position{Map: mapID, X: x, Y: y, Heading: world.HeadingSouth},
		SpawnX:         x,
		SpawnY:         y,
		HP:             tpl.HP,
		MaxHP:          tpl.HP,
		Hostile:        tpl.Hostile,
		Attackable:     tpl.Attackable,
		Merchant:       tpl.Merchant,
		Banker:         tpl.Banker,
		Static:         tpl.Static,
		AttackCooldown: cooldown,
		AggroRange:     aggro,
		RespawnDelay:   respawn,
	}
}

// SpawnNpc places a fresh template instance into the world and announces
// it to the map.
func SpawnNpc(w *world.World, tpl *data.NpcTemplate, mapID, x, y int) (*world.Npc, error) {
	n := NewNpcFromTemplate(tpl, mapID, x, y)
	if err := w.AddNpc(n); err != nil {
		return nil, err
	}
	for _, sink := range w.Observers(n.Pos.Map, n.Pos.X, n.Pos.Y, 0) {
		sink.Send(packet.CharacterCreate(n.CharIndex, tpl.Body, tpl.Head, n.Pos.Heading, n.Pos.X, n.Pos.Y, n.Name, ""))
	}
	return n, nil
}

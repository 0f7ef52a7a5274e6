package system

import (
	"time"

	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/world"
)

// HungerThirst drains hunger and thirst one point per interval. Starving
// or parched players stop recovering stamina (the stamina effect checks)
// and bleed one HP per interval once both hit zero.
type HungerThirst struct {
	Every time.Duration
}

func (h *HungerThirst) Name() string            { return "hunger_thirst" }
func (h *HungerThirst) Interval() time.Duration { return h.Every }

func (h *HungerThirst) Apply(now time.Time, w *world.World) {
	w.AllPlayers(func(p *world.Player) {
		if p.Dead {
			return
		}
		changed := false
		if p.Hunger > 0 {
			p.Hunger--
			changed = true
		}
		if p.Thirst > 0 {
			p.Thirst--
			changed = true
		}
		if p.Hunger == 0 && p.Thirst == 0 && p.HP > 1 {
			p.HP--
			if p.Session != nil {
				p.Session.Send(packet.UpdateHP(p.HP))
			}
		}
		if changed && p.Session != nil {
			p.Session.Send(packet.UpdateHunger(p.Hunger, p.MaxHunger, p.Thirst, p.MaxThirst))
		}
	})
}

// GoldDecay skims a fraction of carried gold per interval. Banked gold is
// exempt, which is the whole reason the bank exists.
type GoldDecay struct {
	Every time.Duration
	Rate  float64
}

func (g *GoldDecay) Name() string            { return "gold_decay" }
func (g *GoldDecay) Interval() time.Duration { return g.Every }

func (g *GoldDecay) Apply(now time.Time, w *world.World) {
	w.AllPlayers(func(p *world.Player) {
		if p.Dead || p.Gold <= 0 {
			return
		}
		cut := int(float64(p.Gold) * g.Rate)
		if cut < 1 {
			return
		}
		p.Gold -= cut
		if p.Session != nil {
			p.Session.Send(packet.UpdateGold(p.Gold))
		}
	})
}

// Meditation restores mana to meditating players, five percent of max per
// interval. A full pool ends the trance.
type Meditation struct {
	Every time.Duration
}

func (m *Meditation) Name() string            { return "meditation" }
func (m *Meditation) Interval() time.Duration { return m.Every }

func (m *Meditation) Apply(now time.Time, w *world.World) {
	w.AllPlayers(func(p *world.Player) {
		if !p.Meditating || p.Dead {
			return
		}
		gain := p.MaxMana / 20
		if gain < 1 {
			gain = 1
		}
		p.Mana += gain
		if p.Mana >= p.MaxMana {
			p.Mana = p.MaxMana
			p.Meditating = false
			if p.Session != nil {
				p.Session.Send(packet.MeditateToggle())
				p.Session.Send(packet.ConsoleMsg("You have finished meditating.", packet.FontInfo))
			}
		}
		if p.Session != nil {
			p.Session.Send(packet.UpdateMana(p.Mana))
		}
	})
}

// Stamina regenerates stamina for fed, watered, living players. Resting
// doubles the rate.
type Stamina struct {
	Every time.Duration
}

func (s *Stamina) Name() string            { return "stamina" }
func (s *Stamina) Interval() time.Duration { return s.Every }

func (s *Stamina) Apply(now time.Time, w *world.World) {
	w.AllPlayers(func(p *world.Player) {
		if p.Dead || p.Hunger == 0 || p.Thirst == 0 || p.Stamina >= p.MaxStamina {
			return
		}
		gain := 5
		if p.Resting {
			gain = 10
		}
		p.Stamina += gain
		if p.Stamina > p.MaxStamina {
			p.Stamina = p.MaxStamina
		}
		if p.Session != nil {
			p.Session.Send(packet.UpdateSta(p.Stamina))
		}
	})
}

// Modifiers expires temporary attribute buffs and announces the end of
// paralysis to the freed player.
type Modifiers struct {
	Every time.Duration
}

func (m *Modifiers) Name() string            { return "modifiers" }
func (m *Modifiers) Interval() time.Duration { return m.Every }

func (m *Modifiers) Apply(now time.Time, w *world.World) {
	w.AllPlayers(func(p *world.Player) {
		if len(p.AttrMods) > 0 {
			kept := p.AttrMods[:0]
			for _, mod := range p.AttrMods {
				if now.Before(mod.ExpiresAt) {
					kept = append(kept, mod)
					continue
				}
				applyAttrDelta(p, mod.Attribute, -mod.Delta)
			}
			p.AttrMods = kept
		}
		if !p.ImmobilizedUntil.IsZero() && !now.Before(p.ImmobilizedUntil) {
			p.ImmobilizedUntil = time.Time{}
			if p.Session != nil {
				p.Session.Send(packet.ParalyzeOK())
			}
		}
	})
}

func applyAttrDelta(p *world.Player, attr string, delta int) {
	switch attr {
	case "strength":
		p.Attr.Strength += delta
	case "agility":
		p.Attr.Agility += delta
	case "intelligence":
		p.Attr.Intelligence += delta
	case "charisma":
		p.Attr.Charisma += delta
	case "constitution":
		p.Attr.Constitution += delta
	}
}

// GroundSweep removes ground stacks older than the TTL, keeping freshly
// restored loot from piling up forever.
type GroundSweep struct {
	Every time.Duration
	TTL   time.Duration

	// OnRemove lets the caller mirror the removal into the store.
	OnRemove func(mapID, x, y int)
}

func (g *GroundSweep) Name() string            { return "ground_sweep" }
func (g *GroundSweep) Interval() time.Duration { return g.Every }

func (g *GroundSweep) Apply(now time.Time, w *world.World) {
	type tile struct{ m, x, y int }
	var expired []tile
	w.AllGroundItems(func(mapID, x, y int, item world.GroundItem) {
		if !item.DroppedAt.IsZero() && now.Sub(item.DroppedAt) >= g.TTL {
			expired = append(expired, tile{mapID, x, y})
		}
	})
	for _, t := range expired {
		if _, err := w.RemoveGroundItem(t.m, t.x, t.y); err != nil {
			continue
		}
		for _, sink := range w.Observers(t.m, t.x, t.y, 0) {
			sink.Send(packet.ObjectDelete(t.x, t.y))
		}
		if g.OnRemove != nil {
			g.OnRemove(t.m, t.x, t.y)
		}
	}
}

package handler

import (
	"strconv"

	"github.com/aogo/server/internal/data"
	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/world"
)

func itoa(v int) string { return strconv.Itoa(v) }

func (d *Deps) sendStats(s *gamenet.Session, p *world.Player) {
	s.Send(packet.UpdateUserStats(p.MaxHP, p.HP, p.MaxMana, p.Mana, p.MaxStamina, p.Stamina, p.Gold, p.Level, p.Exp))
}

func (d *Deps) sendInventory(s *gamenet.Session, p *world.Player) {
	for slot := 1; slot <= world.InventorySlots; slot++ {
		d.sendInvSlot(s, p, slot)
	}
}

func (d *Deps) sendInvSlot(s *gamenet.Session, p *world.Player, slot int) {
	it := p.Inventory[slot]
	if it.Quantity == 0 {
		s.Send(packet.ChangeInvSlot(slot, 0, "", 0, false, 0, 0, 0))
		return
	}
	tpl := d.Catalogs.Items[it.ItemID]
	if tpl == nil {
		s.Send(packet.ChangeInvSlot(slot, it.ItemID, "?", it.Quantity, it.Equipped, 0, 0, 0))
		return
	}
	s.Send(packet.ChangeInvSlot(slot, it.ItemID, tpl.Name, it.Quantity, it.Equipped, tpl.GrhIndex, data.ObjTypeCode(tpl.Type), tpl.Value))
}

func (d *Deps) sendSpellbook(s *gamenet.Session, p *world.Player) {
	for slot := 1; slot <= world.SpellbookSlots; slot++ {
		id := p.Spellbook[slot]
		if id == 0 {
			continue
		}
		name := "?"
		if sp := d.Catalogs.Spells[id]; sp != nil {
			name = sp.Name
		}
		s.Send(packet.ChangeSpellSlot(slot, id, name))
	}
}

// expForLevel is the total experience needed to reach the next level.
func expForLevel(level int) int {
	return 50 * level * level
}

// grantExp awards experience and resolves any level-ups.
func (d *Deps) grantExp(s *gamenet.Session, p *world.Player, exp int) {
	exp = int(float64(exp) * d.Cfg.Game.ExpRate)
	if exp <= 0 {
		return
	}
	p.Exp += exp
	s.Send(packet.UpdateExp(p.Exp))

	leveled := false
	for p.Exp >= expForLevel(p.Level) {
		p.Level++
		leveled = true
		gain := 8
		if cl := d.Catalogs.Classes[p.Class]; cl != nil {
			gain = cl.HPPerLevel
		}
		p.MaxHP += gain
		p.HP = p.MaxHP
		if cl := d.Catalogs.Classes[p.Class]; cl != nil && cl.Magical {
			p.MaxMana += int(cl.ManaMult * float64(p.Attr.Intelligence))
		}
	}
	if leveled {
		s.Send(packet.LevelUp(p.Level))
		s.Send(packet.ConsoleMsg("You have gained a level!", packet.FontInfo))
		d.sendStats(s, p)
	}
}

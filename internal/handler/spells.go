package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/data"
	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/scripting"
	"github.com/aogo/server/internal/world"
)

func (d *Deps) handleCastSpell(sa any, r *packet.Reader) {
	s := sess(sa)
	slot := r.ReadSlot(packet.MaxSpellSlot)
	tx := r.ReadCoord()
	ty := r.ReadCoord()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}

	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			return
		}
		now := time.Now()
		if now.Before(p.DumbUntil) {
			d.fail(s, "You cannot speak the words.")
			return
		}
		spellID := p.Spellbook[slot]
		if spellID == 0 {
			d.fail(s, "Nothing memorized in that slot.")
			return
		}
		sp := d.Catalogs.Spells[spellID]
		if sp == nil {
			d.fail(s, "That spell is lost knowledge.")
			return
		}
		if manhattan(p.Pos.X, p.Pos.Y, tx, ty) > d.Cfg.Game.SpellMaxRange {
			d.fail(s, "The target is out of range.")
			return
		}
		if p.Mana < sp.ManaCost {
			d.fail(s, "Not enough mana.")
			return
		}
		if p.Stamina < sp.StamCost {
			d.fail(s, "You are too tired.")
			return
		}

		ci := w.OccupantAt(p.Pos.Map, tx, ty)
		if ci == 0 {
			d.fail(s, "There is no target there.")
			return
		}

		p.Mana -= sp.ManaCost
		p.Stamina -= sp.StamCost
		p.Meditating = false
		s.Send(packet.UpdateMana(p.Mana))
		if sp.StamCost > 0 {
			s.Send(packet.UpdateSta(p.Stamina))
		}

		// The incantation is public.
		broadcast(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()),
			packet.ChatOverHead(p.CharIndex, sp.Words, 80, 80, 255))
		if sp.WaveID != 0 {
			broadcast(w.Observers(p.Pos.Map, tx, ty, w.VisionRange()), packet.PlayWave(sp.WaveID, tx, ty))
		}

		if target := w.Player(ci); target != nil {
			d.castOnPlayer(s, w, p, sp, target, now)
			return
		}
		if target := w.Npc(ci); target != nil {
			d.castOnNpc(s, w, p, sp, target, &writes)
		}
	})
	d.persistAfter(s, "cast spell", writes)
}

func (d *Deps) castOnPlayer(s *gamenet.Session, w *world.World, caster *world.Player, sp *data.Spell, target *world.Player, now time.Time) {
	if sp.Target == data.SpellTargetNPC {
		d.fail(s, "That spell only works on creatures.")
		return
	}
	if sp.FXIndex != 0 {
		broadcast(w.Observers(target.Pos.Map, target.Pos.X, target.Pos.Y, w.VisionRange()),
			packet.CreateFX(target.CharIndex, sp.FXIndex, sp.FXLoops))
	}

	// Support spells first: heals and cures target anyone, harm needs an
	// unsafe map.
	if sp.HealMax > 0 {
		amount, err := d.Combat.CalcSpellDamage(scripting.SpellStats{
			MinDamage:   sp.HealMin,
			MaxDamage:   sp.HealMax,
			CasterLevel: caster.Level,
			CasterInt:   caster.Attr.Intelligence,
		})
		if err != nil {
			d.Log.Error("spell formula failed", zap.Error(err))
			return
		}
		target.HP += amount
		if target.HP > target.MaxHP {
			target.HP = target.MaxHP
		}
		if target.Session != nil {
			target.Session.Send(packet.UpdateHP(target.HP))
			target.Session.Send(packet.ConsoleMsg(caster.Username+" has healed you.", packet.FontInfo))
		}
		return
	}
	if sp.RemovesPara {
		target.ImmobilizedUntil = time.Time{}
		if target.Session != nil {
			target.Session.Send(packet.ParalyzeOK())
		}
		return
	}
	if m := w.Map(caster.Pos.Map); m != nil && m.SafeZone {
		d.fail(s, "This is a safe zone.")
		return
	}
	if target.CharIndex == caster.CharIndex {
		d.fail(s, "You cannot harm yourself.")
		return
	}
	d.fail(s, "You cannot attack players here.")
}

func (d *Deps) castOnNpc(s *gamenet.Session, w *world.World, caster *world.Player, sp *data.Spell, target *world.Npc, writes *[]func(context.Context) error) {
	if sp.Target == data.SpellTargetUser {
		d.fail(s, "That spell only works on people.")
		return
	}
	if !target.Attackable {
		d.fail(s, target.Name+" cannot be attacked.")
		return
	}
	if sp.FXIndex != 0 {
		broadcast(w.Observers(target.Pos.Map, target.Pos.X, target.Pos.Y, w.VisionRange()),
			packet.CreateFX(target.CharIndex, sp.FXIndex, sp.FXLoops))
	}
	if sp.MaxDamage <= 0 {
		return
	}
	dmg, err := d.Combat.CalcSpellDamage(scripting.SpellStats{
		MinDamage:   sp.MinDamage,
		MaxDamage:   sp.MaxDamage,
		CasterLevel: caster.Level,
		CasterInt:   caster.Attr.Intelligence,
	})
	if err != nil {
		d.Log.Error("spell formula failed", zap.Error(err))
		return
	}
	target.HP -= dmg
	s.Send(packet.ConsoleMsg("Your spell hits "+target.Name+" for "+itoa(dmg)+".", packet.FontFight))
	if target.HP <= 0 {
		d.killNpc(s, w, caster, target, writes)
	}
}

func (d *Deps) handleMeditate(sa any, r *packet.Reader) {
	s := sess(sa)
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			return
		}
		if p.MaxMana == 0 {
			d.fail(s, "You have no gift for meditation.")
			return
		}
		p.Meditating = !p.Meditating
		s.Send(packet.MeditateToggle())
		if p.Meditating {
			s.Send(packet.ConsoleMsg("You begin to meditate.", packet.FontInfo))
			broadcast(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()),
				packet.CreateFX(p.CharIndex, 6, 0))
		}
	})
}

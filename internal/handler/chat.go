package handler

import (
	"strings"
	"time"

	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/world"
)

func (d *Deps) handleTalk(sa any, r *packet.Reader) {
	s := sess(sa)
	text := r.ReadU(packet.MaxChatLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if time.Now().Before(p.DumbUntil) {
			d.fail(s, "You cannot speak.")
			return
		}
		broadcast(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()),
			packet.ChatOverHead(p.CharIndex, text, 255, 255, 255))
	})
}

// handleYell carries across the whole map, in an angrier color.
func (d *Deps) handleYell(sa any, r *packet.Reader) {
	s := sess(sa)
	text := r.ReadU(packet.MaxChatLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if time.Now().Before(p.DumbUntil) {
			d.fail(s, "You cannot speak.")
			return
		}
		broadcast(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, 0),
			packet.ChatOverHead(p.CharIndex, text, 255, 64, 64))
	})
}

func (d *Deps) handleWhisper(sa any, r *packet.Reader) {
	s := sess(sa)
	targetName := r.ReadS(packet.MaxUsernameLen)
	text := r.ReadU(packet.MaxChatLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		target := w.PlayerByName(targetName)
		if target == nil || target.Pos.Map != p.Pos.Map {
			d.fail(s, targetName+" is not around.")
			return
		}
		if target.Session != nil {
			target.Session.Send(packet.ConsoleMsg("["+p.Username+" whispers] "+text, packet.FontInfo))
		}
		s.Send(packet.ConsoleMsg("[to "+target.Username+"] "+text, packet.FontInfo))
	})
}

func (d *Deps) handlePartyMessage(sa any, r *packet.Reader) {
	s := sess(sa)
	text := r.ReadU(packet.MaxChatLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.PartyID == 0 {
			d.fail(s, "You are not in a party.")
			return
		}
		msg := packet.PartyChat("[" + p.Username + "] " + text)
		for _, member := range w.PartyMembers(p.PartyID) {
			if member.Session != nil {
				member.Session.Send(msg)
			}
		}
	})
}

func (d *Deps) handleClanMessage(sa any, r *packet.Reader) {
	s := sess(sa)
	text := r.ReadU(packet.MaxChatLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.ClanID == 0 {
			d.fail(s, "You are not in a clan.")
			return
		}
		msg := packet.ClanChat("[" + p.Username + "] " + text)
		for _, member := range w.ClanMembersOnline(p.ClanID) {
			if member.Session != nil {
				member.Session.Send(msg)
			}
		}
	})
}

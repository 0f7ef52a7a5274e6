package handler

import (
	"errors"

	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/world"
)

func (d *Deps) handlePartyCreate(sa any, r *packet.Reader) {
	s := sess(sa)
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if _, err := w.CreateParty(p.UserID); err != nil {
			if errors.Is(err, world.ErrAlreadyInParty) {
				d.fail(s, "You are already in a party.")
			}
			return
		}
		s.Send(packet.ConsoleMsg("Party formed. Invite others with the party window.", packet.FontParty))
	})
}

func (d *Deps) handlePartyInvite(sa any, r *packet.Reader) {
	s := sess(sa)
	targetName := r.ReadS(packet.MaxUsernameLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		party := w.Party(p.PartyID)
		if party == nil {
			d.fail(s, "You are not in a party.")
			return
		}
		if party.Leader != p.UserID {
			d.fail(s, "Only the leader can invite.")
			return
		}
		if len(party.Members) >= world.PartyMaxMembers {
			d.fail(s, "The party is full.")
			return
		}
		target := w.PlayerByName(targetName)
		if target == nil {
			d.fail(s, targetName+" is not online.")
			return
		}
		if target.PartyID != 0 {
			d.fail(s, targetName+" is already in a party.")
			return
		}
		target.PendingPartyInvite = party.ID
		if target.Session != nil {
			target.Session.Send(packet.ConsoleMsg(
				p.Username+" invites you to a party. Accept from the party window.", packet.FontParty))
		}
		s.Send(packet.ConsoleMsg("Invitation sent to "+target.Username+".", packet.FontParty))
	})
}

func (d *Deps) handlePartyAccept(sa any, r *packet.Reader) {
	s := sess(sa)
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		inviteID := p.PendingPartyInvite
		p.PendingPartyInvite = 0
		if inviteID == 0 {
			d.fail(s, "Nobody has invited you.")
			return
		}
		if err := w.JoinParty(inviteID, p.UserID); err != nil {
			switch {
			case errors.Is(err, world.ErrPartyFull):
				d.fail(s, "The party filled up first.")
			case errors.Is(err, world.ErrAlreadyInParty):
				d.fail(s, "You are already in a party.")
			default:
				d.fail(s, "That party no longer exists.")
			}
			return
		}
		d.partyBroadcast(w, inviteID, p.Username+" has joined the party.")
	})
}

func (d *Deps) handlePartyLeave(sa any, r *packet.Reader) {
	s := sess(sa)
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.PartyID == 0 {
			d.fail(s, "You are not in a party.")
			return
		}
		d.leavePartyLocked(w, p)
		s.Send(packet.ConsoleMsg("You have left the party.", packet.FontParty))
	})
}

func (d *Deps) handlePartyKick(sa any, r *packet.Reader) {
	s := sess(sa)
	targetName := r.ReadS(packet.MaxUsernameLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		target := w.PlayerByName(targetName)
		if target == nil {
			d.fail(s, targetName+" is not online.")
			return
		}
		partyID := p.PartyID
		if _, err := w.KickFromParty(p.UserID, target.UserID); err != nil {
			switch {
			case errors.Is(err, world.ErrNotPartyLeader):
				d.fail(s, "Only the leader can kick.")
			case errors.Is(err, world.ErrNotInParty):
				d.fail(s, targetName+" is not in your party.")
			}
			return
		}
		if target.Session != nil {
			target.Session.Send(packet.ConsoleMsg("You have been removed from the party.", packet.FontParty))
		}
		d.partyBroadcast(w, partyID, target.Username+" was removed from the party.")
	})
}

// leavePartyLocked removes p from their party and tells the remainder.
// Caller holds the world lock.
func (d *Deps) leavePartyLocked(w *world.World, p *world.Player) {
	partyID := p.PartyID
	name := p.Username
	if _, err := w.LeaveParty(p.UserID); err != nil {
		return
	}
	d.partyBroadcast(w, partyID, name+" has left the party.")
}

func (d *Deps) partyBroadcast(w *world.World, partyID int32, text string) {
	msg := packet.ConsoleMsg(text, packet.FontParty)
	for _, member := range w.PartyMembers(partyID) {
		if member.Session != nil {
			member.Session.Send(msg)
		}
	}
}

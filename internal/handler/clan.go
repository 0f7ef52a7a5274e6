package handler

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/persist"
	"github.com/aogo/server/internal/world"
)

// clanFoundLevel gates clan founding to characters with some history.
const clanFoundLevel = 10

func (d *Deps) handleClanFound(sa any, r *packet.Reader) {
	s := sess(sa)
	name := strings.TrimSpace(r.ReadS(packet.MaxClanNameLen))
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	if len(name) < 3 {
		d.fail(s, "The clan name must be at least 3 characters.")
		return
	}

	// The name reservation hits the store, so the command runs in three
	// phases: validate under the lock, create off-lock, then commit to the
	// world. Commands are serialized per session and a player's clan only
	// changes through their own commands, so the validated facts hold.
	var userID int32
	eligible := false
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.ClanID != 0 {
			d.fail(s, "You already belong to a clan.")
			return
		}
		if p.Level < clanFoundLevel {
			d.fail(s, "You must be level "+itoa(clanFoundLevel)+" to found a clan.")
			return
		}
		userID = p.UserID
		eligible = true
	})
	if !eligible {
		return
	}

	ctx, cancel := d.ctx()
	defer cancel()
	var c *world.Clan
	err := persist.WithRetry(ctx, func() error {
		var err error
		c, err = d.ClanRepo.Create(ctx, name, userID)
		return err
	})
	if errors.Is(err, persist.ErrNameTaken) {
		d.fail(s, "A clan by that name already exists.")
		return
	} else if err != nil {
		d.Log.Error("create clan failed", zap.Error(err))
		d.fail(s, "The clan could not be founded. Try again.")
		return
	}

	founded := false
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if _, err := w.FoundClan(c.ID, c.Name, p.UserID); err != nil {
			d.fail(s, "The clan could not be founded.")
			return
		}
		founded = true
		s.Send(packet.ConsoleMsg("The clan "+name+" has been founded!", packet.FontClan))
		d.maybeSendClanDetails(s, w, p)
	})
	if !founded {
		// Store and world disagree; drop the store record.
		_ = d.ClanRepo.Delete(ctx, c)
	}
}

func (d *Deps) handleClanInvite(sa any, r *packet.Reader) {
	s := sess(sa)
	targetName := r.ReadS(packet.MaxUsernameLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		c := w.Clan(p.ClanID)
		if c == nil {
			d.fail(s, "You are not in a clan.")
			return
		}
		if c.Leader != p.UserID {
			d.fail(s, "Only the leader can invite.")
			return
		}
		if len(c.Members) >= world.ClanMaxMembers {
			d.fail(s, "The clan is full.")
			return
		}
		target := w.PlayerByName(targetName)
		if target == nil {
			d.fail(s, targetName+" is not online.")
			return
		}
		if target.ClanID != 0 {
			d.fail(s, targetName+" already belongs to a clan.")
			return
		}
		target.PendingClanInvite = c.ID
		if target.Session != nil {
			target.Session.Send(packet.ConsoleMsg(
				p.Username+" invites you to join "+c.Name+".", packet.FontClan))
		}
		s.Send(packet.ConsoleMsg("Invitation sent to "+target.Username+".", packet.FontClan))
	})
}

func (d *Deps) handleClanAccept(sa any, r *packet.Reader) {
	s := sess(sa)
	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		inviteID := p.PendingClanInvite
		p.PendingClanInvite = 0
		if inviteID == 0 {
			d.fail(s, "No clan has invited you.")
			return
		}
		if err := w.JoinClan(inviteID, p.UserID); err != nil {
			switch {
			case errors.Is(err, world.ErrClanFull):
				d.fail(s, "The clan filled up first.")
			case errors.Is(err, world.ErrAlreadyInClan):
				d.fail(s, "You already belong to a clan.")
			default:
				d.fail(s, "That clan no longer exists.")
			}
			return
		}
		userID := p.UserID
		writes = append(writes, func(ctx context.Context) error {
			return d.ClanRepo.AddMember(ctx, inviteID, userID)
		})
		d.clanBroadcast(w, inviteID, p.Username+" has joined the clan.")
		d.maybeSendClanDetails(s, w, p)
	})
	d.persistAfter(s, "clan accept", writes)
}

func (d *Deps) handleClanLeave(sa any, r *packet.Reader) {
	s := sess(sa)
	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		clanID := p.ClanID
		if clanID == 0 {
			d.fail(s, "You are not in a clan.")
			return
		}
		clanBefore := w.Clan(clanID)
		name := clanBefore.Name
		c, err := w.LeaveClan(p.UserID)
		if err != nil {
			return
		}
		userID := p.UserID
		if len(c.Members) == 0 {
			writes = append(writes, func(ctx context.Context) error {
				return d.ClanRepo.Delete(ctx, c)
			})
			s.Send(packet.ConsoleMsg("The clan "+name+" has been dissolved.", packet.FontClan))
			return
		}
		leader := c.Leader
		writes = append(writes, func(ctx context.Context) error {
			return d.ClanRepo.RemoveMember(ctx, clanID, userID)
		})
		if leader != userID {
			writes = append(writes, func(ctx context.Context) error {
				return d.ClanRepo.SetLeader(ctx, clanID, leader)
			})
		}
		s.Send(packet.ConsoleMsg("You have left "+name+".", packet.FontClan))
		d.clanBroadcast(w, clanID, p.Username+" has left the clan.")
	})
	d.persistAfter(s, "clan leave", writes)
}

func (d *Deps) handleClanKick(sa any, r *packet.Reader) {
	s := sess(sa)
	targetName := r.ReadS(packet.MaxUsernameLen)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		target := w.PlayerByName(targetName)
		if target == nil {
			d.fail(s, targetName+" is not online.")
			return
		}
		clanID := p.ClanID
		if _, err := w.KickFromClan(p.UserID, target.UserID); err != nil {
			switch {
			case errors.Is(err, world.ErrNotClanLeader):
				d.fail(s, "Only the leader can kick.")
			case errors.Is(err, world.ErrNotInClan):
				d.fail(s, targetName+" is not in your clan.")
			}
			return
		}
		targetID := target.UserID
		writes = append(writes, func(ctx context.Context) error {
			return d.ClanRepo.RemoveMember(ctx, clanID, targetID)
		})
		if target.Session != nil {
			target.Session.Send(packet.ConsoleMsg("You have been expelled from the clan.", packet.FontClan))
		}
		d.clanBroadcast(w, clanID, target.Username+" was expelled from the clan.")
	})
	d.persistAfter(s, "clan kick", writes)
}

func (d *Deps) clanBroadcast(w *world.World, clanID int32, text string) {
	msg := packet.ConsoleMsg(text, packet.FontClan)
	for _, member := range w.ClanMembersOnline(clanID) {
		if member.Session != nil {
			member.Session.Send(msg)
		}
	}
}

// maybeSendClanDetails sends the roster window when the deployment has the
// richer client.
func (d *Deps) maybeSendClanDetails(s *gamenet.Session, w *world.World, p *world.Player) {
	if !d.Cfg.Server.SendClanDetails {
		return
	}
	c := w.Clan(p.ClanID)
	if c == nil {
		return
	}
	leaderName := ""
	names := make([]string, 0, len(c.Members))
	for _, uid := range c.Members {
		if member := w.PlayerByUser(uid); member != nil {
			names = append(names, member.Username)
			if uid == c.Leader {
				leaderName = member.Username
			}
		}
	}
	s.Send(packet.ClanDetails(c.Name, leaderName, names))
}

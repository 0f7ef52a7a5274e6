// Package handler implements the game commands: everything a client can
// ask the server to do, from login to clan chat. Handlers run on their
// session's dispatch goroutine and take the world lock for the whole
// read-then-write of a command, so each command is atomic against the
// tick and against other players' commands.
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aogo/server/internal/config"
	"github.com/aogo/server/internal/data"
	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/persist"
	"github.com/aogo/server/internal/scripting"
	"github.com/aogo/server/internal/system"
	"github.com/aogo/server/internal/world"
)

// storeTimeout bounds every KV round-trip made from a handler.
const storeTimeout = 3 * time.Second

// Deps carries everything handlers need. Built once at boot.
type Deps struct {
	State    *world.State
	Cfg      *config.Config
	Catalogs *data.Catalogs
	Combat   *scripting.Engine

	Accounts  *persist.AccountRepo
	Players   *persist.PlayerRepo
	Ground    *persist.GroundRepo
	ClanRepo  *persist.ClanRepo
	Stats     *persist.StatsRepo
	Respawner *system.Respawner

	Log *zap.Logger
}

// RegisterAll wires every client opcode to its handler.
func RegisterAll(reg *packet.Registry, d *Deps) {
	pre := []packet.SessionState{packet.StateConnected}
	in := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.C_OPCODE_LOGIN, pre, d.handleLogin)
	reg.Register(packet.C_OPCODE_THROW_DICES, pre, d.handleThrowDices)
	reg.Register(packet.C_OPCODE_LOGIN_NEW_CHAR, pre, d.handleLoginNewChar)

	reg.Register(packet.C_OPCODE_WALK, in, d.handleWalk)
	reg.Register(packet.C_OPCODE_CHANGE_HEADING, in, d.handleChangeHeading)
	reg.Register(packet.C_OPCODE_REQUEST_POS, in, d.handleRequestPos)
	reg.Register(packet.C_OPCODE_LEFT_CLICK, in, d.handleLeftClick)
	reg.Register(packet.C_OPCODE_DOUBLE_CLICK, in, d.handleDoubleClick)
	reg.Register(packet.C_OPCODE_DOOR, in, d.handleDoor)

	reg.Register(packet.C_OPCODE_ATTACK, in, d.handleAttack)
	reg.Register(packet.C_OPCODE_CAST_SPELL, in, d.handleCastSpell)
	reg.Register(packet.C_OPCODE_MEDITATE, in, d.handleMeditate)

	reg.Register(packet.C_OPCODE_PICKUP, in, d.handlePickup)
	reg.Register(packet.C_OPCODE_DROP, in, d.handleDrop)
	reg.Register(packet.C_OPCODE_USE_ITEM, in, d.handleUseItem)
	reg.Register(packet.C_OPCODE_EQUIP_ITEM, in, d.handleEquipItem)

	reg.Register(packet.C_OPCODE_COMMERCE_BUY, in, d.handleCommerceBuy)
	reg.Register(packet.C_OPCODE_COMMERCE_SELL, in, d.handleCommerceSell)
	reg.Register(packet.C_OPCODE_COMMERCE_END, in, d.handleCommerceEnd)
	reg.Register(packet.C_OPCODE_BANK_DEPOSIT, in, d.handleBankDeposit)
	reg.Register(packet.C_OPCODE_BANK_EXTRACT, in, d.handleBankExtract)
	reg.Register(packet.C_OPCODE_BANK_END, in, d.handleBankEnd)

	reg.Register(packet.C_OPCODE_TALK, in, d.handleTalk)
	reg.Register(packet.C_OPCODE_YELL, in, d.handleYell)
	reg.Register(packet.C_OPCODE_WHISPER, in, d.handleWhisper)

	reg.Register(packet.C_OPCODE_PARTY_CREATE, in, d.handlePartyCreate)
	reg.Register(packet.C_OPCODE_PARTY_INVITE, in, d.handlePartyInvite)
	reg.Register(packet.C_OPCODE_PARTY_ACCEPT, in, d.handlePartyAccept)
	reg.Register(packet.C_OPCODE_PARTY_LEAVE, in, d.handlePartyLeave)
	reg.Register(packet.C_OPCODE_PARTY_KICK, in, d.handlePartyKick)
	reg.Register(packet.C_OPCODE_PARTY_MESSAGE, in, d.handlePartyMessage)

	reg.Register(packet.C_OPCODE_CLAN_FOUND, in, d.handleClanFound)
	reg.Register(packet.C_OPCODE_CLAN_INVITE, in, d.handleClanInvite)
	reg.Register(packet.C_OPCODE_CLAN_ACCEPT, in, d.handleClanAccept)
	reg.Register(packet.C_OPCODE_CLAN_LEAVE, in, d.handleClanLeave)
	reg.Register(packet.C_OPCODE_CLAN_KICK, in, d.handleClanKick)
	reg.Register(packet.C_OPCODE_CLAN_MESSAGE, in, d.handleClanMessage)

	reg.Register(packet.C_OPCODE_ONLINE, in, d.handleOnline)
	reg.Register(packet.C_OPCODE_QUIT, in, d.handleQuit)
}

func (d *Deps) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// persistAfter flushes writes staged while the world lock was held. Runs on
// the session's dispatch goroutine after the lock is released, so store
// latency never stalls the tick. Failures are retried, then logged and
// reported to the player.
func (d *Deps) persistAfter(s *gamenet.Session, what string, writes []func(context.Context) error) {
	if len(writes) == 0 {
		return
	}
	ctx, cancel := d.ctx()
	defer cancel()
	for _, write := range writes {
		if err := persist.WithRetry(ctx, func() error { return write(ctx) }); err != nil {
			d.Log.Error("store write failed",
				zap.String("op", what),
				zap.Uint64("session", s.ID),
				zap.Error(err))
			d.fail(s, "Your progress could not be saved; it will retry shortly.")
			return
		}
	}
}

// sess casts the opaque session handle back to the concrete type.
func sess(s any) *gamenet.Session {
	return s.(*gamenet.Session)
}

// withPlayer runs fn under the world lock with the session's player.
// Sessions that have no player (race with disconnect) are ignored.
func (d *Deps) withPlayer(s *gamenet.Session, fn func(w *world.World, p *world.Player)) {
	d.State.Update(func(w *world.World) {
		p := w.PlayerBySession(s.ID)
		if p == nil {
			return
		}
		fn(w, p)
	})
}

// fail reports a rejected command to the client. The legacy client shows
// ERROR_MSG as a modal popup, so by default rejections go to the console
// and the popup is opt-in.
func (d *Deps) fail(s *gamenet.Session, text string) {
	if d.Cfg.Server.UseErrorMsg {
		s.Send(packet.ErrorMsg(text))
	} else {
		s.Send(packet.ConsoleMsg(text, packet.FontWarning))
	}
}

// protocolErr closes the connection on a malformed packet.
func (d *Deps) protocolErr(s *gamenet.Session, err error) {
	d.Log.Warn("malformed packet",
		zap.Uint64("session", s.ID),
		zap.String("ip", s.IP),
		zap.Error(err))
	s.Close()
}

// broadcast sends one payload to every sink.
func broadcast(sinks []world.Sink, payload []byte) {
	for _, sink := range sinks {
		sink.Send(payload)
	}
}

// broadcastExcept sends to every sink but the named player's.
func broadcastExcept(sinks []world.Sink, except world.Sink, payload []byte) {
	for _, sink := range sinks {
		if sink == except {
			continue
		}
		sink.Send(payload)
	}
}

// Disconnect tears down an in-world session: persist, vacate the tile,
// tell the map. Safe to call for sessions that never logged in.
func (d *Deps) Disconnect(s *gamenet.Session) {
	var saved *world.Player
	d.State.Update(func(w *world.World) {
		p := w.PlayerBySession(s.ID)
		if p == nil {
			return
		}
		if p.PartyID != 0 {
			d.leavePartyLocked(w, p)
		}
		pos := p.Pos
		w.RemoveEntity(p.CharIndex)
		broadcast(w.Observers(pos.Map, pos.X, pos.Y, 0), packet.CharacterRemove(p.CharIndex))
		saved = p
	})
	if saved != nil {
		ctx, cancel := d.ctx()
		defer cancel()
		if err := persist.WithRetry(ctx, func() error { return d.Players.Save(ctx, saved) }); err != nil {
			d.Log.Error("save on disconnect failed",
				zap.String("user", saved.Username),
				zap.Error(err))
		}
		d.Log.Info("player left", zap.String("user", saved.Username))
	}
}

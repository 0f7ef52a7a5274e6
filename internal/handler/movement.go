package handler

import (
	"errors"
	"time"

	"go.uber.org/zap"

	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/persist"
	"github.com/aogo/server/internal/world"
)

func (d *Deps) handleWalk(sa any, r *packet.Reader) {
	s := sess(sa)
	heading := r.ReadHeading()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
			return
		}
		now := time.Now()
		if now.Before(p.ImmobilizedUntil) {
			s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
			return
		}
		p.Meditating = false
		p.Resting = false

		nx := p.Pos.X + world.HeadingDX[heading]
		ny := p.Pos.Y + world.HeadingDY[heading]

		// Stepping onto an exit tile transports instead of moving.
		if exit, ok := w.ExitAt(p.Pos.Map, nx, ny); ok {
			d.travel(s, w, p, exit)
			return
		}

		// Walking off the map edge goes through the exit on the current
		// tile, if any; border exits sit on the last walkable row.
		if !world.InBounds(nx, ny) {
			if exit, ok := w.ExitAt(p.Pos.Map, p.Pos.X, p.Pos.Y); ok {
				d.travel(s, w, p, exit)
				return
			}
			p.Pos.Heading = heading
			s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
			broadcastExcept(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()), s,
				packet.CharacterChange(p.CharIndex, p.Body, p.Head, heading))
			return
		}

		prev, err := w.MoveEntity(p.CharIndex, nx, ny)
		if err != nil {
			// Turn in place and snap the client back.
			p.Pos.Heading = heading
			s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
			broadcastExcept(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()), s,
				packet.CharacterChange(p.CharIndex, p.Body, p.Head, heading))
			return
		}
		broadcastExcept(w.Observers(prev.Map, p.Pos.X, p.Pos.Y, w.VisionRange()), s,
			packet.CharacterMove(p.CharIndex, p.Pos.X, p.Pos.Y))
	})
}

// travel moves a player through an exit tile onto another map.
func (d *Deps) travel(s *gamenet.Session, w *world.World, p *world.Player, exit world.ExitTile) {
	prev, err := w.TeleportEntity(p.CharIndex, exit.DestMap, exit.DestX, exit.DestY)
	if err != nil {
		if errors.Is(err, world.ErrTileOccupied) {
			s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
			return
		}
		d.Log.Error("exit tile leads nowhere",
			zap.Int("map", prev.Map), zap.Int("dest", exit.DestMap), zap.Error(err))
		s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
		return
	}

	broadcast(w.Observers(prev.Map, prev.X, prev.Y, 0), packet.CharacterRemove(p.CharIndex))

	m := w.Map(p.Pos.Map)
	music := 0
	if m != nil {
		music = m.MusicID
	}
	s.Send(packet.ChangeMap(p.Pos.Map, music))
	s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
	broadcastExcept(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, 0), s,
		packet.CharacterCreate(p.CharIndex, p.Body, p.Head, p.Pos.Heading, p.Pos.X, p.Pos.Y, p.Username, d.clanTag(w, p)))
	d.replayMap(s, w, p)

	// Crossing maps is a natural save point.
	snapshot := *p
	go func() {
		ctx, cancel := d.ctx()
		defer cancel()
		err := persist.WithRetry(ctx, func() error { return d.Players.Save(ctx, &snapshot) })
		if err != nil {
			d.Log.Error("save on map change failed", zap.String("user", snapshot.Username), zap.Error(err))
		}
	}()
}

func (d *Deps) handleChangeHeading(sa any, r *packet.Reader) {
	s := sess(sa)
	heading := r.ReadHeading()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		p.Pos.Heading = heading
		broadcastExcept(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()), s,
			packet.CharacterChange(p.CharIndex, p.Body, p.Head, heading))
	})
}

func (d *Deps) handleRequestPos(sa any, r *packet.Reader) {
	s := sess(sa)
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
	})
}

// handleLeftClick inspects a tile: signs, characters, items.
func (d *Deps) handleLeftClick(sa any, r *packet.Reader) {
	s := sess(sa)
	x := r.ReadCoord()
	y := r.ReadCoord()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		m := w.Map(p.Pos.Map)
		if m == nil {
			return
		}
		if text, ok := m.Signs[world.Coord{X: x, Y: y}]; ok {
			s.Send(packet.ShowSignal(text, 0))
			return
		}
		if ci := w.OccupantAt(p.Pos.Map, x, y); ci != 0 {
			if other := w.Player(ci); other != nil {
				s.Send(packet.ConsoleMsg("You see "+other.Username+".", packet.FontInfo))
			} else if n := w.Npc(ci); n != nil {
				s.Send(packet.ConsoleMsg("You see "+n.Name+".", packet.FontInfo))
			}
			return
		}
		if g := w.GroundItemAt(p.Pos.Map, x, y); g != nil {
			name := "something"
			if it := d.Catalogs.Items[g.ItemID]; it != nil {
				name = it.Name
			}
			s.Send(packet.ConsoleMsg("You see "+name+" ("+itoa(g.Quantity)+").", packet.FontInfo))
		}
	})
}

// handleDoubleClick interacts with an adjacent NPC: merchants open a trade
// window, bankers open the vault.
func (d *Deps) handleDoubleClick(sa any, r *packet.Reader) {
	s := sess(sa)
	x := r.ReadCoord()
	y := r.ReadCoord()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	var openedBank bool
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		ci := w.OccupantAt(p.Pos.Map, x, y)
		if ci == 0 {
			return
		}
		n := w.Npc(ci)
		if n == nil {
			return
		}
		if chebyshev(p.Pos.X, p.Pos.Y, x, y) > 2 {
			d.fail(s, "You are too far away.")
			return
		}
		switch {
		case n.Merchant:
			s.ActiveMerchant = n.CharIndex
			s.Send(packet.CommerceInit(n.Name))
			d.sendMerchantStock(s, n)
		case n.Banker:
			s.ActiveBanker = n.CharIndex
			s.Send(packet.BankInit(p.BankGold))
			openedBank = true
		}
	})
	// The vault replay reads the store, so it runs off-lock.
	if openedBank {
		d.sendBankVault(s)
	}
}

// handleDoor toggles an adjacent door.
func (d *Deps) handleDoor(sa any, r *packet.Reader) {
	s := sess(sa)
	x := r.ReadCoord()
	y := r.ReadCoord()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		m := w.Map(p.Pos.Map)
		if m == nil {
			return
		}
		door, ok := m.Doors[world.Coord{X: x, Y: y}]
		if !ok {
			return
		}
		if chebyshev(p.Pos.X, p.Pos.Y, x, y) > 2 {
			d.fail(s, "You are too far away.")
			return
		}
		// Closing a door on someone is not a trap.
		if door.Open && w.OccupantAt(p.Pos.Map, x, y) != 0 {
			d.fail(s, "The doorway is blocked.")
			return
		}
		door.Open = !door.Open
		broadcast(w.Observers(p.Pos.Map, x, y, 0), packet.BlockPosition(x, y, !door.Open))
		broadcast(w.Observers(p.Pos.Map, x, y, w.VisionRange()), packet.PlayWave(5, x, y))
	})
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

func chebyshev(x1, y1, x2, y2 int) int {
	dx, dy := x1-x2, y1-y2
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

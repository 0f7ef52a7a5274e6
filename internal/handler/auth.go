package handler

import (
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/persist"
	"github.com/aogo/server/internal/world"
)

func (d *Deps) handleLogin(sa any, r *packet.Reader) {
	s := sess(sa)
	username := r.ReadS(packet.MaxUsernameLen)
	password := r.ReadS(64)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	if !d.allowLoginAttempt(s) {
		return
	}

	ctx, cancel := d.ctx()
	defer cancel()

	var acc *persist.Account
	err := persist.WithRetry(ctx, func() error {
		var err error
		acc, err = d.Accounts.Authenticate(ctx, username, password)
		return err
	})
	if errors.Is(err, persist.ErrBadCredentials) {
		d.fail(s, "Invalid username or password.")
		return
	} else if err != nil {
		d.Log.Error("authenticate failed", zap.String("user", username), zap.Error(err))
		d.fail(s, "The server could not process the login. Try again.")
		return
	}
	if acc.Banned {
		d.fail(s, "This account is banned.")
		s.Close()
		return
	}

	var p *world.Player
	err = persist.WithRetry(ctx, func() error {
		var err error
		p, err = d.Players.Load(ctx, acc.ID)
		return err
	})
	if errors.Is(err, persist.ErrNotFound) {
		d.fail(s, "No character on this account. Create one first.")
		return
	} else if err != nil {
		d.Log.Error("load player failed", zap.String("user", username), zap.Error(err))
		d.fail(s, "The server could not process the login. Try again.")
		return
	}

	if !d.spawn(s, p) {
		return
	}
	_ = d.Accounts.TouchLogin(ctx, acc.ID)
	d.Stats.IncrLogins(ctx)
	d.Log.Info("player logged in",
		zap.String("user", p.Username),
		zap.Int32("char_index", p.CharIndex),
		zap.Int("map", p.Pos.Map))
}

func (d *Deps) handleThrowDices(sa any, r *packet.Reader) {
	s := sess(sa)
	roll := &gamenet.DiceRoll{
		Strength:     rollAttr(),
		Agility:      rollAttr(),
		Intelligence: rollAttr(),
		Charisma:     rollAttr(),
		Constitution: rollAttr(),
	}
	s.PendingDice = roll
	s.Send(packet.DiceRoll(roll.Strength, roll.Agility, roll.Intelligence, roll.Charisma, roll.Constitution))
}

func (d *Deps) handleLoginNewChar(sa any, r *packet.Reader) {
	s := sess(sa)
	username := r.ReadS(packet.MaxUsernameLen)
	password := r.ReadS(64)
	className := r.ReadS(20)
	race := r.ReadS(20)
	gender := r.ReadS(10)
	head := int(r.ReadH())
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	if !d.allowLoginAttempt(s) {
		return
	}
	if len(username) < 3 {
		d.fail(s, "The name must be at least 3 characters.")
		return
	}
	class, ok := d.Catalogs.Classes[className]
	if !ok {
		d.fail(s, "Unknown class.")
		return
	}
	if s.PendingDice == nil {
		d.fail(s, "Roll your attributes first.")
		return
	}

	ctx, cancel := d.ctx()
	defer cancel()

	acc, err := d.Accounts.Create(ctx, username, password)
	if errors.Is(err, persist.ErrNameTaken) {
		d.fail(s, "That name is already taken.")
		return
	} else if err != nil {
		d.Log.Error("create account failed", zap.String("user", username), zap.Error(err))
		d.fail(s, "The server could not create the character. Try again.")
		return
	}

	dice := s.PendingDice
	s.PendingDice = nil
	p := &world.Player{
		UserID:   acc.ID,
		Username: username,
		Class:    className,
		Race:     race,
		Gender:   gender,
		Head:     head,
		Body:     1,
		Pos:      d.startPosition(),
		Level:    1,
		HP:       class.StartHP,
		MaxHP:    class.StartHP,
		Mana:     class.StartMana,
		MaxMana:  class.StartMana,
		Stamina:  class.StartStam, MaxStamina: class.StartStam,
		Hunger: 100, MaxHunger: 100,
		Thirst: 100, MaxThirst: 100,
		Attr: world.Attributes{
			Strength:     dice.Strength,
			Agility:      dice.Agility,
			Intelligence: dice.Intelligence,
			Charisma:     dice.Charisma,
			Constitution: dice.Constitution,
		},
	}
	for slot, it := range d.newbieKit() {
		p.Inventory[slot] = it
	}

	if err := persist.WithRetry(ctx, func() error { return d.Players.Save(ctx, p) }); err != nil {
		d.Log.Error("save new player failed", zap.String("user", username), zap.Error(err))
		d.fail(s, "The server could not create the character. Try again.")
		return
	}
	if !d.spawn(s, p) {
		return
	}
	d.Stats.IncrCharsCreated(ctx)
	d.Log.Info("character created", zap.String("user", username), zap.String("class", className))
}

// spawn puts an authenticated player into the world and runs the post-login
// packet sequence. Returns false when the spawn was rejected.
func (d *Deps) spawn(s *gamenet.Session, p *world.Player) bool {
	p.CharIndex = world.NextPlayerCharIndex()
	p.SessionID = s.ID
	p.Session = s

	var rejected string
	d.State.Update(func(w *world.World) {
		if err := w.AddPlayer(p); err != nil {
			if errors.Is(err, world.ErrAlreadyOnline) {
				rejected = "That character is already online."
			} else {
				rejected = "The starting position is unavailable."
			}
			return
		}

		s.Username = p.Username
		s.UserID = p.UserID
		s.CharIndex = p.CharIndex
		s.SetState(packet.StateInWorld)

		m := w.Map(p.Pos.Map)
		music := 0
		if m != nil {
			music = m.MusicID
		}
		s.Send(packet.Logged())
		s.Send(packet.UserCharIndex(p.CharIndex))
		s.Send(packet.ChangeMap(p.Pos.Map, music))
		s.Send(packet.PosUpdate(p.Pos.X, p.Pos.Y))
		d.sendStats(s, p)
		s.Send(packet.UpdateHunger(p.Hunger, p.MaxHunger, p.Thirst, p.MaxThirst))
		d.sendInventory(s, p)
		d.sendSpellbook(s, p)

		// Announce the newcomer, then replay the map to them.
		announce := packet.CharacterCreate(p.CharIndex, p.Body, p.Head, p.Pos.Heading, p.Pos.X, p.Pos.Y, p.Username, d.clanTag(w, p))
		broadcastExcept(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, 0), s, announce)
		d.replayMap(s, w, p)
	})
	if rejected != "" {
		d.fail(s, rejected)
		return false
	}
	return true
}

// replayMap sends every visible character and ground stack of the map to a
// freshly arrived player.
func (d *Deps) replayMap(s *gamenet.Session, w *world.World, p *world.Player) {
	for _, other := range w.PlayersInMap(p.Pos.Map) {
		if other.CharIndex == p.CharIndex {
			continue
		}
		s.Send(packet.CharacterCreate(other.CharIndex, other.Body, other.Head, other.Pos.Heading,
			other.Pos.X, other.Pos.Y, other.Username, d.clanTag(w, other)))
	}
	for _, n := range w.NpcsInMap(p.Pos.Map) {
		tpl := d.Catalogs.Npcs[n.TemplateID]
		body, head := 0, 0
		if tpl != nil {
			body, head = tpl.Body, tpl.Head
		}
		s.Send(packet.CharacterCreate(n.CharIndex, body, head, n.Pos.Heading, n.Pos.X, n.Pos.Y, n.Name, ""))
	}
	w.AllGroundItems(func(mapID, x, y int, g world.GroundItem) {
		if mapID != p.Pos.Map {
			return
		}
		grh := 0
		if it := d.Catalogs.Items[g.ItemID]; it != nil {
			grh = it.GrhIndex
		}
		s.Send(packet.ObjectCreate(x, y, grh))
	})
}

func (d *Deps) handleOnline(sa any, r *packet.Reader) {
	s := sess(sa)
	count := d.State.PlayerCount()
	suffix := "s"
	if count == 1 {
		suffix = ""
	}
	s.Send(packet.ConsoleMsg(
		time.Now().Format("15:04")+" - "+itoa(count)+" player"+suffix+" online.",
		packet.FontServer))
}

func (d *Deps) handleQuit(sa any, r *packet.Reader) {
	s := sess(sa)
	d.Disconnect(s)
	s.Close()
}

// allowLoginAttempt rate-limits credential guesses per connection. The
// per-minute budget comes from game.login_rate_per_min; zero disables it.
func (d *Deps) allowLoginAttempt(s *gamenet.Session) bool {
	limit := d.Cfg.Game.LoginRatePerMin
	if limit <= 0 {
		return true
	}
	minute := time.Now().Unix() / 60
	if s.LoginWindow != minute {
		s.LoginWindow = minute
		s.LoginAttempts = 0
	}
	s.LoginAttempts++
	if s.LoginAttempts > limit {
		d.Log.Warn("login attempt flood", zap.String("ip", s.IP))
		s.Close()
		return false
	}
	return true
}

func (d *Deps) startPosition() world.Position {
	g := d.Cfg.Game
	return world.Position{Map: g.StartMap, X: g.StartX, Y: g.StartY, Heading: world.HeadingSouth}
}

// newbieKit is the starting inventory of a fresh character.
func (d *Deps) newbieKit() map[int]world.InvItem {
	kit := make(map[int]world.InvItem)
	slot := 1
	for _, it := range d.Catalogs.Items {
		if it.Newbie && slot <= world.InventorySlots {
			kit[slot] = world.InvItem{ItemID: it.ID, Quantity: 1}
			slot++
		}
	}
	return kit
}

func (d *Deps) clanTag(w *world.World, p *world.Player) string {
	if p.ClanID == 0 {
		return ""
	}
	if c := w.Clan(p.ClanID); c != nil {
		return "<" + c.Name + ">"
	}
	return ""
}

// rollAttr rolls one attribute in the playable 6..18 band.
func rollAttr() int {
	return 6 + rand.Intn(13)
}

package handler

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

// fixedScript makes damage deterministic: max_hit minus defense, spells
// always land their max.
const fixedScript = `
function calc_player_attack(attacker, defender)
  return attacker.max_hit - defender.defense
end
function calc_npc_attack(attacker, defender)
  return attacker.max_hit - defender.defense
end
function calc_spell_damage(spell)
  return spell.max_damage
end
`

const (
	itemSword  = 1
	itemArmor  = 2
	itemPotion = 3
	itemPelt   = 13

	npcWolf     = 1
	npcMerchant = 20
	npcBanker   = 21
)

func testCatalogs() *data.Catalogs {
	town := world.NewGameMap(1)
	town.Name = "Town"
	town.SafeZone = true
	town.Exits[world.Coord{X: 60, Y: 50}] = world.ExitTile{DestMap: 2, DestX: 10, DestY: 10}
	town.Doors[world.Coord{X: 40, Y: 40}] = &world.Door{}
	town.Signs[world.Coord{X: 50, Y: 49}] = "Welcome"

	wild := world.NewGameMap(2)
	wild.Name = "Wild"

	return &data.Catalogs{
		Items: map[int]*data.Item{
			itemSword: {ID: itemSword, Name: "Short Sword", Type: data.ObjTypeWeapon,
				MinHit: 4, MaxHit: 6, Value: 150, Equipable: true, Newbie: true},
			itemArmor: {ID: itemArmor, Name: "Leather Armor", Type: data.ObjTypeArmor,
				MinDef: 2, MaxDef: 4, Value: 200, Equipable: true},
			itemPotion: {ID: itemPotion, Name: "Red Potion", Type: data.ObjTypePotion,
				RestoreHP: 15, Value: 30, Newbie: true},
			data.GoldItemID: {ID: data.GoldItemID, Name: "Gold Coins", Type: data.ObjTypeGold, Value: 1},
			itemPelt:        {ID: itemPelt, Name: "Wolf Pelt", Type: data.ObjTypeMaterial, Value: 45},
		},
		Spells: map[int]*data.Spell{},
		Npcs: map[int]*data.NpcTemplate{
			npcWolf: {ID: npcWolf, Name: "Wolf", HP: 1, MinHit: 2, MaxHit: 5, Defense: 1,
				ExpValue: 25, Hostile: true, Attackable: true, AggroRange: 6,
				RespawnDelay: 1, LootTable: 1},
			npcMerchant: {ID: npcMerchant, Name: "Merchant", Static: true, Merchant: true, Stock: 1},
			npcBanker:   {ID: npcBanker, Name: "Banker", Static: true, Banker: true},
		},
		Stocks: map[int]*data.Stock{
			1: {ID: 1, Items: []data.StockEntry{
				{ItemID: itemSword, Quantity: -1},
				{ItemID: itemPotion, Quantity: -1},
			}},
		},
		LootTables: map[int]*data.LootTable{
			1: {ID: 1, Drops: []data.LootEntry{{ItemID: itemPelt, Quantity: 1, Chance: 1.0}}},
		},
		Classes: map[string]*data.Class{
			"warrior": {Name: "warrior", HPPerLevel: 11, StartHP: 22, StartStam: 110},
		},
		Maps: map[int]*world.GameMap{1: town, 2: wild},
	}
}

func newDeps(t *testing.T) *Deps {
	t.Helper()

	script := filepath.Join(t.TempDir(), "combat.lua")
	require.NoError(t, os.WriteFile(script, []byte(fixedScript), 0o644))
	combat, err := scripting.New(script)
	require.NoError(t, err)
	t.Cleanup(combat.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)

	kv := persist.NewMemory()
	catalogs := testCatalogs()
	log := zap.NewNop()

	return &Deps{
		State:    world.NewState(catalogs.Maps, cfg.Game.VisionRange),
		Cfg:      cfg,
		Catalogs: catalogs,
		Combat:   combat,
		Accounts: persist.NewAccountRepo(kv),
		Players:  persist.NewPlayerRepo(kv),
		Ground:   persist.NewGroundRepo(kv),
		ClanRepo: persist.NewClanRepo(kv),
		Stats:    persist.NewStatsRepo(kv),
		Respawner: &system.Respawner{
			Every:    time.Second,
			Catalogs: catalogs,
			Log:      log,
		},
		Log: log,
	}
}

var sessionIDCounter uint64

// newSession builds a session over a pipe without starting its loops;
// outbound packets pile up in OutQueue for inspection.
func newSession(t *testing.T, d *Deps) *gamenet.Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	sessionIDCounter++
	return gamenet.NewSession(server, sessionIDCounter, d.Cfg.Network, zap.NewNop())
}

func pk(opcode byte, build func(w *packet.Writer)) *packet.Reader {
	w := packet.NewWriterWithOpcode(opcode)
	if build != nil {
		build(w)
	}
	return packet.NewReader(w.Bytes())
}

// drainOpcodes empties the session's outbound queue and returns the
// opcode bytes in send order.
func drainOpcodes(s *gamenet.Session) []byte {
	var ops []byte
	for {
		select {
		case b := <-s.OutQueue:
			ops = append(ops, b[0])
		default:
			return ops
		}
	}
}

func createChar(t *testing.T, d *Deps, s *gamenet.Session, name string) {
	t.Helper()
	d.handleThrowDices(s, pk(packet.C_OPCODE_THROW_DICES, nil))
	d.handleLoginNewChar(s, pk(packet.C_OPCODE_LOGIN_NEW_CHAR, func(w *packet.Writer) {
		w.WriteS(name)
		w.WriteS("hunter2abc")
		w.WriteS("warrior")
		w.WriteS("human")
		w.WriteS("m")
		w.WriteH(1)
	}))
	require.Equal(t, packet.StateInWorld, s.State(), "character creation must put the session in world")
	drainOpcodes(s)
}

func getPlayer(d *Deps, s *gamenet.Session) *world.Player {
	var p *world.Player
	d.State.Update(func(w *world.World) {
		p = w.PlayerBySession(s.ID)
	})
	return p
}

// movePlayer relocates a player directly, bypassing walk validation.
func movePlayer(t *testing.T, d *Deps, s *gamenet.Session, mapID, x, y int) {
	t.Helper()
	d.State.Update(func(w *world.World) {
		p := w.PlayerBySession(s.ID)
		require.NotNil(t, p)
		_, err := w.TeleportEntity(p.CharIndex, mapID, x, y)
		require.NoError(t, err)
	})
	drainOpcodes(s)
}

func spawnNpcAt(t *testing.T, d *Deps, templateID, mapID, x, y int) *world.Npc {
	t.Helper()
	var n *world.Npc
	d.State.Update(func(w *world.World) {
		var err error
		n, err = system.SpawnNpc(w, d.Catalogs.Npcs[templateID], mapID, x, y)
		require.NoError(t, err)
	})
	return n
}

func TestNewCharacterSpawnsAtStart(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)

	d.handleThrowDices(s, pk(packet.C_OPCODE_THROW_DICES, nil))
	require.NotNil(t, s.PendingDice)
	drainOpcodes(s)

	d.handleLoginNewChar(s, pk(packet.C_OPCODE_LOGIN_NEW_CHAR, func(w *packet.Writer) {
		w.WriteS("alice")
		w.WriteS("hunter2abc")
		w.WriteS("warrior")
		w.WriteS("human")
		w.WriteS("f")
		w.WriteH(3)
	}))

	assert.Equal(t, packet.StateInWorld, s.State())
	p := getPlayer(d, s)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Pos.Map)
	assert.Equal(t, 50, p.Pos.X)
	assert.Equal(t, 22, p.MaxHP, "warrior start HP")
	assert.Nil(t, s.PendingDice, "dice are consumed by creation")

	ops := drainOpcodes(s)
	require.NotEmpty(t, ops)
	assert.Equal(t, packet.S_OPCODE_LOGGED, ops[0], "LOGGED leads the post-login sequence")
}

func TestNewCharWithoutDiceRejected(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)

	d.handleLoginNewChar(s, pk(packet.C_OPCODE_LOGIN_NEW_CHAR, func(w *packet.Writer) {
		w.WriteS("alice")
		w.WriteS("hunter2abc")
		w.WriteS("warrior")
		w.WriteS("human")
		w.WriteS("f")
		w.WriteH(3)
	}))
	assert.Equal(t, packet.StateConnected, s.State())
	assert.Nil(t, getPlayer(d, s))
}

func TestLoginExistingCharacter(t *testing.T) {
	d := newDeps(t)
	first := newSession(t, d)
	createChar(t, d, first, "bob")
	d.Disconnect(first)

	s := newSession(t, d)
	d.handleLogin(s, pk(packet.C_OPCODE_LOGIN, func(w *packet.Writer) {
		w.WriteS("bob")
		w.WriteS("hunter2abc")
	}))
	assert.Equal(t, packet.StateInWorld, s.State())
	p := getPlayer(d, s)
	require.NotNil(t, p)
	assert.Equal(t, "bob", p.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	d := newDeps(t)
	first := newSession(t, d)
	createChar(t, d, first, "bob")
	d.Disconnect(first)

	s := newSession(t, d)
	d.handleLogin(s, pk(packet.C_OPCODE_LOGIN, func(w *packet.Writer) {
		w.WriteS("bob")
		w.WriteS("wrong")
	}))
	assert.Equal(t, packet.StateConnected, s.State())
	assert.Nil(t, getPlayer(d, s))
}

func TestLoginWhileAlreadyOnline(t *testing.T) {
	d := newDeps(t)
	first := newSession(t, d)
	createChar(t, d, first, "bob")

	s := newSession(t, d)
	d.handleLogin(s, pk(packet.C_OPCODE_LOGIN, func(w *packet.Writer) {
		w.WriteS("bob")
		w.WriteS("hunter2abc")
	}))
	assert.Equal(t, packet.StateConnected, s.State())
	assert.Nil(t, getPlayer(d, s), "second session must not take over the character")
}

func TestLoginRateLimited(t *testing.T) {
	d := newDeps(t)
	first := newSession(t, d)
	createChar(t, d, first, "bob")
	d.Disconnect(first)

	d.Cfg.Game.LoginRatePerMin = 2
	s := newSession(t, d)
	badLogin := func() {
		d.handleLogin(s, pk(packet.C_OPCODE_LOGIN, func(w *packet.Writer) {
			w.WriteS("bob")
			w.WriteS("wrong")
		}))
	}
	badLogin()
	badLogin()
	assert.False(t, s.IsClosed(), "attempts within the budget keep the connection")
	badLogin()
	assert.True(t, s.IsClosed(), "the attempt over budget drops the connection")
}

func TestLoginRateLimitDisabledByZero(t *testing.T) {
	d := newDeps(t)
	first := newSession(t, d)
	createChar(t, d, first, "bob")
	d.Disconnect(first)

	d.Cfg.Game.LoginRatePerMin = 0
	s := newSession(t, d)
	for i := 0; i < 5; i++ {
		d.handleLogin(s, pk(packet.C_OPCODE_LOGIN, func(w *packet.Writer) {
			w.WriteS("bob")
			w.WriteS("wrong")
		}))
	}
	assert.False(t, s.IsClosed())
}

func TestWalkMovesAndBlockedTurnsInPlace(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")

	d.handleWalk(s, pk(packet.C_OPCODE_WALK, func(w *packet.Writer) { w.WriteC(world.HeadingEast) }))
	p := getPlayer(d, s)
	assert.Equal(t, 51, p.Pos.X)
	assert.Equal(t, world.HeadingEast, p.Pos.Heading)

	// A static NPC one tile east blocks the next step.
	spawnNpcAt(t, d, npcMerchant, 1, 52, 50)
	drainOpcodes(s)
	d.handleWalk(s, pk(packet.C_OPCODE_WALK, func(w *packet.Writer) { w.WriteC(world.HeadingEast) }))
	p = getPlayer(d, s)
	assert.Equal(t, 51, p.Pos.X, "blocked step must not move")
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_POS_UPDATE, "client is snapped back")
}

func TestWalkOntoExitChangesMap(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	movePlayer(t, d, s, 1, 59, 50)

	d.handleWalk(s, pk(packet.C_OPCODE_WALK, func(w *packet.Writer) { w.WriteC(world.HeadingEast) }))
	p := getPlayer(d, s)
	assert.Equal(t, 2, p.Pos.Map)
	assert.Equal(t, 10, p.Pos.X)
	assert.Equal(t, 10, p.Pos.Y)
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_CHANGE_MAP)

	d.State.Update(func(w *world.World) {
		assert.Zero(t, w.OccupantAt(1, 59, 50), "old tile must be vacated")
	})
}

func TestWalkOffEdgeUsesCurrentTileExit(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")

	// An exit sitting on the northern border; stepping off the map from
	// it travels through it instead of turning in place.
	d.State.Update(func(w *world.World) {
		w.Map(1).Exits[world.Coord{X: 50, Y: 1}] = world.ExitTile{DestMap: 2, DestX: 50, DestY: 99}
	})
	movePlayer(t, d, s, 1, 50, 1)

	d.handleWalk(s, pk(packet.C_OPCODE_WALK, func(w *packet.Writer) { w.WriteC(world.HeadingNorth) }))
	p := getPlayer(d, s)
	assert.Equal(t, 2, p.Pos.Map)
	assert.Equal(t, 50, p.Pos.X)
	assert.Equal(t, 99, p.Pos.Y)
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_CHANGE_MAP)
}

func TestWalkOffEdgeWithoutExitTurnsInPlace(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	movePlayer(t, d, s, 1, 50, 1)

	d.handleWalk(s, pk(packet.C_OPCODE_WALK, func(w *packet.Writer) { w.WriteC(world.HeadingNorth) }))
	p := getPlayer(d, s)
	assert.Equal(t, 1, p.Pos.Map)
	assert.Equal(t, 1, p.Pos.Y, "the border step must not move")
	assert.Equal(t, world.HeadingNorth, p.Pos.Heading)
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_POS_UPDATE, "client is snapped back")
}

func TestWalkWhileDeadRefused(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	d.State.Update(func(w *world.World) { w.PlayerBySession(s.ID).Dead = true })

	d.handleWalk(s, pk(packet.C_OPCODE_WALK, func(w *packet.Writer) { w.WriteC(world.HeadingEast) }))
	assert.Equal(t, 50, getPlayer(d, s).Pos.X)
}

func TestAttackInSafeZoneRefused(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")

	d.handleAttack(s, pk(packet.C_OPCODE_ATTACK, nil))
	ops := drainOpcodes(s)
	assert.Contains(t, ops, packet.S_OPCODE_CONSOLE_MSG)
	assert.NotContains(t, ops, packet.S_OPCODE_MULTI_MESSAGE)
}

func TestAttackKillsNpcDropsLootSchedulesRespawn(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	movePlayer(t, d, s, 2, 20, 20)
	wolf := spawnNpcAt(t, d, npcWolf, 2, 21, 20)

	d.handleChangeHeading(s, pk(packet.C_OPCODE_CHANGE_HEADING, func(w *packet.Writer) { w.WriteC(world.HeadingEast) }))
	drainOpcodes(s)

	// Fists max_hit 2 minus defense 1 = 1 damage; the wolf has 1 HP.
	d.handleAttack(s, pk(packet.C_OPCODE_ATTACK, nil))

	p := getPlayer(d, s)
	assert.Equal(t, 25, p.Exp, "kill pays the template exp")
	assert.Equal(t, 1, d.Respawner.PendingCount())

	d.State.Update(func(w *world.World) {
		assert.Nil(t, w.Npc(wolf.CharIndex), "dead wolf is gone")
		g := w.GroundItemAt(2, 21, 20)
		require.NotNil(t, g, "loot lands on the death tile")
		assert.Equal(t, itemPelt, g.ItemID)
	})
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_MULTI_MESSAGE)
}

func TestAttackUnattackableNpc(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	movePlayer(t, d, s, 2, 20, 20)
	merchant := spawnNpcAt(t, d, npcMerchant, 2, 21, 20)

	d.handleChangeHeading(s, pk(packet.C_OPCODE_CHANGE_HEADING, func(w *packet.Writer) { w.WriteC(world.HeadingEast) }))
	d.handleAttack(s, pk(packet.C_OPCODE_ATTACK, nil))

	d.State.Update(func(w *world.World) {
		assert.NotNil(t, w.Npc(merchant.CharIndex))
	})
}

func TestPickupAndDrop(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	d.State.Update(func(w *world.World) {
		require.NoError(t, w.AddGroundItem(1, 50, 50, world.GroundItem{
			ItemID: itemPelt, Quantity: 2, DroppedAt: time.Now(),
		}))
	})

	d.handlePickup(s, pk(packet.C_OPCODE_PICKUP, nil))
	p := getPlayer(d, s)
	slot := 0
	for i := 1; i <= world.InventorySlots; i++ {
		if p.Inventory[i].ItemID == itemPelt {
			slot = i
			break
		}
	}
	require.NotZero(t, slot, "pelt must land in the inventory")
	assert.Equal(t, 2, p.Inventory[slot].Quantity)
	d.State.Update(func(w *world.World) {
		assert.Nil(t, w.GroundItemAt(1, 50, 50))
	})

	d.handleDrop(s, pk(packet.C_OPCODE_DROP, func(w *packet.Writer) {
		w.WriteC(byte(slot))
		w.WriteH(2)
	}))
	p = getPlayer(d, s)
	assert.Zero(t, p.Inventory[slot].Quantity)
	d.State.Update(func(w *world.World) {
		g := w.GroundItemAt(1, 50, 50)
		require.NotNil(t, g)
		assert.Equal(t, 2, g.Quantity)
	})
}

func TestPickupGoldGoesToPurse(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	d.State.Update(func(w *world.World) {
		require.NoError(t, w.AddGroundItem(1, 50, 50, world.GroundItem{
			ItemID: data.GoldItemID, Quantity: 75, DroppedAt: time.Now(),
		}))
	})

	d.handlePickup(s, pk(packet.C_OPCODE_PICKUP, nil))
	assert.Equal(t, 75, getPlayer(d, s).Gold)
}

func TestUsePotionHealsAndConsumes(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")

	var slot int
	d.State.Update(func(w *world.World) {
		p := w.PlayerBySession(s.ID)
		p.HP = 5
		for i := 1; i <= world.InventorySlots; i++ {
			if p.Inventory[i].ItemID == itemPotion {
				slot = i
			}
		}
	})
	require.NotZero(t, slot, "newbie kit includes a potion")

	d.handleUseItem(s, pk(packet.C_OPCODE_USE_ITEM, func(w *packet.Writer) { w.WriteC(byte(slot)) }))
	p := getPlayer(d, s)
	assert.Equal(t, 20, p.HP, "5 + 15 restored")
	assert.Zero(t, p.Inventory[slot].Quantity, "single potion consumed")
}

func TestEquipToggle(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")

	var swordSlot int
	d.State.Update(func(w *world.World) {
		p := w.PlayerBySession(s.ID)
		for i := 1; i <= world.InventorySlots; i++ {
			if p.Inventory[i].ItemID == itemSword {
				swordSlot = i
			}
		}
	})
	require.NotZero(t, swordSlot)

	d.handleEquipItem(s, pk(packet.C_OPCODE_EQUIP_ITEM, func(w *packet.Writer) { w.WriteC(byte(swordSlot)) }))
	assert.True(t, getPlayer(d, s).Inventory[swordSlot].Equipped)

	// Toggling again unequips.
	d.handleEquipItem(s, pk(packet.C_OPCODE_EQUIP_ITEM, func(w *packet.Writer) { w.WriteC(byte(swordSlot)) }))
	assert.False(t, getPlayer(d, s).Inventory[swordSlot].Equipped)
}

func TestCommerceBuy(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	spawnNpcAt(t, d, npcMerchant, 1, 51, 50)
	d.State.Update(func(w *world.World) { w.PlayerBySession(s.ID).Gold = 200 })

	d.handleDoubleClick(s, pk(packet.C_OPCODE_DOUBLE_CLICK, func(w *packet.Writer) {
		w.WriteC(51)
		w.WriteC(50)
	}))
	require.NotZero(t, s.ActiveMerchant, "double click opens the trade window")
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_COMMERCE_INIT)

	d.handleCommerceBuy(s, pk(packet.C_OPCODE_COMMERCE_BUY, func(w *packet.Writer) {
		w.WriteC(1) // stock slot 1: the sword, 150 gold
		w.WriteH(1)
	}))
	p := getPlayer(d, s)
	assert.Equal(t, 50, p.Gold)
	total := 0
	for i := 1; i <= world.InventorySlots; i++ {
		if p.Inventory[i].ItemID == itemSword {
			total += p.Inventory[i].Quantity
		}
	}
	assert.Equal(t, 2, total, "newbie sword plus the bought one")
}

func TestCommerceBuyTooExpensive(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	spawnNpcAt(t, d, npcMerchant, 1, 51, 50)

	d.handleDoubleClick(s, pk(packet.C_OPCODE_DOUBLE_CLICK, func(w *packet.Writer) {
		w.WriteC(51)
		w.WriteC(50)
	}))
	d.handleCommerceBuy(s, pk(packet.C_OPCODE_COMMERCE_BUY, func(w *packet.Writer) {
		w.WriteC(1)
		w.WriteH(1)
	}))
	assert.Zero(t, getPlayer(d, s).Gold)
}

func TestCommerceWindowClosesWhenPlayerWalksAway(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	spawnNpcAt(t, d, npcMerchant, 1, 51, 50)

	d.handleDoubleClick(s, pk(packet.C_OPCODE_DOUBLE_CLICK, func(w *packet.Writer) {
		w.WriteC(51)
		w.WriteC(50)
	}))
	require.NotZero(t, s.ActiveMerchant)
	movePlayer(t, d, s, 1, 30, 30)

	d.handleCommerceBuy(s, pk(packet.C_OPCODE_COMMERCE_BUY, func(w *packet.Writer) {
		w.WriteC(1)
		w.WriteH(1)
	}))
	assert.Zero(t, s.ActiveMerchant)
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_COMMERCE_END)
}

func TestBankGoldDepositAndExtract(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	spawnNpcAt(t, d, npcBanker, 1, 51, 50)
	d.State.Update(func(w *world.World) { w.PlayerBySession(s.ID).Gold = 100 })

	d.handleDoubleClick(s, pk(packet.C_OPCODE_DOUBLE_CLICK, func(w *packet.Writer) {
		w.WriteC(51)
		w.WriteC(50)
	}))
	require.NotZero(t, s.ActiveBanker)

	d.handleBankDeposit(s, pk(packet.C_OPCODE_BANK_DEPOSIT, func(w *packet.Writer) {
		w.WriteC(0) // slot 0 = gold
		w.WriteH(60)
	}))
	p := getPlayer(d, s)
	assert.Equal(t, 40, p.Gold)
	assert.Equal(t, 60, p.BankGold)

	d.handleBankExtract(s, pk(packet.C_OPCODE_BANK_EXTRACT, func(w *packet.Writer) {
		w.WriteC(0)
		w.WriteH(60)
	}))
	p = getPlayer(d, s)
	assert.Equal(t, 100, p.Gold)
	assert.Zero(t, p.BankGold)
}

func TestBankItemDepositPersists(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	spawnNpcAt(t, d, npcBanker, 1, 51, 50)

	var slot int
	var userID int32
	d.State.Update(func(w *world.World) {
		p := w.PlayerBySession(s.ID)
		userID = p.UserID
		for i := 1; i <= world.InventorySlots; i++ {
			if p.Inventory[i].ItemID == itemPotion {
				slot = i
			}
		}
	})
	require.NotZero(t, slot)

	d.handleDoubleClick(s, pk(packet.C_OPCODE_DOUBLE_CLICK, func(w *packet.Writer) {
		w.WriteC(51)
		w.WriteC(50)
	}))
	d.handleBankDeposit(s, pk(packet.C_OPCODE_BANK_DEPOSIT, func(w *packet.Writer) {
		w.WriteC(byte(slot))
		w.WriteH(1)
	}))

	assert.Zero(t, getPlayer(d, s).Inventory[slot].Quantity)
	ctx, cancel := d.ctx()
	defer cancel()
	vault, err := d.Players.BankVault(ctx, userID)
	require.NoError(t, err)
	found := false
	for i := 1; i <= persist.BankSlots; i++ {
		if vault[i].ItemID == itemPotion && vault[i].Quantity == 1 {
			found = true
		}
	}
	assert.True(t, found, "deposit must reach the stored vault")
}

func TestPartyLifecycle(t *testing.T) {
	d := newDeps(t)
	alice := newSession(t, d)
	createChar(t, d, alice, "alice")
	bob := newSession(t, d)
	createChar(t, d, bob, "bobby")

	d.handlePartyCreate(alice, pk(packet.C_OPCODE_PARTY_CREATE, nil))
	require.NotZero(t, getPlayer(d, alice).PartyID)

	d.handlePartyInvite(alice, pk(packet.C_OPCODE_PARTY_INVITE, func(w *packet.Writer) {
		w.WriteS("bobby")
	}))
	require.NotZero(t, getPlayer(d, bob).PendingPartyInvite)

	d.handlePartyAccept(bob, pk(packet.C_OPCODE_PARTY_ACCEPT, nil))
	pa, pb := getPlayer(d, alice), getPlayer(d, bob)
	assert.Equal(t, pa.PartyID, pb.PartyID)

	// Leader leaves: the party survives under the remaining member.
	d.handlePartyLeave(alice, pk(packet.C_OPCODE_PARTY_LEAVE, nil))
	pa, pb = getPlayer(d, alice), getPlayer(d, bob)
	assert.Zero(t, pa.PartyID)
	require.NotZero(t, pb.PartyID)
	d.State.Update(func(w *world.World) {
		party := w.Party(pb.PartyID)
		require.NotNil(t, party)
		assert.Equal(t, pb.UserID, party.Leader)
	})
}

func TestPartyKillSharesExp(t *testing.T) {
	d := newDeps(t)
	alice := newSession(t, d)
	createChar(t, d, alice, "alice")
	bob := newSession(t, d)
	createChar(t, d, bob, "bobby")

	d.handlePartyCreate(alice, pk(packet.C_OPCODE_PARTY_CREATE, nil))
	d.handlePartyInvite(alice, pk(packet.C_OPCODE_PARTY_INVITE, func(w *packet.Writer) {
		w.WriteS("bobby")
	}))
	d.handlePartyAccept(bob, pk(packet.C_OPCODE_PARTY_ACCEPT, nil))

	movePlayer(t, d, alice, 2, 20, 20)
	movePlayer(t, d, bob, 2, 20, 21)
	spawnNpcAt(t, d, npcWolf, 2, 21, 20)
	d.handleChangeHeading(alice, pk(packet.C_OPCODE_CHANGE_HEADING, func(w *packet.Writer) { w.WriteC(world.HeadingEast) }))
	d.handleAttack(alice, pk(packet.C_OPCODE_ATTACK, nil))

	// 25 exp over two present members: 12 each.
	assert.Equal(t, 12, getPlayer(d, alice).Exp)
	assert.Equal(t, 12, getPlayer(d, bob).Exp)
}

func TestClanFoundRequiresLevel(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")

	d.handleClanFound(s, pk(packet.C_OPCODE_CLAN_FOUND, func(w *packet.Writer) {
		w.WriteS("Legends")
	}))
	assert.Zero(t, getPlayer(d, s).ClanID, "level 1 cannot found a clan")

	d.State.Update(func(w *world.World) { w.PlayerBySession(s.ID).Level = 10 })
	d.handleClanFound(s, pk(packet.C_OPCODE_CLAN_FOUND, func(w *packet.Writer) {
		w.WriteS("Legends")
	}))
	p := getPlayer(d, s)
	require.NotZero(t, p.ClanID)

	ctx, cancel := d.ctx()
	defer cancel()
	clans, err := d.ClanRepo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, clans, 1)
	assert.Equal(t, "Legends", clans[0].Name)
	assert.Equal(t, p.UserID, clans[0].Leader)
}

func TestClanInviteAcceptLeave(t *testing.T) {
	d := newDeps(t)
	alice := newSession(t, d)
	createChar(t, d, alice, "alice")
	bob := newSession(t, d)
	createChar(t, d, bob, "bobby")

	d.State.Update(func(w *world.World) { w.PlayerBySession(alice.ID).Level = 10 })
	d.handleClanFound(alice, pk(packet.C_OPCODE_CLAN_FOUND, func(w *packet.Writer) {
		w.WriteS("Legends")
	}))
	require.NotZero(t, getPlayer(d, alice).ClanID)

	d.handleClanInvite(alice, pk(packet.C_OPCODE_CLAN_INVITE, func(w *packet.Writer) {
		w.WriteS("bobby")
	}))
	d.handleClanAccept(bob, pk(packet.C_OPCODE_CLAN_ACCEPT, nil))
	assert.Equal(t, getPlayer(d, alice).ClanID, getPlayer(d, bob).ClanID)

	d.handleClanLeave(bob, pk(packet.C_OPCODE_CLAN_LEAVE, nil))
	assert.Zero(t, getPlayer(d, bob).ClanID)
	assert.NotZero(t, getPlayer(d, alice).ClanID, "clan survives a member leaving")
}

func TestSignAndDoor(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")

	d.handleLeftClick(s, pk(packet.C_OPCODE_LEFT_CLICK, func(w *packet.Writer) {
		w.WriteC(50)
		w.WriteC(49)
	}))
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_SHOW_SIGNAL)

	movePlayer(t, d, s, 1, 40, 41)
	d.handleDoor(s, pk(packet.C_OPCODE_DOOR, func(w *packet.Writer) {
		w.WriteC(40)
		w.WriteC(40)
	}))
	d.State.Update(func(w *world.World) {
		door := w.Map(1).Doors[world.Coord{X: 40, Y: 40}]
		assert.True(t, door.Open, "closed door toggles open")
	})
	assert.Contains(t, drainOpcodes(s), packet.S_OPCODE_BLOCK_POSITION)
}

func TestDisconnectVacatesTileAndSaves(t *testing.T) {
	d := newDeps(t)
	s := newSession(t, d)
	createChar(t, d, s, "alice")
	p := getPlayer(d, s)
	d.State.Update(func(w *world.World) { w.PlayerBySession(s.ID).Gold = 321 })

	d.Disconnect(s)
	d.State.Update(func(w *world.World) {
		assert.Nil(t, w.PlayerBySession(s.ID))
		assert.Zero(t, w.OccupantAt(1, 50, 50))
	})

	ctx, cancel := d.ctx()
	defer cancel()
	loaded, err := d.Players.Load(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, 321, loaded.Gold)
}

func TestChatReachesNeighbor(t *testing.T) {
	d := newDeps(t)
	alice := newSession(t, d)
	createChar(t, d, alice, "alice")
	bob := newSession(t, d)
	createChar(t, d, bob, "bobby")
	movePlayer(t, d, bob, 1, 52, 50)
	drainOpcodes(alice)
	drainOpcodes(bob)

	d.handleTalk(alice, pk(packet.C_OPCODE_TALK, func(w *packet.Writer) {
		w.WriteU("hello there")
	}))
	assert.Contains(t, drainOpcodes(bob), packet.S_OPCODE_CHAT_OVER_HEAD)
	assert.Contains(t, drainOpcodes(alice), packet.S_OPCODE_CHAT_OVER_HEAD, "speaker sees their own words")
}

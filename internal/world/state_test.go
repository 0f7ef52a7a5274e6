package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(t *testing.T) *State {
	t.Helper()
	m1 := NewGameMap(1)
	m2 := NewGameMap(2)
	m1.Exits[Coord{50, 1}] = ExitTile{DestMap: 2, DestX: 50, DestY: 99}
	return NewState(map[int]*GameMap{1: m1, 2: m2}, 12)
}

func testPlayer(userID int32, mapID, x, y int) *Player {
	return &Player{
		CharIndex: NextPlayerCharIndex(),
		UserID:    userID,
		Username:  "user",
		SessionID: uint64(userID),
		Pos:       Position{Map: mapID, X: x, Y: y, Heading: HeadingSouth},
		HP:        100, MaxHP: 100,
	}
}

func TestAddPlayerClaimsTile(t *testing.T) {
	s := testState(t)
	p := testPlayer(1, 1, 10, 10)
	s.Update(func(w *World) {
		require.NoError(t, w.AddPlayer(p))
		assert.Equal(t, p.CharIndex, w.OccupantAt(1, 10, 10))
		assert.ErrorIs(t, w.CanMoveTo(1, 10, 10), ErrTileOccupied)
	})
}

func TestAddPlayerTwiceSameUser(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		require.NoError(t, w.AddPlayer(testPlayer(1, 1, 10, 10)))
		p2 := testPlayer(1, 1, 20, 20)
		assert.ErrorIs(t, w.AddPlayer(p2), ErrAlreadyOnline)
	})
}

func TestAddPlayerOccupiedSpawnRelocates(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		require.NoError(t, w.AddPlayer(testPlayer(1, 1, 10, 10)))
		p2 := testPlayer(2, 1, 10, 10)
		require.NoError(t, w.AddPlayer(p2))
		assert.False(t, p2.Pos.X == 10 && p2.Pos.Y == 10, "second player must land elsewhere")
		assert.Equal(t, p2.CharIndex, w.OccupantAt(1, p2.Pos.X, p2.Pos.Y))
	})
}

func TestMoveEntitySwapsOccupancy(t *testing.T) {
	s := testState(t)
	p := testPlayer(1, 1, 10, 10)
	s.Update(func(w *World) {
		require.NoError(t, w.AddPlayer(p))
		prev, err := w.MoveEntity(p.CharIndex, 10, 9)
		require.NoError(t, err)
		assert.Equal(t, 10, prev.X)
		assert.Equal(t, 10, prev.Y)
		assert.Equal(t, int32(0), w.OccupantAt(1, 10, 10))
		assert.Equal(t, p.CharIndex, w.OccupantAt(1, 10, 9))
		assert.Equal(t, HeadingNorth, p.Pos.Heading)
	})
}

func TestMoveEntityBlockedLeavesStateUntouched(t *testing.T) {
	s := testState(t)
	p := testPlayer(1, 1, 10, 10)
	s.Update(func(w *World) {
		w.Map(1).SetBlocked(11, 10, true)
		require.NoError(t, w.AddPlayer(p))
		_, err := w.MoveEntity(p.CharIndex, 11, 10)
		assert.ErrorIs(t, err, ErrTileBlocked)
		assert.Equal(t, 10, p.Pos.X)
		assert.Equal(t, p.CharIndex, w.OccupantAt(1, 10, 10))
	})
}

func TestMoveEntityIntoOccupied(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		p1 := testPlayer(1, 1, 10, 10)
		p2 := testPlayer(2, 1, 11, 10)
		require.NoError(t, w.AddPlayer(p1))
		require.NoError(t, w.AddPlayer(p2))
		_, err := w.MoveEntity(p1.CharIndex, 11, 10)
		assert.ErrorIs(t, err, ErrTileOccupied)
	})
}

func TestRemoveEntityIdempotentAndFreesTile(t *testing.T) {
	s := testState(t)
	p := testPlayer(1, 1, 10, 10)
	s.Update(func(w *World) {
		require.NoError(t, w.AddPlayer(p))
		assert.True(t, w.RemoveEntity(p.CharIndex))
		assert.False(t, w.RemoveEntity(p.CharIndex))
		assert.NoError(t, w.CanMoveTo(1, 10, 10))
		assert.Nil(t, w.Player(p.CharIndex))
		assert.Nil(t, w.PlayerByUser(1))
	})
}

func TestRemoveNpcFreesTileForWalking(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		n := &Npc{CharIndex: NextNpcCharIndex(), TemplateID: 7, Pos: Position{Map: 1, X: 30, Y: 30}}
		require.NoError(t, w.AddNpc(n))
		assert.ErrorIs(t, w.CanMoveTo(1, 30, 30), ErrTileOccupied)
		require.True(t, w.RemoveEntity(n.CharIndex))
		assert.NoError(t, w.CanMoveTo(1, 30, 30))
	})
}

func TestTeleportAcrossMaps(t *testing.T) {
	s := testState(t)
	p := testPlayer(1, 1, 50, 2)
	s.Update(func(w *World) {
		require.NoError(t, w.AddPlayer(p))
		exit, ok := w.ExitAt(1, 50, 1)
		require.True(t, ok)
		prev, err := w.TeleportEntity(p.CharIndex, exit.DestMap, exit.DestX, exit.DestY)
		require.NoError(t, err)
		assert.Equal(t, 1, prev.Map)
		assert.Equal(t, 2, p.Pos.Map)
		assert.Equal(t, int32(0), w.OccupantAt(1, 50, 2))
		assert.Equal(t, p.CharIndex, w.OccupantAt(2, 50, 99))
		assert.Len(t, w.PlayersInMap(1), 0)
		assert.Len(t, w.PlayersInMap(2), 1)
	})
}

func TestTeleportOntoOccupiedRelocates(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		p1 := testPlayer(1, 2, 50, 99)
		p2 := testPlayer(2, 1, 10, 10)
		require.NoError(t, w.AddPlayer(p1))
		require.NoError(t, w.AddPlayer(p2))
		_, err := w.TeleportEntity(p2.CharIndex, 2, 50, 99)
		require.NoError(t, err)
		assert.Equal(t, 2, p2.Pos.Map)
		assert.False(t, p2.Pos.X == 50 && p2.Pos.Y == 99)
	})
}

func TestObserversFilteredByRange(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		near := testPlayer(1, 1, 10, 10)
		near.Session = &fakeSink{}
		far := testPlayer(2, 1, 90, 90)
		far.Session = &fakeSink{}
		require.NoError(t, w.AddPlayer(near))
		require.NoError(t, w.AddPlayer(far))
		assert.Len(t, w.Observers(1, 11, 11, 12), 1)
		assert.Len(t, w.Observers(1, 11, 11, 0), 2)
	})
}

type fakeSink struct{ frames [][]byte }

func (f *fakeSink) Send(data []byte) { f.frames = append(f.frames, data) }

func TestGroundItemLifecycle(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		require.NoError(t, w.AddGroundItem(1, 5, 5, GroundItem{ItemID: 100, Quantity: 3, DroppedAt: time.Now()}))
		require.NoError(t, w.AddGroundItem(1, 5, 5, GroundItem{ItemID: 100, Quantity: 2}))
		g := w.GroundItemAt(1, 5, 5)
		require.NotNil(t, g)
		assert.Equal(t, 5, g.Quantity)

		assert.ErrorIs(t, w.AddGroundItem(1, 5, 5, GroundItem{ItemID: 200, Quantity: 1}), ErrTileHasItem)

		x, y, err := w.DropAt(1, 5, 5, GroundItem{ItemID: 200, Quantity: 1})
		require.NoError(t, err)
		assert.False(t, x == 5 && y == 5)

		got, err := w.RemoveGroundItem(1, 5, 5)
		require.NoError(t, err)
		assert.Equal(t, 100, got.ItemID)
		_, err = w.RemoveGroundItem(1, 5, 5)
		assert.ErrorIs(t, err, ErrNoGroundItem)
	})
}

func TestAddItemStacksUpToCap(t *testing.T) {
	p := &Player{}
	p.Inventory[3] = InvItem{ItemID: 100, Quantity: MaxStackQuantity - 5}

	slot := p.AddItem(100, 5)
	assert.Equal(t, 3, slot, "fills the existing stack")
	assert.Equal(t, MaxStackQuantity, p.Inventory[3].Quantity)

	slot = p.AddItem(100, 1)
	assert.Equal(t, 1, slot, "a full stack overflows into a fresh slot")
	assert.Equal(t, 1, p.Inventory[1].Quantity)
	assert.Equal(t, MaxStackQuantity, p.Inventory[3].Quantity, "the capped stack stays capped")
}

func TestAddItemRejectsBadQuantities(t *testing.T) {
	p := &Player{}
	assert.Zero(t, p.AddItem(100, 0))
	assert.Zero(t, p.AddItem(100, -4))
	assert.Zero(t, p.AddItem(100, MaxStackQuantity+1))

	for s := 1; s <= InventorySlots; s++ {
		p.Inventory[s] = InvItem{ItemID: s, Quantity: 1}
	}
	assert.Zero(t, p.AddItem(999, 1), "no room means no pickup")
}

func TestPartyLifecycle(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		for i := int32(1); i <= 6; i++ {
			require.NoError(t, w.AddPlayer(testPlayer(i, 1, 10+int(i), 10)))
		}
		party, err := w.CreateParty(1)
		require.NoError(t, err)
		assert.Equal(t, int32(1), party.Leader)

		for i := int32(2); i <= 5; i++ {
			require.NoError(t, w.JoinParty(party.ID, i))
		}
		assert.ErrorIs(t, w.JoinParty(party.ID, 6), ErrPartyFull)

		_, err = w.CreateParty(2)
		assert.ErrorIs(t, err, ErrAlreadyInParty)

		_, err = w.KickFromParty(2, 3)
		assert.ErrorIs(t, err, ErrNotPartyLeader)
		_, err = w.KickFromParty(1, 3)
		require.NoError(t, err)
		assert.Equal(t, int32(0), w.PlayerByUser(3).PartyID)

		_, err = w.LeaveParty(1)
		require.NoError(t, err)
		assert.Equal(t, int32(2), w.Party(party.ID).Leader, "leadership passes on leader leave")

		for _, uid := range []int32{2, 4, 5} {
			_, err = w.LeaveParty(uid)
			require.NoError(t, err)
		}
		assert.Nil(t, w.Party(party.ID), "empty party dissolves")
	})
}

func TestClanLifecycle(t *testing.T) {
	s := testState(t)
	s.Update(func(w *World) {
		for i := int32(1); i <= 3; i++ {
			require.NoError(t, w.AddPlayer(testPlayer(i, 1, 10+int(i), 10)))
		}
		c, err := w.FoundClan(1, "Knights", 1)
		require.NoError(t, err)
		require.NoError(t, w.JoinClan(c.ID, 2))
		require.NoError(t, w.JoinClan(c.ID, 3))

		_, err = w.FoundClan(2, "Knights", 2)
		assert.Error(t, err, "duplicate clan name rejected")

		_, err = w.KickFromClan(1, 3)
		require.NoError(t, err)
		assert.Equal(t, int32(0), w.PlayerByUser(3).ClanID)

		_, err = w.LeaveClan(1)
		require.NoError(t, err)
		assert.Equal(t, int32(2), w.Clan(c.ID).Leader)
	})
}

package world

import (
	"sync/atomic"
	"time"
)

// Headings. North decreases Y, south increases it.
const (
	HeadingNorth = 1
	HeadingEast  = 2
	HeadingSouth = 3
	HeadingWest  = 4
)

// HeadingDX and HeadingDY are tile deltas indexed by heading (1-4).
var (
	HeadingDX = [5]int{0, 0, 1, 0, -1}
	HeadingDY = [5]int{0, -1, 0, 1, 0}
)

// HeadingBetween returns the heading implied by a single-tile step, or 0
// when the step is not axis-aligned.
func HeadingBetween(fromX, fromY, toX, toY int) int {
	switch {
	case toY < fromY && toX == fromX:
		return HeadingNorth
	case toX > fromX && toY == fromY:
		return HeadingEast
	case toY > fromY && toX == fromX:
		return HeadingSouth
	case toX < fromX && toY == fromY:
		return HeadingWest
	}
	return 0
}

// Position is a tile address plus facing.
type Position struct {
	Map     int
	X, Y    int
	Heading int
}

// Char indexes are world-unique. Players and NPCs draw from separate ranges
// so either side can be recognized from the index alone.
const NpcCharIndexBase = 10_000

var (
	playerIndexCounter atomic.Int32
	npcIndexCounter    atomic.Int32
)

func init() {
	npcIndexCounter.Store(NpcCharIndexBase)
}

// NextPlayerCharIndex allocates a char index in the player range.
func NextPlayerCharIndex() int32 {
	return playerIndexCounter.Add(1)
}

// NextNpcCharIndex allocates a char index in the NPC range.
func NextNpcCharIndex() int32 {
	return npcIndexCounter.Add(1)
}

// IsNpcIndex reports whether a char index belongs to the NPC range.
func IsNpcIndex(ci int32) bool {
	return ci >= NpcCharIndexBase
}

// Sink is the outbound half of a connection: where encoded packets go.
type Sink interface {
	Send(data []byte)
}

// Slot limits.
const (
	InventorySlots = 20
	SpellbookSlots = 35
)

// InvItem is one inventory or vault slot.
type InvItem struct {
	ItemID   int
	Quantity int
	Equipped bool
}

// Attributes is the rolled attribute block.
type Attributes struct {
	Strength     int
	Agility      int
	Intelligence int
	Charisma     int
	Constitution int
}

// Player is the in-world state of an authenticated user. Mutated only under
// the world lock.
type Player struct {
	CharIndex int32
	UserID    int32
	Username  string
	SessionID uint64
	Session   Sink

	Pos Position

	Class  string
	Race   string
	Gender string
	Head   int
	Body   int

	Level    int
	Exp      int
	Gold     int
	BankGold int

	HP, MaxHP           int
	Mana, MaxMana       int
	Stamina, MaxStamina int
	Hunger, MaxHunger   int
	Thirst, MaxThirst   int

	Attr Attributes
	// Temporary attribute deltas, expired by the modifier effect.
	AttrMods []AttrModifier

	Inventory [InventorySlots + 1]InvItem // slot 1..InventorySlots
	Spellbook [SpellbookSlots + 1]int     // slot → spell id, 0 = empty

	Dead       bool
	Meditating bool
	Resting    bool

	PoisonedUntil    time.Time
	ImmobilizedUntil time.Time
	BlindedUntil     time.Time
	DumbUntil        time.Time
	InvisibleUntil   time.Time

	LastAttackAt time.Time

	PartyID int32
	ClanID  int32

	// Standing invitations, consumed by the accept commands.
	PendingPartyInvite int32
	PendingClanInvite  int32
}

// Invisible reports whether the player is currently invisible.
func (p *Player) Invisible(now time.Time) bool {
	return now.Before(p.InvisibleUntil)
}

// MaxStackQuantity is the largest quantity a single slot may hold. The
// codec encodes quantities as u16, so stacks must never grow past this.
const MaxStackQuantity = 10_000

// FreeInventorySlot returns the first empty slot, preferring a slot already
// stacking the same item, or 0 when the inventory is full.
func (p *Player) FreeInventorySlot(itemID int) int {
	for s := 1; s <= InventorySlots; s++ {
		it := &p.Inventory[s]
		if it.ItemID == itemID && it.Quantity > 0 && it.Quantity < MaxStackQuantity {
			return s
		}
	}
	for s := 1; s <= InventorySlots; s++ {
		if p.Inventory[s].Quantity == 0 {
			return s
		}
	}
	return 0
}

// AddItem places qty of an item into the inventory, stacking onto an
// existing slot only when the whole quantity fits under MaxStackQuantity,
// otherwise taking a fresh slot. Returns the slot used, or 0 when nothing
// could hold the quantity.
func (p *Player) AddItem(itemID, qty int) int {
	if qty <= 0 || qty > MaxStackQuantity {
		return 0
	}
	for s := 1; s <= InventorySlots; s++ {
		it := &p.Inventory[s]
		if it.ItemID == itemID && it.Quantity > 0 && it.Quantity+qty <= MaxStackQuantity {
			it.Quantity += qty
			return s
		}
	}
	for s := 1; s <= InventorySlots; s++ {
		if p.Inventory[s].Quantity == 0 {
			p.Inventory[s] = InvItem{ItemID: itemID, Quantity: qty}
			return s
		}
	}
	return 0
}

// AttrModifier is a temporary buff or debuff on one attribute.
type AttrModifier struct {
	Attribute string // "strength", "agility", ...
	Delta     int
	ExpiresAt time.Time
}

// Npc is a live NPC instance spawned from a template.
type Npc struct {
	CharIndex  int32
	TemplateID int
	Name       string

	Pos Position

	SpawnX, SpawnY int

	HP, MaxHP int

	Hostile    bool
	Attackable bool
	Merchant   bool
	Banker     bool
	Static     bool

	AttackCooldown time.Duration
	LastAttackAt   time.Time
	AggroRange     int // tiles, Manhattan

	RespawnDelay time.Duration
}

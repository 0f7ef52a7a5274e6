package persist

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aogo/server/internal/world"
)

// PlayerRepo stores the durable half of a player: stats, position,
// attributes, status, inventory, bank vault and spellbook.
//
// Key scheme:
//
//	player:{id}            hash: stats, position, status timers
//	player:{id}:inventory  hash: slot → "item:qty:equipped"
//	player:{id}:bank       hash: slot → "item:qty"
//	player:{id}:spellbook  hash: slot → spell id
type PlayerRepo struct {
	kv KV
}

// NewPlayerRepo wires the repo to a store.
func NewPlayerRepo(kv KV) *PlayerRepo {
	return &PlayerRepo{kv: kv}
}

// Exists reports whether a character record exists for the user.
func (r *PlayerRepo) Exists(ctx context.Context, userID int32) (bool, error) {
	fields, err := r.kv.HGetAll(ctx, playerKey(userID))
	if err != nil {
		return false, err
	}
	return len(fields) > 0, nil
}

// Save writes the whole durable state of a player. Called on logout, map
// change and periodically by the autosave effect.
func (r *PlayerRepo) Save(ctx context.Context, p *world.Player) error {
	fields := map[string]string{
		"username": p.Username,
		"class":    p.Class,
		"race":     p.Race,
		"gender":   p.Gender,
		"head":     itoa(p.Head),
		"body":     itoa(p.Body),

		"map":     itoa(p.Pos.Map),
		"x":       itoa(p.Pos.X),
		"y":       itoa(p.Pos.Y),
		"heading": itoa(p.Pos.Heading),

		"level":     itoa(p.Level),
		"exp":       itoa(p.Exp),
		"gold":      itoa(p.Gold),
		"bank_gold": itoa(p.BankGold),

		"hp":      itoa(p.HP),
		"max_hp":  itoa(p.MaxHP),
		"mana":    itoa(p.Mana),
		"max_mana": itoa(p.MaxMana),
		"stamina": itoa(p.Stamina),
		"max_stamina": itoa(p.MaxStamina),
		"hunger":  itoa(p.Hunger),
		"thirst":  itoa(p.Thirst),

		"strength":     itoa(p.Attr.Strength),
		"agility":      itoa(p.Attr.Agility),
		"intelligence": itoa(p.Attr.Intelligence),
		"charisma":     itoa(p.Attr.Charisma),
		"constitution": itoa(p.Attr.Constitution),

		"dead":    boolStr(p.Dead),
		"clan_id": itoa(int(p.ClanID)),

		"poisoned_until":    timeStr(p.PoisonedUntil),
		"immobilized_until": timeStr(p.ImmobilizedUntil),
	}
	return r.kv.Pipelined(ctx, func(pipe Pipe) {
		pipe.HSet(playerKey(p.UserID), fields)
		writeSlots(pipe, invKey(p.UserID), encodeInventory(p.Inventory[:]))
		writeSpellbook(pipe, p.UserID, p.Spellbook[:])
	})
}

// Load reads a player record into a fresh Player. Session wiring and char
// index are the caller's job.
func (r *PlayerRepo) Load(ctx context.Context, userID int32) (*world.Player, error) {
	fields, err := r.kv.HGetAll(ctx, playerKey(userID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	p := &world.Player{
		UserID:   userID,
		Username: fields["username"],
		Class:    fields["class"],
		Race:     fields["race"],
		Gender:   fields["gender"],
		Head:     atoi(fields["head"]),
		Body:     atoi(fields["body"]),
		Pos: world.Position{
			Map:     atoi(fields["map"]),
			X:       atoi(fields["x"]),
			Y:       atoi(fields["y"]),
			Heading: atoi(fields["heading"]),
		},
		Level:      atoi(fields["level"]),
		Exp:        atoi(fields["exp"]),
		Gold:       atoi(fields["gold"]),
		BankGold:   atoi(fields["bank_gold"]),
		HP:         atoi(fields["hp"]),
		MaxHP:      atoi(fields["max_hp"]),
		Mana:       atoi(fields["mana"]),
		MaxMana:    atoi(fields["max_mana"]),
		Stamina:    atoi(fields["stamina"]),
		MaxStamina: atoi(fields["max_stamina"]),
		Hunger:     atoi(fields["hunger"]),
		Thirst:     atoi(fields["thirst"]),
		Attr: world.Attributes{
			Strength:     atoi(fields["strength"]),
			Agility:      atoi(fields["agility"]),
			Intelligence: atoi(fields["intelligence"]),
			Charisma:     atoi(fields["charisma"]),
			Constitution: atoi(fields["constitution"]),
		},
		Dead:             fields["dead"] == "1",
		ClanID:           int32(atoi(fields["clan_id"])),
		PoisonedUntil:    parseTime(fields["poisoned_until"]),
		ImmobilizedUntil: parseTime(fields["immobilized_until"]),
	}
	if p.Pos.Heading == 0 {
		p.Pos.Heading = world.HeadingSouth
	}

	inv, err := r.kv.HGetAll(ctx, invKey(userID))
	if err != nil {
		return nil, err
	}
	decodeInventory(inv, p.Inventory[:])

	sb, err := r.kv.HGetAll(ctx, spellbookKey(userID))
	if err != nil {
		return nil, err
	}
	for slotStr, idStr := range sb {
		slot := atoi(slotStr)
		if slot >= 1 && slot <= world.SpellbookSlots {
			p.Spellbook[slot] = atoi(idStr)
		}
	}
	return p, nil
}

// SaveInventory persists just the inventory hash.
func (r *PlayerRepo) SaveInventory(ctx context.Context, userID int32, inv []world.InvItem) error {
	return r.kv.Pipelined(ctx, func(pipe Pipe) {
		writeSlots(pipe, invKey(userID), encodeInventory(inv))
	})
}

// BankVault loads the bank slots of a user. Slot 0 is unused.
func (r *PlayerRepo) BankVault(ctx context.Context, userID int32) ([]world.InvItem, error) {
	raw, err := r.kv.HGetAll(ctx, bankKey(userID))
	if err != nil {
		return nil, err
	}
	vault := make([]world.InvItem, BankSlots+1)
	decodeInventory(raw, vault)
	return vault, nil
}

// SaveBankVault persists the bank slots of a user.
func (r *PlayerRepo) SaveBankVault(ctx context.Context, userID int32, vault []world.InvItem) error {
	return r.kv.Pipelined(ctx, func(pipe Pipe) {
		writeSlots(pipe, bankKey(userID), encodeInventory(vault))
	})
}

// SaveVaultAndInventory lands both sides of a bank transfer in one atomic
// batch, so an item moved between vault and inventory can never be stored
// in only one of them.
func (r *PlayerRepo) SaveVaultAndInventory(ctx context.Context, userID int32, vault, inv []world.InvItem) error {
	return r.kv.Pipelined(ctx, func(pipe Pipe) {
		writeSlots(pipe, bankKey(userID), encodeInventory(vault))
		writeSlots(pipe, invKey(userID), encodeInventory(inv))
	})
}

// BankSlots is the size of the bank vault.
const BankSlots = 40

func writeSpellbook(pipe Pipe, userID int32, spellbook []int) {
	fields := make(map[string]string)
	var gone []string
	for slot := 1; slot < len(spellbook); slot++ {
		if spellbook[slot] != 0 {
			fields[itoa(slot)] = itoa(spellbook[slot])
		} else {
			gone = append(gone, itoa(slot))
		}
	}
	pipe.HDel(spellbookKey(userID), gone...)
	pipe.HSet(spellbookKey(userID), fields)
}

// writeSlots replaces a slot hash: set occupied slots, delete emptied ones.
func writeSlots(pipe Pipe, key string, enc slotEncoding) {
	pipe.HDel(key, enc.gone...)
	pipe.HSet(key, enc.fields)
}

type slotEncoding struct {
	fields map[string]string
	gone   []string
}

func encodeInventory(slots []world.InvItem) slotEncoding {
	enc := slotEncoding{fields: make(map[string]string)}
	for slot := 1; slot < len(slots); slot++ {
		it := slots[slot]
		if it.Quantity > 0 {
			enc.fields[itoa(slot)] = fmt.Sprintf("%d:%d:%s", it.ItemID, it.Quantity, boolStr(it.Equipped))
		} else {
			enc.gone = append(enc.gone, itoa(slot))
		}
	}
	return enc
}

func decodeInventory(raw map[string]string, into []world.InvItem) {
	for slotStr, v := range raw {
		slot := atoi(slotStr)
		if slot < 1 || slot >= len(into) {
			continue
		}
		parts := strings.SplitN(v, ":", 3)
		if len(parts) < 2 {
			continue
		}
		it := world.InvItem{ItemID: atoi(parts[0]), Quantity: atoi(parts[1])}
		if len(parts) == 3 {
			it.Equipped = parts[2] == "1"
		}
		into[slot] = it
	}
}

func playerKey(id int32) string    { return fmt.Sprintf("player:%d", id) }
func invKey(id int32) string       { return fmt.Sprintf("player:%d:inventory", id) }
func bankKey(id int32) string      { return fmt.Sprintf("player:%d:bank", id) }
func spellbookKey(id int32) string { return fmt.Sprintf("player:%d:spellbook", id) }

func itoa(v int) string { return strconv.Itoa(v) }

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func timeStr(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Package data loads the static game catalogs: items, spells, NPC
// templates, spawns, merchant stocks, loot tables, character classes and
// map layouts. Catalogs are read once at startup; a malformed or missing
// file aborts the boot rather than running with partial data.
package data

// Item object types, as stored in the item catalog.
const (
	ObjTypeUseOnce  = "use_once"
	ObjTypeWeapon   = "weapon"
	ObjTypeArmor    = "armor"
	ObjTypeHelmet   = "helmet"
	ObjTypeShield   = "shield"
	ObjTypeGold     = "gold"
	ObjTypePotion   = "potion"
	ObjTypeKey      = "key"
	ObjTypeDoor     = "door"
	ObjTypeForum    = "sign"
	ObjTypeScroll   = "scroll"
	ObjTypeMaterial = "material"
)

// GoldItemID is the item id of the currency object.
const GoldItemID = 12

// ObjTypeCode maps catalog type names to the byte codes the client knows.
func ObjTypeCode(t string) int {
	switch t {
	case ObjTypeUseOnce:
		return 1
	case ObjTypeWeapon:
		return 2
	case ObjTypeArmor:
		return 3
	case ObjTypeHelmet:
		return 4
	case ObjTypeShield:
		return 5
	case ObjTypeGold:
		return 6
	case ObjTypePotion:
		return 7
	case ObjTypeKey:
		return 8
	case ObjTypeDoor:
		return 9
	case ObjTypeForum:
		return 10
	case ObjTypeScroll:
		return 11
	default:
		return 0
	}
}

// Item is one entry of the item catalog.
type Item struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	GrhIndex int    `yaml:"grh_index"`

	MinHit int `yaml:"min_hit,omitempty"`
	MaxHit int `yaml:"max_hit,omitempty"`
	MinDef int `yaml:"min_def,omitempty"`
	MaxDef int `yaml:"max_def,omitempty"`

	// Potion effects.
	RestoreHP     int `yaml:"restore_hp,omitempty"`
	RestoreMana   int `yaml:"restore_mana,omitempty"`
	RestoreHunger int `yaml:"restore_hunger,omitempty"`
	RestoreThirst int `yaml:"restore_thirst,omitempty"`

	Value     int  `yaml:"value"`
	Equipable bool `yaml:"equipable,omitempty"`
	Newbie    bool `yaml:"newbie,omitempty"`
}

// Spell targeting modes.
const (
	SpellTargetUser    = "user"
	SpellTargetNPC     = "npc"
	SpellTargetBoth    = "both"
	SpellTargetTerrain = "terrain"
)

// Spell is one entry of the spell catalog. Damage is computed by the
// combat scripts; the catalog holds costs, ranges and cosmetics.
type Spell struct {
	ID        int    `yaml:"id"`
	Name      string `yaml:"name"`
	Target    string `yaml:"target"`
	ManaCost  int    `yaml:"mana_cost"`
	StamCost  int    `yaml:"stam_cost,omitempty"`
	MinDamage int    `yaml:"min_damage,omitempty"`
	MaxDamage int    `yaml:"max_damage,omitempty"`
	HealMin   int    `yaml:"heal_min,omitempty"`
	HealMax   int    `yaml:"heal_max,omitempty"`
	FXIndex   int    `yaml:"fx_index"`
	FXLoops   int    `yaml:"fx_loops"`
	WaveID    int    `yaml:"wave_id"`
	Words     string `yaml:"words"`

	// Status riders.
	Immobilizes bool `yaml:"immobilizes,omitempty"`
	Poisons     bool `yaml:"poisons,omitempty"`
	Blinds      bool `yaml:"blinds,omitempty"`
	RemovesPara bool `yaml:"removes_paralysis,omitempty"`
}

// NpcTemplate is one entry of the NPC catalog.
type NpcTemplate struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Body     int    `yaml:"body"`
	Head     int    `yaml:"head"`
	HP       int    `yaml:"hp"`
	MinHit   int    `yaml:"min_hit"`
	MaxHit   int    `yaml:"max_hit"`
	Defense  int    `yaml:"defense"`
	ExpValue int    `yaml:"exp"`
	GoldMin  int    `yaml:"gold_min"`
	GoldMax  int    `yaml:"gold_max"`

	Hostile    bool `yaml:"hostile"`
	Attackable bool `yaml:"attackable"`
	Static     bool `yaml:"static,omitempty"`
	Merchant   bool `yaml:"merchant,omitempty"`
	Banker     bool `yaml:"banker,omitempty"`

	AggroRange     int     `yaml:"aggro_range,omitempty"`
	AttackCooldown float64 `yaml:"attack_cooldown_s,omitempty"`
	RespawnDelay   float64 `yaml:"respawn_delay_s,omitempty"`

	LootTable int `yaml:"loot_table,omitempty"`
	Stock     int `yaml:"stock,omitempty"` // merchant stock id
}

// Spawn places one NPC template on a map tile at boot.
type Spawn struct {
	TemplateID int `yaml:"npc"`
	Map        int `yaml:"map"`
	X          int `yaml:"x"`
	Y          int `yaml:"y"`
	Count      int `yaml:"count,omitempty"` // default 1
}

// StockEntry is one line a merchant sells.
type StockEntry struct {
	ItemID   int `yaml:"item"`
	Quantity int `yaml:"quantity"` // -1 = unlimited
}

// Stock is a merchant's sell list.
type Stock struct {
	ID    int          `yaml:"id"`
	Items []StockEntry `yaml:"items"`
}

// LootEntry is one possible drop.
type LootEntry struct {
	ItemID   int     `yaml:"item"`
	Quantity int     `yaml:"quantity"`
	Chance   float64 `yaml:"chance"` // 0..1
}

// LootTable is the drop list rolled when an NPC dies.
type LootTable struct {
	ID    int         `yaml:"id"`
	Drops []LootEntry `yaml:"drops"`
}

// Class is one playable character class.
type Class struct {
	Name       string  `yaml:"name"`
	HPPerLevel int     `yaml:"hp_per_level"`
	ManaMult   float64 `yaml:"mana_mult"`
	StartHP    int     `yaml:"start_hp"`
	StartMana  int     `yaml:"start_mana"`
	StartStam  int     `yaml:"start_stam"`
	Magical    bool    `yaml:"magical"`
}

// MapDef is the catalog form of one map: metadata, a blocked bitmap as
// rows of '0'/'1', and the sparse tile annotations.
type MapDef struct {
	ID       int       `yaml:"id"`
	Name     string    `yaml:"name"`
	MusicID  int       `yaml:"music"`
	SafeZone bool      `yaml:"safe,omitempty"`
	Blocked  []string  `yaml:"blocked,omitempty"`
	Exits    []ExitDef `yaml:"exits,omitempty"`
	Doors    []DoorDef `yaml:"doors,omitempty"`
	Signs    []SignDef `yaml:"signs,omitempty"`
}

// ExitDef is one exit tile annotation.
type ExitDef struct {
	X       int `yaml:"x"`
	Y       int `yaml:"y"`
	DestMap int `yaml:"dest_map"`
	DestX   int `yaml:"dest_x"`
	DestY   int `yaml:"dest_y"`
}

// DoorDef is one door tile annotation.
type DoorDef struct {
	X    int  `yaml:"x"`
	Y    int  `yaml:"y"`
	Open bool `yaml:"open,omitempty"`
}

// SignDef is one readable sign annotation.
type SignDef struct {
	X    int    `yaml:"x"`
	Y    int    `yaml:"y"`
	Text string `yaml:"text"`
}

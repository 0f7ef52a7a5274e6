package data

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aogo/server/internal/world"
)

// Catalogs bundles every loaded static table, keyed for lookup.
type Catalogs struct {
	Items      map[int]*Item
	Spells     map[int]*Spell
	Npcs       map[int]*NpcTemplate
	Spawns     []Spawn
	Stocks     map[int]*Stock
	LootTables map[int]*LootTable
	Classes    map[string]*Class
	Maps       map[int]*world.GameMap
}

// Load reads every catalog from dir. Any missing or malformed file is a
// fatal boot error; the server never runs with a partial catalog.
func Load(dir string) (*Catalogs, error) {
	c := &Catalogs{
		Items:      make(map[int]*Item),
		Spells:     make(map[int]*Spell),
		Npcs:       make(map[int]*NpcTemplate),
		Stocks:     make(map[int]*Stock),
		LootTables: make(map[int]*LootTable),
		Classes:    make(map[string]*Class),
	}

	var items []*Item
	if err := loadYAML(dir, "items.yaml", &items); err != nil {
		return nil, err
	}
	for _, it := range items {
		if _, dup := c.Items[it.ID]; dup {
			return nil, fmt.Errorf("items.yaml: duplicate item id %d", it.ID)
		}
		c.Items[it.ID] = it
	}

	var spells []*Spell
	if err := loadYAML(dir, "spells.yaml", &spells); err != nil {
		return nil, err
	}
	for _, sp := range spells {
		c.Spells[sp.ID] = sp
	}

	var npcs []*NpcTemplate
	if err := loadYAML(dir, "npcs.yaml", &npcs); err != nil {
		return nil, err
	}
	for _, n := range npcs {
		c.Npcs[n.ID] = n
	}

	if err := loadYAML(dir, "spawns.yaml", &c.Spawns); err != nil {
		return nil, err
	}
	for i, sp := range c.Spawns {
		if _, ok := c.Npcs[sp.TemplateID]; !ok {
			return nil, fmt.Errorf("spawns.yaml: entry %d references unknown npc %d", i, sp.TemplateID)
		}
	}

	var stocks []*Stock
	if err := loadYAML(dir, "stocks.yaml", &stocks); err != nil {
		return nil, err
	}
	for _, st := range stocks {
		c.Stocks[st.ID] = st
	}

	var loot []*LootTable
	if err := loadYAML(dir, "loot.yaml", &loot); err != nil {
		return nil, err
	}
	for _, lt := range loot {
		c.LootTables[lt.ID] = lt
	}

	var classes []*Class
	if err := loadYAML(dir, "classes.yaml", &classes); err != nil {
		return nil, err
	}
	for _, cl := range classes {
		c.Classes[cl.Name] = cl
	}

	maps, err := LoadMaps(filepath.Join(dir, "maps.yaml"))
	if err != nil {
		return nil, err
	}
	c.Maps = maps

	for i, sp := range c.Spawns {
		if _, ok := c.Maps[sp.Map]; !ok {
			return nil, fmt.Errorf("spawns.yaml: entry %d references unknown map %d", i, sp.Map)
		}
	}
	return c, nil
}

// LoadMaps reads the map catalog and builds runtime maps from it.
func LoadMaps(path string) (map[int]*world.GameMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	var defs []MapDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	out := make(map[int]*world.GameMap, len(defs))
	for _, def := range defs {
		if _, dup := out[def.ID]; dup {
			return nil, fmt.Errorf("maps.yaml: duplicate map id %d", def.ID)
		}
		m, err := buildMap(def)
		if err != nil {
			return nil, err
		}
		out[def.ID] = m
	}

	// Exit destinations must land inside a loaded map.
	for _, m := range out {
		for c, e := range m.Exits {
			if _, ok := out[e.DestMap]; !ok {
				return nil, fmt.Errorf("map %d exit (%d,%d): unknown destination map %d", m.ID, c.X, c.Y, e.DestMap)
			}
			if !world.InBounds(e.DestX, e.DestY) {
				return nil, fmt.Errorf("map %d exit (%d,%d): destination out of bounds", m.ID, c.X, c.Y)
			}
		}
	}
	return out, nil
}

func buildMap(def MapDef) (*world.GameMap, error) {
	m := world.NewGameMap(def.ID)
	m.Name = def.Name
	m.MusicID = def.MusicID
	m.SafeZone = def.SafeZone

	// Blocked rows are y-major, row index 0 = y 1. Rows and maps may be
	// shorter than the full side; anything omitted is walkable.
	if len(def.Blocked) > world.MapSize {
		return nil, fmt.Errorf("map %d: %d blocked rows, max %d", def.ID, len(def.Blocked), world.MapSize)
	}
	for row, line := range def.Blocked {
		if len(line) > world.MapSize {
			return nil, fmt.Errorf("map %d: blocked row %d is %d wide, max %d", def.ID, row, len(line), world.MapSize)
		}
		for col := 0; col < len(line); col++ {
			if line[col] == '1' {
				m.SetBlocked(col+1, row+1, true)
			}
		}
	}

	for _, e := range def.Exits {
		if !world.InBounds(e.X, e.Y) {
			return nil, fmt.Errorf("map %d: exit at (%d,%d) out of bounds", def.ID, e.X, e.Y)
		}
		m.Exits[world.Coord{X: e.X, Y: e.Y}] = world.ExitTile{DestMap: e.DestMap, DestX: e.DestX, DestY: e.DestY}
	}
	for _, d := range def.Doors {
		if !world.InBounds(d.X, d.Y) {
			return nil, fmt.Errorf("map %d: door at (%d,%d) out of bounds", def.ID, d.X, d.Y)
		}
		m.Doors[world.Coord{X: d.X, Y: d.Y}] = &world.Door{Open: d.Open}
	}
	for _, sg := range def.Signs {
		if !world.InBounds(sg.X, sg.Y) {
			return nil, fmt.Errorf("map %d: sign at (%d,%d) out of bounds", def.ID, sg.X, sg.Y)
		}
		m.Signs[world.Coord{X: sg.X, Y: sg.Y}] = sg.Text
	}
	return m, nil
}

func loadYAML(dir, name string, out any) error {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

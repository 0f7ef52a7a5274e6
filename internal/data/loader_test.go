package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aogo/server/internal/world"
)

func writeCatalog(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeCatalog(t, dir, "items.yaml", `
- id: 12
  name: Gold Coins
  type: gold
  grh_index: 511
- id: 100
  name: Short Sword
  type: weapon
  grh_index: 600
  min_hit: 2
  max_hit: 6
  value: 150
  equipable: true
- id: 200
  name: Red Potion
  type: potion
  grh_index: 700
  restore_hp: 20
  value: 30
`)
	writeCatalog(t, dir, "spells.yaml", `
- id: 1
  name: Dart
  target: both
  mana_cost: 10
  min_damage: 4
  max_damage: 9
  fx_index: 2
  fx_loops: 1
  wave_id: 120
  words: "dart"
`)
	writeCatalog(t, dir, "npcs.yaml", `
- id: 500
  name: Snake
  body: 30
  head: 0
  hp: 25
  min_hit: 1
  max_hit: 4
  exp: 50
  gold_min: 1
  gold_max: 10
  hostile: true
  attackable: true
  aggro_range: 6
  attack_cooldown_s: 1.5
  respawn_delay_s: 10
  loot_table: 1
- id: 501
  name: Shopkeeper
  body: 50
  head: 1
  hp: 100
  hostile: false
  attackable: false
  static: true
  merchant: true
  stock: 1
`)
	writeCatalog(t, dir, "spawns.yaml", `
- npc: 500
  map: 1
  x: 40
  y: 40
  count: 2
- npc: 501
  map: 1
  x: 10
  y: 10
`)
	writeCatalog(t, dir, "stocks.yaml", `
- id: 1
  items:
    - item: 100
      quantity: -1
    - item: 200
      quantity: -1
`)
	writeCatalog(t, dir, "loot.yaml", `
- id: 1
  drops:
    - item: 12
      quantity: 5
      chance: 1.0
`)
	writeCatalog(t, dir, "classes.yaml", `
- name: warrior
  hp_per_level: 10
  mana_mult: 0
  start_hp: 20
  start_mana: 0
  start_stam: 100
- name: mage
  hp_per_level: 6
  mana_mult: 2.8
  start_hp: 15
  start_mana: 50
  start_stam: 100
  magical: true
`)
	writeCatalog(t, dir, "maps.yaml", `
- id: 1
  name: Ullathorpe
  music: 3
  blocked:
    - "0000"
    - "0110"
  exits:
    - x: 50
      y: 1
      dest_map: 2
      dest_x: 50
      dest_y: 99
  doors:
    - x: 20
      y: 20
  signs:
    - x: 21
      y: 20
      text: "Welcome"
- id: 2
  name: Wilderness
  music: 5
`)
	return dir
}

func TestLoadFullCatalog(t *testing.T) {
	c, err := Load(fixtureDir(t))
	require.NoError(t, err)

	assert.Equal(t, "Short Sword", c.Items[100].Name)
	assert.Equal(t, ObjTypeGold, c.Items[GoldItemID].Type)
	assert.Equal(t, 10, c.Spells[1].ManaCost)
	assert.True(t, c.Npcs[500].Hostile)
	assert.True(t, c.Npcs[501].Merchant)
	assert.Len(t, c.Spawns, 2)
	assert.Equal(t, 2, c.Spawns[0].Count)
	assert.Len(t, c.Stocks[1].Items, 2)
	assert.InDelta(t, 1.0, c.LootTables[1].Drops[0].Chance, 1e-9)
	assert.True(t, c.Classes["mage"].Magical)
	require.Len(t, c.Maps, 2)
}

func TestLoadMapGeometry(t *testing.T) {
	c, err := Load(fixtureDir(t))
	require.NoError(t, err)

	m := c.Maps[1]
	// Row 2 of the bitmap blocks columns 2 and 3.
	assert.False(t, m.Blocked(1, 2))
	assert.True(t, m.Blocked(2, 2))
	assert.True(t, m.Blocked(3, 2))
	assert.False(t, m.Blocked(4, 2))

	exit, ok := m.ExitAt(50, 1)
	require.True(t, ok)
	assert.Equal(t, 2, exit.DestMap)

	// The door defaults to closed, so its tile blocks until opened.
	assert.True(t, m.Blocked(20, 20))
	m.Doors[world.Coord{X: 20, Y: 20}].Open = true
	assert.False(t, m.Blocked(20, 20))

	assert.Equal(t, "Welcome", m.Signs[world.Coord{X: 21, Y: 20}])
}

func TestLoadMissingFileFails(t *testing.T) {
	dir := fixtureDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "spells.yaml")))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsDanglingReferences(t *testing.T) {
	dir := fixtureDir(t)
	writeCatalog(t, dir, "spawns.yaml", "- npc: 999\n  map: 1\n  x: 1\n  y: 1\n")
	_, err := Load(dir)
	assert.ErrorContains(t, err, "unknown npc")

	dir = fixtureDir(t)
	writeCatalog(t, dir, "maps.yaml", `
- id: 1
  name: Lonely
  exits:
    - x: 1
      y: 1
      dest_map: 9
      dest_x: 5
      dest_y: 5
`)
	_, err = Load(dir)
	assert.ErrorContains(t, err, "unknown destination map")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := fixtureDir(t)
	writeCatalog(t, dir, "items.yaml", "{{not yaml")
	_, err := Load(dir)
	assert.Error(t, err)
}

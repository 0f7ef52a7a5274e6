package world

// MapSize is the fixed side of every map. Tiles are addressed 1..MapSize.
const MapSize = 100

// Coord addresses one tile inside a map.
type Coord struct {
	X, Y int
}

// InBounds reports whether a coordinate pair lies inside a map.
func InBounds(x, y int) bool {
	return x >= 1 && x <= MapSize && y >= 1 && y <= MapSize
}

// ExitTile transports an entering entity to a tile on another map.
type ExitTile struct {
	DestMap int
	DestX   int
	DestY   int
}

// Door is a tile whose blocked state can be toggled at runtime.
type Door struct {
	Open bool
}

// GameMap holds the static layout of one map plus its mutable door states.
// The blocked bitmap is loaded once from the catalog and never written.
type GameMap struct {
	ID       int
	Name     string
	MusicID  int
	SafeZone bool

	blocked [MapSize + 1][MapSize + 1]uint8

	Exits map[Coord]ExitTile
	Doors map[Coord]*Door
	Signs map[Coord]string
}

// NewGameMap builds an empty map shell; the data loader fills the bitmap
// and sparse sets.
func NewGameMap(id int) *GameMap {
	return &GameMap{
		ID:    id,
		Exits: make(map[Coord]ExitTile),
		Doors: make(map[Coord]*Door),
		Signs: make(map[Coord]string),
	}
}

// SetBlocked marks a tile in the static bitmap. Loader only.
func (m *GameMap) SetBlocked(x, y int, blocked bool) {
	if !InBounds(x, y) {
		return
	}
	if blocked {
		m.blocked[x][y] = 1
	} else {
		m.blocked[x][y] = 0
	}
}

// Blocked reports whether a tile is statically blocked or, for door tiles,
// currently closed. Out-of-bounds tiles count as blocked.
func (m *GameMap) Blocked(x, y int) bool {
	if !InBounds(x, y) {
		return true
	}
	if m.blocked[x][y] != 0 {
		return true
	}
	if d, ok := m.Doors[Coord{x, y}]; ok && !d.Open {
		return true
	}
	return false
}

// ExitAt returns the exit tile at a coordinate, if any.
func (m *GameMap) ExitAt(x, y int) (ExitTile, bool) {
	e, ok := m.Exits[Coord{x, y}]
	return e, ok
}

package world

import (
	"fmt"
	"sync"
)

// State is the single in-memory authority for entity positions, tile
// occupancy and ground items. All access goes through Update, which holds
// the world lock for the duration of the callback: command handlers and
// tick effects stage their whole read-then-write sequence inside one
// Update call, so there is no partial move and no torn read.
type State struct {
	mu sync.Mutex
	w  World
}

// NewState builds the world from the loaded map catalog.
func NewState(maps map[int]*GameMap, visionRange int) *State {
	s := &State{
		w: World{
			maps:        maps,
			players:     make(map[int32]*Player),
			byUser:      make(map[int32]*Player),
			bySession:   make(map[uint64]*Player),
			npcs:        make(map[int32]*Npc),
			occupancy:   make(map[int]map[Coord]int32),
			mapPlayers:  make(map[int]map[int32]*Player),
			mapNpcs:     make(map[int]map[int32]*Npc),
			ground:      make(map[int]map[Coord]*GroundItem),
			parties:     make(map[int32]*Party),
			clans:       make(map[int32]*Clan),
			visionRange: visionRange,
		},
	}
	for id := range maps {
		s.w.occupancy[id] = make(map[Coord]int32)
		s.w.mapPlayers[id] = make(map[int32]*Player)
		s.w.mapNpcs[id] = make(map[int32]*Npc)
		s.w.ground[id] = make(map[Coord]*GroundItem)
	}
	return s
}

// Update runs fn under the world lock.
func (s *State) Update(fn func(*World)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.w)
}

// PlayerCount returns the number of players in-world.
func (s *State) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.w.players)
}

// NpcCount returns the number of live NPCs.
func (s *State) NpcCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.w.npcs)
}

// World is the lock-held view of the state. Obtained only through
// State.Update; never retained past the callback.
type World struct {
	maps map[int]*GameMap

	players   map[int32]*Player // char index → player
	byUser    map[int32]*Player
	bySession map[uint64]*Player

	npcs map[int32]*Npc // char index → npc

	occupancy  map[int]map[Coord]int32
	mapPlayers map[int]map[int32]*Player
	mapNpcs    map[int]map[int32]*Npc
	ground     map[int]map[Coord]*GroundItem

	parties map[int32]*Party
	clans   map[int32]*Clan

	visionRange int
}

// Map returns a map by id, or nil.
func (w *World) Map(id int) *GameMap {
	return w.maps[id]
}

// VisionRange is the Chebyshev radius clients can see.
func (w *World) VisionRange() int {
	return w.visionRange
}

// CanMoveTo reports whether a tile can be stepped onto: in a known map,
// in bounds, not statically blocked, not occupied by an entity.
func (w *World) CanMoveTo(mapID, x, y int) error {
	m := w.maps[mapID]
	if m == nil {
		return ErrUnknownMap
	}
	if !InBounds(x, y) {
		return ErrOutOfBounds
	}
	if m.Blocked(x, y) {
		return ErrTileBlocked
	}
	if _, taken := w.occupancy[mapID][Coord{x, y}]; taken {
		return ErrTileOccupied
	}
	return nil
}

// ExitAt returns the exit tile at a position, if any.
func (w *World) ExitAt(mapID, x, y int) (ExitTile, bool) {
	m := w.maps[mapID]
	if m == nil {
		return ExitTile{}, false
	}
	return m.ExitAt(x, y)
}

// --- players ---

// AddPlayer spawns a player into the world, claiming its tile. Fails if the
// user is already in-world or the tile cannot be stood on; on a taken spawn
// tile the nearest free tile within radius 3 is used instead.
func (w *World) AddPlayer(p *Player) error {
	if _, online := w.byUser[p.UserID]; online {
		return ErrAlreadyOnline
	}
	if err := w.CanMoveTo(p.Pos.Map, p.Pos.X, p.Pos.Y); err != nil {
		x, y, ok := w.NearestFreeTile(p.Pos.Map, p.Pos.X, p.Pos.Y, 3)
		if !ok {
			return fmt.Errorf("spawn at map %d (%d,%d): %w", p.Pos.Map, p.Pos.X, p.Pos.Y, err)
		}
		p.Pos.X, p.Pos.Y = x, y
	}
	w.players[p.CharIndex] = p
	w.byUser[p.UserID] = p
	w.bySession[p.SessionID] = p
	w.mapPlayers[p.Pos.Map][p.CharIndex] = p
	w.occupancy[p.Pos.Map][Coord{p.Pos.X, p.Pos.Y}] = p.CharIndex
	return nil
}

// RemoveEntity frees an entity's tile and drops every index entry.
// Idempotent: removing a gone entity is a no-op.
func (w *World) RemoveEntity(charIndex int32) bool {
	if p, ok := w.players[charIndex]; ok {
		delete(w.occupancy[p.Pos.Map], Coord{p.Pos.X, p.Pos.Y})
		delete(w.mapPlayers[p.Pos.Map], charIndex)
		delete(w.players, charIndex)
		delete(w.byUser, p.UserID)
		delete(w.bySession, p.SessionID)
		return true
	}
	if n, ok := w.npcs[charIndex]; ok {
		delete(w.occupancy[n.Pos.Map], Coord{n.Pos.X, n.Pos.Y})
		delete(w.mapNpcs[n.Pos.Map], charIndex)
		delete(w.npcs, charIndex)
		return true
	}
	return false
}

// Player returns a player by char index, or nil.
func (w *World) Player(charIndex int32) *Player {
	return w.players[charIndex]
}

// PlayerByUser returns a player by user id, or nil.
func (w *World) PlayerByUser(userID int32) *Player {
	return w.byUser[userID]
}

// PlayerBySession returns a player by session id, or nil.
func (w *World) PlayerBySession(sessionID uint64) *Player {
	return w.bySession[sessionID]
}

// PlayerByName returns a player by username, or nil.
func (w *World) PlayerByName(name string) *Player {
	for _, p := range w.players {
		if p.Username == name {
			return p
		}
	}
	return nil
}

// AllPlayers iterates every in-world player.
func (w *World) AllPlayers(fn func(*Player)) {
	for _, p := range w.players {
		fn(p)
	}
}

// --- npcs ---

// AddNpc spawns an NPC, claiming its tile; on a taken tile the nearest free
// tile within radius 3 is used.
func (w *World) AddNpc(n *Npc) error {
	if err := w.CanMoveTo(n.Pos.Map, n.Pos.X, n.Pos.Y); err != nil {
		x, y, ok := w.NearestFreeTile(n.Pos.Map, n.Pos.X, n.Pos.Y, 3)
		if !ok {
			return fmt.Errorf("spawn npc %d at map %d (%d,%d): %w", n.TemplateID, n.Pos.Map, n.Pos.X, n.Pos.Y, err)
		}
		n.Pos.X, n.Pos.Y = x, y
	}
	w.npcs[n.CharIndex] = n
	w.mapNpcs[n.Pos.Map][n.CharIndex] = n
	w.occupancy[n.Pos.Map][Coord{n.Pos.X, n.Pos.Y}] = n.CharIndex
	return nil
}

// Npc returns an NPC by char index, or nil.
func (w *World) Npc(charIndex int32) *Npc {
	return w.npcs[charIndex]
}

// AllNpcs iterates every live NPC.
func (w *World) AllNpcs(fn func(*Npc)) {
	for _, n := range w.npcs {
		fn(n)
	}
}

// NpcsInMap returns a snapshot of the NPCs on one map.
func (w *World) NpcsInMap(mapID int) []*Npc {
	out := make([]*Npc, 0, len(w.mapNpcs[mapID]))
	for _, n := range w.mapNpcs[mapID] {
		out = append(out, n)
	}
	return out
}

// PlayersInMap returns a snapshot of the players on one map.
func (w *World) PlayersInMap(mapID int) []*Player {
	out := make([]*Player, 0, len(w.mapPlayers[mapID]))
	for _, p := range w.mapPlayers[mapID] {
		out = append(out, p)
	}
	return out
}

// --- movement ---

// entityPos returns a pointer to the entity's position, or nil.
func (w *World) entityPos(charIndex int32) *Position {
	if p, ok := w.players[charIndex]; ok {
		return &p.Pos
	}
	if n, ok := w.npcs[charIndex]; ok {
		return &n.Pos
	}
	return nil
}

// MoveEntity steps an entity to an adjacent (or same-map) tile. The
// destination is validated with CanMoveTo; on success the source tile is
// freed and the destination claimed in the same critical section. Returns
// the previous position for broadcasting.
func (w *World) MoveEntity(charIndex int32, newX, newY int) (Position, error) {
	pos := w.entityPos(charIndex)
	if pos == nil {
		return Position{}, ErrNoSuchEntity
	}
	if err := w.CanMoveTo(pos.Map, newX, newY); err != nil {
		return Position{}, err
	}
	prev := *pos
	delete(w.occupancy[pos.Map], Coord{pos.X, pos.Y})
	w.occupancy[pos.Map][Coord{newX, newY}] = charIndex
	pos.X, pos.Y = newX, newY
	if h := HeadingBetween(prev.X, prev.Y, newX, newY); h != 0 {
		pos.Heading = h
	}
	return prev, nil
}

// TeleportEntity moves an entity across maps. Blocked destinations are
// allowed (intentional teleport); occupied ones fall back to the nearest
// free tile. Returns the previous position.
func (w *World) TeleportEntity(charIndex int32, destMap, x, y int) (Position, error) {
	pos := w.entityPos(charIndex)
	if pos == nil {
		return Position{}, ErrNoSuchEntity
	}
	if w.maps[destMap] == nil {
		return Position{}, ErrUnknownMap
	}
	if !InBounds(x, y) {
		return Position{}, ErrOutOfBounds
	}
	if _, taken := w.occupancy[destMap][Coord{x, y}]; taken {
		nx, ny, ok := w.NearestFreeTile(destMap, x, y, 3)
		if !ok {
			return Position{}, ErrTileOccupied
		}
		x, y = nx, ny
	}
	prev := *pos

	delete(w.occupancy[prev.Map], Coord{prev.X, prev.Y})
	if p, ok := w.players[charIndex]; ok {
		delete(w.mapPlayers[prev.Map], charIndex)
		w.mapPlayers[destMap][charIndex] = p
	} else if n, ok := w.npcs[charIndex]; ok {
		delete(w.mapNpcs[prev.Map], charIndex)
		w.mapNpcs[destMap][charIndex] = n
	}
	w.occupancy[destMap][Coord{x, y}] = charIndex
	pos.Map, pos.X, pos.Y = destMap, x, y
	return prev, nil
}

// OccupantAt returns the char index occupying a tile, or 0.
func (w *World) OccupantAt(mapID, x, y int) int32 {
	return w.occupancy[mapID][Coord{x, y}]
}

// NearestFreeTile spiral-searches for the closest walkable unoccupied tile.
func (w *World) NearestFreeTile(mapID, x, y, radius int) (int, int, bool) {
	if w.CanMoveTo(mapID, x, y) == nil {
		return x, y, true
	}
	for r := 1; r <= radius; r++ {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if w.CanMoveTo(mapID, x+dx, y+dy) == nil {
					return x + dx, y + dy, true
				}
			}
		}
	}
	return 0, 0, false
}

// --- observers ---

// Observers returns the outbound sinks of every session that should see an
// event at the given tile. A radius <= 0 means the whole map. Positional
// events use the vision range; the client culls what it cannot render.
func (w *World) Observers(mapID, x, y, radius int) []Sink {
	out := make([]Sink, 0, len(w.mapPlayers[mapID]))
	for _, p := range w.mapPlayers[mapID] {
		if p.Session == nil {
			continue
		}
		if radius > 0 {
			dx, dy := p.Pos.X-x, p.Pos.Y-y
			if dx < 0 {
				dx = -dx
			}
			if dy < 0 {
				dy = -dy
			}
			if dx > radius || dy > radius {
				continue
			}
		}
		out = append(out, p.Session)
	}
	return out
}

// --- ground items ---

// AddGroundItem places a stack on a tile. Stacks of the same item merge;
// a different item on the tile is an error (one stack per tile).
func (w *World) AddGroundItem(mapID, x, y int, item GroundItem) error {
	if w.maps[mapID] == nil {
		return ErrUnknownMap
	}
	if !InBounds(x, y) {
		return ErrOutOfBounds
	}
	tiles := w.ground[mapID]
	if cur, ok := tiles[Coord{x, y}]; ok {
		if cur.ItemID != item.ItemID {
			return ErrTileHasItem
		}
		cur.Quantity += item.Quantity
		return nil
	}
	g := item
	tiles[Coord{x, y}] = &g
	return nil
}

// DropAt places a stack on the given tile or, when that tile already holds
// a different item, the nearest item-free tile within radius 2. Returns
// where the stack landed.
func (w *World) DropAt(mapID, x, y int, item GroundItem) (int, int, error) {
	if err := w.AddGroundItem(mapID, x, y, item); err == nil {
		return x, y, nil
	} else if err != ErrTileHasItem {
		return 0, 0, err
	}
	for r := 1; r <= 2; r++ {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				tx, ty := x+dx, y+dy
				if !InBounds(tx, ty) {
					continue
				}
				if m := w.maps[mapID]; m != nil && m.Blocked(tx, ty) {
					continue
				}
				if err := w.AddGroundItem(mapID, tx, ty, item); err == nil {
					return tx, ty, nil
				}
			}
		}
	}
	return 0, 0, ErrTileHasItem
}

// GroundItemAt returns the stack on a tile, or nil.
func (w *World) GroundItemAt(mapID, x, y int) *GroundItem {
	return w.ground[mapID][Coord{x, y}]
}

// RemoveGroundItem removes and returns the whole stack on a tile.
func (w *World) RemoveGroundItem(mapID, x, y int) (GroundItem, error) {
	g, ok := w.ground[mapID][Coord{x, y}]
	if !ok {
		return GroundItem{}, ErrNoGroundItem
	}
	delete(w.ground[mapID], Coord{x, y})
	return *g, nil
}

// AllGroundItems iterates every stack in the world (persistence snapshot).
func (w *World) AllGroundItems(fn func(mapID, x, y int, item GroundItem)) {
	for mapID, tiles := range w.ground {
		for c, g := range tiles {
			fn(mapID, c.X, c.Y, *g)
		}
	}
}

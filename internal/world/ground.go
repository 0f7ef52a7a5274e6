package world

import "time"

// GroundItem is one item stack lying on a tile. At most one stack per tile.
type GroundItem struct {
	ItemID    int
	Quantity  int
	DroppedAt time.Time
	OwnerID   int32 // user id of the dropper, 0 = loot/anyone
}

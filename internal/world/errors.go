package world

import "errors"

var (
	ErrUnknownMap    = errors.New("unknown map")
	ErrOutOfBounds   = errors.New("position out of bounds")
	ErrTileBlocked   = errors.New("tile is blocked")
	ErrTileOccupied  = errors.New("tile is occupied")
	ErrNoSuchEntity  = errors.New("no such entity")
	ErrTileHasItem   = errors.New("tile already holds an item stack")
	ErrNoGroundItem  = errors.New("no item on tile")
	ErrAlreadyOnline = errors.New("user already in world")

	ErrPartyFull      = errors.New("party is full")
	ErrAlreadyInParty = errors.New("already in a party")
	ErrNotInParty     = errors.New("not in a party")
	ErrNotPartyLeader = errors.New("not the party leader")

	ErrClanFull      = errors.New("clan is full")
	ErrAlreadyInClan = errors.New("already in a clan")
	ErrNotInClan     = errors.New("not in a clan")
	ErrNotClanLeader = errors.New("not the clan leader")
)

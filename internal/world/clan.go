package world

// ClanMaxMembers caps clan size, leader included.
const ClanMaxMembers = 50

// Clan is a persistent named guild. Exactly one member is the leader.
// The in-world registry mirrors what the store holds for online play;
// handlers persist every mutation through the clan repository.
type Clan struct {
	ID      int32
	Name    string
	Leader  int32 // user id
	Members []int32
}

// RegisterClan installs a clan loaded from the store into the world registry.
func (w *World) RegisterClan(c *Clan) {
	w.clans[c.ID] = c
}

// Clan returns a clan by id, or nil.
func (w *World) Clan(id int32) *Clan {
	return w.clans[id]
}

// ClanByName returns a clan by name, or nil.
func (w *World) ClanByName(name string) *Clan {
	for _, c := range w.clans {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FoundClan creates a clan led by the given user. The name must be unused
// and the founder clanless.
func (w *World) FoundClan(id int32, name string, leaderUserID int32) (*Clan, error) {
	p := w.byUser[leaderUserID]
	if p == nil {
		return nil, ErrNoSuchEntity
	}
	if p.ClanID != 0 {
		return nil, ErrAlreadyInClan
	}
	if w.ClanByName(name) != nil {
		return nil, ErrAlreadyInClan
	}
	c := &Clan{
		ID:      id,
		Name:    name,
		Leader:  leaderUserID,
		Members: []int32{leaderUserID},
	}
	w.clans[c.ID] = c
	p.ClanID = c.ID
	return c, nil
}

// JoinClan adds a user to a clan, enforcing the size cap.
func (w *World) JoinClan(clanID, userID int32) error {
	c := w.clans[clanID]
	if c == nil {
		return ErrNotInClan
	}
	p := w.byUser[userID]
	if p == nil {
		return ErrNoSuchEntity
	}
	if p.ClanID != 0 {
		return ErrAlreadyInClan
	}
	if len(c.Members) >= ClanMaxMembers {
		return ErrClanFull
	}
	c.Members = append(c.Members, userID)
	p.ClanID = clanID
	return nil
}

// LeaveClan removes a user from their clan. A leaving leader hands
// leadership to the oldest remaining member; the last member dissolves it.
func (w *World) LeaveClan(userID int32) (*Clan, error) {
	p := w.byUser[userID]
	if p == nil {
		return nil, ErrNoSuchEntity
	}
	c := w.clans[p.ClanID]
	if c == nil {
		return nil, ErrNotInClan
	}
	c.Members = removeID(c.Members, userID)
	p.ClanID = 0
	if len(c.Members) == 0 {
		delete(w.clans, c.ID)
		return c, nil
	}
	if c.Leader == userID {
		c.Leader = c.Members[0]
	}
	return c, nil
}

// KickFromClan removes a member at the leader's request.
func (w *World) KickFromClan(leaderUserID, targetUserID int32) (*Clan, error) {
	leader := w.byUser[leaderUserID]
	if leader == nil {
		return nil, ErrNoSuchEntity
	}
	c := w.clans[leader.ClanID]
	if c == nil {
		return nil, ErrNotInClan
	}
	if c.Leader != leaderUserID {
		return nil, ErrNotClanLeader
	}
	if leaderUserID == targetUserID {
		return w.LeaveClan(leaderUserID)
	}
	if !containsID(c.Members, targetUserID) {
		return nil, ErrNotInClan
	}
	c.Members = removeID(c.Members, targetUserID)
	if t := w.byUser[targetUserID]; t != nil {
		t.ClanID = 0
	}
	return c, nil
}

// ClanMembersOnline returns the in-world players of a clan.
func (w *World) ClanMembersOnline(clanID int32) []*Player {
	c := w.clans[clanID]
	if c == nil {
		return nil
	}
	out := make([]*Player, 0, len(c.Members))
	for _, uid := range c.Members {
		if p := w.byUser[uid]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

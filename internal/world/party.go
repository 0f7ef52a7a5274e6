package world

// PartyMaxMembers caps party size, leader included.
const PartyMaxMembers = 5

// Party is a small exp-sharing group. Exactly one member is the leader.
type Party struct {
	ID      int32
	Leader  int32 // user id
	Members []int32
}

var partyIDCounter int32

// CreateParty forms a new party led by the given user. The leader must not
// already belong to one.
func (w *World) CreateParty(leaderUserID int32) (*Party, error) {
	p := w.byUser[leaderUserID]
	if p == nil {
		return nil, ErrNoSuchEntity
	}
	if p.PartyID != 0 {
		return nil, ErrAlreadyInParty
	}
	partyIDCounter++
	party := &Party{
		ID:      partyIDCounter,
		Leader:  leaderUserID,
		Members: []int32{leaderUserID},
	}
	w.parties[party.ID] = party
	p.PartyID = party.ID
	return party, nil
}

// Party returns a party by id, or nil.
func (w *World) Party(id int32) *Party {
	return w.parties[id]
}

// JoinParty adds a user to a party, enforcing the size cap.
func (w *World) JoinParty(partyID, userID int32) error {
	party := w.parties[partyID]
	if party == nil {
		return ErrNotInParty
	}
	p := w.byUser[userID]
	if p == nil {
		return ErrNoSuchEntity
	}
	if p.PartyID != 0 {
		return ErrAlreadyInParty
	}
	if len(party.Members) >= PartyMaxMembers {
		return ErrPartyFull
	}
	party.Members = append(party.Members, userID)
	p.PartyID = partyID
	return nil
}

// LeaveParty removes a user from their party. A leaving leader hands
// leadership to the oldest remaining member; the last member dissolves it.
func (w *World) LeaveParty(userID int32) (*Party, error) {
	p := w.byUser[userID]
	if p == nil {
		return nil, ErrNoSuchEntity
	}
	party := w.parties[p.PartyID]
	if party == nil {
		return nil, ErrNotInParty
	}
	party.Members = removeID(party.Members, userID)
	p.PartyID = 0
	if len(party.Members) == 0 {
		delete(w.parties, party.ID)
		return party, nil
	}
	if party.Leader == userID {
		party.Leader = party.Members[0]
	}
	return party, nil
}

// KickFromParty removes a member at the leader's request.
func (w *World) KickFromParty(leaderUserID, targetUserID int32) (*Party, error) {
	leader := w.byUser[leaderUserID]
	if leader == nil {
		return nil, ErrNoSuchEntity
	}
	party := w.parties[leader.PartyID]
	if party == nil {
		return nil, ErrNotInParty
	}
	if party.Leader != leaderUserID {
		return nil, ErrNotPartyLeader
	}
	if leaderUserID == targetUserID {
		return w.LeaveParty(leaderUserID)
	}
	if !containsID(party.Members, targetUserID) {
		return nil, ErrNotInParty
	}
	party.Members = removeID(party.Members, targetUserID)
	if t := w.byUser[targetUserID]; t != nil {
		t.PartyID = 0
	}
	return party, nil
}

// PartyMembers returns the in-world players of a party.
func (w *World) PartyMembers(partyID int32) []*Player {
	party := w.parties[partyID]
	if party == nil {
		return nil
	}
	out := make([]*Player, 0, len(party.Members))
	for _, uid := range party.Members {
		if p := w.byUser[uid]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

func removeID(ids []int32, id int32) []int32 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func containsID(ids []int32, id int32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

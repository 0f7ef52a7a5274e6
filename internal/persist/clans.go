package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/aogo/server/internal/world"
)

// ClanRepo persists clans. Parties are deliberately ephemeral; clans
// survive restarts.
//
// Key scheme:
//
//	clans:counter        next clan id
//	clans:index          set of clan ids
//	clan:{id}            hash: name, leader
//	clan:{id}:members    set of user ids
//	clan:name:{name}     reverse index → id
type ClanRepo struct {
	kv KV
}

// NewClanRepo wires the repo to a store.
func NewClanRepo(kv KV) *ClanRepo {
	return &ClanRepo{kv: kv}
}

// Create allocates and stores a new clan with its founding leader.
func (r *ClanRepo) Create(ctx context.Context, name string, leaderUserID int32) (*world.Clan, error) {
	if _, err := r.kv.Get(ctx, clanNameKey(name)); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	id64, err := r.kv.Incr(ctx, "clans:counter")
	if err != nil {
		return nil, err
	}
	id := int32(id64)
	if err := r.kv.HSet(ctx, clanKey(id), map[string]string{
		"name":   name,
		"leader": itoa(int(leaderUserID)),
	}); err != nil {
		return nil, err
	}
	if err := r.kv.SAdd(ctx, clanMembersKey(id), itoa(int(leaderUserID))); err != nil {
		return nil, err
	}
	if err := r.kv.Set(ctx, clanNameKey(name), itoa(int(id))); err != nil {
		return nil, err
	}
	if err := r.kv.SAdd(ctx, "clans:index", itoa(int(id))); err != nil {
		return nil, err
	}
	return &world.Clan{ID: id, Name: name, Leader: leaderUserID, Members: []int32{leaderUserID}}, nil
}

// AddMember records a user joining a clan.
func (r *ClanRepo) AddMember(ctx context.Context, clanID, userID int32) error {
	return r.kv.SAdd(ctx, clanMembersKey(clanID), itoa(int(userID)))
}

// RemoveMember records a user leaving a clan.
func (r *ClanRepo) RemoveMember(ctx context.Context, clanID, userID int32) error {
	return r.kv.SRem(ctx, clanMembersKey(clanID), itoa(int(userID)))
}

// SetLeader records a leadership handover.
func (r *ClanRepo) SetLeader(ctx context.Context, clanID, userID int32) error {
	return r.kv.HSet(ctx, clanKey(clanID), map[string]string{"leader": itoa(int(userID))})
}

// Delete dissolves a clan entirely.
func (r *ClanRepo) Delete(ctx context.Context, c *world.Clan) error {
	if err := r.kv.Del(ctx, clanKey(c.ID), clanMembersKey(c.ID), clanNameKey(c.Name)); err != nil {
		return err
	}
	return r.kv.SRem(ctx, "clans:index", itoa(int(c.ID)))
}

// LoadAll reads every clan, for boot-time world registration.
func (r *ClanRepo) LoadAll(ctx context.Context) ([]*world.Clan, error) {
	ids, err := r.kv.SMembers(ctx, "clans:index")
	if err != nil {
		return nil, err
	}
	out := make([]*world.Clan, 0, len(ids))
	for _, idStr := range ids {
		id := int32(atoi(idStr))
		fields, err := r.kv.HGetAll(ctx, clanKey(id))
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		members, err := r.kv.SMembers(ctx, clanMembersKey(id))
		if err != nil {
			return nil, err
		}
		c := &world.Clan{
			ID:     id,
			Name:   fields["name"],
			Leader: int32(atoi(fields["leader"])),
		}
		for _, m := range members {
			c.Members = append(c.Members, int32(atoi(m)))
		}
		out = append(out, c)
	}
	return out, nil
}

func clanKey(id int32) string        { return fmt.Sprintf("clan:%d", id) }
func clanMembersKey(id int32) string { return fmt.Sprintf("clan:%d:members", id) }
func clanNameKey(name string) string { return "clan:name:" + name }

package handler

import (
	"context"
	"time"

	"github.com/aogo/server/internal/data"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/world"
)

// handlePickup lifts the stack under the player's feet. Gold goes to the
// purse, everything else stacks into the inventory; the whole stack moves
// or nothing does.
func (d *Deps) handlePickup(sa any, r *packet.Reader) {
	s := sess(sa)
	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			return
		}
		g := w.GroundItemAt(p.Pos.Map, p.Pos.X, p.Pos.Y)
		if g == nil {
			d.fail(s, "There is nothing here.")
			return
		}

		if g.ItemID == data.GoldItemID {
			p.Gold += g.Quantity
			s.Send(packet.UpdateGold(p.Gold))
			snap := *p
			writes = append(writes, func(ctx context.Context) error {
				return d.Players.Save(ctx, &snap)
			})
		} else {
			slot := p.AddItem(g.ItemID, g.Quantity)
			if slot == 0 {
				d.fail(s, "Your inventory is full.")
				return
			}
			d.sendInvSlot(s, p, slot)
			userID, inv := p.UserID, p.Inventory
			writes = append(writes, func(ctx context.Context) error {
				return d.Players.SaveInventory(ctx, userID, inv[:])
			})
		}

		pos := p.Pos
		w.RemoveGroundItem(pos.Map, pos.X, pos.Y)
		broadcast(w.Observers(pos.Map, pos.X, pos.Y, 0), packet.ObjectDelete(pos.X, pos.Y))
		writes = append(writes, func(ctx context.Context) error {
			return d.Ground.Remove(ctx, pos.Map, pos.X, pos.Y)
		})
	})
	d.persistAfter(s, "pickup", writes)
}

// handleDrop puts part of an inventory stack (or gold) on the ground.
func (d *Deps) handleDrop(sa any, r *packet.Reader) {
	s := sess(sa)
	slot := int(r.ReadC()) // 0 = drop gold
	qty := r.ReadQuantity()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	if slot > world.InventorySlots {
		d.protocolErr(s, errSlotRange(slot))
		return
	}

	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			return
		}

		itemID := data.GoldItemID
		if slot == 0 {
			if qty > p.Gold {
				d.fail(s, "You do not have that much gold.")
				return
			}
		} else {
			it := p.Inventory[slot]
			if it.Quantity == 0 {
				d.fail(s, "That slot is empty.")
				return
			}
			if qty > it.Quantity {
				qty = it.Quantity
			}
			if it.Equipped {
				d.fail(s, "Unequip it first.")
				return
			}
			itemID = it.ItemID
		}

		x, y, err := w.DropAt(p.Pos.Map, p.Pos.X, p.Pos.Y, world.GroundItem{
			ItemID:    itemID,
			Quantity:  qty,
			DroppedAt: time.Now(),
			OwnerID:   p.UserID,
		})
		if err != nil {
			d.fail(s, "There is no room on the ground.")
			return
		}

		if slot == 0 {
			p.Gold -= qty
			s.Send(packet.UpdateGold(p.Gold))
		} else {
			it := &p.Inventory[slot]
			it.Quantity -= qty
			if it.Quantity == 0 {
				*it = world.InvItem{}
			}
			d.sendInvSlot(s, p, slot)
		}

		grh := 0
		if tpl := d.Catalogs.Items[itemID]; tpl != nil {
			grh = tpl.GrhIndex
		}
		broadcast(w.Observers(p.Pos.Map, x, y, 0), packet.ObjectCreate(x, y, grh))

		if g := w.GroundItemAt(p.Pos.Map, x, y); g != nil {
			mapID, dropped := p.Pos.Map, *g
			writes = append(writes, func(ctx context.Context) error {
				return d.Ground.Put(ctx, mapID, x, y, dropped)
			})
		}
		if slot == 0 {
			snap := *p
			writes = append(writes, func(ctx context.Context) error {
				return d.Players.Save(ctx, &snap)
			})
		} else {
			userID, inv := p.UserID, p.Inventory
			writes = append(writes, func(ctx context.Context) error {
				return d.Players.SaveInventory(ctx, userID, inv[:])
			})
		}
	})
	d.persistAfter(s, "drop", writes)
}

// handleUseItem consumes a usable item: potions and food restore, keys and
// the rest politely refuse.
func (d *Deps) handleUseItem(sa any, r *packet.Reader) {
	s := sess(sa)
	slot := r.ReadSlot(packet.MaxInventorySlot)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}

	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			return
		}
		it := &p.Inventory[slot]
		if it.Quantity == 0 {
			d.fail(s, "That slot is empty.")
			return
		}
		tpl := d.Catalogs.Items[it.ItemID]
		if tpl == nil {
			return
		}
		switch tpl.Type {
		case data.ObjTypePotion, data.ObjTypeUseOnce:
			if tpl.RestoreHP > 0 {
				p.HP = minInt(p.MaxHP, p.HP+tpl.RestoreHP)
				s.Send(packet.UpdateHP(p.HP))
			}
			if tpl.RestoreMana > 0 {
				p.Mana = minInt(p.MaxMana, p.Mana+tpl.RestoreMana)
				s.Send(packet.UpdateMana(p.Mana))
			}
			if tpl.RestoreHunger > 0 || tpl.RestoreThirst > 0 {
				p.Hunger = minInt(p.MaxHunger, p.Hunger+tpl.RestoreHunger)
				p.Thirst = minInt(p.MaxThirst, p.Thirst+tpl.RestoreThirst)
				s.Send(packet.UpdateHunger(p.Hunger, p.MaxHunger, p.Thirst, p.MaxThirst))
			}
			it.Quantity--
			if it.Quantity == 0 {
				*it = world.InvItem{}
			}
			d.sendInvSlot(s, p, slot)
			broadcast(w.Observers(p.Pos.Map, p.Pos.X, p.Pos.Y, w.VisionRange()),
				packet.PlayWave(46, p.Pos.X, p.Pos.Y))

			userID, inv := p.UserID, p.Inventory
			writes = append(writes, func(ctx context.Context) error {
				return d.Players.SaveInventory(ctx, userID, inv[:])
			})
		default:
			d.fail(s, "You cannot use that.")
		}
	})
	d.persistAfter(s, "use item", writes)
}

// handleEquipItem toggles equipment. Equipping displaces whatever of the
// same kind was worn.
func (d *Deps) handleEquipItem(sa any, r *packet.Reader) {
	s := sess(sa)
	slot := r.ReadSlot(packet.MaxInventorySlot)
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}

	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if p.Dead {
			d.fail(s, "You are dead.")
			return
		}
		it := &p.Inventory[slot]
		if it.Quantity == 0 {
			d.fail(s, "That slot is empty.")
			return
		}
		tpl := d.Catalogs.Items[it.ItemID]
		if tpl == nil || !tpl.Equipable {
			d.fail(s, "You cannot equip that.")
			return
		}

		if it.Equipped {
			it.Equipped = false
			d.sendInvSlot(s, p, slot)
		} else {
			for other := 1; other <= world.InventorySlots; other++ {
				oit := &p.Inventory[other]
				if other == slot || !oit.Equipped {
					continue
				}
				if otpl := d.Catalogs.Items[oit.ItemID]; otpl != nil && otpl.Type == tpl.Type {
					oit.Equipped = false
					d.sendInvSlot(s, p, other)
				}
			}
			it.Equipped = true
			d.sendInvSlot(s, p, slot)
		}

		userID, inv := p.UserID, p.Inventory
		writes = append(writes, func(ctx context.Context) error {
			return d.Players.SaveInventory(ctx, userID, inv[:])
		})
	})
	d.persistAfter(s, "equip", writes)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type errSlotRange int

func (e errSlotRange) Error() string {
	return "inventory slot " + itoa(int(e)) + " out of range"
}

package handler

import (
	"context"

	"go.uber.org/zap"

	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/persist"
	"github.com/aogo/server/internal/world"
)

// bankGoldSlot in deposit/extract commands selects gold instead of items.
const bankGoldSlot = 0

// loadVault reads the session user's vault outside the world lock. Commands
// are serialized per session and a user holds at most one session, so the
// vault cannot change between this read and the handler's write.
func (d *Deps) loadVault(s *gamenet.Session) ([]world.InvItem, bool) {
	ctx, cancel := d.ctx()
	defer cancel()
	var vault []world.InvItem
	err := persist.WithRetry(ctx, func() error {
		var err error
		vault, err = d.Players.BankVault(ctx, s.UserID)
		return err
	})
	if err != nil {
		d.Log.Error("load bank vault failed", zap.Uint64("session", s.ID), zap.Error(err))
		d.fail(s, "The bank is unavailable.")
		return nil, false
	}
	return vault, true
}

// sendBankVault replays every vault slot to the client. Called off-lock.
func (d *Deps) sendBankVault(s *gamenet.Session) {
	vault, ok := d.loadVault(s)
	if !ok {
		return
	}
	for slot := 1; slot <= persist.BankSlots; slot++ {
		d.sendVaultSlot(s, vault, slot)
	}
}

// activeBanker checks the session still has a banker in reach.
func (d *Deps) activeBanker(s *gamenet.Session, w *world.World, p *world.Player) bool {
	if s.ActiveBanker == 0 {
		d.fail(s, "You are not at the bank.")
		return false
	}
	n := w.Npc(s.ActiveBanker)
	if n == nil || n.Pos.Map != p.Pos.Map || chebyshev(p.Pos.X, p.Pos.Y, n.Pos.X, n.Pos.Y) > 2 {
		s.ActiveBanker = 0
		s.Send(packet.BankEnd())
		return false
	}
	return true
}

// handleBankDeposit moves gold (slot 0) or an item stack into the vault.
// The vault is read before the world lock and both sides of the transfer
// are stored after it, in one pipelined batch, so store latency never
// stalls the tick and a crash cannot land half the transfer.
func (d *Deps) handleBankDeposit(sa any, r *packet.Reader) {
	s := sess(sa)
	slot := int(r.ReadC())
	qty := r.ReadQuantity()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	if slot > world.InventorySlots {
		d.protocolErr(s, errSlotRange(slot))
		return
	}

	var vault []world.InvItem
	if slot != bankGoldSlot {
		var ok bool
		if vault, ok = d.loadVault(s); !ok {
			return
		}
	}

	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if !d.activeBanker(s, w, p) {
			return
		}

		if slot == bankGoldSlot {
			if qty > p.Gold {
				d.fail(s, "You do not have that much gold.")
				return
			}
			p.BankGold += qty
			p.Gold -= qty
			s.Send(packet.UpdateGold(p.Gold))
			s.Send(packet.UpdateBankGold(p.BankGold))
			snap := *p
			writes = append(writes, func(ctx context.Context) error {
				return d.Players.Save(ctx, &snap)
			})
			return
		}

		it := &p.Inventory[slot]
		if it.Quantity == 0 {
			d.fail(s, "That slot is empty.")
			return
		}
		if it.Equipped {
			d.fail(s, "Unequip it first.")
			return
		}
		if qty > it.Quantity {
			qty = it.Quantity
		}

		vslot := addToVault(vault, it.ItemID, qty)
		if vslot == 0 {
			d.fail(s, "Your vault is full.")
			return
		}
		it.Quantity -= qty
		if it.Quantity == 0 {
			*it = world.InvItem{}
		}
		d.sendInvSlot(s, p, slot)
		d.sendVaultSlot(s, vault, vslot)

		userID, inv := p.UserID, p.Inventory
		writes = append(writes, func(ctx context.Context) error {
			return d.Players.SaveVaultAndInventory(ctx, userID, vault, inv[:])
		})
	})
	d.persistAfter(s, "bank deposit", writes)
}

// handleBankExtract moves gold (slot 0) or an item stack out of the vault.
func (d *Deps) handleBankExtract(sa any, r *packet.Reader) {
	s := sess(sa)
	slot := int(r.ReadC())
	qty := r.ReadQuantity()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}
	if slot > persist.BankSlots {
		d.protocolErr(s, errSlotRange(slot))
		return
	}

	var vault []world.InvItem
	if slot != bankGoldSlot {
		var ok bool
		if vault, ok = d.loadVault(s); !ok {
			return
		}
	}

	var writes []func(context.Context) error
	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if !d.activeBanker(s, w, p) {
			return
		}

		if slot == bankGoldSlot {
			if qty > p.BankGold {
				d.fail(s, "You do not have that much banked.")
				return
			}
			p.BankGold -= qty
			p.Gold += qty
			s.Send(packet.UpdateGold(p.Gold))
			s.Send(packet.UpdateBankGold(p.BankGold))
			snap := *p
			writes = append(writes, func(ctx context.Context) error {
				return d.Players.Save(ctx, &snap)
			})
			return
		}

		vit := &vault[slot]
		if vit.Quantity == 0 {
			d.fail(s, "That vault slot is empty.")
			return
		}
		if qty > vit.Quantity {
			qty = vit.Quantity
		}
		islot := p.AddItem(vit.ItemID, qty)
		if islot == 0 {
			d.fail(s, "Your inventory is full.")
			return
		}
		vit.Quantity -= qty
		if vit.Quantity == 0 {
			*vit = world.InvItem{}
		}
		d.sendInvSlot(s, p, islot)
		d.sendVaultSlot(s, vault, slot)

		userID, inv := p.UserID, p.Inventory
		writes = append(writes, func(ctx context.Context) error {
			return d.Players.SaveVaultAndInventory(ctx, userID, vault, inv[:])
		})
	})
	d.persistAfter(s, "bank extract", writes)
}

func (d *Deps) handleBankEnd(sa any, r *packet.Reader) {
	s := sess(sa)
	s.ActiveBanker = 0
	s.Send(packet.BankEnd())
}

func (d *Deps) sendVaultSlot(s *gamenet.Session, vault []world.InvItem, slot int) {
	it := vault[slot]
	if it.Quantity == 0 {
		s.Send(packet.ChangeBankSlot(slot, 0, "", 0, 0, 0))
		return
	}
	name, grh, value := "?", 0, 0
	if tpl := d.Catalogs.Items[it.ItemID]; tpl != nil {
		name, grh, value = tpl.Name, tpl.GrhIndex, tpl.Value
	}
	s.Send(packet.ChangeBankSlot(slot, it.ItemID, name, it.Quantity, grh, value))
}

// addToVault mirrors Player.AddItem for the vault: stack when the quantity
// fits under the cap, otherwise take a fresh slot. Returns the slot used,
// or 0 when the vault is full.
func addToVault(vault []world.InvItem, itemID, qty int) int {
	if qty <= 0 || qty > world.MaxStackQuantity {
		return 0
	}
	for s := 1; s < len(vault); s++ {
		v := &vault[s]
		if v.ItemID == itemID && v.Quantity > 0 && v.Quantity+qty <= world.MaxStackQuantity {
			v.Quantity += qty
			return s
		}
	}
	for s := 1; s < len(vault); s++ {
		if vault[s].Quantity == 0 {
			vault[s] = world.InvItem{ItemID: itemID, Quantity: qty}
			return s
		}
	}
	return 0
}

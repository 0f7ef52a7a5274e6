package handler

import (
	"go.uber.org/zap"

	"github.com/aogo/server/internal/data"
	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/persist"
	"github.com/aogo/server/internal/world"
)

// sellDivisor: merchants buy back at a third of list price.
const sellDivisor = 3

// sendMerchantStock lists the merchant's wares as bank-style slots.
func (d *Deps) sendMerchantStock(s *gamenet.Session, n *world.Npc) {
	tpl := d.Catalogs.Npcs[n.TemplateID]
	if tpl == nil {
		return
	}
	stock := d.Catalogs.Stocks[tpl.Stock]
	if stock == nil {
		return
	}
	for i, entry := range stock.Items {
		it := d.Catalogs.Items[entry.ItemID]
		if it == nil {
			continue
		}
		qty := entry.Quantity
		if qty < 0 {
			qty = packet.MaxQuantity
		}
		s.Send(packet.ChangeBankSlot(i+1, it.ID, it.Name, qty, it.GrhIndex, it.Value))
	}
}

// activeMerchant resolves the NPC whose trade window this session has open,
// still adjacent.
func (d *Deps) activeMerchant(s *gamenet.Session, w *world.World, p *world.Player) *world.Npc {
	if s.ActiveMerchant == 0 {
		d.fail(s, "You are not trading.")
		return nil
	}
	n := w.Npc(s.ActiveMerchant)
	if n == nil || n.Pos.Map != p.Pos.Map || chebyshev(p.Pos.X, p.Pos.Y, n.Pos.X, n.Pos.Y) > 2 {
		s.ActiveMerchant = 0
		s.Send(packet.CommerceEnd())
		return nil
	}
	return n
}

func (d *Deps) handleCommerceBuy(sa any, r *packet.Reader) {
	s := sess(sa)
	stockSlot := int(r.ReadC())
	qty := r.ReadQuantity()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		n := d.activeMerchant(s, w, p)
		if n == nil {
			return
		}
		tpl := d.Catalogs.Npcs[n.TemplateID]
		stock := d.Catalogs.Stocks[tpl.Stock]
		if stock == nil || stockSlot < 1 || stockSlot > len(stock.Items) {
			d.fail(s, "The merchant does not sell that.")
			return
		}
		entry := stock.Items[stockSlot-1]
		it := d.Catalogs.Items[entry.ItemID]
		if it == nil {
			return
		}
		if entry.Quantity >= 0 && qty > entry.Quantity {
			d.fail(s, "The merchant does not have that many.")
			return
		}
		cost := it.Value * qty
		if cost > p.Gold {
			d.fail(s, "You cannot afford that.")
			return
		}
		slot := p.AddItem(it.ID, qty)
		if slot == 0 {
			d.fail(s, "Your inventory is full.")
			return
		}

		p.Gold -= cost
		s.Send(packet.UpdateGold(p.Gold))
		d.sendInvSlot(s, p, slot)
		d.saveInventoryAsync(p)
	})
}

func (d *Deps) handleCommerceSell(sa any, r *packet.Reader) {
	s := sess(sa)
	slot := r.ReadSlot(packet.MaxInventorySlot)
	qty := r.ReadQuantity()
	if err := r.Err(); err != nil {
		d.protocolErr(s, err)
		return
	}

	d.withPlayer(s, func(w *world.World, p *world.Player) {
		if d.activeMerchant(s, w, p) == nil {
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
		tpl := d.Catalogs.Items[it.ItemID]
		if tpl == nil || tpl.Type == data.ObjTypeGold {
			return
		}
		if qty > it.Quantity {
			qty = it.Quantity
		}

		p.Gold += (tpl.Value / sellDivisor) * qty
		it.Quantity -= qty
		if it.Quantity == 0 {
			*it = world.InvItem{}
		}
		s.Send(packet.UpdateGold(p.Gold))
		d.sendInvSlot(s, p, slot)
		d.saveInventoryAsync(p)
	})
}

func (d *Deps) handleCommerceEnd(sa any, r *packet.Reader) {
	s := sess(sa)
	s.ActiveMerchant = 0
	s.Send(packet.CommerceEnd())
}

// saveInventoryAsync persists gold and inventory off the lock path.
func (d *Deps) saveInventoryAsync(p *world.Player) {
	snapshot := *p
	go func() {
		ctx, cancel := d.ctx()
		defer cancel()
		err := persist.WithRetry(ctx, func() error { return d.Players.Save(ctx, &snapshot) })
		if err != nil {
			d.Log.Error("persist trade failed", zap.String("user", snapshot.Username), zap.Error(err))
		}
	}()
}

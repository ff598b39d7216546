package book

import (
	"matchcore/internal/common"

	"github.com/tidwall/btree"
)

// priceLevels is one side of the book: an ordered collection of price
// levels. Bids are stored with a comparator that sorts highest price
// first; asks with one that sorts lowest price first — exactly the
// teacher's internal/engine/orderbook.go convention, generalized from a
// single Order-holding btree into one holding whole PriceLevels.
type priceLevels = btree.BTreeG[*PriceLevel]

// idEntry is Book Core's half of the "every order id resolves to exactly
// one level on exactly one side" invariant (spec.md §3). It is private:
// the Book Wrapper (internal/engine) keeps its own public side map for
// callers, per spec.md §4.3.
type idEntry struct {
	level *PriceLevel
	side  common.Side
}

// Clearing is the set of trades produced at a single price level during
// one match walk (spec.md GLOSSARY).
type Clearing struct {
	Price float64
	Fills []FillRecord
}

// RestResult describes the portion of a limit order that came to rest
// after matching, if any.
type RestResult struct {
	ID    common.OrderID
	Level *PriceLevel
}

// ModifyResult reports the outcome of modify_quantity/modify_price/
// modify_price_quantity.
type ModifyResult struct {
	Side    common.Side
	Price   float64
	OldQty  uint64
	NewQty  uint64
	Removed bool
	NewID   *common.OrderID
}

// Book is the Book Core (spec.md §4.2): two price-indexed collections
// (bid side descending, ask side ascending) plus a global order-id ->
// price-level index, and the raw match/book/modify/cancel primitives.
type Book struct {
	bids *priceLevels
	asks *priceLevels

	idIndex map[common.OrderID]idEntry
	nextID  common.OrderID // monotonically increasing, never reused within one engine lifetime
}

// New constructs an empty Book Core.
func New() *Book {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price > b.Price })
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price < b.Price })
	return &Book{
		bids:    bids,
		asks:    asks,
		idIndex: make(map[common.OrderID]idEntry),
		nextID:  1,
	}
}

func (b *Book) levels(side common.Side) *priceLevels {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) nextRestingID() common.OrderID {
	id := b.nextID
	b.nextID++
	return id
}

// findOrCreateLevel returns the level at price on the given tree,
// creating and inserting an empty one if absent.
func (b *Book) findOrCreateLevel(levels *priceLevels, price float64) *PriceLevel {
	probe := &PriceLevel{Price: price}
	lvl, ok := levels.GetMut(probe)
	if ok {
		return lvl
	}
	lvl = NewPriceLevel(price)
	levels.Set(lvl)
	return lvl
}

// aggressable reports whether a resting level at levelPrice crosses with
// an incoming order of the given side at orderPrice: opposite bid >=
// incoming sell price, or opposite ask <= incoming buy price.
func aggressable(side common.Side, orderPrice, levelPrice float64) bool {
	if side == common.Buy {
		return levelPrice <= orderPrice
	}
	return levelPrice >= orderPrice
}

// LimitMatch walks the opposite side in best-price-first order, sweeping
// each aggressable level FIFO, until either qty is exhausted or the best
// remaining opposite price no longer crosses. No resting occurs here.
func (b *Book) LimitMatch(side common.Side, price float64, qty uint64) (remainingQty uint64, clearings []Clearing) {
	return b.match(side, qty, func(levelPrice float64) bool {
		return aggressable(side, price, levelPrice)
	})
}

// MarketMatch is LimitMatch without the price gate: it continues while
// the opposite side is non-empty and qty remains. Market orders never
// rest, so there is no booking step analogous to LimitMatchBook.
func (b *Book) MarketMatch(side common.Side, qty uint64) (remainingQty uint64, clearings []Clearing) {
	return b.match(side, qty, func(float64) bool { return true })
}

func (b *Book) match(side common.Side, qty uint64, crosses func(levelPrice float64) bool) (uint64, []Clearing) {
	opposite := side.Opposite()
	levels := b.levels(opposite)
	remaining := qty
	var clearings []Clearing

	for remaining > 0 {
		lvl, ok := levels.MinMut()
		if !ok || !crosses(lvl.Price) {
			break
		}

		fills, rem := lvl.Sweep(remaining, common.Front)
		remaining = rem
		clearings = append(clearings, Clearing{Price: lvl.Price, Fills: fills})

		for _, f := range fills {
			if f.Exhausted {
				delete(b.idIndex, f.MakerID)
			}
		}
		// A price level is deleted after its last order is removed,
		// never before, so consumers iterating clearings see each price
		// level at most once (spec.md §4.2).
		if lvl.Empty() {
			levels.Delete(lvl)
		}
	}
	return remaining, clearings
}

// Book finds or creates the price level on side and inserts a new
// resting order at BACK with a freshly allocated id.
func (b *Book) Book(side common.Side, price float64, qty uint64) (common.OrderID, *PriceLevel) {
	lvl := b.findOrCreateLevel(b.levels(side), price)
	id := b.nextRestingID()
	lvl.Insert(common.Back, id, qty)
	b.idIndex[id] = idEntry{level: lvl, side: side}
	return id, lvl
}

// LimitMatchBook composes LimitMatch with Book: match first, then, if
// any quantity remains, book the remainder.
func (b *Book) LimitMatchBook(side common.Side, price float64, qty uint64) (*RestResult, uint64, []Clearing) {
	remaining, clearings := b.LimitMatch(side, price, qty)
	if remaining == 0 {
		return nil, 0, clearings
	}
	id, lvl := b.Book(side, price, remaining)
	return &RestResult{ID: id, Level: lvl}, remaining, clearings
}

// DeleteOrder removes a resting order by id, erasing its level if that
// was the level's last order. Returns the side, price and removed
// quantity. Cancel-callback signatures must carry the side themselves
// (spec.md §9 "Side of a gone order"), which is why this — unlike a
// naive cancel — reports side explicitly rather than requiring a
// subsequent (now-impossible) GetOrderDetails call.
func (b *Book) DeleteOrder(id common.OrderID) (side common.Side, price float64, qty uint64, ok bool) {
	entry, present := b.idIndex[id]
	if !present {
		return 0, 0, 0, false
	}
	qty, _ = entry.level.Erase(id)
	delete(b.idIndex, id)
	if entry.level.Empty() {
		b.levels(entry.side).Delete(entry.level)
	}
	return entry.side, entry.level.Price, qty, true
}

// ModifyQuantity adjusts the resting quantity of id. newQty <= 0 deletes
// the order. INPLACE preserves id and queue position; FRONT/BACK erase
// and reinsert at the requested end of the same level, allocating a
// fresh id.
func (b *Book) ModifyQuantity(id common.OrderID, newQty int64, priority common.ModifyPriority) (ModifyResult, bool) {
	entry, present := b.idIndex[id]
	if !present {
		return ModifyResult{}, false
	}

	if newQty <= 0 {
		oldQty, _ := entry.level.Quantity(id)
		side, price, _, ok := b.DeleteOrder(id)
		return ModifyResult{Side: side, Price: price, OldQty: oldQty, NewQty: 0, Removed: true}, ok
	}

	lvl := entry.level
	oldQty, _ := lvl.Quantity(id)

	if priority == common.InPlace {
		lvl.SetQuantity(id, uint64(newQty))
		return ModifyResult{Side: entry.side, Price: lvl.Price, OldQty: oldQty, NewQty: uint64(newQty)}, true
	}

	lvl.Erase(id)
	newID := b.nextRestingID()
	pos := common.Back
	if priority == common.ModifyFront {
		pos = common.Front
	}
	lvl.Insert(pos, newID, uint64(newQty))
	delete(b.idIndex, id)
	b.idIndex[newID] = idEntry{level: lvl, side: entry.side}
	return ModifyResult{Side: entry.side, Price: lvl.Price, OldQty: oldQty, NewQty: uint64(newQty), NewID: &newID}, true
}

// ModifyPrice relocates id to a new price. INPLACE at the same price is
// a true no-op (id preserved, no priority change); INPLACE at a
// different price relocates to the back of the new level but preserves
// the id — the subtlety spec.md §9 calls out explicitly. FRONT/BACK
// always reallocate a fresh id at the requested end of the (possibly
// new) level.
func (b *Book) ModifyPrice(id common.OrderID, newPrice float64, priority common.ModifyPriority) (ModifyResult, bool) {
	return b.ModifyPriceQuantity(id, newPrice, -1, priority)
}

// ModifyPriceQuantity is the general form: relocate id to newPrice and
// resize it to newQty in one step. newQty < 0 means "keep the current
// quantity" (used by ModifyPrice); newQty == 0 or less after that
// resolution deletes the order, mirroring ModifyQuantity.
func (b *Book) ModifyPriceQuantity(id common.OrderID, newPrice float64, newQty int64, priority common.ModifyPriority) (ModifyResult, bool) {
	entry, present := b.idIndex[id]
	if !present {
		return ModifyResult{}, false
	}

	lvl := entry.level
	oldQty, _ := lvl.Quantity(id)
	resolvedQty := newQty
	if resolvedQty < 0 {
		resolvedQty = int64(oldQty)
	}

	if resolvedQty <= 0 {
		side, price, _, ok := b.DeleteOrder(id)
		return ModifyResult{Side: side, Price: price, OldQty: oldQty, NewQty: 0, Removed: true}, ok
	}

	samePrice := newPrice == lvl.Price
	if priority == common.InPlace && samePrice {
		if resolvedQty != int64(oldQty) {
			lvl.SetQuantity(id, uint64(resolvedQty))
		}
		return ModifyResult{Side: entry.side, Price: lvl.Price, OldQty: oldQty, NewQty: uint64(resolvedQty)}, true
	}

	lvl.Erase(id)
	if lvl.Empty() {
		b.levels(entry.side).Delete(lvl)
	}
	newLvl := b.findOrCreateLevel(b.levels(entry.side), newPrice)

	if priority == common.InPlace {
		newLvl.Insert(common.Back, id, uint64(resolvedQty))
		b.idIndex[id] = idEntry{level: newLvl, side: entry.side}
		return ModifyResult{Side: entry.side, Price: newLvl.Price, OldQty: oldQty, NewQty: uint64(resolvedQty)}, true
	}

	newID := b.nextRestingID()
	pos := common.Back
	if priority == common.ModifyFront {
		pos = common.Front
	}
	newLvl.Insert(pos, newID, uint64(resolvedQty))
	delete(b.idIndex, id)
	b.idIndex[newID] = idEntry{level: newLvl, side: entry.side}
	return ModifyResult{Side: entry.side, Price: newLvl.Price, OldQty: oldQty, NewQty: uint64(resolvedQty), NewID: &newID}, true
}

// OrderDetails returns the current price, quantity and side of a
// resting order.
func (b *Book) OrderDetails(id common.OrderID) (price float64, qty uint64, side common.Side, ok bool) {
	entry, present := b.idIndex[id]
	if !present {
		return 0, 0, 0, false
	}
	qty, _ = entry.level.Quantity(id)
	return entry.level.Price, qty, entry.side, true
}

// Bids returns the bid-side levels, best (highest) price first.
func (b *Book) Bids() []*PriceLevel { return scanLevels(b.bids) }

// Asks returns the ask-side levels, best (lowest) price first.
func (b *Book) Asks() []*PriceLevel { return scanLevels(b.asks) }

func scanLevels(levels *priceLevels) []*PriceLevel {
	var out []*PriceLevel
	levels.Scan(func(lvl *PriceLevel) bool {
		out = append(out, lvl)
		return true
	})
	return out
}

// SnapshotFlat returns the L2 view as flat [price, qty, price, qty, ...]
// sequences, bids highest-price-first and asks lowest-price-first, with
// no implicit zero rows (spec.md §6 "L2 wire layout").
func (b *Book) SnapshotFlat() (bidsFlat, asksFlat []float64) {
	for _, lvl := range b.Bids() {
		bidsFlat = append(bidsFlat, lvl.Price, float64(lvl.TotalQuantity))
	}
	for _, lvl := range b.Asks() {
		asksFlat = append(asksFlat, lvl.Price, float64(lvl.TotalQuantity))
	}
	return bidsFlat, asksFlat
}

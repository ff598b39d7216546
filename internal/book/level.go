// Package book implements the Price Level and Book Core layers of the
// matching core: an ordered queue of resting orders at one price
// (PriceLevel), and the two price-indexed collections plus global
// id-index that make up a single side-agnostic order book (Book).
//
// The price-level sweep is the one place in this package where a
// container is mutated while being walked. The implementation below
// follows the "advance, then maybe erase previous" discipline spec.md
// §9 calls out explicitly: we never splice the slice mid-iteration,
// we only decide afterwards how much of the front to drop.
package book

import "matchcore/internal/common"

// restingOrder is a single order resting at a price level. Quantity only
// ever moves down (partial fill, partial cancel) or the order is deleted
// whole; the id is immutable for the lifetime of the resting order.
type restingOrder struct {
	id  common.OrderID
	qty uint64
}

// FillRecord describes one maker consumed during a sweep: how much of it
// traded, and whether that consumed its entire remaining quantity.
type FillRecord struct {
	MakerID   common.OrderID
	TradedQty uint64
	Exhausted bool
}

// PriceLevel is an ordered queue of resting orders at one price. The
// invariant TotalQuantity == sum(orders' quantities) is maintained by
// every mutating method; callers must treat a level whose TotalQuantity
// has reached zero as gone (Book erases it in the same step that empties
// it, never before — spec.md §4.2).
type PriceLevel struct {
	Price         float64
	TotalQuantity uint64
	orders        []restingOrder
	index         map[common.OrderID]int // id -> position in orders, kept in sync by every mutator
}

// NewPriceLevel constructs an empty level at the given price.
func NewPriceLevel(price float64) *PriceLevel {
	return &PriceLevel{
		Price: price,
		index: make(map[common.OrderID]int),
	}
}

// Insert adds a resting order at the given end of the level. O(1) at
// BACK; a FRONT insert shifts every element and rebuilds the index, O(n).
func (l *PriceLevel) Insert(pos common.InsertPosition, id common.OrderID, qty uint64) {
	o := restingOrder{id: id, qty: qty}
	switch pos {
	case common.Front:
		l.orders = append([]restingOrder{o}, l.orders...)
		l.reindex()
	default: // common.Back
		l.orders = append(l.orders, o)
		l.index[id] = len(l.orders) - 1
	}
	l.TotalQuantity += qty
}

// reindex rebuilds the id->position map after an operation that shifts
// every element (a FRONT insert, or an erase of anything but the tail).
func (l *PriceLevel) reindex() {
	for i, o := range l.orders {
		l.index[o.id] = i
	}
}

// Erase removes an order by id. O(1) lookup via the level's own index,
// O(n) splice of the backing slice (orders-per-level is small in
// practice; this mirrors the teacher's slice-backed level).
func (l *PriceLevel) Erase(id common.OrderID) (qty uint64, ok bool) {
	i, present := l.index[id]
	if !present {
		return 0, false
	}
	qty = l.orders[i].qty
	l.orders = append(l.orders[:i], l.orders[i+1:]...)
	delete(l.index, id)
	l.reindex()
	l.TotalQuantity -= qty
	return qty, true
}

// Quantity returns the current resting quantity of an order id on this
// level, and whether it's present at all.
func (l *PriceLevel) Quantity(id common.OrderID) (uint64, bool) {
	i, ok := l.index[id]
	if !ok {
		return 0, false
	}
	return l.orders[i].qty, true
}

// SetQuantity overwrites the quantity of a resting order in place
// (id and queue position preserved). Used by modify_quantity/INPLACE.
func (l *PriceLevel) SetQuantity(id common.OrderID, newQty uint64) (oldQty uint64, ok bool) {
	i, present := l.index[id]
	if !present {
		return 0, false
	}
	oldQty = l.orders[i].qty
	l.TotalQuantity = l.TotalQuantity - oldQty + newQty
	l.orders[i].qty = newQty
	return oldQty, true
}

// Empty reports whether the level holds no resting orders.
func (l *PriceLevel) Empty() bool {
	return len(l.orders) == 0
}

// Sweep consumes orders from the chosen end of the level, subtracting
// from each order's quantity, until either the level empties or
// quantityRemaining is satisfied. It returns the fill records in the
// order consumed and quantityRemaining after the sweep.
//
// direction chooses which end to consume from: BACK sweeps have no
// natural use here (matches always consume FIFO from the FRONT of the
// opposite book) but the parameter is kept generic per spec.md §4.1
// so priority-preserving callers could sweep the other way.
func (l *PriceLevel) Sweep(quantityRemaining uint64, direction common.InsertPosition) ([]FillRecord, uint64) {
	var fills []FillRecord
	consumed := 0 // how many leading/trailing orders are now fully gone

	if direction == common.Front {
		for quantityRemaining > 0 && consumed < len(l.orders) {
			o := &l.orders[consumed]
			traded := min(o.qty, quantityRemaining)
			o.qty -= traded
			quantityRemaining -= traded
			l.TotalQuantity -= traded

			exhausted := o.qty == 0
			fills = append(fills, FillRecord{MakerID: o.id, TradedQty: traded, Exhausted: exhausted})
			if exhausted {
				consumed++
			}
		}
		if consumed > 0 {
			for _, o := range l.orders[:consumed] {
				delete(l.index, o.id)
			}
			l.orders = l.orders[consumed:]
			l.reindex()
		}
		return fills, quantityRemaining
	}

	// BACK sweep: consume from the tail, symmetric to the FRONT case.
	for quantityRemaining > 0 && consumed < len(l.orders) {
		i := len(l.orders) - 1 - consumed
		o := &l.orders[i]
		traded := min(o.qty, quantityRemaining)
		o.qty -= traded
		quantityRemaining -= traded
		l.TotalQuantity -= traded

		exhausted := o.qty == 0
		fills = append(fills, FillRecord{MakerID: o.id, TradedQty: traded, Exhausted: exhausted})
		if exhausted {
			consumed++
		}
	}
	if consumed > 0 {
		tail := l.orders[len(l.orders)-consumed:]
		for _, o := range tail {
			delete(l.index, o.id)
		}
		l.orders = l.orders[:len(l.orders)-consumed]
	}
	return fills, quantityRemaining
}

// Orders returns a snapshot of (id, quantity) pairs in queue order. The
// L2 snapshot in Book reads TotalQuantity instead; this per-order view
// is used by tests.
func (l *PriceLevel) Orders() []struct {
	ID  common.OrderID
	Qty uint64
} {
	out := make([]struct {
		ID  common.OrderID
		Qty uint64
	}, len(l.orders))
	for i, o := range l.orders {
		out[i] = struct {
			ID  common.OrderID
			Qty uint64
		}{ID: o.id, Qty: o.qty}
	}
	return out
}

// Package engine implements the Book Wrapper and Matching Engine layers
// (spec.md §4.3/§4.4): a side-dispatched facade over the Book Core plus
// the orchestration that turns a single inbound order-placement,
// cancel, modify or expiration request into the book's raw primitives
// and the engine's ordered set of lifecycle callbacks.
package engine

import (
	"matchcore/internal/book"
	"matchcore/internal/common"
)

// Wrapper is the Book Wrapper (spec.md §4.3): a side-dispatched facade
// over the Book Core that additionally remembers each resting order's
// side, so callers (the Matching Engine) can operate on any resting id
// without re-specifying which side it rests on. Book Core already
// resolves side internally for its own primitives (it must, to report
// side on cancel per spec.md §9); Wrapper's side map exists for the
// Matching Engine's convenience and is kept in lockstep with every
// mutation that creates, removes or re-ids a resting order.
type Wrapper struct {
	core  *book.Book
	sides map[common.OrderID]common.Side
}

// NewWrapper constructs an empty Book Wrapper over a fresh Book Core.
func NewWrapper() *Wrapper {
	return &Wrapper{
		core:  book.New(),
		sides: make(map[common.OrderID]common.Side),
	}
}

// LimitMatchBook matches then books the remainder, forgetting the side
// of every maker the match exhausted and recording the resting id's
// side if any portion rested.
func (w *Wrapper) LimitMatchBook(side common.Side, price float64, qty uint64) (*book.RestResult, uint64, []book.Clearing) {
	result, remaining, clearings := w.core.LimitMatchBook(side, price, qty)
	w.forgetExhausted(clearings)
	if result != nil {
		w.sides[result.ID] = side
	}
	return result, remaining, clearings
}

// MarketMatch sweeps without booking; market orders never rest, so
// there is no side to record, only exhausted makers to forget.
func (w *Wrapper) MarketMatch(side common.Side, qty uint64) (uint64, []book.Clearing) {
	remaining, clearings := w.core.MarketMatch(side, qty)
	w.forgetExhausted(clearings)
	return remaining, clearings
}

// forgetExhausted drops the side entries of makers a match fully
// consumed; Book Core has already removed them from the book.
func (w *Wrapper) forgetExhausted(clearings []book.Clearing) {
	for _, c := range clearings {
		for _, f := range c.Fills {
			if f.Exhausted {
				delete(w.sides, f.MakerID)
			}
		}
	}
}

// Cancel deletes a resting order by id, forgetting its side.
func (w *Wrapper) Cancel(id common.OrderID) (side common.Side, price float64, qty uint64, ok bool) {
	side, price, qty, ok = w.core.DeleteOrder(id)
	if ok {
		delete(w.sides, id)
	}
	return side, price, qty, ok
}

// ModifyQuantity adjusts a resting order's quantity, updating the side
// map when the order is removed or reallocated a fresh id.
func (w *Wrapper) ModifyQuantity(id common.OrderID, newQty int64, priority common.ModifyPriority) (book.ModifyResult, bool) {
	res, ok := w.core.ModifyQuantity(id, newQty, priority)
	w.reindex(id, res, ok)
	return res, ok
}

// ModifyPrice relocates a resting order, updating the side map the same
// way ModifyQuantity does. Exposed for symmetry with Book Core even
// though the Matching Engine's external surface (spec.md §4.4) does not
// call it directly today.
func (w *Wrapper) ModifyPrice(id common.OrderID, newPrice float64, priority common.ModifyPriority) (book.ModifyResult, bool) {
	res, ok := w.core.ModifyPrice(id, newPrice, priority)
	w.reindex(id, res, ok)
	return res, ok
}

func (w *Wrapper) reindex(id common.OrderID, res book.ModifyResult, ok bool) {
	if !ok {
		return
	}
	if res.Removed {
		delete(w.sides, id)
		return
	}
	if res.NewID != nil {
		delete(w.sides, id)
		w.sides[*res.NewID] = res.Side
	}
}

// GetOrderDetails returns the current price, quantity and side of a
// resting order.
func (w *Wrapper) GetOrderDetails(id common.OrderID) (price float64, qty uint64, side common.Side, ok bool) {
	return w.core.OrderDetails(id)
}

// SnapshotFlat returns the L2 view, delegated straight to Book Core.
func (w *Wrapper) SnapshotFlat() (bidsFlat, asksFlat []float64) {
	return w.core.SnapshotFlat()
}

// Package common holds the small value types shared by the book, engine,
// bus and adapter packages — order side, order type, and the symbol a
// single engine instance is responsible for.
package common

// Side is the side of the book an order rests on or consumes from.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side, used when a taker on one side needs
// to walk the resting book on the other.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType distinguishes limit orders, which may rest, from market
// orders, which never do.
type OrderType int

const (
	LimitOrder OrderType = iota
	MarketOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// OrderID is an exchange-assigned order identifier. Resting orders are
// assigned ids below TransientIDStart; orders that never rest (market
// orders, and limit orders that fully execute without resting any
// quantity) are assigned ids at or above TransientIDStart. The two
// ranges never collide, so a consumer can tell "is this an id I should
// keep a persistent mapping for" from the id alone, without consulting
// engine-internal state (spec.md §9 "Transient vs resting ids").
type OrderID uint64

// TransientIDStart is the first id in the transient range. Every order
// that never rests — market orders, and limit orders that fully execute
// without resting any quantity — is assigned an ack id from this range
// (spec.md §9 Open Question (a); DESIGN.md records this as the chosen
// resolution: every order gets a stable id in its ack, resting or not).
const TransientIDStart OrderID = 1_000_000_000

// Symbol identifies the single instrument an engine instance matches.
// Multi-symbol shared matching is out of scope (spec.md §1 Non-goals);
// one engine, one symbol.
type Symbol string

// InsertPosition selects which end of a price level a resting order is
// placed at. BACK is standard price-time priority (new orders queue
// behind existing ones at the same price); FRONT is used by priority
// preserving in-place modifications that must not lose their place.
type InsertPosition int

const (
	Back InsertPosition = iota
	Front
)

// ModifyPriority selects how modify_quantity/modify_price treat the
// existing queue position of the order being modified.
type ModifyPriority int

const (
	// InPlace adjusts the order without touching its queue position or
	// identity, where possible (same-price quantity shrink, or
	// same-price modify_price no-op).
	InPlace ModifyPriority = iota
	// ModifyFront re-inserts the order at the front of its (possibly
	// new) level, allocating a fresh id.
	ModifyFront
	// ModifyBack re-inserts the order at the back of its (possibly new)
	// level, allocating a fresh id.
	ModifyBack
)

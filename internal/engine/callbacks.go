package engine

import (
	"time"

	"matchcore/internal/common"
)

// Callbacks is the closed set of ordered notifications the Matching
// Engine fires during place_limit/place_market/cancel/cancel_if_expired/
// modify_quantity (spec.md §6 "Engine callback signatures"). A nil field
// is a no-op, not a panic — an engine can be constructed with only the
// callbacks a particular test or caller cares about. Every field is
// invoked through a recover-guarded helper (see emit.go) so a
// downstream handler panicking mid-sequence cannot corrupt engine state
// or abort the remaining callbacks in the same dispatch (spec.md §4.4
// "Failure semantics").
type Callbacks struct {
	LimitAck    func(xid common.OrderID, side common.Side, price float64, qty, remainingQty uint64, trader, clientOrderID string, timeout time.Duration)
	MarketAck   func(side common.Side, requestedQty, executedQty, unfilledQty uint64, trader, clientOrderID string)
	Trade       func(makerID common.OrderID, makerSide common.Side, takerID common.OrderID, takerSide common.Side, price float64, qty uint64, makerExhausted bool, makerTrader, makerCID, takerTrader, takerCID string)

	MakerPartialFill func(xid common.OrderID, price float64, qty uint64, side common.Side, trader, clientOrderID string)
	MakerFullFill    func(xid common.OrderID, price float64, totalQty uint64, side common.Side, trader, clientOrderID string)
	TakerPartialFill func(xid common.OrderID, takerSide common.Side, price float64, segmentQty, leavesQty uint64, trader, clientOrderID string)
	TakerFullFill    func(xid common.OrderID, takerSide common.Side, price float64, totalQty uint64, trader, clientOrderID string)

	FullCancelLimit       func(xid common.OrderID, price float64, qty uint64, side common.Side, reqTrader, reqClientOrderID string)
	FullCancelLimitReject func(xid common.OrderID, reqTrader, reqClientOrderID string)

	PartialCancelLimit       func(xid common.OrderID, price float64, cancelledQty uint64, reqTrader, reqClientOrderID string)
	PartialCancelLimitReject func(xid common.OrderID, reqTrader, reqClientOrderID string)

	QuantityModifiedRejected func(xid common.OrderID, reason string, reqTrader, reqClientOrderID string)

	AckTriggerExpiration    func(xid common.OrderID, price float64, qty uint64, originalTrader, originalClientOrderID string, originalTimeout time.Duration)
	RejectTriggerExpiration func(xid common.OrderID, originalTrader, originalClientOrderID string, originalTimeout time.Duration)
}

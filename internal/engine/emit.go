package engine

import (
	"time"

	"matchcore/internal/common"

	"github.com/rs/zerolog/log"
)

// recoverCallback guards a single callback invocation so a downstream
// handler panicking mid-dispatch cannot corrupt engine state or abort
// the remaining callbacks in the same sequence (spec.md §4.4 "Failure
// semantics"). It is deferred around each emit* helper's actual call.
func recoverCallback(name string) {
	if r := recover(); r != nil {
		log.Error().
			Str("callback", name).
			Interface("panic", r).
			Msg("callback panicked; engine state unaffected, remaining callbacks still fire")
	}
}

func (e *Engine) emitLimitAck(xid common.OrderID, side common.Side, price float64, qty, remainingQty uint64, trader, clientOrderID string, timeout time.Duration) {
	if e.cb.LimitAck == nil {
		return
	}
	defer recoverCallback("LimitAck")
	e.cb.LimitAck(xid, side, price, qty, remainingQty, trader, clientOrderID, timeout)
}

func (e *Engine) emitMarketAck(side common.Side, requestedQty, executedQty, unfilledQty uint64, trader, clientOrderID string) {
	if e.cb.MarketAck == nil {
		return
	}
	defer recoverCallback("MarketAck")
	e.cb.MarketAck(side, requestedQty, executedQty, unfilledQty, trader, clientOrderID)
}

func (e *Engine) emitTrade(makerID common.OrderID, makerSide common.Side, takerID common.OrderID, takerSide common.Side, price float64, qty uint64, makerExhausted bool, makerTrader, makerCID, takerTrader, takerCID string) {
	if e.cb.Trade == nil {
		return
	}
	defer recoverCallback("Trade")
	e.cb.Trade(makerID, makerSide, takerID, takerSide, price, qty, makerExhausted, makerTrader, makerCID, takerTrader, takerCID)
}

func (e *Engine) emitMakerPartialFill(xid common.OrderID, price float64, qty uint64, side common.Side, trader, clientOrderID string) {
	if e.cb.MakerPartialFill == nil {
		return
	}
	defer recoverCallback("MakerPartialFill")
	e.cb.MakerPartialFill(xid, price, qty, side, trader, clientOrderID)
}

func (e *Engine) emitMakerFullFill(xid common.OrderID, price float64, totalQty uint64, side common.Side, trader, clientOrderID string) {
	if e.cb.MakerFullFill == nil {
		return
	}
	defer recoverCallback("MakerFullFill")
	e.cb.MakerFullFill(xid, price, totalQty, side, trader, clientOrderID)
}

func (e *Engine) emitTakerPartialFill(xid common.OrderID, takerSide common.Side, price float64, segmentQty, leavesQty uint64, trader, clientOrderID string) {
	if e.cb.TakerPartialFill == nil {
		return
	}
	defer recoverCallback("TakerPartialFill")
	e.cb.TakerPartialFill(xid, takerSide, price, segmentQty, leavesQty, trader, clientOrderID)
}

func (e *Engine) emitTakerFullFill(xid common.OrderID, takerSide common.Side, price float64, totalQty uint64, trader, clientOrderID string) {
	if e.cb.TakerFullFill == nil {
		return
	}
	defer recoverCallback("TakerFullFill")
	e.cb.TakerFullFill(xid, takerSide, price, totalQty, trader, clientOrderID)
}

func (e *Engine) emitFullCancelLimit(xid common.OrderID, price float64, qty uint64, side common.Side, reqTrader, reqClientOrderID string) {
	if e.cb.FullCancelLimit == nil {
		return
	}
	defer recoverCallback("FullCancelLimit")
	e.cb.FullCancelLimit(xid, price, qty, side, reqTrader, reqClientOrderID)
}

func (e *Engine) emitFullCancelLimitReject(xid common.OrderID, reqTrader, reqClientOrderID string) {
	if e.cb.FullCancelLimitReject == nil {
		return
	}
	defer recoverCallback("FullCancelLimitReject")
	e.cb.FullCancelLimitReject(xid, reqTrader, reqClientOrderID)
}

func (e *Engine) emitPartialCancelLimit(xid common.OrderID, price float64, cancelledQty uint64, reqTrader, reqClientOrderID string) {
	if e.cb.PartialCancelLimit == nil {
		return
	}
	defer recoverCallback("PartialCancelLimit")
	e.cb.PartialCancelLimit(xid, price, cancelledQty, reqTrader, reqClientOrderID)
}

func (e *Engine) emitPartialCancelLimitReject(xid common.OrderID, reqTrader, reqClientOrderID string) {
	if e.cb.PartialCancelLimitReject == nil {
		return
	}
	defer recoverCallback("PartialCancelLimitReject")
	e.cb.PartialCancelLimitReject(xid, reqTrader, reqClientOrderID)
}

func (e *Engine) emitQuantityModifiedRejected(xid common.OrderID, reason, reqTrader, reqClientOrderID string) {
	if e.cb.QuantityModifiedRejected == nil {
		return
	}
	defer recoverCallback("QuantityModifiedRejected")
	e.cb.QuantityModifiedRejected(xid, reason, reqTrader, reqClientOrderID)
}

func (e *Engine) emitAckTriggerExpiration(xid common.OrderID, price float64, qty uint64, originalTrader, originalClientOrderID string, originalTimeout time.Duration) {
	if e.cb.AckTriggerExpiration == nil {
		return
	}
	defer recoverCallback("AckTriggerExpiration")
	e.cb.AckTriggerExpiration(xid, price, qty, originalTrader, originalClientOrderID, originalTimeout)
}

func (e *Engine) emitRejectTriggerExpiration(xid common.OrderID, originalTrader, originalClientOrderID string, originalTimeout time.Duration) {
	if e.cb.RejectTriggerExpiration == nil {
		return
	}
	defer recoverCallback("RejectTriggerExpiration")
	e.cb.RejectTriggerExpiration(xid, originalTrader, originalClientOrderID, originalTimeout)
}

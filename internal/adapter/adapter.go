package adapter

import (
	"time"

	"matchcore/internal/bus"
	"matchcore/internal/common"
	"matchcore/internal/engine"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Adapter is the Event Adapter (spec.md §4.5): one instance owns one
// engine.Engine for exactly one symbol, translates inbound request
// events into engine calls, and republishes the engine's ordered
// callbacks as outbound events on the topic conventions spec.md §4.5
// describes.
type Adapter struct {
	symbol common.Symbol
	eng    *engine.Engine
	bus    bus.Publisher
	clock  bus.Clock
	mp     *mappingState

	// currentTakerKind is set for the duration of a single
	// PlaceLimit/PlaceMarket dispatch so onTrade can lazily register a
	// fully-crossing taker's transient id under the right order kind.
	// The engine is single-threaded cooperative (spec.md §5), so one
	// field is sufficient; there is never a nested dispatch to clobber it.
	currentTakerKind orderKind
}

// New constructs an Adapter wired to a fresh engine for symbol,
// publishing through pub and stamping timestamps from clock.
func New(symbol common.Symbol, pub bus.Publisher, clock bus.Clock) *Adapter {
	a := &Adapter{symbol: symbol, bus: pub, clock: clock, mp: newMappingState()}
	a.eng = engine.New(symbol, engine.Callbacks{
		LimitAck:                 a.onLimitAck,
		MarketAck:                a.onMarketAck,
		Trade:                    a.onTrade,
		MakerPartialFill:         a.onMakerPartialFill,
		MakerFullFill:            a.onMakerFullFill,
		TakerPartialFill:         a.onTakerPartialFill,
		TakerFullFill:            a.onTakerFullFill,
		FullCancelLimit:          a.onFullCancelLimit,
		FullCancelLimitReject:    a.onFullCancelLimitReject,
		PartialCancelLimit:       a.onPartialCancelLimit,
		PartialCancelLimitReject: a.onPartialCancelLimitReject,
		QuantityModifiedRejected: a.onQuantityModifiedRejected,
		AckTriggerExpiration:     a.onAckTriggerExpiration,
		RejectTriggerExpiration:  a.onRejectTriggerExpiration,
	})
	return a
}

func traderTopic(event, trader string) string { return event + "." + trader }
func symbolTopic(event string, symbol common.Symbol) string { return event + "." + string(symbol) }

func (a *Adapter) publishTrader(event, trader string, payload any) {
	a.bus.Publish(traderTopic(event, trader), payload)
}

func (a *Adapter) publishBroadcast(event string, payload any) {
	a.bus.Publish(event, payload)
}

func (a *Adapter) publishSymbol(event string, payload any) {
	a.bus.Publish(symbolTopic(event, a.symbol), payload)
}

func (a *Adapter) wrongSymbol(symbol common.Symbol) bool {
	if symbol == a.symbol {
		return false
	}
	log.Warn().
		Str("got", string(symbol)).
		Str("want", string(a.symbol)).
		Msg("inbound event for a different symbol reached this adapter; dropping (spec.md §7 symbol mismatch)")
	return true
}

// removeWithWarning removes xid's mapping state and logs a warning if it
// was already gone. spec.md §5 makes this a MUST ("any double-remove is
// a warning, any remove of a missing id is a warning, but neither is
// fatal"); at a genuine terminal-removal path (as opposed to the
// market-order force-remove in HandleMarketOrder, which expects the
// mapping to sometimes already be gone) a missing id here means the
// adapter's bookkeeping disagrees with the engine about when an order
// went terminal.
func (a *Adapter) removeWithWarning(xid common.OrderID) {
	if !a.mp.remove(xid) {
		log.Warn().
			Uint64("xid", uint64(xid)).
			Msg("removing mapping state for an id that was already gone (spec.md §5 double-remove/missing-remove warning)")
	}
}

func fillEventName(final bool, k orderKind) string {
	stage := "PartialFill"
	if final {
		stage = "FullFill"
	}
	if k == kindMarket {
		return stage + "Market"
	}
	return stage + "Limit"
}

// --- Inbound request handlers ---------------------------------------

// HandleLimitOrder implements the LimitOrder inbound event.
func (a *Adapter) HandleLimitOrder(req LimitOrderRequest) {
	if a.wrongSymbol(req.Symbol) {
		return
	}
	if req.Qty == 0 {
		a.publishTrader("LimitOrderReject", req.Trader, LimitOrderReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol, Reason: "quantity must be positive"})
		return
	}
	if req.Price <= 0 {
		a.publishTrader("LimitOrderReject", req.Trader, LimitOrderReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol, Reason: "price must be positive"})
		return
	}
	a.currentTakerKind = kindLimit
	a.eng.PlaceLimit(req.Side, req.Price, req.Qty, req.Timeout, req.Trader, req.ClientOrderID)
	a.publishSnapshotIfChanged()
}

// HandleMarketOrder implements the MarketOrder inbound event. A market
// order's mapping entry is always terminal after one dispatch (spec.md
// §4.4), so it is forgotten here regardless of which terminal fill
// callback (if any) already removed it.
func (a *Adapter) HandleMarketOrder(req MarketOrderRequest) {
	if a.wrongSymbol(req.Symbol) {
		return
	}
	if req.Qty == 0 {
		a.publishTrader("MarketOrderReject", req.Trader, MarketOrderReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol, Reason: "quantity must be positive"})
		return
	}
	a.currentTakerKind = kindMarket
	id := a.eng.PlaceMarket(req.Side, req.Qty, req.Trader, req.ClientOrderID)
	a.mp.remove(id)
	a.publishSnapshotIfChanged()
}

// HandleFullCancelLimit implements FullCancelLimit.
func (a *Adapter) HandleFullCancelLimit(req FullCancelLimitRequest) {
	if a.wrongSymbol(req.Symbol) {
		return
	}
	xid, kind, ok := a.mp.lookup(req.Trader, req.TargetClientOrderID)
	if !ok || kind != kindLimit {
		a.publishTrader("FullCancelLimitReject", req.Trader, FullCancelLimitReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol})
		return
	}
	a.eng.Cancel(xid, req.Trader, req.ClientOrderID)
	a.publishSnapshotIfChanged()
}

// HandleFullCancelMarket rejects unconditionally: market orders cannot
// be cancelled post-submission (spec.md §4.5, §9 "Market-order
// cancellability").
func (a *Adapter) HandleFullCancelMarket(req FullCancelMarketRequest) {
	if a.wrongSymbol(req.Symbol) {
		return
	}
	a.publishTrader("FullCancelMarketReject", req.Trader, FullCancelMarketReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol})
}

// HandlePartialCancelLimit implements PartialCancelLimit, including the
// "exceeds current size promotes to full cancel" rule (spec.md §4.5).
func (a *Adapter) HandlePartialCancelLimit(req PartialCancelLimitRequest) {
	if a.wrongSymbol(req.Symbol) {
		return
	}
	if req.CancelQty == 0 {
		a.publishTrader("PartialCancelLimitReject", req.Trader, PartialCancelLimitReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol})
		return
	}
	xid, kind, ok := a.mp.lookup(req.Trader, req.TargetClientOrderID)
	if !ok || kind != kindLimit {
		a.publishTrader("PartialCancelLimitReject", req.Trader, PartialCancelLimitReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol})
		return
	}

	_, currentQty, _, ok := a.eng.GetOrderDetails(xid)
	if !ok {
		// Self-cancel race: the order already went terminal (spec.md §9
		// "Self-trade / self-cancel race"). Silent no-op on the target;
		// the request itself still gets answered.
		a.publishTrader("PartialCancelLimitReject", req.Trader, PartialCancelLimitReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol})
		return
	}

	if req.CancelQty >= currentQty {
		a.eng.Cancel(xid, req.Trader, req.ClientOrderID)
		a.publishSnapshotIfChanged()
		return
	}

	a.eng.ModifyQuantity(xid, int64(currentQty-req.CancelQty), req.Trader, req.ClientOrderID)
	a.publishSnapshotIfChanged()
}

// HandlePartialCancelMarket rejects unconditionally, same rationale as
// HandleFullCancelMarket.
func (a *Adapter) HandlePartialCancelMarket(req PartialCancelMarketRequest) {
	if a.wrongSymbol(req.Symbol) {
		return
	}
	a.publishTrader("PartialCancelMarketReject", req.Trader, PartialCancelMarketReject{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol})
}

// HandleTriggerExpiredLimitOrder implements TriggerExpiredLimitOrder.
func (a *Adapter) HandleTriggerExpiredLimitOrder(req TriggerExpiredLimitOrderRequest) {
	if a.wrongSymbol(req.Symbol) {
		return
	}
	a.mp.expirationSender[req.TargetXID] = req.Sender
	a.eng.CancelIfExpired(req.TargetXID, req.OriginalTimeout)
	a.publishSnapshotIfChanged()
}

// HandleBang implements the global reset signal: clears all adapter
// state, flushes the engine's book, and echoes Bang on the broadcast
// topic (spec.md §4.5, testable property 8).
func (a *Adapter) HandleBang(req BangRequest) {
	a.eng.Reset()
	a.mp.reset()
	a.publishBroadcast("Bang", BangEvent{Timestamp: req.Timestamp, BangToken: uuid.NewString()})
}

// --- Engine callback handlers -----------------------------------------

func (a *Adapter) onLimitAck(xid common.OrderID, side common.Side, price float64, qty, remainingQty uint64, trader, clientOrderID string, timeout time.Duration) {
	if remainingQty > 0 {
		a.mp.register(trader, clientOrderID, xid, kindLimit)
	}
	a.publishTrader("LimitOrderAck", trader, LimitOrderAck{
		ExchangeOrderID: xid,
		ClientOrderID:   clientOrderID,
		Side:            side,
		Price:           price,
		RequestedQty:    qty,
		RemainingQty:    remainingQty,
		Symbol:          a.symbol,
		Timeout:         timeout,
		OriginalTrader:  trader,
	})
}

func (a *Adapter) onMarketAck(side common.Side, requestedQty, executedQty, unfilledQty uint64, trader, clientOrderID string) {
	// The market_ack callback carries no xid, so the published ack leaves
	// ExchangeOrderID unset. The transient id is registered lazily by
	// onTrade when the first fill arrives, and HandleMarketOrder removes
	// it by the id PlaceMarket returns once the dispatch completes.
	a.publishTrader("MarketOrderAck", trader, MarketOrderAck{
		ClientOrderID:  clientOrderID,
		Side:           side,
		RequestedQty:   requestedQty,
		ExecutedQty:    executedQty,
		UnfilledQty:    unfilledQty,
		Symbol:         a.symbol,
		OriginalTrader: trader,
	})
}

func (a *Adapter) onTrade(makerID common.OrderID, makerSide common.Side, takerID common.OrderID, takerSide common.Side, price float64, qty uint64, makerExhausted bool, makerTrader, makerCID, takerTrader, takerCID string) {
	// A taker that never rests (market order, or a fully-crossing limit
	// order) has no mapping entry yet: limit_ack only registers the
	// resting case, and market_ack's callback signature carries no xid
	// at all (spec.md §6). This is the first point at which both the
	// allocated id and trader/cid are available together, so register
	// the fill-tracking state here, tagged with whichever order kind is
	// currently in flight.
	if _, _, ok := a.mp.clientOrderID(takerID); !ok && takerID >= common.TransientIDStart {
		a.mp.register(takerTrader, takerCID, takerID, a.currentTakerKind)
	}

	a.publishTrader("Trade", makerTrader, TradeEvent{
		Symbol:             a.symbol,
		MakerClientOrderID: makerCID,
		TakerClientOrderID: takerCID,
		MakerXID:           makerID,
		TakerXID:           takerID,
		Price:              price,
		Qty:                qty,
		MakerSide:          makerSide,
		MakerExhausted:     makerExhausted,
	})
	// spec.md §5: never publish a duplicate trade event for self-matching.
	if takerTrader != makerTrader {
		a.publishTrader("Trade", takerTrader, TradeEvent{
			Symbol:             a.symbol,
			MakerClientOrderID: makerCID,
			TakerClientOrderID: takerCID,
			MakerXID:           makerID,
			TakerXID:           takerID,
			Price:              price,
			Qty:                qty,
			MakerSide:          makerSide,
			MakerExhausted:     makerExhausted,
		})
	}
}

func (a *Adapter) onMakerPartialFill(xid common.OrderID, price float64, qty uint64, side common.Side, trader, clientOrderID string) {
	st, ok := a.mp.fillState(xid)
	if !ok {
		log.Error().Uint64("xid", uint64(xid)).Msg("maker_partial_fill for an order with no fill-state; consistency violation (spec.md §7)")
		return
	}
	st.add(price, qty)

	_, leavesQty, _, orderStillResting := a.eng.GetOrderDetails(xid)
	if !orderStillResting {
		leavesQty = 0
	}

	a.publishTrader(fillEventName(false, a.mp.kind[xid]), trader, FillEvent{
		ExchangeOrderID: xid,
		ClientOrderID:   clientOrderID,
		Side:            side,
		Symbol:          a.symbol,
		Price:           price,
		SegmentQty:      qty,
		LeavesQty:       leavesQty,
		CumulativeQty:   st.cumulativeQty,
		AveragePrice:    st.averagePrice(),
		IsMaker:         true,
	})
}

func (a *Adapter) onMakerFullFill(xid common.OrderID, price float64, totalQty uint64, side common.Side, trader, clientOrderID string) {
	st, ok := a.mp.fillState(xid)
	if !ok {
		log.Error().Uint64("xid", uint64(xid)).Msg("maker_full_fill for an order with no fill-state; consistency violation (spec.md §7)")
		st = &partialFillState{}
	}
	a.foldFinalSegment(st, xid, price, totalQty)

	a.publishTrader(fillEventName(true, a.mp.kind[xid]), trader, FillEvent{
		ExchangeOrderID: xid,
		ClientOrderID:   clientOrderID,
		Side:            side,
		Symbol:          a.symbol,
		Price:           price,
		SegmentQty:      totalQty,
		CumulativeQty:   totalQty,
		AveragePrice:    st.averagePrice(),
		IsMaker:         true,
		Final:           true,
	})
	a.removeWithWarning(xid)
}

func (a *Adapter) onTakerPartialFill(xid common.OrderID, takerSide common.Side, price float64, segmentQty, leavesQty uint64, trader, clientOrderID string) {
	st, ok := a.mp.fillState(xid)
	if !ok {
		log.Error().Uint64("xid", uint64(xid)).Msg("taker_partial_fill for an order with no fill-state; consistency violation (spec.md §7)")
		return
	}
	st.add(price, segmentQty)

	a.publishTrader(fillEventName(false, a.mp.kind[xid]), trader, FillEvent{
		ExchangeOrderID: xid,
		ClientOrderID:   clientOrderID,
		Side:            takerSide,
		Symbol:          a.symbol,
		Price:           price,
		SegmentQty:      segmentQty,
		LeavesQty:       leavesQty,
		CumulativeQty:   st.cumulativeQty,
		AveragePrice:    st.averagePrice(),
		IsMaker:         false,
	})
}

func (a *Adapter) onTakerFullFill(xid common.OrderID, takerSide common.Side, price float64, totalQty uint64, trader, clientOrderID string) {
	st, ok := a.mp.fillState(xid)
	if !ok {
		log.Error().Uint64("xid", uint64(xid)).Msg("taker_full_fill for an order with no fill-state; consistency violation (spec.md §7)")
		st = &partialFillState{}
	}
	a.foldFinalSegment(st, xid, price, totalQty)

	a.publishTrader(fillEventName(true, a.mp.kind[xid]), trader, FillEvent{
		ExchangeOrderID: xid,
		ClientOrderID:   clientOrderID,
		Side:            takerSide,
		Symbol:          a.symbol,
		Price:           price,
		SegmentQty:      totalQty,
		CumulativeQty:   totalQty,
		AveragePrice:    st.averagePrice(),
		IsMaker:         false,
		Final:           true,
	})
	a.removeWithWarning(xid)
}

// foldFinalSegment implements spec.md §4.5's full-fill derivation: the
// last segment is the engine's reported aggregate minus whatever the
// adapter had already accumulated. A negative result is a hard
// inconsistency (engine and adapter disagree); it is logged and the
// event still uses the engine's aggregate for the quantity field
// (spec.md §7 "prefer the engine's authoritative value").
func (a *Adapter) foldFinalSegment(st *partialFillState, xid common.OrderID, price float64, aggregateQty uint64) {
	if aggregateQty < st.cumulativeQty {
		log.Error().
			Uint64("xid", uint64(xid)).
			Uint64("engineAggregate", aggregateQty).
			Uint64("adapterCumulative", st.cumulativeQty).
			Msg("full-fill aggregate is less than adapter's running cumulative; hard inconsistency (spec.md §4.5)")
		return
	}
	segment := aggregateQty - st.cumulativeQty
	if segment > 0 {
		st.add(price, segment)
	}
}

func (a *Adapter) onFullCancelLimit(xid common.OrderID, price float64, qty uint64, side common.Side, reqTrader, reqClientOrderID string) {
	ack := FullCancelLimitAck{ExchangeOrderID: xid, ClientOrderID: reqClientOrderID, Price: price, Qty: qty, Side: side, Symbol: a.symbol}
	a.publishTrader("FullCancelLimitAck", reqTrader, ack)
	a.publishBroadcast("FullCancelLimitAck", ack)
	a.removeWithWarning(xid)
}

func (a *Adapter) onFullCancelLimitReject(xid common.OrderID, reqTrader, reqClientOrderID string) {
	a.publishTrader("FullCancelLimitReject", reqTrader, FullCancelLimitReject{ClientOrderID: reqClientOrderID, Symbol: a.symbol})
}

func (a *Adapter) onPartialCancelLimit(xid common.OrderID, price float64, cancelledQty uint64, reqTrader, reqClientOrderID string) {
	_, remainingQty, _, _ := a.eng.GetOrderDetails(xid)
	a.publishTrader("PartialCancelLimitAck", reqTrader, PartialCancelLimitAck{
		ExchangeOrderID: xid,
		ClientOrderID:   reqClientOrderID,
		Price:           price,
		CancelledQty:    cancelledQty,
		RemainingQty:    remainingQty,
		Symbol:          a.symbol,
	})
}

func (a *Adapter) onPartialCancelLimitReject(xid common.OrderID, reqTrader, reqClientOrderID string) {
	a.publishTrader("PartialCancelLimitReject", reqTrader, PartialCancelLimitReject{ClientOrderID: reqClientOrderID, Symbol: a.symbol})
}

func (a *Adapter) onQuantityModifiedRejected(xid common.OrderID, reason, reqTrader, reqClientOrderID string) {
	log.Error().
		Uint64("xid", uint64(xid)).
		Str("reason", reason).
		Msg("modify_quantity rejected by the engine after the adapter believed the order was live; consistency violation (spec.md §7)")
	a.publishTrader("PartialCancelLimitReject", reqTrader, PartialCancelLimitReject{ClientOrderID: reqClientOrderID, Symbol: a.symbol})
}

func (a *Adapter) onAckTriggerExpiration(xid common.OrderID, price float64, qty uint64, originalTrader, originalClientOrderID string, originalTimeout time.Duration) {
	ack := AckTriggerExpiredLimitOrder{
		ExchangeOrderID: xid,
		Symbol:          a.symbol,
		Price:           price,
		Qty:             qty,
		OriginalTrader:  originalTrader,
		OriginalCID:     originalClientOrderID,
		OriginalTimeout: originalTimeout,
	}
	if sender, ok := a.mp.expirationSender[xid]; ok {
		a.publishTrader("AckTriggerExpiredLimitOrder", sender, ack)
	}
	a.publishTrader("AckTriggerExpiredLimitOrder", originalTrader, ack)
	a.publishBroadcast("AckTriggerExpiredLimitOrder", ack)

	a.removeWithWarning(xid)
	delete(a.mp.expirationSender, xid)
}

func (a *Adapter) onRejectTriggerExpiration(xid common.OrderID, originalTrader, originalClientOrderID string, originalTimeout time.Duration) {
	reject := RejectTriggerExpiredLimitOrder{
		ExchangeOrderID: xid,
		Symbol:          a.symbol,
		OriginalTrader:  originalTrader,
		OriginalCID:     originalClientOrderID,
		OriginalTimeout: originalTimeout,
	}
	if sender, ok := a.mp.expirationSender[xid]; ok {
		a.publishTrader("RejectTriggerExpiredLimitOrder", sender, reject)
	}
	a.publishBroadcast("RejectTriggerExpiredLimitOrder", reject)
	// Mapping is deliberately not removed: the order may still be live
	// (spec.md §4.5 "On reject, the mapping is not removed").
}

// --- L2 diff gating -----------------------------------------------------

func (a *Adapter) publishSnapshotIfChanged() {
	bids, asks := a.eng.Snapshot()
	if equalFloats(bids, a.mp.lastPublishedBids) && equalFloats(asks, a.mp.lastPublishedAsks) {
		return
	}
	a.mp.lastPublishedBids = bids
	a.mp.lastPublishedAsks = asks
	a.publishSymbol("LTwoOrderBookEvent", LTwoOrderBookEvent{
		Symbol:    a.symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: a.clock.Now(),
	})
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

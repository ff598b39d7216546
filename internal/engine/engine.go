package engine

import (
	"time"

	"matchcore/internal/book"
	"matchcore/internal/common"

	"github.com/rs/zerolog/log"
)

// OrderMeta is the Matching Engine's own metadata store, keyed by
// exchange order id. It exists independently of the adapter's mapping
// state (spec.md §3): cancel_if_expired must retrieve the original
// trader/client-order-id from here, not from the caller, and
// maker_full_fill needs the cumulative filled quantity, which can only
// be accurate if the engine itself accumulates it across every separate
// aggressor call that chipped away at a resting order.
type OrderMeta struct {
	Trader        string
	ClientOrderID string
	OrderType     common.OrderType
	Timeout       time.Duration
	FilledQty     uint64 // cumulative quantity traded away while resting, maker role
}

type activeTakerContext struct {
	trader, clientOrderID string
}

// Engine is the Matching Engine (spec.md §4.4): a single-symbol book
// plus the orchestration that matches (and, for a limit order, books any
// remainder) and then emits acknowledge -> trade/fill callbacks for
// every inbound request, and the transient-id allocator for orders that
// never rest.
type Engine struct {
	symbol  common.Symbol
	wrapper *Wrapper
	cb      Callbacks

	meta          map[common.OrderID]*OrderMeta
	nextTransient common.OrderID

	activeTaker *activeTakerContext
}

// New constructs a Matching Engine for a single symbol with the given
// callback set.
func New(symbol common.Symbol, cb Callbacks) *Engine {
	return &Engine{
		symbol:        symbol,
		wrapper:       NewWrapper(),
		cb:            cb,
		meta:          make(map[common.OrderID]*OrderMeta),
		nextTransient: common.TransientIDStart,
	}
}

// Symbol returns the instrument this engine instance matches.
func (e *Engine) Symbol() common.Symbol { return e.symbol }

// Reset discards the entire book and all order metadata, restoring the
// engine to the state of a freshly constructed instance for the same
// symbol and callback set (spec.md §4.5 Bang, testable property 8). The
// transient-id counter restarts from TransientIDStart along with
// everything else — Bang is a full reset, not a soft clear.
func (e *Engine) Reset() {
	e.wrapper = NewWrapper()
	e.meta = make(map[common.OrderID]*OrderMeta)
	e.nextTransient = common.TransientIDStart
	e.activeTaker = nil
}

func (e *Engine) nextTransientID() common.OrderID {
	id := e.nextTransient
	e.nextTransient++
	return id
}

func (e *Engine) beginTaker(trader, clientOrderID string) {
	if e.activeTaker != nil {
		log.Error().
			Str("trader", trader).
			Str("clientOrderID", clientOrderID).
			Msg("re-entrant taker dispatch: engine is single-threaded cooperative (spec.md §5)")
	}
	e.activeTaker = &activeTakerContext{trader: trader, clientOrderID: clientOrderID}
}

func (e *Engine) endTaker() {
	e.activeTaker = nil
}

// PlaceLimit implements spec.md §4.4 place_limit: match then book the
// remainder, acknowledge before any fill, then replay trade/maker-fill/
// taker-fill in best-price-then-FIFO order.
func (e *Engine) PlaceLimit(side common.Side, price float64, qty uint64, timeout time.Duration, trader, clientOrderID string) common.OrderID {
	e.beginTaker(trader, clientOrderID)
	defer e.endTaker()

	result, remaining, clearings := e.wrapper.LimitMatchBook(side, price, qty)

	var ackID common.OrderID
	if result != nil {
		ackID = result.ID
	} else {
		ackID = e.nextTransientID()
	}
	e.meta[ackID] = &OrderMeta{Trader: trader, ClientOrderID: clientOrderID, OrderType: common.LimitOrder, Timeout: timeout}

	e.emitLimitAck(ackID, side, price, qty, remaining, trader, clientOrderID, timeout)
	e.dispatchClearings(ackID, side, trader, clientOrderID, clearings, qty)

	if remaining == 0 {
		// Fully executed without resting: the ack id was transient,
		// used only to label the fills just replayed above.
		delete(e.meta, ackID)
	}
	return ackID
}

// PlaceMarket implements spec.md §4.4 place_market. The transient id is
// always terminal: its metadata is removed once dispatch completes,
// regardless of whether the order fully executed.
func (e *Engine) PlaceMarket(side common.Side, qty uint64, trader, clientOrderID string) common.OrderID {
	e.beginTaker(trader, clientOrderID)
	defer e.endTaker()

	id := e.nextTransientID()
	e.meta[id] = &OrderMeta{Trader: trader, ClientOrderID: clientOrderID, OrderType: common.MarketOrder}

	remaining, clearings := e.wrapper.MarketMatch(side, qty)
	executed := qty - remaining

	e.emitMarketAck(side, qty, executed, remaining, trader, clientOrderID)
	e.dispatchClearings(id, side, trader, clientOrderID, clearings, qty)

	delete(e.meta, id)
	return id
}

// dispatchClearings replays trade/maker-fill/taker-fill callbacks for
// every fill segment across all clearings, in best-price-then-FIFO
// order, exactly once each (spec.md §4.4 step 4, §5 ordering
// guarantees).
func (e *Engine) dispatchClearings(takerID common.OrderID, takerSide common.Side, takerTrader, takerCID string, clearings []book.Clearing, takerOriginalQty uint64) {
	type flatFill struct {
		price float64
		fill  book.FillRecord
	}
	var flat []flatFill
	for _, clearing := range clearings {
		for _, fill := range clearing.Fills {
			flat = append(flat, flatFill{price: clearing.Price, fill: fill})
		}
	}
	if len(flat) == 0 {
		return
	}

	overallFilled := uint64(0)
	for _, ff := range flat {
		overallFilled += ff.fill.TradedQty
	}
	takerFullyFilled := overallFilled == takerOriginalQty

	var takerCumulative uint64
	for i, ff := range flat {
		maker := ff.fill
		makerMeta := e.meta[maker.MakerID]
		makerTrader, makerCID := "", ""
		if makerMeta != nil {
			makerTrader, makerCID = makerMeta.Trader, makerMeta.ClientOrderID
			makerMeta.FilledQty += maker.TradedQty
		}

		e.emitTrade(maker.MakerID, takerSide.Opposite(), takerID, takerSide, ff.price, maker.TradedQty, maker.Exhausted, makerTrader, makerCID, takerTrader, takerCID)

		if maker.Exhausted {
			totalQty := maker.TradedQty
			if makerMeta != nil {
				totalQty = makerMeta.FilledQty
			}
			e.emitMakerFullFill(maker.MakerID, ff.price, totalQty, takerSide.Opposite(), makerTrader, makerCID)
			delete(e.meta, maker.MakerID)
		} else {
			e.emitMakerPartialFill(maker.MakerID, ff.price, maker.TradedQty, takerSide.Opposite(), makerTrader, makerCID)
		}

		takerCumulative += maker.TradedQty
		isLastFill := i == len(flat)-1
		if isLastFill && takerFullyFilled {
			e.emitTakerFullFill(takerID, takerSide, ff.price, takerCumulative, takerTrader, takerCID)
		} else {
			leaves := takerOriginalQty - takerCumulative
			e.emitTakerPartialFill(takerID, takerSide, ff.price, maker.TradedQty, leaves, takerTrader, takerCID)
		}
	}
}

// Cancel implements spec.md §4.4 cancel: delete if resting, ack with
// side+quantity; reject with no engine mutation otherwise.
func (e *Engine) Cancel(id common.OrderID, reqTrader, reqClientOrderID string) {
	side, price, qty, ok := e.wrapper.Cancel(id)
	if !ok {
		e.emitFullCancelLimitReject(id, reqTrader, reqClientOrderID)
		return
	}
	delete(e.meta, id)
	e.emitFullCancelLimit(id, price, qty, side, reqTrader, reqClientOrderID)
}

// CancelIfExpired implements spec.md §4.4 cancel_if_expired. Original
// trader/client-order-id metadata comes from the engine's own store,
// never the caller (spec.md §4.4).
func (e *Engine) CancelIfExpired(id common.OrderID, originalTimeout time.Duration) {
	meta := e.meta[id]
	_, price, qty, ok := e.wrapper.Cancel(id)

	var trader, clientOrderID string
	if meta != nil {
		trader, clientOrderID = meta.Trader, meta.ClientOrderID
	}

	if !ok {
		e.emitRejectTriggerExpiration(id, trader, clientOrderID, originalTimeout)
		return
	}
	delete(e.meta, id)
	e.emitAckTriggerExpiration(id, price, qty, trader, clientOrderID, originalTimeout)
}

// ModifyQuantity implements spec.md §4.4 modify_quantity: always applied
// with INPLACE priority. A full removal (newQty <= 0) still emits the
// partial-cancel signal, not a full-cancel signal, per the adapter's
// reduction protocol (spec.md §4.4) — the adapter decides how to
// surface that to its callers.
func (e *Engine) ModifyQuantity(id common.OrderID, newQty int64, reqTrader, reqClientOrderID string) {
	res, ok := e.wrapper.ModifyQuantity(id, newQty, common.InPlace)
	if !ok {
		e.emitQuantityModifiedRejected(id, "unknown order id", reqTrader, reqClientOrderID)
		return
	}

	if res.Removed {
		delete(e.meta, id)
		e.emitPartialCancelLimit(id, res.Price, res.OldQty, reqTrader, reqClientOrderID)
		return
	}

	var cancelledQty uint64
	if res.OldQty >= res.NewQty {
		cancelledQty = res.OldQty - res.NewQty
	} else {
		log.Error().
			Uint64("oldQty", res.OldQty).
			Uint64("newQty", res.NewQty).
			Msg("modify_quantity increased resting quantity; partial_cancel_limit reports zero cancelled")
	}
	e.emitPartialCancelLimit(id, res.Price, cancelledQty, reqTrader, reqClientOrderID)
}

// GetOrderDetails implements spec.md §4.4 get_order_details.
func (e *Engine) GetOrderDetails(id common.OrderID) (price float64, qty uint64, side common.Side, ok bool) {
	return e.wrapper.GetOrderDetails(id)
}

// Snapshot returns the current L2 view, flat and ordered per spec.md §6
// "L2 wire layout". It has no side effects and may be called as often as
// the caller likes; diff-gating against the previous snapshot is the
// adapter's job (spec.md §9 Open Question (b)), not the engine's.
func (e *Engine) Snapshot() (bidsFlat, asksFlat []float64) {
	return e.wrapper.SnapshotFlat()
}

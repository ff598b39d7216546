package adapter

import (
	"testing"
	"time"

	"matchcore/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	topic   string
	payload any
}

type recordingBus struct {
	events []recorded
}

func (r *recordingBus) Publish(topic string, payload any) {
	r.events = append(r.events, recorded{topic: topic, payload: payload})
}

func eventsOfType[T any](r *recordingBus) []T {
	var out []T
	for _, e := range r.events {
		if v, ok := e.payload.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastEventOfType[T any](t *testing.T, r *recordingBus) T {
	t.Helper()
	all := eventsOfType[T](r)
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

const sym = common.Symbol("XYZ")

func newHarness() (*Adapter, *recordingBus) {
	rb := &recordingBus{}
	a := New(sym, rb, fixedClock{t: time.Unix(1000, 0)})
	return a, rb
}

func limitReq(side common.Side, price float64, qty uint64, trader, cid string) LimitOrderRequest {
	return LimitOrderRequest{Symbol: sym, Side: side, Price: price, Qty: qty, Timeout: time.Hour, ClientOrderID: cid, Trader: trader}
}

func TestS1_UncrossedBookAcksAndSnapshotNoTrades(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Buy, 100, 10, "alice", "c1"))
	a.HandleLimitOrder(limitReq(common.Sell, 102, 5, "bob", "c2"))

	acks := eventsOfType[LimitOrderAck](rb)
	require.Len(t, acks, 2)
	assert.Equal(t, uint64(10), acks[0].RemainingQty)
	assert.Equal(t, uint64(5), acks[1].RemainingQty)

	assert.Empty(t, eventsOfType[TradeEvent](rb))

	snap := lastEventOfType[LTwoOrderBookEvent](t, rb)
	assert.Equal(t, []float64{100, 10}, snap.Bids)
	assert.Equal(t, []float64{102, 5}, snap.Asks)
}

func TestS2_FullTakerFillViaMarketOrder(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Buy, 100, 10, "alice", "c1"))
	a.HandleLimitOrder(limitReq(common.Sell, 102, 5, "bob", "c2"))

	a.HandleMarketOrder(MarketOrderRequest{Symbol: sym, Side: common.Buy, Qty: 3, ClientOrderID: "c3", Trader: "carol"})

	mAck := lastEventOfType[MarketOrderAck](t, rb)
	assert.Equal(t, uint64(3), mAck.RequestedQty)
	assert.Equal(t, uint64(3), mAck.ExecutedQty)
	assert.Equal(t, uint64(0), mAck.UnfilledQty)

	trades := eventsOfType[TradeEvent](rb)
	require.Len(t, trades, 2) // published once per distinct trader stream (maker bob, taker carol)
	assert.Equal(t, 102.0, trades[0].Price)
	assert.Equal(t, uint64(3), trades[0].Qty)

	fills := eventsOfType[FillEvent](rb)
	var makerFill, takerFill FillEvent
	for _, f := range fills {
		if f.IsMaker {
			makerFill = f
		} else {
			takerFill = f
		}
	}
	assert.False(t, makerFill.Final)
	assert.Equal(t, uint64(3), makerFill.SegmentQty)
	assert.True(t, takerFill.Final)
	assert.Equal(t, uint64(3), takerFill.CumulativeQty)
	assert.Equal(t, 102.0, takerFill.AveragePrice)

	snap := lastEventOfType[LTwoOrderBookEvent](t, rb)
	assert.Equal(t, []float64{102, 2}, snap.Asks)
}

func TestS3_MultiLevelSweepAveragePrice(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Sell, 101, 4, "bob", "c1"))
	a.HandleLimitOrder(limitReq(common.Sell, 102, 5, "bob", "c2"))
	a.HandleLimitOrder(limitReq(common.Buy, 103, 6, "carol", "c3"))

	// Find the taker's FullFill among all fills (it is the final one logged for carol).
	fills := eventsOfType[FillEvent](rb)
	var taker FillEvent
	for _, f := range fills {
		if !f.IsMaker && f.Final {
			taker = f
		}
	}
	require.NotZero(t, taker.CumulativeQty)
	assert.Equal(t, uint64(6), taker.CumulativeQty)
	expectedAvg := (101.0*4 + 102.0*2) / 6.0
	assert.InDelta(t, expectedAvg, taker.AveragePrice, 1e-9)
}

func TestS4_PartialCancelByReduction(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Buy, 100, 10, "alice", "c1"))

	a.HandlePartialCancelLimit(PartialCancelLimitRequest{Symbol: sym, TargetClientOrderID: "c1", CancelQty: 3, ClientOrderID: "c2", Trader: "alice"})

	ack := lastEventOfType[PartialCancelLimitAck](t, rb)
	assert.Equal(t, uint64(3), ack.CancelledQty)
	assert.Equal(t, uint64(7), ack.RemainingQty)

	snap := lastEventOfType[LTwoOrderBookEvent](t, rb)
	assert.Equal(t, []float64{100, 7}, snap.Bids)
}

func TestS5_PartialCancelExceedingSizePromotesToFullCancel(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Buy, 100, 10, "alice", "c1"))
	a.HandlePartialCancelLimit(PartialCancelLimitRequest{Symbol: sym, TargetClientOrderID: "c1", CancelQty: 3, ClientOrderID: "c2", Trader: "alice"})

	a.HandlePartialCancelLimit(PartialCancelLimitRequest{Symbol: sym, TargetClientOrderID: "c1", CancelQty: 50, ClientOrderID: "c3", Trader: "alice"})

	full := lastEventOfType[FullCancelLimitAck](t, rb)
	assert.Equal(t, uint64(7), full.Qty)

	snap := lastEventOfType[LTwoOrderBookEvent](t, rb)
	assert.Empty(t, snap.Bids)

	// The mapping is gone: a further cancel on the same client_order_id rejects.
	before := len(eventsOfType[PartialCancelLimitReject](rb))
	a.HandlePartialCancelLimit(PartialCancelLimitRequest{Symbol: sym, TargetClientOrderID: "c1", CancelQty: 1, ClientOrderID: "c4", Trader: "alice"})
	assert.Len(t, eventsOfType[PartialCancelLimitReject](rb), before+1)
}

func TestS6_Expiration(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Buy, 99, 4, "alice", "c1"))
	acks := eventsOfType[LimitOrderAck](rb)
	require.Len(t, acks, 1)
	xid := acks[0].ExchangeOrderID

	a.HandleTriggerExpiredLimitOrder(TriggerExpiredLimitOrderRequest{Symbol: sym, TargetXID: xid, OriginalTimeout: time.Hour, Sender: "scheduler"})

	ackExp := lastEventOfType[AckTriggerExpiredLimitOrder](t, rb)
	assert.Equal(t, xid, ackExp.ExchangeOrderID)
	assert.Equal(t, 99.0, ackExp.Price)
	assert.Equal(t, uint64(4), ackExp.Qty)

	snap := lastEventOfType[LTwoOrderBookEvent](t, rb)
	assert.Empty(t, snap.Bids)

	a.HandleTriggerExpiredLimitOrder(TriggerExpiredLimitOrderRequest{Symbol: sym, TargetXID: xid, OriginalTimeout: time.Hour, Sender: "scheduler"})
	reject := lastEventOfType[RejectTriggerExpiredLimitOrder](t, rb)
	assert.Equal(t, xid, reject.ExchangeOrderID)
}

func TestBang_ClearsEngineAndMappingState(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Buy, 100, 10, "alice", "c1"))
	a.HandleLimitOrder(limitReq(common.Sell, 102, 5, "bob", "c2"))

	a.HandleBang(BangRequest{Timestamp: time.Unix(2000, 0)})

	bangs := eventsOfType[BangEvent](rb)
	require.Len(t, bangs, 1)

	bids, asks := a.eng.Snapshot()
	assert.Empty(t, bids)
	assert.Empty(t, asks)

	// A fresh order after Bang must get a fresh resting id, proving the
	// book's id allocator itself was reset, not merely cleared of orders.
	a.HandleLimitOrder(limitReq(common.Buy, 50, 1, "dave", "c9"))
	ack := lastEventOfType[LimitOrderAck](t, rb)
	assert.Equal(t, common.OrderID(1), ack.ExchangeOrderID)
}

func TestMarketOrderCancelIsAlwaysRejected(t *testing.T) {
	a, rb := newHarness()
	a.HandleFullCancelMarket(FullCancelMarketRequest{Symbol: sym, TargetClientOrderID: "whatever", ClientOrderID: "c1", Trader: "alice"})
	a.HandlePartialCancelMarket(PartialCancelMarketRequest{Symbol: sym, TargetClientOrderID: "whatever", CancelQty: 1, ClientOrderID: "c2", Trader: "alice"})

	assert.Len(t, eventsOfType[FullCancelMarketReject](rb), 1)
	assert.Len(t, eventsOfType[PartialCancelMarketReject](rb), 1)
}

func TestSelfTrade_PublishesTradeOnlyOnceWhenMakerAndTakerShareTrader(t *testing.T) {
	a, rb := newHarness()
	a.HandleLimitOrder(limitReq(common.Sell, 100, 5, "alice", "c1"))
	a.HandleLimitOrder(limitReq(common.Buy, 100, 5, "alice", "c2"))

	trades := eventsOfType[TradeEvent](rb)
	require.Len(t, trades, 1)
}

package engine

import (
	"testing"
	"time"

	"matchcore/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedTrade struct {
	makerID, takerID         common.OrderID
	price                    float64
	qty                      uint64
	makerExhausted           bool
	makerTrader, takerTrader string
}

type callbackLog struct {
	acks         []string
	trades       []recordedTrade
	makerPartial []common.OrderID
	makerFull    []common.OrderID
	takerPartial []common.OrderID
	takerFull    []common.OrderID
	fullCancel   []common.OrderID
	fullReject   []common.OrderID
	partialCancel []common.OrderID
	partialQty    []uint64
	modifyReject  []common.OrderID
	expireAck     []common.OrderID
	expireReject  []common.OrderID
}

func newRecordingEngine() (*Engine, *callbackLog) {
	lg := &callbackLog{}
	cb := Callbacks{
		LimitAck: func(xid common.OrderID, side common.Side, price float64, qty, remainingQty uint64, trader, cid string, timeout time.Duration) {
			lg.acks = append(lg.acks, "limit_ack")
		},
		MarketAck: func(side common.Side, requestedQty, executedQty, unfilledQty uint64, trader, cid string) {
			lg.acks = append(lg.acks, "market_ack")
		},
		Trade: func(makerID common.OrderID, makerSide common.Side, takerID common.OrderID, takerSide common.Side, price float64, qty uint64, makerExhausted bool, makerTrader, makerCID, takerTrader, takerCID string) {
			lg.trades = append(lg.trades, recordedTrade{makerID, takerID, price, qty, makerExhausted, makerTrader, takerTrader})
		},
		MakerPartialFill: func(xid common.OrderID, price float64, qty uint64, side common.Side, trader, cid string) {
			lg.makerPartial = append(lg.makerPartial, xid)
		},
		MakerFullFill: func(xid common.OrderID, price float64, totalQty uint64, side common.Side, trader, cid string) {
			lg.makerFull = append(lg.makerFull, xid)
		},
		TakerPartialFill: func(xid common.OrderID, side common.Side, price float64, segmentQty, leavesQty uint64, trader, cid string) {
			lg.takerPartial = append(lg.takerPartial, xid)
		},
		TakerFullFill: func(xid common.OrderID, side common.Side, price float64, totalQty uint64, trader, cid string) {
			lg.takerFull = append(lg.takerFull, xid)
		},
		FullCancelLimit: func(xid common.OrderID, price float64, qty uint64, side common.Side, reqTrader, reqCID string) {
			lg.fullCancel = append(lg.fullCancel, xid)
		},
		FullCancelLimitReject: func(xid common.OrderID, reqTrader, reqCID string) {
			lg.fullReject = append(lg.fullReject, xid)
		},
		PartialCancelLimit: func(xid common.OrderID, price float64, cancelledQty uint64, reqTrader, reqCID string) {
			lg.partialCancel = append(lg.partialCancel, xid)
			lg.partialQty = append(lg.partialQty, cancelledQty)
		},
		QuantityModifiedRejected: func(xid common.OrderID, reason, reqTrader, reqCID string) {
			lg.modifyReject = append(lg.modifyReject, xid)
		},
		AckTriggerExpiration: func(xid common.OrderID, price float64, qty uint64, originalTrader, originalCID string, originalTimeout time.Duration) {
			lg.expireAck = append(lg.expireAck, xid)
		},
		RejectTriggerExpiration: func(xid common.OrderID, originalTrader, originalCID string, originalTimeout time.Duration) {
			lg.expireReject = append(lg.expireReject, xid)
		},
	}
	return New(common.Symbol("TEST"), cb), lg
}

func TestPlaceLimit_RestsWhenNoCross(t *testing.T) {
	e, lg := newRecordingEngine()
	id := e.PlaceLimit(common.Buy, 100.0, 10, time.Minute, "alice", "cid-1")

	assert.Less(t, uint64(id), uint64(common.TransientIDStart))
	assert.Equal(t, []string{"limit_ack"}, lg.acks)
	assert.Empty(t, lg.trades)

	price, qty, side, ok := e.GetOrderDetails(id)
	require.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, uint64(10), qty)
	assert.Equal(t, common.Buy, side)
}

func TestPlaceLimit_FullyCrossesGetsTransientID(t *testing.T) {
	e, lg := newRecordingEngine()
	makerID := e.PlaceLimit(common.Sell, 100.0, 10, time.Minute, "maker", "m-1")
	takerID := e.PlaceLimit(common.Buy, 100.0, 10, time.Minute, "taker", "t-1")

	assert.GreaterOrEqual(t, uint64(takerID), uint64(common.TransientIDStart))
	require.Len(t, lg.trades, 1)
	assert.Equal(t, makerID, lg.trades[0].makerID)
	assert.Equal(t, takerID, lg.trades[0].takerID)
	assert.True(t, lg.trades[0].makerExhausted)
	assert.Equal(t, []common.OrderID{makerID}, lg.makerFull)
	assert.Equal(t, []common.OrderID{takerID}, lg.takerFull)
	assert.Empty(t, lg.makerPartial)
	assert.Empty(t, lg.takerPartial)

	_, _, _, ok := e.GetOrderDetails(makerID)
	assert.False(t, ok, "exhausted maker must not remain in the book")
}

func TestPlaceLimit_PartialFillRestsRemainder(t *testing.T) {
	e, lg := newRecordingEngine()
	makerID := e.PlaceLimit(common.Sell, 100.0, 10, time.Minute, "maker", "m-1")
	takerID := e.PlaceLimit(common.Buy, 100.0, 15, time.Minute, "taker", "t-1")

	assert.Less(t, uint64(takerID), uint64(common.TransientIDStart), "remainder rests, so id must be a resting id")
	assert.Equal(t, []common.OrderID{makerID}, lg.makerFull)
	assert.Equal(t, []common.OrderID{takerID}, lg.takerPartial)
	assert.Empty(t, lg.takerFull)

	_, qty, _, ok := e.GetOrderDetails(takerID)
	require.True(t, ok)
	assert.Equal(t, uint64(5), qty)
}

func TestPlaceLimit_MakerFullFillAccumulatesAcrossMultipleAggressors(t *testing.T) {
	e, lg := newRecordingEngine()
	makerID := e.PlaceLimit(common.Sell, 100.0, 10, time.Minute, "maker", "m-1")

	e.PlaceLimit(common.Buy, 100.0, 4, time.Minute, "taker1", "t-1")
	require.Len(t, lg.makerPartial, 1)
	require.Empty(t, lg.makerFull)

	e.PlaceLimit(common.Buy, 100.0, 6, time.Minute, "taker2", "t-2")
	require.Len(t, lg.makerFull, 1)
	assert.Equal(t, makerID, lg.makerFull[0])
}

func TestPlaceMarket_SweepsAndAlwaysReturnsTransientID(t *testing.T) {
	e, lg := newRecordingEngine()
	e.PlaceLimit(common.Sell, 100.0, 10, time.Minute, "maker", "m-1")
	id := e.PlaceMarket(common.Buy, 10, "taker", "t-1")

	assert.GreaterOrEqual(t, uint64(id), uint64(common.TransientIDStart))
	assert.Equal(t, []string{"limit_ack", "market_ack"}, lg.acks)
	assert.Equal(t, []common.OrderID{id}, lg.takerFull)
}

func TestCancel_AckAndReject(t *testing.T) {
	e, lg := newRecordingEngine()
	id := e.PlaceLimit(common.Buy, 100.0, 10, time.Minute, "alice", "cid-1")

	e.Cancel(id, "alice", "cid-2")
	assert.Equal(t, []common.OrderID{id}, lg.fullCancel)
	_, _, _, ok := e.GetOrderDetails(id)
	assert.False(t, ok)

	e.Cancel(id, "alice", "cid-3")
	assert.Equal(t, []common.OrderID{id}, lg.fullReject)
}

func TestCancelIfExpired_UsesEngineOwnedMetadata(t *testing.T) {
	e, lg := newRecordingEngine()
	id := e.PlaceLimit(common.Buy, 100.0, 10, time.Minute, "alice", "cid-1")

	e.CancelIfExpired(id, time.Minute)
	assert.Equal(t, []common.OrderID{id}, lg.expireAck)

	e.CancelIfExpired(id, time.Minute)
	assert.Equal(t, []common.OrderID{id}, lg.expireReject)
}

func TestModifyQuantity_ShrinkEmitsPartialCancelWithDelta(t *testing.T) {
	e, lg := newRecordingEngine()
	id := e.PlaceLimit(common.Buy, 100.0, 10, time.Minute, "alice", "cid-1")

	e.ModifyQuantity(id, 4, "alice", "cid-2")
	require.Equal(t, []common.OrderID{id}, lg.partialCancel)
	assert.Equal(t, []uint64{6}, lg.partialQty)

	_, qty, _, ok := e.GetOrderDetails(id)
	require.True(t, ok)
	assert.Equal(t, uint64(4), qty)
}

func TestModifyQuantity_ToZeroRemovesAndSignalsPartialNotFull(t *testing.T) {
	e, lg := newRecordingEngine()
	id := e.PlaceLimit(common.Buy, 100.0, 10, time.Minute, "alice", "cid-1")

	e.ModifyQuantity(id, 0, "alice", "cid-2")
	assert.Equal(t, []common.OrderID{id}, lg.partialCancel)
	assert.Empty(t, lg.fullCancel)

	_, _, _, ok := e.GetOrderDetails(id)
	assert.False(t, ok)
}

func TestModifyQuantity_UnknownIDRejected(t *testing.T) {
	e, lg := newRecordingEngine()
	e.ModifyQuantity(common.OrderID(9999), 4, "alice", "cid-1")
	assert.Equal(t, []common.OrderID{9999}, lg.modifyReject)
}

func TestSnapshot_ReflectsRestingLevels(t *testing.T) {
	e, _ := newRecordingEngine()
	e.PlaceLimit(common.Buy, 99.0, 5, time.Minute, "alice", "cid-1")
	e.PlaceLimit(common.Buy, 100.0, 5, time.Minute, "alice", "cid-2")

	bids, asks := e.Snapshot()
	assert.Equal(t, []float64{100.0, 5, 99.0, 5}, bids)
	assert.Empty(t, asks)
}

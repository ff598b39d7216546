// Package adapter implements the Event Adapter layer (spec.md §4.5): it
// translates inbound order-flow events into Matching Engine calls,
// owns the trader/client-order-id <-> exchange-order-id mapping, tracks
// per-order cumulative fill aggregates, and republishes engine
// callbacks as precisely typed outbound events, diff-gating L2
// snapshots along the way.
package adapter

import (
	"time"

	"matchcore/internal/common"
)

// Inbound request events (spec.md §6 "Inbound request events"). Each is
// a plain Go value, grounded on the teacher's struct-per-message-type
// idiom in internal/net/messages.go, but routed by topic as a Go value
// rather than parsed from a binary wire frame — wire protocols are out
// of scope (spec.md §1 Non-goals).

type LimitOrderRequest struct {
	Symbol        common.Symbol
	Side          common.Side
	Price         float64
	Qty           uint64
	Timeout       time.Duration
	ClientOrderID string
	Trader        string
}

type MarketOrderRequest struct {
	Symbol        common.Symbol
	Side          common.Side
	Qty           uint64
	Timeout       time.Duration
	ClientOrderID string
	Trader        string
}

type FullCancelLimitRequest struct {
	Symbol              common.Symbol
	TargetClientOrderID string
	ClientOrderID       string
	Trader              string
}

type FullCancelMarketRequest struct {
	Symbol              common.Symbol
	TargetClientOrderID string
	ClientOrderID       string
	Trader              string
}

type PartialCancelLimitRequest struct {
	Symbol              common.Symbol
	TargetClientOrderID string
	CancelQty           uint64
	ClientOrderID       string
	Trader              string
}

type PartialCancelMarketRequest struct {
	Symbol              common.Symbol
	TargetClientOrderID string
	CancelQty           uint64
	ClientOrderID       string
	Trader              string
}

// BangRequest is a global reset signal; it carries nothing beyond a
// timestamp.
type BangRequest struct {
	Timestamp time.Time
}

// TriggerExpiredLimitOrderRequest is published by the (external,
// out-of-scope) expiration scheduler.
type TriggerExpiredLimitOrderRequest struct {
	Symbol          common.Symbol
	TargetXID       common.OrderID
	OriginalTimeout time.Duration
	Sender          string
}

// Outbound events (spec.md §6 "Outbound events").

type LimitOrderAck struct {
	ExchangeOrderID common.OrderID
	ClientOrderID   string
	Side            common.Side
	Price           float64
	RequestedQty    uint64
	RemainingQty    uint64
	Symbol          common.Symbol
	Timeout         time.Duration
	OriginalTrader  string
}

type MarketOrderAck struct {
	ExchangeOrderID common.OrderID
	ClientOrderID   string
	Side            common.Side
	RequestedQty    uint64
	ExecutedQty     uint64
	UnfilledQty     uint64
	Symbol          common.Symbol
	OriginalTrader  string
}

type LimitOrderReject struct {
	ClientOrderID string
	Symbol        common.Symbol
	Reason        string
}

type MarketOrderReject struct {
	ClientOrderID string
	Symbol        common.Symbol
	Reason        string
}

type FullCancelLimitAck struct {
	ExchangeOrderID common.OrderID
	ClientOrderID   string
	Price           float64
	Qty             uint64
	Side            common.Side
	Symbol          common.Symbol
}

type FullCancelLimitReject struct {
	ClientOrderID string
	Symbol        common.Symbol
}

type FullCancelMarketReject struct {
	ClientOrderID string
	Symbol        common.Symbol
}

type PartialCancelLimitAck struct {
	ExchangeOrderID common.OrderID
	ClientOrderID   string
	Price           float64
	CancelledQty    uint64
	RemainingQty    uint64
	Symbol          common.Symbol
}

type PartialCancelLimitReject struct {
	ClientOrderID string
	Symbol        common.Symbol
}

type PartialCancelMarketReject struct {
	ClientOrderID string
	Symbol        common.Symbol
}

// FillEvent is the shared schema for both partial and full fills
// (spec.md §4.5 "Cumulative-fill event schema"). Partial fills populate
// LeavesQty; full fills leave it zero and Final true.
type FillEvent struct {
	ExchangeOrderID common.OrderID
	ClientOrderID   string
	Side            common.Side
	Symbol          common.Symbol
	Price           float64
	SegmentQty      uint64
	LeavesQty       uint64
	CumulativeQty   uint64
	AveragePrice    float64
	IsMaker         bool
	Final           bool
}

type TradeEvent struct {
	Symbol             common.Symbol
	MakerClientOrderID string
	TakerClientOrderID string
	MakerXID           common.OrderID
	TakerXID           common.OrderID
	Price              float64
	Qty                uint64
	MakerSide          common.Side
	MakerExhausted     bool
}

type LTwoOrderBookEvent struct {
	Symbol    common.Symbol
	Bids      []float64
	Asks      []float64
	Timestamp time.Time
}

type AckTriggerExpiredLimitOrder struct {
	ExchangeOrderID common.OrderID
	Symbol          common.Symbol
	Price           float64
	Qty             uint64
	OriginalTrader  string
	OriginalCID     string
	OriginalTimeout time.Duration
}

type RejectTriggerExpiredLimitOrder struct {
	ExchangeOrderID common.OrderID
	Symbol          common.Symbol
	OriginalTrader  string
	OriginalCID     string
	OriginalTimeout time.Duration
}

// BangEvent echoes a reset on the broadcast topic. BangToken is a fresh
// opaque identifier minted by the adapter (spec.md's terse "echoed on
// global reset" line doesn't specify a correlation id, but the same
// request/response correlation pattern the teacher's report protocol
// always carries applies here too) so that whichever agent issued the
// reset can match the echo to its request.
type BangEvent struct {
	Timestamp time.Time
	BangToken string
}

package adapter

import "matchcore/internal/common"

type traderCID struct {
	trader string
	cid    string
}

// orderKind distinguishes the two engine order types the adapter must
// remember per id (spec.md §3 "Adapter Mapping State").
type orderKind int

const (
	kindLimit orderKind = iota
	kindMarket
)

// partialFillState is the running cumulative-fill aggregate for one
// order (spec.md §4.5 "Partial-fill aggregation"). averagePrice is
// derived, not stored independently, so it can never drift from
// cumulativeValue/cumulativeQty.
type partialFillState struct {
	cumulativeQty   uint64
	cumulativeValue float64
}

func (p *partialFillState) averagePrice() float64 {
	if p.cumulativeQty == 0 {
		return 0
	}
	return p.cumulativeValue / float64(p.cumulativeQty)
}

func (p *partialFillState) add(segmentPrice float64, segmentQty uint64) {
	p.cumulativeQty += segmentQty
	p.cumulativeValue += segmentPrice * float64(segmentQty)
}

// mappingState is the adapter's owned bookkeeping (spec.md §3): the
// bidirectional trader/client-order-id <-> exchange-order-id mapping,
// the order-kind map, the per-order fill aggregate, the expiration
// trigger-sender map, and the last-published L2 baseline used for diff
// gating. It is deliberately a plain struct with map fields rather than
// its own package: it has no behavior independent of the Adapter that
// owns it.
type mappingState struct {
	cidToXID map[traderCID]common.OrderID
	xidToCID map[common.OrderID]traderCID
	kind     map[common.OrderID]orderKind
	fills    map[common.OrderID]*partialFillState

	expirationSender map[common.OrderID]string

	lastPublishedBids []float64
	lastPublishedAsks []float64
}

func newMappingState() *mappingState {
	return &mappingState{
		cidToXID:         make(map[traderCID]common.OrderID),
		xidToCID:         make(map[common.OrderID]traderCID),
		kind:             make(map[common.OrderID]orderKind),
		fills:            make(map[common.OrderID]*partialFillState),
		expirationSender: make(map[common.OrderID]string),
	}
}

// register records a freshly placed order's mapping, keyed by kind.
func (m *mappingState) register(trader, cid string, xid common.OrderID, k orderKind) {
	tc := traderCID{trader: trader, cid: cid}
	m.cidToXID[tc] = xid
	m.xidToCID[xid] = tc
	m.kind[xid] = k
	m.fills[xid] = &partialFillState{}
}

// remove erases every trace of xid: mapping, kind, and fill state.
// Removing an id that was never registered is a no-op; it reports
// wasPresent so a caller can log the spec.md §5 double-remove/
// missing-remove warning when appropriate — every genuine terminal-
// removal call site should via Adapter.removeWithWarning. The one
// exception is the market-order force-remove in HandleMarketOrder,
// which expects the mapping to sometimes already be gone and is not a
// warning-worthy case (spec.md §5 "any double-remove is a warning...
// but neither is fatal").
func (m *mappingState) remove(xid common.OrderID) (wasPresent bool) {
	tc, ok := m.xidToCID[xid]
	if ok {
		delete(m.cidToXID, tc)
		delete(m.xidToCID, xid)
	}
	_, hadKind := m.kind[xid]
	delete(m.kind, xid)
	delete(m.fills, xid)
	return ok || hadKind
}

// lookup resolves (trader, target_cid) -> xid, reporting whether any
// mapping is currently registered for it. The order kind is returned
// alongside so a caller can reject a mismatched kind, e.g. cancelling a
// market order through the limit-cancel path.
func (m *mappingState) lookup(trader, targetCID string) (common.OrderID, orderKind, bool) {
	xid, ok := m.cidToXID[traderCID{trader: trader, cid: targetCID}]
	if !ok {
		return 0, 0, false
	}
	k := m.kind[xid]
	return xid, k, true
}

func (m *mappingState) clientOrderID(xid common.OrderID) (trader, cid string, ok bool) {
	tc, present := m.xidToCID[xid]
	if !present {
		return "", "", false
	}
	return tc.trader, tc.cid, true
}

func (m *mappingState) fillState(xid common.OrderID) (*partialFillState, bool) {
	st, ok := m.fills[xid]
	return st, ok
}

func (m *mappingState) reset() {
	m.cidToXID = make(map[traderCID]common.OrderID)
	m.xidToCID = make(map[common.OrderID]traderCID)
	m.kind = make(map[common.OrderID]orderKind)
	m.fills = make(map[common.OrderID]*partialFillState)
	m.expirationSender = make(map[common.OrderID]string)
	m.lastPublishedBids = nil
	m.lastPublishedAsks = nil
}

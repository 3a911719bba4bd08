package domain

import (
	"sync"
	"sync/atomic"
)

type OrderBookSource string

const (
	OrderBookSourceProvider       OrderBookSource = "Provider"
	OrderBookSourceLocalOrderBook OrderBookSource = "LocalOrderBook"
)

// OrderBookSnapshot is a full point-in-time depth state tagged with the
// sequence number it is valid as of. Levels carry exchange-native decimal
// text, [price, quantity] per entry.
type OrderBookSnapshot struct {
	Source       OrderBookSource `json:"source"`
	LastUpdateID int64           `json:"lastUpdateId"`
	Bids         [][]string      `json:"bids"`
	Asks         [][]string      `json:"asks"`
}

// OrderBookUpdate is one atomic batch of level changes covering the
// sequence range [FirstUpdateID, FinalUpdateID]. A quantity of "0" deletes
// the level.
type OrderBookUpdate struct {
	Symbol        *MarketSymbol
	FirstUpdateID int64
	FinalUpdateID int64
	Bids          [][]string
	Asks          [][]string
}

func NewOrderBookUpdate(bids, asks [][]string, firstUpdateID, finalUpdateID int64, symbol *MarketSymbol) *OrderBookUpdate {
	return &OrderBookUpdate{
		Symbol:        symbol,
		FirstUpdateID: firstUpdateID,
		FinalUpdateID: finalUpdateID,
		Bids:          bids,
		Asks:          asks,
	}
}

// OrderBook is the aggregated market-depth view for one symbol: resting
// quantity per price level on each side, without order identity. It is a
// market-data book, not a matching engine.
//
// Derived best-of-book values are memoized: every mutation invalidates the
// cache and the next read recomputes both sides together, which amortizes
// the extremal lookup across write bursts.
//
// The book is written by a single feed goroutine; the mutex makes the query
// surface safe for concurrent readers (renderers, strategies). The update
// counter is atomic so it stays readable without the lock.
type OrderBook struct {
	symbol           *MarketSymbol
	priceDecimals    int
	quantityDecimals int

	mu   sync.Mutex
	bids *PriceLevelStore
	asks *PriceLevelStore

	cachedBestBid Price
	cachedBestAsk Price
	hasBestBid    bool
	hasBestAsk    bool
	cacheValid    bool

	updateCount atomic.Uint64
}

func NewOrderBook(symbol *MarketSymbol, priceDecimals, quantityDecimals int) *OrderBook {
	return &OrderBook{
		symbol:           symbol,
		priceDecimals:    priceDecimals,
		quantityDecimals: quantityDecimals,
		bids:             NewPriceLevelStore(SideBid),
		asks:             NewPriceLevelStore(SideAsk),
	}
}

func (ob *OrderBook) store(side Side) *PriceLevelStore {
	if side == SideBid {
		return ob.bids
	}
	return ob.asks
}

// Update sets the resting quantity at a price level; quantity 0 removes the
// level. This is the hot path.
func (ob *OrderBook) Update(side Side, price Price, quantity Quantity) {
	ob.mu.Lock()
	ob.store(side).Upsert(price, quantity)
	ob.cacheValid = false
	ob.mu.Unlock()

	ob.updateCount.Add(1)
}

// UpdateFromStrings applies one exchange-native level change, converting the
// decimal text through the fixed-point codec first.
func (ob *OrderBook) UpdateFromStrings(side Side, priceStr, quantityStr string) {
	price := StringToFixed(priceStr, ob.priceDecimals)
	quantity := StringToFixed(quantityStr, ob.quantityDecimals)
	ob.Update(side, price, quantity)
}

// Clear drops every level on both sides, e.g. before applying a fresh
// snapshot.
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	ob.bids.Clear()
	ob.asks.Clear()
	ob.cacheValid = false
	ob.mu.Unlock()
}

// ClearSide drops every level on one side.
func (ob *OrderBook) ClearSide(side Side) {
	ob.mu.Lock()
	ob.store(side).Clear()
	ob.cacheValid = false
	ob.mu.Unlock()
}

// refreshCache recomputes both cached best prices. Caller must hold ob.mu.
func (ob *OrderBook) refreshCache() {
	if ob.cacheValid {
		return
	}

	ob.cachedBestBid, ob.hasBestBid = ob.bids.Best()
	ob.cachedBestAsk, ob.hasBestAsk = ob.asks.Best()
	ob.cacheValid = true
}

func (ob *OrderBook) GetBestBid() (Price, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.refreshCache()
	return ob.cachedBestBid, ob.hasBestBid
}

func (ob *OrderBook) GetBestAsk() (Price, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.refreshCache()
	return ob.cachedBestAsk, ob.hasBestAsk
}

// GetSpread returns best ask minus best bid. A crossed book (bid >= ask) is
// representable here, typically transiently around snapshot application;
// the resulting non-positive spread is the caller's concern.
func (ob *OrderBook) GetSpread() (Price, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.refreshCache()

	if !ob.hasBestBid || !ob.hasBestAsk {
		return 0, false
	}
	return ob.cachedBestAsk - ob.cachedBestBid, true
}

// GetMidPrice returns (best bid + best ask) / 2 with truncating integer
// division.
func (ob *OrderBook) GetMidPrice() (Price, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.refreshCache()

	if !ob.hasBestBid || !ob.hasBestAsk {
		return 0, false
	}
	return (ob.cachedBestBid + ob.cachedBestAsk) / 2, true
}

func (ob *OrderBook) GetQuantityAt(side Side, price Price) Quantity {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.store(side).Quantity(price)
}

// GetTopLevels returns up to n levels in the side's canonical order: bids
// highest price first, asks lowest price first.
func (ob *OrderBook) GetTopLevels(side Side, n int) []PriceLevel {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.store(side).TopN(n)
}

func (ob *OrderBook) GetLevelCount(side Side) int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.store(side).Len()
}

func (ob *OrderBook) GetUpdateCount() uint64 {
	return ob.updateCount.Load()
}

func (ob *OrderBook) GetSymbol() *MarketSymbol { return ob.symbol }
func (ob *OrderBook) GetPriceDecimals() int    { return ob.priceDecimals }
func (ob *OrderBook) GetQuantityDecimals() int { return ob.quantityDecimals }

// TakeSnapshot serializes up to limit levels per side back to decimal text,
// in canonical order. limit <= 0 means the whole book. The snapshot's
// LastUpdateID is filled by the maintainer, which owns sequence state.
func (ob *OrderBook) TakeSnapshot(limit int) *OrderBookSnapshot {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bidLimit, askLimit := limit, limit
	if limit <= 0 {
		bidLimit, askLimit = ob.bids.Len(), ob.asks.Len()
	}

	return &OrderBookSnapshot{
		Source: OrderBookSourceLocalOrderBook,
		Bids:   ob.serializeLevels(ob.bids.TopN(bidLimit)),
		Asks:   ob.serializeLevels(ob.asks.TopN(askLimit)),
	}
}

func (ob *OrderBook) serializeLevels(levels []PriceLevel) [][]string {
	result := make([][]string, len(levels))
	for i, level := range levels {
		result[i] = []string{
			FixedToString(level.Price, ob.priceDecimals),
			FixedToString(level.Quantity, ob.quantityDecimals),
		}
	}
	return result
}

package domain

import "github.com/google/btree"

// Price is a fixed-point price scaled by 10^priceDecimals.
type Price = int64

// Quantity is a fixed-point quantity scaled by 10^quantityDecimals.
type Quantity = int64

type Side uint8

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideBid {
		return "BID"
	}
	return "ASK"
}

// PriceLevel is the aggregate resting quantity at one price.
type PriceLevel struct {
	Price    Price
	Quantity Quantity
}

const priceIndexDegree = 32

// PriceLevelStore holds one side of the depth book. A hash map serves the
// hot point-lookup path in O(1) while a btree index keeps prices in the
// side's canonical order (descending for bids, ascending for asks) for
// O(log N) insert/delete and cheap best-of-side access. Every mutation goes
// through both structures; divergence between them is a programming error.
type PriceLevelStore struct {
	side   Side
	levels map[Price]Quantity
	index  *btree.BTreeG[Price]
}

func NewPriceLevelStore(side Side) *PriceLevelStore {
	less := func(a, b Price) bool { return a < b }
	if side == SideBid {
		less = func(a, b Price) bool { return a > b }
	}

	return &PriceLevelStore{
		side:   side,
		levels: make(map[Price]Quantity),
		index:  btree.NewG[Price](priceIndexDegree, less),
	}
}

func (s *PriceLevelStore) Side() Side { return s.side }

// Upsert inserts or overwrites the level at price. A zero quantity is a
// delete command, never a storable state.
func (s *PriceLevelStore) Upsert(price Price, quantity Quantity) {
	if quantity == 0 {
		s.Remove(price)
		return
	}

	if _, ok := s.levels[price]; !ok {
		s.index.ReplaceOrInsert(price)
	}
	s.levels[price] = quantity
}

// Remove drops the level at price; no-op when absent.
func (s *PriceLevelStore) Remove(price Price) {
	if _, ok := s.levels[price]; !ok {
		return
	}
	delete(s.levels, price)
	s.index.Delete(price)
}

// Quantity returns 0 for an absent price. An explicitly zeroed level and a
// never-seen one are indistinguishable to callers.
func (s *PriceLevelStore) Quantity(price Price) Quantity {
	return s.levels[price]
}

// Best returns the extremal price of the side: highest for bids, lowest for
// asks. ok is false when the side is empty.
func (s *PriceLevelStore) Best() (Price, bool) {
	return s.index.Min()
}

// TopN returns up to n levels in the side's canonical order.
func (s *PriceLevelStore) TopN(n int) []PriceLevel {
	if n <= 0 {
		return nil
	}

	result := make([]PriceLevel, 0, n)
	s.index.Ascend(func(price Price) bool {
		if len(result) >= n {
			return false
		}
		result = append(result, PriceLevel{Price: price, Quantity: s.levels[price]})
		return true
	})
	return result
}

func (s *PriceLevelStore) Len() int {
	return len(s.levels)
}

func (s *PriceLevelStore) Clear() {
	s.levels = make(map[Price]Quantity)
	s.index.Clear(false)
}

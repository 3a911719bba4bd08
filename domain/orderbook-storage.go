package domain

import (
	"errors"
	"sync"
)

var ErrOrderBookNotFound = errors.New("order book not found")

// OrderBookStorage is the symbol-keyed registry of live book maintainers.
// Safe for concurrent use: the feed side registers, query consumers look up.
type OrderBookStorage struct {
	mu    sync.RWMutex
	books map[string]*OrderbookMaintainer
}

func NewOrderBookStorage() *OrderBookStorage {
	return &OrderBookStorage{
		books: make(map[string]*OrderbookMaintainer),
	}
}

func (s *OrderBookStorage) Add(symbol *MarketSymbol, maintainer *OrderbookMaintainer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[symbol.String()] = maintainer
}

func (s *OrderBookStorage) Get(symbol *MarketSymbol) (*OrderbookMaintainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	maintainer, ok := s.books[symbol.String()]
	if !ok {
		return nil, ErrOrderBookNotFound
	}
	return maintainer, nil
}

func (s *OrderBookStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

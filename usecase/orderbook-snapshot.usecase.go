package usecase

import (
	"github.com/spooky-finn/go-marketdepth/domain"
)

// OrderBookSnapshotUseCase serves point-in-time snapshots of locally
// maintained books, tagged with the sequence number of the last applied
// diff so a consumer can resume from its own stream.
type OrderBookSnapshotUseCase struct {
	storage *domain.OrderBookStorage
}

func NewOrderBookSnapshotUseCase(storage *domain.OrderBookStorage) *OrderBookSnapshotUseCase {
	return &OrderBookSnapshotUseCase{storage: storage}
}

func (uc *OrderBookSnapshotUseCase) GetOrderBookSnapshot(symbol *domain.MarketSymbol, limit int) (*domain.OrderBookSnapshot, error) {
	maintainer, err := uc.storage.Get(symbol)
	if err != nil {
		return nil, err
	}
	return maintainer.Snapshot(limit), nil
}

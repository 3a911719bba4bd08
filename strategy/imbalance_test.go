package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-marketdepth/domain"
	"github.com/spooky-finn/go-marketdepth/strategy"
)

func TestImbalance_NoSignalOnEmptyBook(t *testing.T) {
	s := strategy.NewImbalance(0.6, 5)
	book := newStrategyBook(t)

	assert.Nil(t, s.OnOrderBookUpdate(book))
}

func TestImbalance_BuySignalOnBidPressure(t *testing.T) {
	s := strategy.NewImbalance(0.6, 5)
	book := newStrategyBook(t)
	book.Update(domain.SideBid, 10000, 90)
	book.Update(domain.SideAsk, 10010, 10)

	sig := s.OnOrderBookUpdate(book)
	require.NotNil(t, sig)
	assert.Equal(t, strategy.SignalBuy, sig.Type)
	assert.InDelta(t, 0.8, sig.Strength, 0.001)
	assert.InDelta(t, 0.8, s.CurrentImbalance(), 0.001)

	// Edge triggered: persistent pressure does not re-fire.
	assert.Nil(t, s.OnOrderBookUpdate(book))
}

func TestImbalance_SellSignalOnAskPressure(t *testing.T) {
	s := strategy.NewImbalance(0.6, 5)
	book := newStrategyBook(t)
	book.Update(domain.SideBid, 10000, 10)
	book.Update(domain.SideAsk, 10010, 90)

	sig := s.OnOrderBookUpdate(book)
	require.NotNil(t, sig)
	assert.Equal(t, strategy.SignalSell, sig.Type)
}

func TestImbalance_NeutralizesThenRearms(t *testing.T) {
	s := strategy.NewImbalance(0.6, 5)
	book := newStrategyBook(t)

	book.Update(domain.SideBid, 10000, 90)
	book.Update(domain.SideAsk, 10010, 10)
	require.NotNil(t, s.OnOrderBookUpdate(book))

	// Decaying back inside half the threshold announces the neutralization
	// and re-arms the trigger.
	book.Update(domain.SideBid, 10000, 50)
	book.Update(domain.SideAsk, 10010, 50)
	sig := s.OnOrderBookUpdate(book)
	require.NotNil(t, sig)
	assert.Equal(t, strategy.SignalNone, sig.Type)
	assert.Contains(t, sig.Reason, "imbalance neutralized")

	// Still balanced: the neutralize signal fires only on the transition.
	assert.Nil(t, s.OnOrderBookUpdate(book))

	book.Update(domain.SideBid, 10000, 90)
	book.Update(domain.SideAsk, 10010, 10)
	sig = s.OnOrderBookUpdate(book)
	require.NotNil(t, sig)
	assert.Equal(t, strategy.SignalBuy, sig.Type)
}

func TestImbalance_OnlyTopLevelsCounted(t *testing.T) {
	s := strategy.NewImbalance(0.6, 1)
	book := newStrategyBook(t)

	// Deep bid liquidity beyond the top level must not count at depth 1.
	book.Update(domain.SideBid, 10000, 10)
	book.Update(domain.SideBid, 9990, 1000)
	book.Update(domain.SideAsk, 10010, 10)

	assert.Nil(t, s.OnOrderBookUpdate(book))
	assert.InDelta(t, 0, s.CurrentImbalance(), 0.001)
}

package strategy

import (
	"fmt"

	"github.com/spooky-finn/go-marketdepth/domain"
)

// Imbalance compares aggregate resting quantity on the top N levels of each
// side. A strong excess of bids signals buy pressure, of asks sell
// pressure. One signal per threshold crossing; once the imbalance decays to
// half the threshold it emits a neutralize signal and re-arms.
type Imbalance struct {
	threshold float64
	depth     int

	lastImbalance float64
	activeSignal  SignalType
}

func NewImbalance(threshold float64, depth int) *Imbalance {
	return &Imbalance{threshold: threshold, depth: depth}
}

func (s *Imbalance) Name() string { return "Imbalance" }

func (s *Imbalance) OnOrderBookUpdate(book *domain.OrderBook) *Signal {
	var bidQty, askQty float64
	for _, level := range book.GetTopLevels(domain.SideBid, s.depth) {
		bidQty += float64(level.Quantity)
	}
	for _, level := range book.GetTopLevels(domain.SideAsk, s.depth) {
		askQty += float64(level.Quantity)
	}

	total := bidQty + askQty
	if total == 0 {
		return nil
	}

	imbalance := (bidQty - askQty) / total
	s.lastImbalance = imbalance

	strength := imbalance
	if strength < 0 {
		strength = -strength
	}
	if strength > 1 {
		strength = 1
	}

	switch {
	case imbalance > s.threshold && s.activeSignal != SignalBuy:
		s.activeSignal = SignalBuy
		reason := fmt.Sprintf("bid-side imbalance: %.1f%%", imbalance*100)
		return NewSignal(SignalBuy, reason, strength)

	case imbalance < -s.threshold && s.activeSignal != SignalSell:
		s.activeSignal = SignalSell
		reason := fmt.Sprintf("ask-side imbalance: %.1f%%", imbalance*100)
		return NewSignal(SignalSell, reason, strength)

	case imbalance > -s.threshold/2 && imbalance < s.threshold/2:
		if s.activeSignal != SignalNone {
			s.activeSignal = SignalNone
			reason := fmt.Sprintf("imbalance neutralized: %.1f%%", imbalance*100)
			return NewSignal(SignalNone, reason, 0)
		}
	}

	return nil
}

func (s *Imbalance) CurrentImbalance() float64 { return s.lastImbalance }

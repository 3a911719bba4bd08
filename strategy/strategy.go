package strategy

import (
	"time"

	"github.com/spooky-finn/go-marketdepth/domain"
)

type SignalType int

const (
	SignalNone SignalType = iota
	SignalBuy
	SignalSell
	SignalWarning
)

func (t SignalType) String() string {
	switch t {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	case SignalWarning:
		return "WARN"
	default:
		return "INFO"
	}
}

// Signal is one strategy observation. Strength is 0.0 to 1.0.
type Signal struct {
	Type      SignalType
	Reason    string
	Strength  float64
	Timestamp time.Time
}

func NewSignal(signalType SignalType, reason string, strength float64) *Signal {
	return &Signal{
		Type:      signalType,
		Reason:    reason,
		Strength:  strength,
		Timestamp: time.Now(),
	}
}

// Strategy reads book state after each applied update and may emit a
// signal. Implementations are driven from a single consumer goroutine and
// keep their own state unsynchronized.
type Strategy interface {
	Name() string
	OnOrderBookUpdate(book *domain.OrderBook) *Signal
}

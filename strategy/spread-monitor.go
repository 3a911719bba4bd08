package strategy

import (
	"fmt"

	"github.com/spooky-finn/go-marketdepth/domain"
)

const (
	spreadEMAAlpha      = 0.1
	spreadWarmupSamples = 10
)

// SpreadMonitor tracks the bid-ask spread as a percentage of mid price and
// warns when it widens past its exponential moving average by more than the
// configured threshold.
type SpreadMonitor struct {
	alertThresholdPct float64

	avg           float64
	sampleCount   int
	lastSpreadPct float64
	alertActive   bool
}

// NewSpreadMonitor alerts when the spread exceeds its average by more than
// alertThresholdPct (0.5 = 50% above average).
func NewSpreadMonitor(alertThresholdPct float64) *SpreadMonitor {
	return &SpreadMonitor{alertThresholdPct: alertThresholdPct}
}

func (s *SpreadMonitor) Name() string { return "SpreadMonitor" }

func (s *SpreadMonitor) OnOrderBookUpdate(book *domain.OrderBook) *Signal {
	bid, hasBid := book.GetBestBid()
	ask, hasAsk := book.GetBestAsk()
	if !hasBid || !hasAsk {
		return nil
	}

	mid := float64(bid+ask) / 2
	if mid <= 0 {
		return nil
	}
	spreadPct := float64(ask-bid) / mid * 100

	s.updateAverage(spreadPct)
	s.lastSpreadPct = spreadPct

	if s.sampleCount < spreadWarmupSamples || s.avg == 0 {
		return nil
	}

	ratio := spreadPct / s.avg
	if ratio > 1+s.alertThresholdPct && !s.alertActive {
		s.alertActive = true
		reason := fmt.Sprintf("spread widened: %.4f%% (avg: %.4f%%)", spreadPct, s.avg)
		strength := ratio - 1
		if strength > 1 {
			strength = 1
		}
		return NewSignal(SignalWarning, reason, strength)
	}
	if ratio < 1+s.alertThresholdPct/2 && s.alertActive {
		s.alertActive = false
		return NewSignal(SignalNone, fmt.Sprintf("spread normalized: %.4f%%", spreadPct), 0)
	}

	return nil
}

func (s *SpreadMonitor) updateAverage(spreadPct float64) {
	if s.sampleCount == 0 {
		s.avg = spreadPct
	} else {
		s.avg = spreadEMAAlpha*spreadPct + (1-spreadEMAAlpha)*s.avg
	}
	s.sampleCount++
}

func (s *SpreadMonitor) CurrentSpreadPct() float64 { return s.lastSpreadPct }
func (s *SpreadMonitor) AverageSpreadPct() float64 { return s.avg }
func (s *SpreadMonitor) AlertActive() bool         { return s.alertActive }

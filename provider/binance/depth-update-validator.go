package binance

import "github.com/spooky-finn/go-marketdepth/domain"

// DepthUpdateValidator encodes Binance's depth stream sequencing contract:
// events carry a [U, u] update-id range; an event is stale when its whole
// range is covered by the last applied id, and the feed has gapped when the
// next event starts past lastAppliedID+1.
type DepthUpdateValidator struct{}

func (v *DepthUpdateValidator) ValidateUpdate(update *domain.OrderBookUpdate, lastAppliedID int64) error {
	// Drop any event where u <= lastUpdateId of the snapshot or the
	// previously applied event.
	if update.FinalUpdateID <= lastAppliedID {
		return domain.ErrUpdateOutdated
	}

	// Each admissible event must start at or before lastAppliedID+1.
	// A later start means at least one sequence id was never seen.
	if update.FirstUpdateID > lastAppliedID+1 {
		return domain.ErrUpdateOutOfSequence
	}

	return nil
}

package domain

import "errors"

var (
	// ErrUpdateOutdated marks an update whose whole sequence range is already
	// covered by the snapshot or a previously applied update. Safe to skip.
	ErrUpdateOutdated = errors.New("order book update is outdated")

	// ErrUpdateOutOfSequence marks a sequence gap: the update starts after
	// the next expected id. The book must be resynchronized from a fresh
	// snapshot; applying across the gap would silently corrupt it.
	ErrUpdateOutOfSequence = errors.New("order book update is out of sequence")
)

// DepthUpdateValidator decides whether a diff update may be applied on top
// of the last applied sequence id. nil means apply.
type DepthUpdateValidator interface {
	ValidateUpdate(update *OrderBookUpdate, lastAppliedID int64) error
}

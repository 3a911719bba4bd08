package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"

	"github.com/spooky-finn/go-marketdepth/logger"
	"github.com/spooky-finn/go-marketdepth/telemetry"
)

type SyncState string

const (
	// SyncStateIdle: feed not yet delivering; incoming diffs kick off a
	// bootstrap.
	SyncStateIdle SyncState = "Idle"
	// SyncStateAwaitingSnapshot: a diff has been observed and the snapshot
	// fetch is pending (or has failed and will be retried on the next diff).
	SyncStateAwaitingSnapshot SyncState = "AwaitingSnapshot"
	// SyncStateSynchronized: steady state, admissible diffs are applied.
	SyncStateSynchronized SyncState = "Synchronized"
	// SyncStateGapped: a sequence gap was detected; events are discarded
	// until a fresh bootstrap cycle completes.
	SyncStateGapped SyncState = "Gapped"
)

var maintainerLogger = logger.Component("orderbook-maintainer")

// OrderbookMaintainer keeps one OrderBook consistent with the exchange feed.
// It bootstraps the book from a snapshot, then applies the live diff stream,
// discarding stale updates and resynchronizing on sequence gaps.
//
// Diffs that arrive while the snapshot fetch is in flight are buffered and
// replayed through the admission rule once the snapshot applies, so no
// legitimate update between snapshot and stream head is dropped.
//
// All book mutations and state transitions happen on the single goroutine
// started by Start; accessors are safe from other goroutines.
type OrderbookMaintainer struct {
	book      *OrderBook
	streamAPI ProviderStreamAPI
	syncAPI   ProviderSyncAPI
	validator DepthUpdateValidator

	snapshotDepth int

	mu             sync.Mutex
	state          SyncState
	lastAppliedID  int64
	bootstrapQueue deque.Deque[*OrderBookUpdate]

	applied      chan struct{}
	resyncCount  atomic.Int64
	staleCount   atomic.Int64
	applyLatency *telemetry.LatencyStats

	wg sync.WaitGroup
}

func NewOrderbookMaintainer(
	book *OrderBook,
	streamAPI ProviderStreamAPI,
	syncAPI ProviderSyncAPI,
	validator DepthUpdateValidator,
	snapshotDepth int,
) *OrderbookMaintainer {
	return &OrderbookMaintainer{
		book:          book,
		streamAPI:     streamAPI,
		syncAPI:       syncAPI,
		validator:     validator,
		snapshotDepth: snapshotDepth,
		state:         SyncStateIdle,
		applied:       make(chan struct{}, 1),
		applyLatency:  telemetry.NewLatencyStats("depth-update-apply"),
	}
}

// Start subscribes to the depth diff stream and launches the consuming
// goroutine. The goroutine exits when ctx is cancelled or the stream closes;
// either way the sync state resets to Idle and the sequence position is
// discarded, forcing a fresh snapshot bootstrap on the next Start.
func (m *OrderbookMaintainer) Start(ctx context.Context) error {
	sub, err := m.streamAPI.DepthDiffStream(m.book.GetSymbol())
	if err != nil {
		return fmt.Errorf("subscribe to depth diff stream: %w", err)
	}

	m.wg.Add(1)
	go m.run(ctx, sub)
	return nil
}

// Wait blocks until the consuming goroutine has exited.
func (m *OrderbookMaintainer) Wait() {
	m.wg.Wait()
}

func (m *OrderbookMaintainer) run(ctx context.Context, sub *Subscription[*OrderBookUpdate]) {
	defer m.wg.Done()
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			m.reset()
			return
		case update, ok := <-sub.Stream:
			if !ok {
				maintainerLogger.WithField("symbol", m.book.GetSymbol().String()).
					Warn("depth diff stream closed, resetting to idle")
				m.reset()
				return
			}
			m.handleUpdate(update)
		}
	}
}

func (m *OrderbookMaintainer) handleUpdate(update *OrderBookUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case SyncStateIdle:
		m.state = SyncStateAwaitingSnapshot
		m.bootstrapQueue.PushBack(update)
		m.bootstrapLocked()
	case SyncStateAwaitingSnapshot:
		m.bootstrapQueue.PushBack(update)
		m.bootstrapLocked()
	case SyncStateGapped:
		m.state = SyncStateAwaitingSnapshot
		m.bootstrapQueue.PushBack(update)
		m.bootstrapLocked()
	case SyncStateSynchronized:
		m.admitLocked(update)
	}
}

// bootstrapLocked fetches a snapshot, rebuilds the book from it and replays
// the buffered diffs through the admission rule. On fetch failure the state
// stays AwaitingSnapshot; the next incoming diff retries. Caller holds m.mu.
func (m *OrderbookMaintainer) bootstrapLocked() {
	snapshot, err := m.syncAPI.OrderBookSnapshot(m.book.GetSymbol(), m.snapshotDepth)
	if err != nil {
		maintainerLogger.WithError(err).WithField("symbol", m.book.GetSymbol().String()).
			Warn("snapshot fetch failed, awaiting next update to retry")
		return
	}

	m.book.Clear()
	for _, level := range snapshot.Bids {
		m.book.UpdateFromStrings(SideBid, level[0], level[1])
	}
	for _, level := range snapshot.Asks {
		m.book.UpdateFromStrings(SideAsk, level[0], level[1])
	}
	m.lastAppliedID = snapshot.LastUpdateID
	m.state = SyncStateSynchronized

	maintainerLogger.WithFields(logger.Fields{
		"symbol":       m.book.GetSymbol().String(),
		"lastUpdateId": snapshot.LastUpdateID,
		"bids":         len(snapshot.Bids),
		"asks":         len(snapshot.Asks),
		"buffered":     m.bootstrapQueue.Len(),
	}).Info("order book synchronized from snapshot")

	for m.bootstrapQueue.Len() > 0 && m.state == SyncStateSynchronized {
		m.admitLocked(m.bootstrapQueue.PopFront())
	}
	if m.state != SyncStateSynchronized {
		m.bootstrapQueue.Clear()
	}
}

// admitLocked runs one update through the admission rule: discard when the
// range is already covered, resynchronize when a sequence id was skipped,
// otherwise apply every level change and advance the sequence position.
// Caller holds m.mu.
func (m *OrderbookMaintainer) admitLocked(update *OrderBookUpdate) {
	err := m.validator.ValidateUpdate(update, m.lastAppliedID)
	switch {
	case errors.Is(err, ErrUpdateOutdated):
		m.staleCount.Add(1)
		telemetry.DepthUpdatesDiscarded.Inc()

	case err != nil:
		// Gap (or an unrecognized validation failure, treated the same):
		// never continue applying across it.
		m.state = SyncStateGapped
		m.resyncCount.Add(1)
		telemetry.BookResyncs.Inc()
		maintainerLogger.WithFields(logger.Fields{
			"symbol":        m.book.GetSymbol().String(),
			"firstUpdateId": update.FirstUpdateID,
			"finalUpdateId": update.FinalUpdateID,
			"lastAppliedId": m.lastAppliedID,
		}).Warn("sequence gap detected, resynchronizing")

	default:
		start := time.Now()
		for _, level := range update.Bids {
			m.book.UpdateFromStrings(SideBid, level[0], level[1])
		}
		for _, level := range update.Asks {
			m.book.UpdateFromStrings(SideAsk, level[0], level[1])
		}
		m.lastAppliedID = update.FinalUpdateID
		m.applyLatency.Record(time.Since(start).Nanoseconds())
		telemetry.DepthUpdatesApplied.Inc()
		m.notifyApplied()
	}
}

// notifyApplied signals downstream consumers without ever blocking the
// apply path; a slow consumer just coalesces notifications.
func (m *OrderbookMaintainer) notifyApplied() {
	select {
	case m.applied <- struct{}{}:
	default:
	}
}

func (m *OrderbookMaintainer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = SyncStateIdle
	m.lastAppliedID = 0
	m.bootstrapQueue.Clear()
}

// Applied delivers a notification after each applied update. Notifications
// coalesce under load.
func (m *OrderbookMaintainer) Applied() <-chan struct{} {
	return m.applied
}

func (m *OrderbookMaintainer) State() SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *OrderbookMaintainer) LastAppliedID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAppliedID
}

func (m *OrderbookMaintainer) ResyncCount() int64 { return m.resyncCount.Load() }
func (m *OrderbookMaintainer) StaleCount() int64  { return m.staleCount.Load() }

func (m *OrderbookMaintainer) OrderBook() *OrderBook { return m.book }

// ApplyLatency exposes the per-update apply latency recorder for periodic
// reporting.
func (m *OrderbookMaintainer) ApplyLatency() *telemetry.LatencyStats {
	return m.applyLatency
}

// Snapshot serializes the local book together with its sequence position,
// for downstream consumers that want a point-in-time view.
func (m *OrderbookMaintainer) Snapshot(limit int) *OrderBookSnapshot {
	m.mu.Lock()
	lastAppliedID := m.lastAppliedID
	m.mu.Unlock()

	snapshot := m.book.TakeSnapshot(limit)
	snapshot.LastUpdateID = lastAppliedID
	return snapshot
}

package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-marketdepth/domain"
)

type fakeStreamAPI struct {
	ch chan *domain.OrderBookUpdate
}

func newFakeStreamAPI() *fakeStreamAPI {
	return &fakeStreamAPI{ch: make(chan *domain.OrderBookUpdate, 64)}
}

func (f *fakeStreamAPI) DepthDiffStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.OrderBookUpdate], error) {
	return &domain.Subscription[*domain.OrderBookUpdate]{
		Stream:      f.ch,
		Unsubscribe: func() {},
		Topic:       symbol.Join("") + "@depth",
	}, nil
}

type fakeSyncAPI struct {
	mu        sync.Mutex
	responses []func() (*domain.OrderBookSnapshot, error)
	calls     int
}

func (f *fakeSyncAPI) push(fn func() (*domain.OrderBookSnapshot, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fn)
}

func (f *fakeSyncAPI) pushSnapshot(lastUpdateID int64, bids, asks [][]string) {
	f.push(func() (*domain.OrderBookSnapshot, error) {
		return &domain.OrderBookSnapshot{
			Source:       domain.OrderBookSourceProvider,
			LastUpdateID: lastUpdateID,
			Bids:         bids,
			Asks:         asks,
		}, nil
	})
}

func (f *fakeSyncAPI) pushError(err error) {
	f.push(func() (*domain.OrderBookSnapshot, error) { return nil, err })
}

func (f *fakeSyncAPI) OrderBookSnapshot(symbol *domain.MarketSymbol, limit int) (*domain.OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return nil, errors.New("no snapshot queued")
	}
	fn := f.responses[0]
	f.responses = f.responses[1:]
	return fn()
}

func (f *fakeSyncAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// seqValidator mirrors the exchange admission rule: a diff whose range is
// already covered is stale, a diff that skips past the next expected id is a
// gap.
type seqValidator struct{}

func (seqValidator) ValidateUpdate(update *domain.OrderBookUpdate, lastAppliedID int64) error {
	if update.FinalUpdateID <= lastAppliedID {
		return domain.ErrUpdateOutdated
	}
	if update.FirstUpdateID > lastAppliedID+1 {
		return domain.ErrUpdateOutOfSequence
	}
	return nil
}

type maintainerFixture struct {
	maintainer *domain.OrderbookMaintainer
	stream     *fakeStreamAPI
	syncAPI    *fakeSyncAPI
	symbol     *domain.MarketSymbol
	cancel     context.CancelFunc
}

func newMaintainerFixture(t *testing.T) *maintainerFixture {
	t.Helper()

	symbol, err := domain.NewMarketSymbol("btc", "usdt")
	require.NoError(t, err)

	stream := newFakeStreamAPI()
	syncAPI := &fakeSyncAPI{}
	book := domain.NewOrderBook(symbol, 2, 8)
	maintainer := domain.NewOrderbookMaintainer(book, stream, syncAPI, seqValidator{}, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, maintainer.Start(ctx))
	t.Cleanup(func() {
		cancel()
		maintainer.Wait()
	})

	return &maintainerFixture{
		maintainer: maintainer,
		stream:     stream,
		syncAPI:    syncAPI,
		symbol:     symbol,
		cancel:     cancel,
	}
}

func (f *maintainerFixture) send(first, final int64, bids, asks [][]string) {
	f.stream.ch <- domain.NewOrderBookUpdate(bids, asks, first, final, f.symbol)
}

func (f *maintainerFixture) waitState(t *testing.T, want domain.SyncState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.maintainer.State() == want
	}, 2*time.Second, time.Millisecond, "expected state %s, got %s", want, f.maintainer.State())
}

func (f *maintainerFixture) waitLastApplied(t *testing.T, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.maintainer.LastAppliedID() == want
	}, 2*time.Second, time.Millisecond)
}

var snapshotLevels = struct {
	bids, asks [][]string
}{
	bids: [][]string{{"100.00", "1.00000000"}, {"99.00", "2.00000000"}},
	asks: [][]string{{"101.00", "1.50000000"}, {"102.00", "3.00000000"}},
}

func TestOrderbookMaintainer_BootstrapDiscardsCoveredUpdate(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	// The triggering diff is entirely covered by the snapshot and must be
	// discarded during replay.
	f.send(998, 1000, [][]string{{"95.00", "9.00000000"}}, nil)

	f.waitState(t, domain.SyncStateSynchronized)
	f.waitLastApplied(t, 1000)

	book := f.maintainer.OrderBook()
	assert.Equal(t, 2, book.GetLevelCount(domain.SideBid))
	assert.Equal(t, int64(0), book.GetQuantityAt(domain.SideBid, domain.StringToFixed("95.00", 2)))
	assert.Equal(t, int64(1), f.maintainer.StaleCount())
}

func TestOrderbookMaintainer_BufferedUpdateReplayedAfterSnapshot(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	// Straddles the snapshot boundary: final > 1000, first <= 1001.
	f.send(999, 1002, [][]string{{"100.50", "5.00000000"}}, nil)

	f.waitState(t, domain.SyncStateSynchronized)
	f.waitLastApplied(t, 1002)

	book := f.maintainer.OrderBook()
	best, ok := book.GetBestBid()
	require.True(t, ok)
	assert.Equal(t, domain.StringToFixed("100.50", 2), best)
}

func TestOrderbookMaintainer_AppliesContiguousUpdates(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	f.send(998, 1000, nil, nil)
	f.waitState(t, domain.SyncStateSynchronized)

	f.send(1001, 1003, [][]string{{"100.10", "4.00000000"}}, [][]string{{"101.00", "0.00000000"}})
	f.waitLastApplied(t, 1003)

	book := f.maintainer.OrderBook()
	best, ok := book.GetBestBid()
	require.True(t, ok)
	assert.Equal(t, domain.StringToFixed("100.10", 2), best)

	// Zero quantity deleted the 101.00 ask.
	bestAsk, ok := book.GetBestAsk()
	require.True(t, ok)
	assert.Equal(t, domain.StringToFixed("102.00", 2), bestAsk)

	f.send(1004, 1005, nil, nil)
	f.waitLastApplied(t, 1005)
	assert.Equal(t, domain.SyncStateSynchronized, f.maintainer.State())
	assert.Equal(t, int64(0), f.maintainer.ResyncCount())
}

func TestOrderbookMaintainer_StaleUpdateDiscardedWhenSynchronized(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	f.send(998, 1000, nil, nil)
	f.waitState(t, domain.SyncStateSynchronized)

	f.send(990, 995, [][]string{{"50.00", "1.00000000"}}, nil)

	require.Eventually(t, func() bool {
		return f.maintainer.StaleCount() == 2
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, int64(1000), f.maintainer.LastAppliedID())
	assert.Equal(t, int64(0), f.maintainer.OrderBook().GetQuantityAt(domain.SideBid, domain.StringToFixed("50.00", 2)))
	assert.Equal(t, domain.SyncStateSynchronized, f.maintainer.State())
}

func TestOrderbookMaintainer_GapForcesResync(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	f.send(998, 1000, nil, nil)
	f.waitState(t, domain.SyncStateSynchronized)

	// 1001..1009 never arrive.
	f.send(1010, 1012, [][]string{{"100.10", "4.00000000"}}, nil)
	f.waitState(t, domain.SyncStateGapped)
	assert.Equal(t, int64(1), f.maintainer.ResyncCount())
	assert.Equal(t, int64(1000), f.maintainer.LastAppliedID(), "gapped update must not advance the sequence position")

	// The next diff restarts the bootstrap cycle against a fresh snapshot.
	f.syncAPI.pushSnapshot(1015, [][]string{{"100.20", "1.00000000"}}, [][]string{{"100.30", "1.00000000"}})
	f.send(1013, 1016, [][]string{{"100.25", "2.00000000"}}, nil)

	f.waitState(t, domain.SyncStateSynchronized)
	f.waitLastApplied(t, 1016)

	best, ok := f.maintainer.OrderBook().GetBestBid()
	require.True(t, ok)
	assert.Equal(t, domain.StringToFixed("100.25", 2), best)
}

func TestOrderbookMaintainer_SnapshotFailureRetriesOnNextUpdate(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushError(errors.New("rest endpoint unavailable"))
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	f.send(990, 992, nil, nil)
	f.waitState(t, domain.SyncStateAwaitingSnapshot)

	f.send(993, 995, nil, nil)
	f.waitState(t, domain.SyncStateSynchronized)
	f.waitLastApplied(t, 1000)
	assert.Equal(t, 2, f.syncAPI.callCount())
}

func TestOrderbookMaintainer_StreamCloseResetsToIdle(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	f.send(998, 1001, nil, nil)
	f.waitState(t, domain.SyncStateSynchronized)

	close(f.stream.ch)
	f.maintainer.Wait()

	assert.Equal(t, domain.SyncStateIdle, f.maintainer.State())
	assert.Equal(t, int64(0), f.maintainer.LastAppliedID(), "disconnect must discard the sequence position")
}

func TestOrderbookMaintainer_AppliedNotification(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	f.send(998, 1001, [][]string{{"100.10", "1.00000000"}}, nil)

	select {
	case <-f.maintainer.Applied():
	case <-time.After(2 * time.Second):
		t.Fatal("expected an applied notification")
	}
}

func TestOrderbookMaintainer_Snapshot(t *testing.T) {
	f := newMaintainerFixture(t)
	f.syncAPI.pushSnapshot(1000, snapshotLevels.bids, snapshotLevels.asks)

	f.send(998, 1000, nil, nil)
	f.waitState(t, domain.SyncStateSynchronized)

	snapshot := f.maintainer.Snapshot(1)
	assert.Equal(t, domain.OrderBookSourceLocalOrderBook, snapshot.Source)
	assert.Equal(t, int64(1000), snapshot.LastUpdateID)
	assert.Equal(t, [][]string{{"100.00", "1.00000000"}}, snapshot.Bids)
	assert.Equal(t, [][]string{{"101.00", "1.50000000"}}, snapshot.Asks)
}

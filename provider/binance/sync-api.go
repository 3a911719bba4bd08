package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	"github.com/spooky-finn/go-marketdepth/domain"
	"github.com/spooky-finn/go-marketdepth/logger"
)

const (
	snapshotRequestTimeout = 10 * time.Second
	snapshotMaxAttempts    = 5

	// Depth snapshots have a high request weight; stay well under the
	// REST weight limit even when several books bootstrap at once.
	snapshotRatePerSecond = 2
)

var syncLogger = logger.Component("binance-sync-api")

type depthSnapshotResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// SyncAPI fetches depth snapshots over REST. Retries with jittered
// exponential backoff and rate-limits outgoing requests; the coordinator
// treats the whole call as one blocking, atomic fetch.
type SyncAPI struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewSyncAPI(endpoint string) *SyncAPI {
	return &SyncAPI{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: snapshotRequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(snapshotRatePerSecond), 1),
	}
}

func (api *SyncAPI) OrderBookSnapshot(symbol *domain.MarketSymbol, limit int) (*domain.OrderBookSnapshot, error) {
	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < snapshotMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(b.Duration())
		}
		if err := api.limiter.Wait(context.Background()); err != nil {
			return nil, err
		}

		snapshot, err := api.fetchSnapshot(symbol, limit)
		if err == nil {
			return snapshot, nil
		}
		lastErr = err
		syncLogger.WithError(err).WithFields(logger.Fields{
			"symbol":  symbol.String(),
			"attempt": attempt + 1,
		}).Warn("snapshot fetch attempt failed")
	}

	return nil, fmt.Errorf("fetch depth snapshot for %s: %w", symbol.String(), lastErr)
}

func (api *SyncAPI) fetchSnapshot(symbol *domain.MarketSymbol, limit int) (*domain.OrderBookSnapshot, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", api.endpoint, symbol.JoinUpper(""), limit)

	resp, err := api.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("depth endpoint returned %d: %s", resp.StatusCode, body)
	}

	var decoded depthSnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode depth snapshot: %w", err)
	}

	return &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSourceProvider,
		LastUpdateID: decoded.LastUpdateID,
		Bids:         decoded.Bids,
		Asks:         decoded.Asks,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spooky-finn/go-marketdepth/config"
	"github.com/spooky-finn/go-marketdepth/domain"
	"github.com/spooky-finn/go-marketdepth/logger"
	"github.com/spooky-finn/go-marketdepth/provider/binance"
	"github.com/spooky-finn/go-marketdepth/strategy"
	"github.com/spooky-finn/go-marketdepth/telemetry"
	"github.com/spooky-finn/go-marketdepth/usecase"
)

var log = logger.Component("main")

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.Metrics.ListenAddr).Info("metrics server listening")
		if err := telemetry.StartMetricsServer(cfg.Metrics.ListenAddr); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	symbol, err := domain.NewMarketSymbol(cfg.Symbol.Base, cfg.Symbol.Quote)
	if err != nil {
		log.WithError(err).Fatal("invalid market symbol")
	}

	streamClient := binance.NewStreamClient(cfg.Binance.StreamEndpoint)
	if err := streamClient.Connect(); err != nil {
		log.WithError(err).Fatal("connect to binance stream")
	}
	defer streamClient.Close()

	streamAPI := binance.NewStreamAPI(streamClient)
	syncAPI := binance.NewSyncAPI(cfg.Binance.RestEndpoint)

	book := domain.NewOrderBook(symbol, cfg.Book.PriceDecimals, cfg.Book.QuantityDecimals)
	maintainer := domain.NewOrderbookMaintainer(
		book,
		streamAPI,
		syncAPI,
		&binance.DepthUpdateValidator{},
		cfg.Book.SnapshotDepth,
	)

	storage := domain.NewOrderBookStorage()
	storage.Add(symbol, maintainer)
	telemetry.OpenOrderBooks.Inc()

	snapshotUseCase := usecase.NewOrderBookSnapshotUseCase(storage)

	if err := maintainer.Start(ctx); err != nil {
		log.WithError(err).Fatal("start orderbook maintainer")
	}
	log.WithField("symbol", symbol.String()).Info("order book maintainer started")

	strategies := []strategy.Strategy{
		strategy.NewSpreadMonitor(0.5),
		strategy.NewImbalance(0.6, cfg.Render.Depth),
	}
	signalLog := strategy.NewSignalLog(32)
	go runStrategies(ctx, maintainer, strategies, signalLog)

	renderLoop(ctx, cfg, symbol, maintainer, snapshotUseCase, signalLog)

	maintainer.Wait()
	log.Info("shutdown complete")
}

// runStrategies drives every strategy after each applied depth update and
// collects their signals.
func runStrategies(
	ctx context.Context,
	maintainer *domain.OrderbookMaintainer,
	strategies []strategy.Strategy,
	signalLog *strategy.SignalLog,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-maintainer.Applied():
			for _, s := range strategies {
				if sig := s.OnOrderBookUpdate(maintainer.OrderBook()); sig != nil {
					signalLog.Push(s.Name(), *sig)
					log.WithFields(logger.Fields{
						"strategy": s.Name(),
						"type":     sig.Type.String(),
						"strength": sig.Strength,
					}).Info(sig.Reason)
				}
			}
		}
	}
}

func renderLoop(
	ctx context.Context,
	cfg *config.Config,
	symbol *domain.MarketSymbol,
	maintainer *domain.OrderbookMaintainer,
	snapshotUseCase *usecase.OrderBookSnapshotUseCase,
	signalLog *strategy.SignalLog,
) {
	ticker := time.NewTicker(time.Duration(cfg.Render.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			render(cfg, symbol, maintainer, snapshotUseCase, signalLog)
		}
	}
}

func render(
	cfg *config.Config,
	symbol *domain.MarketSymbol,
	maintainer *domain.OrderbookMaintainer,
	snapshotUseCase *usecase.OrderBookSnapshotUseCase,
	signalLog *strategy.SignalLog,
) {
	book := maintainer.OrderBook()

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== %s [%s] updates=%d resyncs=%d stale=%d\n",
		strings.ToUpper(symbol.Join("/")),
		maintainer.State(),
		book.GetUpdateCount(),
		maintainer.ResyncCount(),
		maintainer.StaleCount(),
	)

	snapshot, err := snapshotUseCase.GetOrderBookSnapshot(symbol, cfg.Render.Depth)
	if err != nil {
		log.WithError(err).Error("render snapshot")
		return
	}
	fmt.Fprintf(&b, "lastUpdateId=%d\n", snapshot.LastUpdateID)

	fmt.Fprintf(&b, "%-16s %-16s | %-16s %-16s\n", "BID", "QTY", "ASK", "QTY")
	depth := len(snapshot.Bids)
	if len(snapshot.Asks) > depth {
		depth = len(snapshot.Asks)
	}
	for i := 0; i < depth; i++ {
		var bidPrice, bidQty, askPrice, askQty string
		if i < len(snapshot.Bids) {
			bidPrice, bidQty = snapshot.Bids[i][0], snapshot.Bids[i][1]
		}
		if i < len(snapshot.Asks) {
			askPrice, askQty = snapshot.Asks[i][0], snapshot.Asks[i][1]
		}
		fmt.Fprintf(&b, "%-16s %-16s | %-16s %-16s\n", bidPrice, bidQty, askPrice, askQty)
	}

	if spread, ok := book.GetSpread(); ok {
		mid, _ := book.GetMidPrice()
		fmt.Fprintf(&b, "spread=%s mid=%s\n",
			domain.FixedToString(spread, book.GetPriceDecimals()),
			domain.FixedToString(mid, book.GetPriceDecimals()),
		)
	}

	fmt.Fprintln(&b, maintainer.ApplyLatency().String())

	for _, entry := range signalLog.Recent() {
		fmt.Fprintf(&b, "[%s] %s %s: %s\n",
			entry.Signal.Timestamp.Format(time.TimeOnly),
			entry.Strategy,
			entry.Signal.Type.String(),
			entry.Signal.Reason,
		)
	}

	fmt.Print(b.String())
}

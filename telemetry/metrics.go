package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var DepthUpdatesApplied = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "depth_updates_applied_total",
		Help: "diff updates applied to the local order book",
	},
)

var DepthUpdatesDiscarded = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "depth_updates_discarded_total",
		Help: "stale diff updates discarded by the admission rule",
	},
)

var BookResyncs = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_resyncs_total",
		Help: "sequence gaps that forced a snapshot resynchronization",
	},
)

var OpenOrderBooks = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "open_order_books",
		Help: "order books currently maintained",
	},
)

// StartMetricsServer exposes /metrics on addr. Blocks.
func StartMetricsServer(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(DepthUpdatesApplied)
	reg.MustRegister(DepthUpdatesDiscarded)
	reg.MustRegister(BookResyncs)
	reg.MustRegister(OpenOrderBooks)
	reg.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return http.ListenAndServe(addr, mux)
}

// Package metrics holds the agent's Prometheus instrumentation
// (SPEC_FULL.md's ambient "/metrics" addition to C8): a small,
// dependency-free home for counters and gauges so internal/trade can
// increment them without importing internal/control, and internal/control
// can mount promhttp.Handler() without importing internal/trade.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SwapAttempts counts every swap attempt by action (buy/sell),
	// regardless of outcome.
	SwapAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evmtrader_swap_attempts_total",
		Help: "Total number of swap attempts by action.",
	}, []string{"action"})

	// SwapFailures counts swap attempts that did not succeed, by action.
	SwapFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evmtrader_swap_failures_total",
		Help: "Total number of failed swap attempts by action.",
	}, []string{"action"})

	// OpenPositions is the current count of open trades.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evmtrader_open_positions",
		Help: "Current number of open trade positions.",
	})
)

// Handler returns the Prometheus scrape handler, mounted by the control
// server at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

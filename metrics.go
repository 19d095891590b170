// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the primary metrics the engine updates during operation:
//   • bot_orders_total{mode,side}     – Orders placed (mode: paper|live)
//   • bot_trades_total{result}        – Trades by result (open|win|loss)
//   • bot_rejections_total{reason}    – Bars filtered, split by filter
//   • bot_equity                      – Current equity snapshot (gauge)
//   • bot_open_positions              – Concurrent open positions (gauge)
//   • bot_model_refits_total          – Classifier refits
//   • bot_breaker_trips_total         – Daily circuit-breaker engagements
//   • bot_feed_errors_total           – Live feed fetch failures
//
// These are registered in init() and served by the HTTP handler started in
// main.go at /metrics (Prometheus text exposition format).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders placed",
		},
		[]string{"mode", "side"},
	)

	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Trades counted by result (open|win|loss).",
		},
		[]string{"result"},
	)

	mtxRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_rejections_total",
			Help: "Bars that produced no entry, split by rejecting filter.",
		},
		[]string{"reason"},
	)

	mtxEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity",
			Help: "Current account equity in quote currency.",
		},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Currently open positions.",
		},
	)

	mtxModelRefits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_model_refits_total",
			Help: "Rolling-window classifier refits performed.",
		},
	)

	mtxBreakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_breaker_trips_total",
			Help: "Daily circuit-breaker engagements.",
		},
	)

	mtxFeedErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_feed_errors_total",
			Help: "Live candle feed fetch failures.",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxTrades, mtxRejections)
	prometheus.MustRegister(mtxEquity, mtxOpenPositions)
	prometheus.MustRegister(mtxModelRefits, mtxBreakerTrips, mtxFeedErrors)
}

// Helper setters used across files.
func incOrder(mode string, side OrderSide) { mtxOrders.WithLabelValues(mode, string(side)).Inc() }
func incTrade(result string)               { mtxTrades.WithLabelValues(result).Inc() }
func incRejection(reason string)           { mtxRejections.WithLabelValues(reason).Inc() }
func setEquityGauge(v float64)             { mtxEquity.Set(v) }
func setOpenPositions(n int)               { mtxOpenPositions.Set(float64(n)) }
func incModelRefits()                      { mtxModelRefits.Inc() }
func incBreakerTrips()                     { mtxBreakerTrips.Inc() }
func incFeedErrors()                       { mtxFeedErrors.Inc() }

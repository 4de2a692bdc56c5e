package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidledger_requests_total",
		Help: "Requests handled, by request type and result code.",
	}, []string{"type", "result"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bidledger_command_duration_seconds",
		Help:    "Time spent executing state-changing commands.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"type"})

	rejectedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidledger_rejected_connections_total",
		Help: "Connections closed because every worker was busy.",
	})

	receiptsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidledger_settlement_receipts_total",
		Help: "Settlement receipts signed.",
	})
)

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

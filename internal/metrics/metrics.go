// Package metrics exposes the node's operational counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReadingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powernode_readings_total",
		Help: "Readings produced by the sampling loop.",
	})

	AnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powernode_anomalies_total",
		Help: "Readings flagged as anomalous.",
	})

	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powernode_sends_total",
		Help: "Delivery outcomes per reading.",
	}, []string{"outcome"})

	BufferEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powernode_buffer_evictions_total",
		Help: "Readings lost to delivery buffer overflow.",
	})

	BufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powernode_buffer_depth",
		Help: "Readings currently waiting for delivery.",
	})

	PowerWatts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powernode_power_watts",
		Help: "Most recent instantaneous power.",
	})

	EnergyKwh = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powernode_energy_kwh",
		Help: "Cumulative energy since the daemon started.",
	})
)

// Serve exposes /metrics on addr. It blocks, so run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

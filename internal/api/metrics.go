package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// apiMetrics groups the server's collectors behind a private registry, so
// every Server instance exports an independent view.
type apiMetrics struct {
	registry       *prometheus.Registry
	factorizations *prometheus.CounterVec
	duration       prometheus.Histogram
	inFlight       prometheus.Gauge
	deviceFree     *prometheus.GaugeVec
}

func newAPIMetrics() *apiMetrics {
	m := &apiMetrics{
		registry: prometheus.NewRegistry(),
		factorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ashlar",
			Subsystem: "api",
			Name:      "factorizations_total",
			Help:      "Factorization requests by terminal status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ashlar",
			Subsystem: "api",
			Name:      "factorize_duration_seconds",
			Help:      "Wall time of completed factorizations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ashlar",
			Subsystem: "api",
			Name:      "factorize_in_flight",
			Help:      "Factorizations currently being served.",
		}),
		deviceFree: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ashlar",
			Subsystem: "device",
			Name:      "free_memory_bytes",
			Help:      "Planner-visible free memory per pool device.",
		}, []string{"device"}),
	}
	m.registry.MustRegister(m.factorizations, m.duration, m.inFlight, m.deviceFree)
	return m
}

func (m *apiMetrics) observe(status string, took time.Duration) {
	m.factorizations.WithLabelValues(status).Inc()
	if status == jobStatusCompleted {
		m.duration.Observe(took.Seconds())
	}
}

func (m *apiMetrics) setDevices(devices []DeviceInfo) {
	for _, d := range devices {
		m.deviceFree.WithLabelValues(strconv.Itoa(d.ID)).Set(float64(d.FreeMemory))
	}
}

func (m *apiMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

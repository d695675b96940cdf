package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exposed during a migration run.
type Metrics struct {
	KeysMigratedTotal prometheus.Counter
	KeysFailedTotal   prometheus.Counter
	BatchesTotal      prometheus.Gauge
	BatchesDone       prometheus.Gauge
	MigrationRate     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers the migration metrics on a private registry,
// labeled with the run ID.
func New(runID string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"run_id": runID}
	factory := promauto.With(registry)

	return &Metrics{
		KeysMigratedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "cacheshift",
			Subsystem:   "migration",
			Name:        "keys_migrated_total",
			Help:        "Total number of keys copied to the target store",
			ConstLabels: labels,
		}),
		KeysFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "cacheshift",
			Subsystem:   "migration",
			Name:        "keys_failed_total",
			Help:        "Total number of keys that failed to transfer",
			ConstLabels: labels,
		}),
		BatchesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cacheshift",
			Subsystem:   "migration",
			Name:        "batches_total",
			Help:        "Number of batches in the current run",
			ConstLabels: labels,
		}),
		BatchesDone: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cacheshift",
			Subsystem:   "migration",
			Name:        "batches_done",
			Help:        "Number of batches that have completed",
			ConstLabels: labels,
		}),
		MigrationRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cacheshift",
			Subsystem:   "migration",
			Name:        "rate_keys_per_second",
			Help:        "Current transfer rate in keys per second",
			ConstLabels: labels,
		}),
		registry: registry,
	}
}

// Handler returns an HTTP handler serving the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until the server is shut down by the
// caller. Startup errors surface on the returned channel.
func (m *Metrics) Serve(addr string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	return server, errCh
}

// Package metrics records ETL run counters for export in the Prometheus
// text format, typically to a node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/childcare-etl/internal/model"
)

// Metrics provides observability for one ETL run. Each instance owns its
// registry so repeated runs in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	Rows           *prometheus.CounterVec
	GeocodeLookups *prometheus.CounterVec
	LayoutDuration *prometheus.HistogramVec
	LastSuccess    prometheus.Gauge
}

// New creates a Metrics instance with all ETL metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "childcare_etl_rows_total",
			Help: "Raw rows processed, by layout and reconcile outcome",
		}, []string{"layout", "outcome"}),
		GeocodeLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "childcare_etl_geocode_lookups_total",
			Help: "Geocode lookups, by layout and whether a location was resolved",
		}, []string{"layout", "result"}),
		LayoutDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "childcare_etl_layout_duration_seconds",
			Help:    "Wall time to process and commit one layout",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"layout"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "childcare_etl_last_success_timestamp_seconds",
			Help: "Unix time of the last run that committed every layout",
		}),
	}
}

// ObserveRow records one row's outcome.
func (m *Metrics) ObserveRow(layout string, outcome model.Outcome) {
	m.Rows.WithLabelValues(layout, string(outcome)).Inc()
}

// ObserveGeocode records one lookup. matched is false for empty locations.
func (m *Metrics) ObserveGeocode(layout string, matched bool) {
	result := "unmatched"
	if matched {
		result = "matched"
	}
	m.GeocodeLookups.WithLabelValues(layout, result).Inc()
}

// ObserveLayout records the duration of a layout. Call with time.Now() at
// the start of the layout.
func (m *Metrics) ObserveLayout(layout string, start time.Time) {
	m.LayoutDuration.WithLabelValues(layout).Observe(time.Since(start).Seconds())
}

// MarkSuccess sets the last-success gauge to t.
func (m *Metrics) MarkSuccess(t time.Time) {
	m.LastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}

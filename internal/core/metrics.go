package core

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var exportDurationBuckets = prometheus.ExponentialBuckets(0.05, 2, 14)

// Metrics holds the Prometheus collectors updated by the service.
type Metrics struct {
	exports      *prometheus.CounterVec
	rowsWritten  *prometheus.CounterVec
	bytesWritten *prometheus.CounterVec
	renderErrors *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	active       prometheus.Gauge
	queued       prometheus.GaugeFunc
}

// NewMetrics creates the export collectors. limiter may be nil; when set, a
// gauge reports exports waiting for a slot.
func NewMetrics(limiter *ExportLimiter) *Metrics {
	m := &Metrics{
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabexport_exports_total",
				Help: "Finished exports by table and outcome.",
			},
			[]string{"table", "outcome"},
		),
		rowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabexport_rows_written_total",
				Help: "Rows written to export files.",
			},
			[]string{"table"},
		),
		bytesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabexport_bytes_written_total",
				Help: "Bytes written to export files.",
			},
			[]string{"table"},
		),
		renderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabexport_render_errors_total",
				Help: "Cells written as placeholders because they failed to render.",
			},
			[]string{"table"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabexport_export_duration_seconds",
				Help:    "Wall time of finished exports.",
				Buckets: exportDurationBuckets,
			},
			[]string{"table", "outcome"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tabexport_active_exports",
				Help: "Exports currently running.",
			},
		),
	}
	if limiter != nil {
		m.queued = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tabexport_queued_exports",
				Help: "Exports waiting for a free slot.",
			},
			func() float64 { return float64(limiter.Status().Queued) },
		)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	cs := []prometheus.Collector{m.exports, m.rowsWritten, m.bytesWritten, m.renderErrors, m.duration, m.active}
	if m.queued != nil {
		cs = append(cs, m.queued)
	}
	return cs
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Metrics) exportStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) exportFinished(res *ExportResult) {
	if m == nil {
		return
	}
	m.active.Dec()
	outcome := string(res.Phase)
	m.exports.WithLabelValues(res.TableKey, outcome).Inc()
	m.duration.WithLabelValues(res.TableKey, outcome).Observe(res.Duration.Seconds())
	m.rowsWritten.WithLabelValues(res.TableKey).Add(float64(res.RowsWritten))
	m.bytesWritten.WithLabelValues(res.TableKey).Add(float64(res.BytesWritten))
	m.renderErrors.WithLabelValues(res.TableKey).Add(float64(res.RenderErrors))
}

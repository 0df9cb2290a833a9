package riakconv

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for descriptor scans and conversions.
// Collectors are not registered anywhere until Register is called.
type Metrics struct {
	Scans        *prometheus.CounterVec
	ScanDuration prometheus.Histogram
	CacheHits    prometheus.Counter
	Conversions  *prometheus.CounterVec
}

var defaultMetrics = NewMetrics()

func NewMetrics() *Metrics {
	return &Metrics{
		Scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riakconv",
				Name:      "descriptor_scans_total",
				Help:      "Number of type descriptor scans by result",
			},
			[]string{"result"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "riakconv",
				Name:      "descriptor_scan_duration_seconds",
				Help:      "Time spent scanning types for role markers",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "riakconv",
				Name:      "descriptor_cache_hits_total",
				Help:      "Number of descriptor lookups served from the cache",
			},
		),
		Conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riakconv",
				Name:      "conversions_total",
				Help:      "Number of conversions by direction and result",
			},
			[]string{"op", "result"},
		),
	}
}

// Register registers all collectors with reg. Collectors that are already
// registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Scans, m.ScanDuration, m.CacheHits, m.Conversions} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// RegisterMetrics registers the package-wide collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return defaultMetrics.Register(reg)
}

// DefaultMetrics returns the package-wide collectors.
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

func (m *Metrics) observeScan(d time.Duration, err error) {
	m.ScanDuration.Observe(d.Seconds())
	m.Scans.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) observeConversion(op string, err error) {
	m.Conversions.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

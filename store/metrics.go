package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts store operations by outcome.
type Metrics struct {
	Ops *prometheus.CounterVec
}

var defaultMetrics = NewMetrics()

func NewMetrics() *Metrics {
	return &Metrics{
		Ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riakconv",
				Subsystem: "store",
				Name:      "ops_total",
				Help:      "Number of store operations by operation and result",
			},
			[]string{"op", "result"},
		),
	}
}

// Register registers the collectors with reg. Collectors that are already
// registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.Ops); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}
	return nil
}

// DefaultMetrics returns the collectors used by stores opened without
// Options.Metrics.
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

func (m *Metrics) observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrStaleVClock):
		result = "stale"
	case err != nil:
		result = "error"
	}
	m.Ops.WithLabelValues(op, result).Inc()
}

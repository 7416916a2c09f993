package lifecycle

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	written  *prometheus.CounterVec
	deleted  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	labels := []string{"entity", "attribute", "variant"}
	m := &metrics{
		written: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_variants_written_total",
				Help: "Total number of image variants written.",
			},
			labels,
		),
		deleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_variants_deleted_total",
				Help: "Total number of image variant files removed.",
			},
			labels,
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "image_variant_duration_seconds",
				Help:    "Time spent resizing and storing one image variant.",
				Buckets: prometheus.DefBuckets,
			},
			labels,
		),
	}
	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.written, m.deleted, m.duration} {
		if err := reg.Register(c); err != nil {
			// Several managers may share the default registry.
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				if c == m.written {
					m.written = existing
				} else {
					m.deleted = existing
				}
			case *prometheus.HistogramVec:
				m.duration = existing
			}
		}
	}
	return m, nil
}

package queue

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Depth     *prometheus.GaugeVec
	Processed *prometheus.CounterVec
	DeadSize  *prometheus.GaugeVec
)

// MustRegisterMetrics registers the queue collectors.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	depth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Approximate number of ready tasks per kind",
	}, []string{"kind"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_processed_total",
		Help:      "Total tasks processed grouped by result",
	}, []string{"kind", "result"})
	dead := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_dlq_size",
		Help:      "Number of tasks in the dead letter list",
	}, []string{"kind"})

	Depth = register(reg, depth).(*prometheus.GaugeVec)
	Processed = register(reg, processed).(*prometheus.CounterVec)
	DeadSize = register(reg, dead).(*prometheus.GaugeVec)
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func observeProcessed(kind, result string) {
	if Processed != nil {
		Processed.WithLabelValues(kind, result).Inc()
	}
}

func observeDepth(kind string, ready, dead int64) {
	if Depth != nil {
		Depth.WithLabelValues(kind).Set(float64(ready))
	}
	if DeadSize != nil {
		DeadSize.WithLabelValues(kind).Set(float64(dead))
	}
}

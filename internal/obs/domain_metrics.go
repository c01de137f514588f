package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BasketPersistTotal counts background basket writes by outcome.
	BasketPersistTotal *prometheus.CounterVec
	// OrdersSubmittedTotal counts order submissions by kind and outcome.
	OrdersSubmittedTotal *prometheus.CounterVec
	// ReceiptRenderLatency records receipt document render time in milliseconds.
	ReceiptRenderLatency *prometheus.HistogramVec
	// ChannelDeliveriesTotal counts outbound order message deliveries.
	ChannelDeliveriesTotal *prometheus.CounterVec
	// PreviewRendersShared counts preview requests served by an in-flight render.
	PreviewRendersShared prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BasketPersistTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "basket_persist_total",
			Help:      "Count of background basket writes by outcome.",
		}, []string{"result"})
		OrdersSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Count of order submissions by kind and outcome.",
		}, []string{"kind", "result"})
		ReceiptRenderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_render_duration_ms",
			Help:      "Receipt document render latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"result"})
		ChannelDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_channel_deliveries_total",
			Help:      "Count of outbound order message deliveries by channel and outcome.",
		}, []string{"channel", "result"})
		PreviewRendersShared = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_preview_shared_total",
			Help:      "Preview requests that reused an in-flight render.",
		})

		mustRegisterCollector(reg, BasketPersistTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BasketPersistTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersSubmittedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersSubmittedTotal = v
			}
		})
		mustRegisterCollector(reg, ReceiptRenderLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				ReceiptRenderLatency = v
			}
		})
		mustRegisterCollector(reg, ChannelDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ChannelDeliveriesTotal = v
			}
		})
		mustRegisterCollector(reg, PreviewRendersShared, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PreviewRendersShared = v
			}
		})
	})
}

// The helpers below are no-ops until MustRegisterDomainMetrics has run, so
// packages can record unconditionally.

// ObserveBasketPersist records a background basket write.
func ObserveBasketPersist(result string) {
	if BasketPersistTotal != nil {
		BasketPersistTotal.WithLabelValues(result).Inc()
	}
}

// ObserveOrderSubmitted records an order submission.
func ObserveOrderSubmitted(kind, result string) {
	if OrdersSubmittedTotal != nil {
		OrdersSubmittedTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveReceiptRender records a receipt render.
func ObserveReceiptRender(result string, d time.Duration) {
	if ReceiptRenderLatency != nil {
		ReceiptRenderLatency.WithLabelValues(result).Observe(DurationMillis(d))
	}
}

// ObserveChannelDelivery records an outbound order message.
func ObserveChannelDelivery(channel, result string) {
	if ChannelDeliveriesTotal != nil {
		ChannelDeliveriesTotal.WithLabelValues(channel, result).Inc()
	}
}

// ObservePreviewShared records a preview served from an in-flight render.
func ObservePreviewShared() {
	if PreviewRendersShared != nil {
		PreviewRendersShared.Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

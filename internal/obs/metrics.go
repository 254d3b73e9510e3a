package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	OrdersSubmitted  *prometheus.CounterVec
	OrderErrors      *prometheus.CounterVec
	CancelRequests   prometheus.Counter
	CyclesCompleted  prometheus.Counter
	CyclesAbandoned  prometheus.Counter
	RealizedProfit   prometheus.Counter
	StreamEvents     *prometheus.CounterVec
	QueueDrops       *prometheus.CounterVec
	PositionPhase    prometheus.Gauge
	GatewayLatency   *prometheus.HistogramVec
	NotificationErrs prometheus.Counter
	gatherer         prometheus.Gatherer
}

// New registers metrics with the provided registry. If registry is nil, a new
// isolated registry is created.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotbot_orders_submitted_total",
			Help: "Orders accepted by the exchange by side.",
		}, []string{"side"}),
		OrderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotbot_order_errors_total",
			Help: "Failed order submissions or cancels by operation.",
		}, []string{"op"}),
		CancelRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotbot_cancel_requests_total",
			Help: "Successful cancel requests.",
		}),
		CyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotbot_cycles_completed_total",
			Help: "Buy and sell cycles closed by a filled sell.",
		}),
		CyclesAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotbot_cycles_abandoned_total",
			Help: "Cycles dropped after a manually canceled sell.",
		}),
		RealizedProfit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotbot_realized_profit_quote",
			Help: "Sum of positive fee adjusted profit in quote asset.",
		}),
		StreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotbot_stream_events_total",
			Help: "Push stream events applied by stream and kind.",
		}, []string{"stream", "kind"}),
		QueueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotbot_queue_drops_total",
			Help: "Items dropped because a bounded queue was full.",
		}, []string{"queue"}),
		PositionPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spotbot_position_phase",
			Help: "Current position phase (0 none, 1 buy pending, 2 open, 3 sell pending).",
		}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spotbot_gateway_latency_seconds",
			Help:    "Exchange REST call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		NotificationErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotbot_notification_errors_total",
			Help: "Notifications that could not be delivered.",
		}),
		gatherer: registry,
	}

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.OrdersSubmitted,
		m.OrderErrors,
		m.CancelRequests,
		m.CyclesCompleted,
		m.CyclesAbandoned,
		m.RealizedProfit,
		m.StreamEvents,
		m.QueueDrops,
		m.PositionPhase,
		m.GatewayLatency,
		m.NotificationErrs,
	)

	return m
}

// Handler returns an HTTP handler that exposes metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncOrderSubmitted(side string) {
	if m == nil {
		return
	}
	m.OrdersSubmitted.WithLabelValues(side).Inc()
}

func (m *Metrics) IncOrderError(op string) {
	if m == nil {
		return
	}
	m.OrderErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) IncCancelRequest() {
	if m == nil {
		return
	}
	m.CancelRequests.Inc()
}

// ObserveCycle records a completed cycle and its net profit. Losses only
// count the cycle since a counter cannot go down.
func (m *Metrics) ObserveCycle(netProfit float64) {
	if m == nil {
		return
	}
	m.CyclesCompleted.Inc()
	if netProfit > 0 {
		m.RealizedProfit.Add(netProfit)
	}
}

func (m *Metrics) IncCycleAbandoned() {
	if m == nil {
		return
	}
	m.CyclesAbandoned.Inc()
}

func (m *Metrics) IncStreamEvent(stream, kind string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(stream, kind).Inc()
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop(queue string) {
	if m == nil {
		return
	}
	m.QueueDrops.WithLabelValues(queue).Inc()
}

func (m *Metrics) SetPositionPhase(phase int) {
	if m == nil {
		return
	}
	m.PositionPhase.Set(float64(phase))
}

// ObserveGateway measures an exchange call started at begin.
func (m *Metrics) ObserveGateway(op string, begin time.Time) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(op).Observe(time.Since(begin).Seconds())
}

func (m *Metrics) IncNotificationError() {
	if m == nil {
		return
	}
	m.NotificationErrs.Inc()
}

// Package metrics collects Prometheus instrumentation for the ingestion
// pipeline and subscription server: a struct of pre-built collectors, a
// constructor taking a prometheus.Registerer, and Record* methods called
// from the hot paths. Exposition is wired in cmd/streamer/main.go.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector exported by the streamer.
type Metrics struct {
	// Ingestion
	linesIngested   prometheus.Counter
	parseErrors     prometheus.Counter
	parseLatency    prometheus.Histogram
	breakerOpens    prometheus.Counter
	breakerState    prometheus.Gauge

	// Orderbook mutation
	bookMutations   *prometheus.CounterVec
	bookMutationDur prometheus.Histogram
	unknownRemoves  prometheus.Counter
	duplicateAdds   prometheus.Counter

	// Broadcast
	broadcastSeq      prometheus.Gauge
	broadcastLagTotal prometheus.Counter
	subscriberCount   prometheus.Gauge

	// Stop orders
	stopOrdersActive prometheus.Gauge
	rankComputeDur   prometheus.Histogram
}

// New builds and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		linesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpns_lines_ingested_total",
			Help: "Total number of raw ingestion lines consumed.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpns_parse_errors_total",
			Help: "Total number of lines that failed to parse.",
		}),
		parseLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hpns_parse_latency_seconds",
			Help:    "Latency of parsing a single ingestion line.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1us to ~0.26s
		}),
		breakerOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpns_breaker_opens_total",
			Help: "Total number of times the ingestion circuit breaker tripped open.",
		}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hpns_breaker_state",
			Help: "Ingestion circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		bookMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hpns_book_mutations_total",
			Help: "Total number of orderbook mutations, by kind.",
		}, []string{"kind"}),
		bookMutationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hpns_book_mutation_duration_seconds",
			Help:    "Latency of applying a single orderbook mutation.",
			Buckets: prometheus.ExponentialBuckets(0.0000005, 4, 10), // 0.5us to ~0.13s
		}),
		unknownRemoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpns_unknown_remove_total",
			Help: "Total number of Remove events for an order ID not present in the book.",
		}),
		duplicateAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpns_duplicate_add_total",
			Help: "Total number of Add events for an order ID already present in the book.",
		}),
		broadcastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hpns_broadcast_sequence",
			Help: "Latest sequence number published to the broadcast ring.",
		}),
		broadcastLagTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpns_broadcast_lag_events_total",
			Help: "Total number of times a subscriber cursor fell outside the ring's retention window.",
		}),
		subscriberCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hpns_active_subscribers",
			Help: "Number of active SubscribeOrderbook streams.",
		}),
		stopOrdersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hpns_stop_orders_active",
			Help: "Number of stop orders currently tracked.",
		}),
		rankComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hpns_stop_order_rank_duration_seconds",
			Help:    "Latency of computing a risk-ranked stop order view.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
	}

	reg.MustRegister(
		m.linesIngested,
		m.parseErrors,
		m.parseLatency,
		m.breakerOpens,
		m.breakerState,
		m.bookMutations,
		m.bookMutationDur,
		m.unknownRemoves,
		m.duplicateAdds,
		m.broadcastSeq,
		m.broadcastLagTotal,
		m.subscriberCount,
		m.stopOrdersActive,
		m.rankComputeDur,
	)

	return m
}

func (m *Metrics) RecordLineIngested() { m.linesIngested.Inc() }

func (m *Metrics) RecordParseError() { m.parseErrors.Inc() }

func (m *Metrics) RecordParseLatency(d time.Duration) { m.parseLatency.Observe(d.Seconds()) }

func (m *Metrics) RecordBreakerOpen() { m.breakerOpens.Inc() }

// RecordBreakerState maps gobreaker's State to the 0/1/2 gauge contract
// documented on hpns_breaker_state.
func (m *Metrics) RecordBreakerState(state int) { m.breakerState.Set(float64(state)) }

func (m *Metrics) RecordBookMutation(kind string, d time.Duration) {
	m.bookMutations.WithLabelValues(kind).Inc()
	m.bookMutationDur.Observe(d.Seconds())
}

func (m *Metrics) RecordUnknownRemove() { m.unknownRemoves.Inc() }

func (m *Metrics) RecordDuplicateAdd() { m.duplicateAdds.Inc() }

func (m *Metrics) RecordBroadcastSequence(seq uint64) { m.broadcastSeq.Set(float64(seq)) }

func (m *Metrics) RecordBroadcastLag() { m.broadcastLagTotal.Inc() }

func (m *Metrics) SubscriberJoined() { m.subscriberCount.Inc() }

func (m *Metrics) SubscriberLeft() { m.subscriberCount.Dec() }

func (m *Metrics) SetStopOrdersActive(n int) { m.stopOrdersActive.Set(float64(n)) }

func (m *Metrics) RecordRankLatency(d time.Duration) { m.rankComputeDur.Observe(d.Seconds()) }

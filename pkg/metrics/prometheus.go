package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oracle"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticks          *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	score          prometheus.Gauge
	orders         *prometheus.CounterVec
	positionActive prometheus.Gauge
	dailyPnl       prometheus.Gauge
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on reg. Passing a fresh prometheus.NewRegistry() lets
// tests build more than one recorder per process.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Market ticks applied to the snapshot, by instrument kind",
		}, []string{"kind"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decisions emitted by the engine",
		}, []string{"action", "rule", "fallback"}),
		gateRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejections_total",
			Help:      "Executable decisions rejected by a validation gate",
		}, []string{"gate"}),
		score: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "combined_score",
			Help:      "Latest combined feature score (0-20)",
		}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders submitted to the broker, by outcome",
		}, []string{"status"}),
		positionActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position_active",
			Help:      "1 while a position is open",
		}),
		dailyPnl: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_pnl",
			Help:      "Realized P&L for the session",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordTick(kind string) {
	r.ticks.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordDecision(action, rule string, fallback bool) {
	r.decisions.WithLabelValues(action, rule, strconv.FormatBool(fallback)).Inc()
}

func (r *Recorder) RecordGateRejection(gate string) {
	r.gateRejections.WithLabelValues(gate).Inc()
}

func (r *Recorder) RecordScore(score float64) {
	r.score.Set(score)
}

func (r *Recorder) RecordOrder(status string) {
	r.orders.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordPosition(active bool, dailyPnl float64) {
	if active {
		r.positionActive.Set(1)
	} else {
		r.positionActive.Set(0)
	}
	r.dailyPnl.Set(dailyPnl)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) RecordTick(string)                  {}
func (Noop) RecordDecision(string, string, bool) {}
func (Noop) RecordGateRejection(string)         {}
func (Noop) RecordScore(float64)                {}
func (Noop) RecordOrder(string)                 {}
func (Noop) RecordPosition(bool, float64)       {}
func (Noop) RecordError(string)                 {}
func (Noop) RecordLatency(string, float64)      {}

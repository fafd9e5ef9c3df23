package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Packet verdicts recorded by the packet-in handler.
const (
	VerdictForwarded = "forwarded"
	VerdictBlocked   = "blocked"
	VerdictDropped   = "dropped"
	VerdictIgnored   = "ignored"
	VerdictUnparsed  = "unparsed"
)

// Metrics owns a private registry so tests and multiple engines never collide on
// the global default registry. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	packetsTotal       *prometheus.CounterVec
	blocksTotal        *prometheus.CounterVec
	controlPlaneErrors *prometheus.CounterVec
	emitCyclesTotal    prometheus.Counter
	flowsEmittedTotal  prometheus.Counter
	writerErrorsTotal  *prometheus.CounterVec
	alertsTotal        *prometheus.CounterVec
	alertParseErrors   prometheus.Counter
	alertReadErrors    prometheus.Counter
	listenerUp         prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		packetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_packet_in_total",
				Help: "Packet-in events handled, by verdict.",
			},
			[]string{"verdict"},
		),
		blocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_blocks_total",
				Help: "Hosts blocked, by trigger reason.",
			},
			[]string{"reason"},
		),
		controlPlaneErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_control_plane_errors_total",
				Help: "Control-plane adapter calls that failed, by operation.",
			},
			[]string{"op"},
		),
		emitCyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentry_emit_cycles_total",
				Help: "Feature emission cycles that produced at least one row.",
			},
		),
		flowsEmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentry_flows_emitted_total",
				Help: "Feature rows emitted.",
			},
		),
		writerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_writer_errors_total",
				Help: "Feature batch writes that failed, by writer.",
			},
			[]string{"writer"},
		),
		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_alerts_total",
				Help: "IDS alerts received, by priority.",
			},
			[]string{"priority"},
		),
		alertParseErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentry_alert_parse_errors_total",
				Help: "Alert datagrams discarded as malformed.",
			},
		),
		alertReadErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentry_alert_read_errors_total",
				Help: "Alert socket reads that failed and were skipped.",
			},
		),
		listenerUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentry_alert_listener_up",
				Help: "1 while the alert socket is bound.",
			},
		),
	}
	m.registry.MustRegister(
		m.packetsTotal,
		m.blocksTotal,
		m.controlPlaneErrors,
		m.emitCyclesTotal,
		m.flowsEmittedTotal,
		m.writerErrorsTotal,
		m.alertsTotal,
		m.alertParseErrors,
		m.alertReadErrors,
		m.listenerUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, e.g. to add gauge funcs.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterGaugeFunc adds a gauge whose value is read on every scrape.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

func (m *Metrics) Packet(verdict string) {
	if m == nil {
		return
	}
	m.packetsTotal.WithLabelValues(verdict).Inc()
}

func (m *Metrics) Block(reason string) {
	if m == nil {
		return
	}
	m.blocksTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ControlPlaneError(op string) {
	if m == nil {
		return
	}
	m.controlPlaneErrors.WithLabelValues(op).Inc()
}

// Emitted records one non-empty emission cycle of n rows.
func (m *Metrics) Emitted(n int) {
	if m == nil {
		return
	}
	m.emitCyclesTotal.Inc()
	m.flowsEmittedTotal.Add(float64(n))
}

func (m *Metrics) WriterError(writer string) {
	if m == nil {
		return
	}
	m.writerErrorsTotal.WithLabelValues(writer).Inc()
}

func (m *Metrics) Alert(priority string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(priority).Inc()
}

func (m *Metrics) AlertParseError() {
	if m == nil {
		return
	}
	m.alertParseErrors.Inc()
}

func (m *Metrics) AlertReadError() {
	if m == nil {
		return
	}
	m.alertReadErrors.Inc()
}

func (m *Metrics) ListenerUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.listenerUp.Set(1)
	} else {
		m.listenerUp.Set(0)
	}
}

// Package metrics exposes GoRelay's Prometheus collectors and the /metrics
// handler.
package metrics

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/gorelay/internal/relay"
)

const namespace = "gorelay"

// StatsSource reports live room and connection counts.
type StatsSource interface {
	Stats() relay.Stats
}

// Metrics implements relay.Observer on top of a private Prometheus registry.
type Metrics struct {
	registry  *prometheus.Registry
	trackOnce sync.Once

	connections *prometheus.CounterVec
	commands    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	envelopes   *prometheus.CounterVec
}

// New builds the collectors and registers them with a fresh registry
// alongside the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections opened and closed.",
		}, []string{"event"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Client commands applied, by command.",
		}, []string{"command"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_dropped_total",
			Help:      "Inbound frames discarded before dispatch, by reason.",
		}, []string{"reason"}),
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_total",
			Help:      "Outbound envelopes handed to transports, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.commands,
		m.dropped,
		m.envelopes,
	)
	return m
}

// Track registers gauges that read live counts from src on every scrape.
// Only the first call has an effect.
func (m *Metrics) Track(src StatsSource) {
	m.trackOnce.Do(func() { m.track(src) })
}

func (m *Metrics) track(src StatsSource) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Live rooms.",
		}, func() float64 { return float64(src.Stats().Rooms) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients",
			Help:      "Live connections.",
		}, func() float64 { return float64(src.Stats().Clients) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ConnectionOpened counts a registered connection.
func (m *Metrics) ConnectionOpened() {
	m.connections.WithLabelValues("opened").Inc()
}

// ConnectionClosed counts an unregistered connection.
func (m *Metrics) ConnectionClosed() {
	m.connections.WithLabelValues("closed").Inc()
}

// CommandHandled counts a dispatched command by its wire name.
func (m *Metrics) CommandHandled(name string) {
	m.commands.WithLabelValues(name).Inc()
}

// CommandDropped counts a discarded frame by the kind of decode error.
func (m *Metrics) CommandDropped(err error) {
	m.dropped.WithLabelValues(dropReason(err)).Inc()
}

// EnvelopeSent counts an outbound envelope as delivered or failed.
func (m *Metrics) EnvelopeSent(err error) {
	if err != nil {
		m.envelopes.WithLabelValues("failed").Inc()
		return
	}
	m.envelopes.WithLabelValues("delivered").Inc()
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, relay.ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, relay.ErrMissingField):
		return "missing_field"
	case errors.Is(err, relay.ErrMalformedCommand):
		return "malformed"
	default:
		return "other"
	}
}

var _ relay.Observer = (*Metrics)(nil)

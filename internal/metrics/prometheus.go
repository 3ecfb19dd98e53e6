// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// Command bus metrics
	CommandsTotal   *prometheus.CounterVec
	ForwardsTotal   *prometheus.CounterVec
	CollectsTotal   prometheus.Counter
	RestartsTotal   prometheus.Counter
	PeersRegistered prometheus.Gauge
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kenzy_commands_total",
			Help: "The total number of commands dispatched by the local bus",
		}, []string{"action", "status"}),
		ForwardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kenzy_forwards_total",
			Help: "The total number of command legs sent to remote peers",
		}, []string{"action"}),
		CollectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kenzy_collects_total",
			Help: "The total number of collect events handled",
		}),
		RestartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kenzy_device_restarts_total",
			Help: "The total number of supervisor-initiated device restarts",
		}),
		PeersRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kenzy_peers_registered",
			Help: "The current number of peers in the registry",
		}),
	}
	metrics.register()
	return metrics
}

func (m *Metrics) register() {
	prometheus.MustRegister(m.CommandsTotal)
	prometheus.MustRegister(m.ForwardsTotal)
	prometheus.MustRegister(m.CollectsTotal)
	prometheus.MustRegister(m.RestartsTotal)
	prometheus.MustRegister(m.PeersRegistered)
}

// Recording methods are nil-safe so the node can run without a metrics
// instance (metrics disabled, tests).

func (m *Metrics) RecordCommand(action, status string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(action, status).Inc()
}

func (m *Metrics) RecordForward(action string) {
	if m == nil {
		return
	}
	m.ForwardsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordCollect() {
	if m == nil {
		return
	}
	m.CollectsTotal.Inc()
}

func (m *Metrics) RecordRestart() {
	if m == nil {
		return
	}
	m.RestartsTotal.Inc()
}

func (m *Metrics) SetPeersRegistered(count float64) {
	if m == nil {
		return
	}
	m.PeersRegistered.Set(count)
}

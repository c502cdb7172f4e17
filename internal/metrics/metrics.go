// Package metrics holds the Prometheus collectors for message delivery and translation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for send attempts.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
)

// Metrics groups the relay collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SendAttempts    *prometheus.CounterVec
	SendsExhausted  *prometheus.CounterVec
	RevivalWaits    *prometheus.CounterVec
	Translations    *prometheus.CounterVec
	EndpointFailure *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SendAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_send_attempts_total",
			Help: "Raw send attempts to the worker by message kind and outcome",
		}, []string{"kind", "outcome"}),
		SendsExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sends_exhausted_total",
			Help: "Logical sends that returned no answer after all retries",
		}, []string{"kind"}),
		RevivalWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_revival_waits_total",
			Help: "Waits for worker revival by result",
		}, []string{"revived"}),
		Translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_translations_total",
			Help: "Translations by the provider that produced the text",
		}, []string{"provider"}),
		EndpointFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_translation_endpoint_failures_total",
			Help: "Translation endpoint failures by endpoint name",
		}, []string{"endpoint"}),
	}

	if reg != nil {
		reg.MustRegister(m.SendAttempts, m.SendsExhausted, m.RevivalWaits, m.Translations, m.EndpointFailure)
	}
	return m
}

// Attempt counts one raw send.
func (m *Metrics) Attempt(kind, outcome string) {
	if m == nil {
		return
	}
	m.SendAttempts.WithLabelValues(kind, outcome).Inc()
}

// Exhausted counts a send that ran out of retries.
func (m *Metrics) Exhausted(kind string) {
	if m == nil {
		return
	}
	m.SendsExhausted.WithLabelValues(kind).Inc()
}

// Revival counts one revival wait.
func (m *Metrics) Revival(revived bool) {
	if m == nil {
		return
	}
	label := "false"
	if revived {
		label = "true"
	}
	m.RevivalWaits.WithLabelValues(label).Inc()
}

// Translated counts a translation result.
func (m *Metrics) Translated(provider string) {
	if m == nil {
		return
	}
	m.Translations.WithLabelValues(provider).Inc()
}

// EndpointFailed counts a failed endpoint in a cascade.
func (m *Metrics) EndpointFailed(endpoint string) {
	if m == nil {
		return
	}
	m.EndpointFailure.WithLabelValues(endpoint).Inc()
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation of a client. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	Retransmissions  prometheus.Counter
	Timeouts         prometheus.Counter
	ResponsesTotal   *prometheus.CounterVec
	DroppedFrames    *prometheus.CounterVec
	Notifications    prometheus.Counter
	LiveExchanges    prometheus.Gauge
	ExchangeDuration *prometheus.HistogramVec
}

// NewMetrics registers the client metrics with reg (the default registerer when nil).
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "coap_client"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests handed to the exchange layer",
			},
			[]string{"method", "type"},
		),
		Retransmissions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retransmissions_total",
				Help:      "Confirmable frames sent again after a timeout",
			},
		),
		Timeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timeouts_total",
				Help:      "Exchanges failed with a timeout",
			},
		),
		ResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Responses matched to an exchange, by code class",
			},
			[]string{"class"},
		),
		DroppedFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_frames_total",
				Help:      "Inbound frames discarded",
			},
			[]string{"reason"},
		),
		Notifications: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Observe notifications delivered",
			},
		),
		LiveExchanges: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_exchanges",
				Help:      "Exchanges currently registered",
			},
		),
		ExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Time from first transmission to completion",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) request(method COAPCode, t COAPType) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method.String(), t.String()).Inc()
}

func (m *Metrics) retransmission() {
	if m == nil {
		return
	}
	m.Retransmissions.Inc()
}

func (m *Metrics) timeout() {
	if m == nil {
		return
	}
	m.Timeouts.Inc()
}

func (m *Metrics) response(code COAPCode) {
	if m == nil {
		return
	}
	m.ResponsesTotal.WithLabelValues(strconv.Itoa(int(code.Class()))).Inc()
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedFrames.WithLabelValues(reason).Inc()
}

func (m *Metrics) notification() {
	if m == nil {
		return
	}
	m.Notifications.Inc()
}

func (m *Metrics) setLive(n int) {
	if m == nil {
		return
	}
	m.LiveExchanges.Set(float64(n))
}

func (m *Metrics) finished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeDuration.WithLabelValues(result).Observe(d.Seconds())
}

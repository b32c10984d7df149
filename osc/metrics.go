package osc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Channel label values.
const (
	channelHandshake = "handshake"
	channelData      = "data"
)

type metrics struct {
	datagrams    *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	operations   *prometheus.CounterVec
	replies      prometheus.Counter
	throttled    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, serverID string) *metrics {
	labels := prometheus.Labels{"server_id": serverID}
	m := &metrics{
		datagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "oschsl",
			Name:        "datagrams_received_total",
			Help:        "Datagrams received, by channel.",
			ConstLabels: labels,
		}, []string{"channel"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "oschsl",
			Name:        "decode_errors_total",
			Help:        "Datagrams dropped because they could not be decoded, by channel and error kind.",
			ConstLabels: labels,
		}, []string{"channel", "kind"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "oschsl",
			Name:        "handshake_operations_total",
			Help:        "Handshake operations received, by opcode.",
			ConstLabels: labels,
		}, []string{"opcode"}),
		replies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "oschsl",
			Name:        "status_replies_total",
			Help:        "Status operations sent in reply to queries.",
			ConstLabels: labels,
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "oschsl",
			Name:        "status_replies_throttled_total",
			Help:        "Queries left unanswered because the reply rate limit was exceeded.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.datagrams, m.decodeErrors, m.operations, m.replies, m.throttled)
	}
	return m
}

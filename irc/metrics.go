package irc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ircd_connections_total",
		Help: "Accepted client connections.",
	})
	metricSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ircd_sessions",
		Help: "Currently connected sessions.",
	})
	metricChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ircd_channels",
		Help: "Currently existing channels.",
	})
	metricMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ircd_messages_received_total",
		Help: "Protocol lines received from clients.",
	})
	metricMessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ircd_messages_sent_total",
		Help: "Protocol lines queued for delivery to clients.",
	})
	metricRegistrationTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ircd_registration_timeouts_total",
		Help: "Sessions disconnected for missing the registration deadline.",
	})
)

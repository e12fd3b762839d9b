package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics covers the live side of message delivery. The container
// registers it; tests run with an unregistered instance.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	MessagesPersisted prometheus.Counter
	FramesDelivered   prometheus.Counter
	SlowConsumerDrops prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Currently registered websocket connections",
		}),
		MessagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages accepted by the message store",
		}),
		FramesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_frames_delivered_total",
			Help: "Outbound frames enqueued to subscribers",
		}),
		SlowConsumerDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_slow_consumer_drops_total",
			Help: "Connections dropped because their outbound queue overflowed",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.ActiveConnections, m.MessagesPersisted, m.FramesDelivered, m.SlowConsumerDrops)
}

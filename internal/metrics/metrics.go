// Package metrics holds the prometheus collectors of the signaling server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orbit",
		Subsystem: "signaling",
		Name:      "connections",
		Help:      "The current number of signaling connections",
	})
	SignalingEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orbit",
		Subsystem: "signaling",
		Name:      "events_total",
		Help:      "The total number of inbound signaling events by type",
	}, []string{"event"})
	SignalingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orbit",
		Subsystem: "signaling",
		Name:      "errors_total",
		Help:      "The total number of failed signaling events by type",
	}, []string{"event"})
	DroppedFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orbit",
		Subsystem: "signaling",
		Name:      "dropped_frames_total",
		Help:      "The total number of outbound frames dropped on full connection queues",
	})

	CallRoomsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orbit",
		Subsystem: "calls",
		Name:      "rooms",
		Help:      "The current number of call rooms",
	})
	CallPeersCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orbit",
		Subsystem: "calls",
		Name:      "peers",
		Help:      "The current number of call peers",
	})
	CallRoomsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orbit",
		Subsystem: "calls",
		Name:      "rooms_total",
		Help:      "The total number of call rooms created",
	})

	MediaWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orbit",
		Subsystem: "media",
		Name:      "workers",
		Help:      "The number of running media workers",
	})
	RoutersCurrent = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "orbit",
		Subsystem: "media",
		Name:      "routers",
		Help:      "The current number of routing contexts per worker",
	}, []string{"worker"})
	TransportsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orbit",
		Subsystem: "media",
		Name:      "transports",
		Help:      "The current number of media transports",
	})

	collectors = []prometheus.Collector{
		ConnectionsCurrent,
		SignalingEventsTotal,
		SignalingErrorsTotal,
		DroppedFramesTotal,
		CallRoomsCurrent,
		CallPeersCurrent,
		CallRoomsTotal,
		MediaWorkers,
		RoutersCurrent,
		TransportsCurrent,
	}

	registerOnce sync.Once
)

// Register adds every collector to reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		for _, c := range collectors {
			reg.MustRegister(c)
		}
	})
}

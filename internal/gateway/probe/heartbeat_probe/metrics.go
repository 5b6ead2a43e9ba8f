package heartbeat_probe

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requestsCnt prometheus.Counter
	staleCnt    prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "heartbeat_probe"

	return &metrics{
		requestsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "requests_cnt",
			Subsystem: ss,
			Help:      "Count of performed probes",
		}),
		staleCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "stale_heartbeats_cnt",
			Subsystem: ss,
			Help:      "Count of probes that found a stale heartbeat",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsCnt,
		m.staleCnt,
	}
}

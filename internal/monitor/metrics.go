package monitor

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	pollTimeHist   prometheus.Histogram
	probesCnt      prometheus.Counter
	errProbesCnt   prometheus.Counter
	transitionsCnt prometheus.Counter
	watchersGauge  prometheus.GaugeFunc
}

func newMetrics(m *Monitor) *metrics {
	const ss = "monitor"

	return &metrics{
		pollTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"poll_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Service poll time distribution"),
		)),
		probesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "probes_cnt",
			Subsystem: ss,
			Help:      "Count of performed probes",
		}),
		errProbesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_probes_cnt",
			Subsystem: ss,
			Help:      "Count of probes finished with non-nil error",
		}),
		transitionsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "status_transitions_cnt",
			Subsystem: ss,
			Help:      "Count of endpoint status transitions",
		}),
		watchersGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "watchers_gauge",
			Subsystem: ss,
			Help:      "Actual count of running service watch loops",
		}, func() float64 {
			m.mu.Lock()
			defer m.mu.Unlock()
			return float64(len(m.watchers))
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.pollTimeHist,
		m.probesCnt,
		m.errProbesCnt,
		m.transitionsCnt,
		m.watchersGauge,
	}
}

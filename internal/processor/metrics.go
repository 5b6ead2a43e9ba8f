package processor

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist     prometheus.Histogram
	registrationsCnt   prometheus.Counter
	deregistrationsCnt prometheus.Counter
	lookupsCnt         prometheus.Counter
	lookupMissesCnt    prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "processor"

	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
		)),
		registrationsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "registrations_cnt",
			Subsystem: ss,
			Help:      "Count of endpoint registrations",
		}),
		deregistrationsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "deregistrations_cnt",
			Subsystem: ss,
			Help:      "Count of endpoint deregistrations",
		}),
		lookupsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "lookups_cnt",
			Subsystem: ss,
			Help:      "Count of endpoint lookups",
		}),
		lookupMissesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "lookup_misses_cnt",
			Subsystem: ss,
			Help:      "Count of lookups that found no endpoint",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.registrationsCnt,
		m.deregistrationsCnt,
		m.lookupsCnt,
		m.lookupMissesCnt,
	}
}

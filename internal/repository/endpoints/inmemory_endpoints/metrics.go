package inmemory_endpoints

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist    prometheus.Histogram
	requestsCnt       prometheus.Counter
	successProcessCnt prometheus.Counter
	errProcessCnt     prometheus.Counter
	servicesGauge     prometheus.GaugeFunc
	instancesGauge    prometheus.GaugeFunc
}

func newMetrics(repo *inmemoryEndpoints) *metrics {
	const ss = "inmemory_endpoints"

	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
		)),
		requestsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "requests_cnt",
			Subsystem: ss,
			Help:      "Count of incoming requests",
		}),
		successProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "success_responses_cnt",
			Subsystem: ss,
			Help:      "Count of successfully finished processes",
		}),
		errProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_processes_cnt",
			Subsystem: ss,
			Help:      "Count of processes finished with non-nil error",
		}),
		servicesGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "services_gauge",
			Subsystem: ss,
			Help:      "Actual count of registered services",
		}, func() float64 {
			repo.mu.RLock()
			defer repo.mu.RUnlock()
			return float64(len(repo.services))
		}),
		instancesGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "instances_gauge",
			Subsystem: ss,
			Help:      "Actual count of registered instances",
		}, func() float64 {
			repo.mu.RLock()
			defer repo.mu.RUnlock()
			total := 0
			for _, insts := range repo.services {
				total += len(insts)
			}
			return float64(total)
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.requestsCnt,
		m.successProcessCnt,
		m.errProcessCnt,
		m.servicesGauge,
		m.instancesGauge,
	}
}

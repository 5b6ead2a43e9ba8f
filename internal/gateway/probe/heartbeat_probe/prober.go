package heartbeat_probe

import (
	"context"

	"github.com/horockey/svcreg/internal/gateway/probe"
	"github.com/horockey/svcreg/internal/model"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// An endpoint is considered alive while its last heartbeat
// is no older than intervalFactor probe intervals.
const intervalFactor = 2

var _ probe.Gateway = &Gateway{}

type Gateway struct {
	clock   clockwork.Clock
	metrics *metrics
}

func New(clock clockwork.Clock) *Gateway {
	return &Gateway{
		clock:   clock,
		metrics: newMetrics(),
	}
}

func (gw *Gateway) Metrics() []prometheus.Collector {
	return gw.metrics.list()
}

func (gw *Gateway) Check(
	_ context.Context,
	ep model.Endpoint,
	hc model.HealthCheck,
) (model.Status, error) {
	gw.metrics.requestsCnt.Inc()

	interval := hc.Interval
	if interval <= 0 {
		interval = model.DefaultProbeInterval
	}

	if gw.clock.Since(ep.LastHeartbeat) > interval*intervalFactor {
		gw.metrics.staleCnt.Inc()
		return model.StatusUnhealthy, nil
	}

	return model.StatusHealthy, nil
}

package http_probe

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/horockey/svcreg/internal/gateway/probe"
	"github.com/horockey/svcreg/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultDegradedAfter is the probe latency above which
// a responsive endpoint is reported as degraded.
const DefaultDegradedAfter = time.Second * 2

var _ probe.Gateway = &Gateway{}

type Gateway struct {
	cl            *resty.Client
	metrics       *metrics
	logger        zerolog.Logger
	degradedAfter time.Duration
}

func New(
	degradedAfter time.Duration,
	logger zerolog.Logger,
) *Gateway {
	if degradedAfter <= 0 {
		degradedAfter = DefaultDegradedAfter
	}

	return &Gateway{
		metrics:       newMetrics(),
		logger:        logger,
		degradedAfter: degradedAfter,
		cl: resty.New().
			SetRetryCount(0),
	}
}

func (gw *Gateway) Metrics() []prometheus.Collector {
	return gw.metrics.list()
}

func (gw *Gateway) Check(
	ctx context.Context,
	ep model.Endpoint,
	hc model.HealthCheck,
) (res model.Status, resErr error) {
	gw.logger.Debug().
		Str("service", ep.Service).
		Str("instance", ep.InstanceID).
		Msg("Probing endpoint")
	defer func(ts time.Time) {
		gw.metrics.requestsCnt.Inc()
		gw.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			gw.metrics.successProcessCnt.Inc()
		default:
			gw.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	path := hc.Path
	if path == "" {
		path = model.DefaultHealthPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	start := time.Now()
	resp, err := gw.cl.R().
		SetContext(ctx).
		SetPathParam("host", ep.Host).
		SetPathParam("port", strconv.Itoa(ep.Port)).
		Get(fmt.Sprintf("%s://{host}:{port}%s", ep.Protocol, path))
	if err != nil {
		return model.StatusUnhealthy, fmt.Errorf("executing request: %w", err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		gw.logger.Debug().
			Str("service", ep.Service).
			Str("instance", ep.InstanceID).
			Str("status", resp.Status()).
			Msg("Probe got non-2xx response")
		return model.StatusUnhealthy, nil
	}

	if elapsed > gw.degradedAfter {
		return model.StatusDegraded, nil
	}

	return model.StatusHealthy, nil
}

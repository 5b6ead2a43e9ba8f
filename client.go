package svcreg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/svcreg/internal/controller/http_controller"
	"github.com/horockey/svcreg/internal/gateway/probe/http_probe"
	"github.com/horockey/svcreg/internal/model"
	"github.com/horockey/svcreg/internal/monitor"
	"github.com/horockey/svcreg/internal/processor"
	"github.com/horockey/svcreg/internal/repository/endpoints"
	"github.com/horockey/svcreg/internal/repository/endpoints/inmemory_endpoints"
	"github.com/horockey/svcreg/pkg/balancex"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Client struct {
	*processor.Processor
	repo   endpoints.Repository
	prober model.Prober
	mon    *monitor.Monitor
	ctrl   Controller
}

type createClientParams struct {
	servicePort   int
	strategy      balancex.Strategy
	degradedAfter time.Duration
	defaultHC     model.HealthCheck
	clock         clockwork.Clock
	logger        zerolog.Logger

	prober     model.Prober
	repo       endpoints.Repository
	controller Controller
}

func defaultCreateClientParams() createClientParams {
	return createClientParams{
		servicePort:   7100, //nolint: mnd
		strategy:      balancex.StrategyRoundRobin,
		degradedAfter: http_probe.DefaultDegradedAfter,
		clock:         clockwork.NewRealClock(),
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "svcreg_client").
			Logger(),
	}
}

func NewClient(
	apiKey string,
	opts ...options.Option[createClientParams],
) (*Client, error) {
	params := defaultCreateClientParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	if params.repo == nil {
		params.repo = inmemory_endpoints.New()
	}

	if params.prober == nil {
		params.prober = http_probe.New(
			params.degradedAfter,
			params.logger.With().Str("scope", "probe GW").Logger(),
		)
	}

	if params.controller == nil {
		params.controller = http_controller.New(
			"0.0.0.0:"+strconv.Itoa(params.servicePort),
			apiKey,
			params.logger.With().Str("subscope", "http_controller").Logger(),
		)
	}

	balancer, err := balancex.New(params.strategy)
	if err != nil {
		return nil, fmt.Errorf("creating balancer: %w", err)
	}

	proc := processor.New(
		params.repo,
		balancer,
		params.logger,
	)

	mon := monitor.New(
		params.repo,
		params.prober,
		params.clock,
		params.defaultHC,
		params.logger.With().Str("scope", "monitor").Logger(),
	)

	return &Client{
		Processor: proc,
		repo:      params.repo,
		prober:    params.prober,
		mon:       mon,
		ctrl:      params.controller,
	}, nil
}

func (cl *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := cl.ctrl.Start(runCtx, cl.Processor); err != nil && !errors.Is(err, context.Canceled) {
			cl.Logger.
				Error().
				Err(fmt.Errorf("running http controller: %w", err)).
				Send()
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := cl.mon.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			cl.Logger.
				Error().
				Err(fmt.Errorf("running monitor: %w", err)).
				Send()
			cancel()
		}
	}()

	<-runCtx.Done()
	wg.Wait()
	return fmt.Errorf("running context: %w", runCtx.Err())
}

func (cl *Client) Metrics() []prometheus.Collector {
	res := slices.Concat(
		cl.ctrl.Metrics(),
		cl.Processor.Metrics(),
		cl.repo.Metrics(),
		cl.mon.Metrics(),
	)
	if mp, ok := cl.prober.(model.MetricsProvider); ok {
		res = slices.Concat(res, mp.Metrics())
	}
	return res
}

// Register adds an endpoint and puts its service under watch.
// Watching silently becomes a no-op until Start is called.
func (cl *Client) Register(reg Registration) (Endpoint, error) {
	ep, err := cl.Processor.Register(reg)
	if err != nil {
		return Endpoint{}, err
	}

	if err := cl.mon.WatchService(ep.Service); err != nil && !errors.Is(err, monitor.NotRunningError{}) {
		cl.Logger.
			Warn().
			Err(fmt.Errorf("watching service %s: %w", ep.Service, err)).
			Send()
	}

	return ep, nil
}

// WatchService attaches a health polling loop for the given service.
func (cl *Client) WatchService(service string) error {
	return cl.mon.WatchService(service)
}

package processor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/horockey/svcreg/internal/model"
	"github.com/horockey/svcreg/internal/repository/endpoints"
	"github.com/horockey/svcreg/pkg/balancex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const maxPort = 65535

type Processor struct {
	repo     endpoints.Repository
	balancer *balancex.Balancer
	Logger   zerolog.Logger
	metrics  *metrics

	registered   atomic.Uint64
	deregistered atomic.Uint64
	lookups      atomic.Uint64
	lookupMisses atomic.Uint64
}

func New(
	repo endpoints.Repository,
	balancer *balancex.Balancer,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		repo:     repo,
		balancer: balancer,
		Logger:   logger,
		metrics:  newMetrics(),
	}
}

func (pr *Processor) Metrics() []prometheus.Collector {
	return pr.metrics.list()
}

// Register validates the registration, fills in defaults
// and stores the endpoint with status unknown.
func (pr *Processor) Register(reg model.Registration) (model.Endpoint, error) {
	defer func(ts time.Time) {
		pr.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	if reg.Service == "" {
		return model.Endpoint{}, fmt.Errorf("service name must not be empty")
	}
	if reg.Host == "" {
		return model.Endpoint{}, fmt.Errorf("host must not be empty")
	}
	if reg.Port <= 0 || reg.Port > maxPort {
		return model.Endpoint{}, fmt.Errorf("port must be in (0, %d], got: %d", maxPort, reg.Port)
	}
	if reg.Weight < 0 {
		return model.Endpoint{}, fmt.Errorf("weight must be non-negative, got: %d", reg.Weight)
	}

	instanceID := reg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	protocol := reg.Protocol
	if protocol == "" {
		protocol = model.DefaultProtocol
	}
	weight := reg.Weight
	if weight == 0 {
		weight = model.DefaultWeight
	}

	var hc *model.HealthCheck
	if reg.HealthCheck != nil {
		filled := reg.HealthCheck.WithDefaults()
		hc = &filled
	}

	ep, err := pr.repo.Register(model.Endpoint{
		Service:    reg.Service,
		InstanceID: instanceID,
		Host:       reg.Host,
		Port:       reg.Port,
		Protocol:   protocol,
		Path:       reg.Path,
		Weight:     weight,
		Metadata:   reg.Metadata,
	}, hc)
	if err != nil {
		return model.Endpoint{}, fmt.Errorf("storing endpoint: %w", err)
	}

	pr.registered.Add(1)
	pr.metrics.registrationsCnt.Inc()
	pr.Logger.Info().
		Str("service", ep.Service).
		Str("instance", ep.InstanceID).
		Str("url", ep.URL()).
		Msg("Registered endpoint")

	return ep, nil
}

func (pr *Processor) Deregister(service string, instanceID string) error {
	defer func(ts time.Time) {
		pr.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	if err := pr.repo.Deregister(service, instanceID); err != nil {
		return fmt.Errorf("removing endpoint: %w", err)
	}

	pr.balancer.Forget(connKey(service, instanceID))
	pr.deregistered.Add(1)
	pr.metrics.deregistrationsCnt.Inc()
	pr.Logger.Info().
		Str("service", service).
		Str("instance", instanceID).
		Msg("Deregistered endpoint")

	return nil
}

// Discover selects an endpoint of the service. Healthy instances
// are preferred; when none is healthy the whole pool is considered,
// so a fully degraded service keeps serving rather than failing.
func (pr *Processor) Discover(service string) (model.Endpoint, error) {
	defer func(ts time.Time) {
		pr.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	pr.Logger.Debug().Str("action", "discover").Str("service", service).Send()

	pr.lookups.Add(1)
	pr.metrics.lookupsCnt.Inc()

	insts := pr.repo.Instances(service, true)
	if len(insts) == 0 {
		insts = pr.repo.Instances(service, false)
	}
	if len(insts) == 0 {
		pr.lookupMisses.Add(1)
		pr.metrics.lookupMissesCnt.Inc()
		return model.Endpoint{}, endpoints.NoEndpointsError{Service: service}
	}

	cands := lo.Map(insts, func(ep model.Endpoint, _ int) balancex.Candidate {
		return balancex.Candidate{
			ID:      connKey(service, ep.InstanceID),
			Weight:  ep.Weight,
			Healthy: ep.Status == model.StatusHealthy,
		}
	})

	sel, found := pr.balancer.Select(service, cands)
	if !found {
		pr.lookupMisses.Add(1)
		pr.metrics.lookupMissesCnt.Inc()
		return model.Endpoint{}, endpoints.NoEndpointsError{Service: service}
	}

	winner, found := lo.Find(insts, func(ep model.Endpoint) bool {
		return connKey(service, ep.InstanceID) == sel.ID
	})
	if !found {
		pr.lookupMisses.Add(1)
		pr.metrics.lookupMissesCnt.Inc()
		return model.Endpoint{}, endpoints.NoEndpointsError{Service: service}
	}

	pr.balancer.IncConn(sel.ID)

	return winner, nil
}

// Release marks a request obtained via Discover as finished.
func (pr *Processor) Release(service string, instanceID string) {
	pr.balancer.DecConn(connKey(service, instanceID))
}

func (pr *Processor) ConnCount(service string, instanceID string) int {
	return pr.balancer.ConnCount(connKey(service, instanceID))
}

func (pr *Processor) Heartbeat(service string, instanceID string) error {
	defer func(ts time.Time) {
		pr.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	pr.Logger.Debug().
		Str("action", "heartbeat").
		Str("service", service).
		Str("instance", instanceID).
		Send()

	if err := pr.repo.RefreshHeartbeat(service, instanceID); err != nil {
		return fmt.Errorf("refreshing heartbeat: %w", err)
	}

	return nil
}

// ReportOutcome feeds response time and success of a finished
// request into the per-service statistics.
func (pr *Processor) ReportOutcome(service string, responseTime time.Duration, success bool) {
	pr.repo.RecordRequest(service, responseTime, success)
}

func (pr *Processor) ListServices() []string {
	return pr.repo.ServiceNames()
}

func (pr *Processor) Snapshot() map[string][]model.EndpointSummary {
	return pr.repo.Snapshot()
}

func (pr *Processor) StatsFor(service string) (model.ServiceStats, bool) {
	return pr.repo.StatsFor(service)
}

func (pr *Processor) Stats() model.DiscoveryStats {
	defer func(ts time.Time) {
		pr.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	snap := pr.repo.Snapshot()

	total, healthy := 0, 0
	for _, sums := range snap {
		total += len(sums)
		for _, sum := range sums {
			if sum.Status == model.StatusHealthy {
				healthy++
			}
		}
	}

	return model.DiscoveryStats{
		ActiveServices:       len(snap),
		TotalInstances:       total,
		HealthyInstances:     healthy,
		ServicesRegistered:   pr.registered.Load(),
		ServicesDeregistered: pr.deregistered.Load(),
		Lookups:              pr.lookups.Load(),
		LookupMisses:         pr.lookupMisses.Load(),
		PerService: lo.SliceToMap(
			lo.Keys(snap),
			func(service string) (string, model.ServiceStats) {
				st, _ := pr.repo.StatsFor(service)
				return service, st
			},
		),
	}
}

// connKey scopes in-flight accounting to the service,
// user-provided instance ids are only unique within one.
func connKey(service string, instanceID string) string {
	return service + "/" + instanceID
}

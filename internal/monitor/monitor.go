package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/svcreg/internal/model"
	"github.com/horockey/svcreg/internal/repository/endpoints"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Monitor struct {
	repo      endpoints.Repository
	prober    model.Prober
	clock     clockwork.Clock
	defaultHC model.HealthCheck
	logger    zerolog.Logger
	metrics   *metrics

	mu       sync.Mutex
	running  bool
	runCtx   context.Context
	grp      *errgroup.Group
	watchers map[string]context.CancelFunc
	states   map[stateKey]*probeState
}

type stateKey struct {
	service  string
	instance string
}

// probeState accumulates consecutive probe outcomes
// for flap suppression.
type probeState struct {
	fails int
	oks   int
}

func New(
	repo endpoints.Repository,
	prober model.Prober,
	clock clockwork.Clock,
	defaultHC model.HealthCheck,
	logger zerolog.Logger,
) *Monitor {
	m := Monitor{
		repo:      repo,
		prober:    prober,
		clock:     clock,
		defaultHC: defaultHC.WithDefaults(),
		logger:    logger,
		watchers:  map[string]context.CancelFunc{},
		states:    map[stateKey]*probeState{},
	}

	m.metrics = newMetrics(&m)

	return &m
}

func (m *Monitor) Metrics() []prometheus.Collector {
	return m.metrics.list()
}

// Start launches a watch loop per registered service and blocks
// until ctx is done. Services registered later are picked up by
// WatchService or by a periodic registry rescan.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return AlreadyRunningError{}
	}

	grp, runCtx := errgroup.WithContext(ctx)
	m.grp = grp
	m.runCtx = runCtx
	m.running = true

	// The rescan loop picks up services registered behind the
	// monitor's back, e.g. via the management API. It also keeps
	// the group non-empty for the whole run, so WatchService can
	// attach loops at any moment.
	grp.Go(func() error {
		return m.rescan(runCtx)
	})

	for _, svc := range m.repo.ServiceNames() {
		m.watchLocked(svc)
	}
	m.mu.Unlock()

	err := m.grp.Wait()

	m.mu.Lock()
	m.running = false
	m.watchers = map[string]context.CancelFunc{}
	m.states = map[stateKey]*probeState{}
	m.mu.Unlock()

	return fmt.Errorf("running context: %w", err)
}

// WatchService attaches a watch loop for a service registered
// after Start. Watching an already watched service is a no-op.
func (m *Monitor) WatchService(service string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return NotRunningError{}
	}
	if _, found := m.watchers[service]; found {
		return nil
	}
	if !lo.Contains(m.repo.ServiceNames(), service) {
		return endpoints.ServiceNotFoundError{Service: service}
	}

	m.watchLocked(service)
	return nil
}

func (m *Monitor) rescan(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.defaultHC.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		m.mu.Lock()
		for _, svc := range m.repo.ServiceNames() {
			if _, found := m.watchers[svc]; found {
				continue
			}
			m.watchLocked(svc)
		}
		m.mu.Unlock()
	}
}

func (m *Monitor) watchLocked(service string) {
	wCtx, cancel := context.WithCancel(m.runCtx)
	m.watchers[service] = cancel

	m.grp.Go(func() error {
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.watchers, service)
			m.mu.Unlock()
		}()
		return m.watchService(wCtx, service)
	})
}

// watchService polls all instances of a service on every tick.
// It returns nil when the service disappears from the registry
// and an inner error never aborts the loop, so one failing
// service cannot take the others down.
func (m *Monitor) watchService(ctx context.Context, service string) error {
	hc, found := m.repo.HealthCheckFor(service)
	if !found {
		hc = m.defaultHC
	}
	hc = hc.WithDefaults()

	m.logger.Info().
		Str("service", service).
		Str("interval", hc.Interval.String()).
		Msg("Starting health watch")

	ticker := m.clock.NewTicker(hc.Interval)
	defer ticker.Stop()

	for {
		if gone := m.pollService(ctx, service, hc); gone {
			m.logger.Info().
				Str("service", service).
				Msg("Service removed, stopping health watch")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (m *Monitor) pollService(ctx context.Context, service string, hc model.HealthCheck) (gone bool) {
	defer func(ts time.Time) {
		m.metrics.pollTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	insts := m.repo.Instances(service, false)
	if len(insts) == 0 {
		return true
	}

	for _, inst := range insts {
		if ctx.Err() != nil {
			return false
		}

		observed := m.probeInstance(ctx, inst, hc)
		m.metrics.probesCnt.Inc()

		next, changed := m.advance(inst, observed, hc)
		if !changed {
			continue
		}

		if err := m.repo.UpdateStatus(service, inst.InstanceID, next); err != nil {
			m.logger.
				Error().
				Err(fmt.Errorf("updating status for %s/%s: %w", service, inst.InstanceID, err)).
				Send()
			continue
		}

		m.metrics.transitionsCnt.Inc()
		m.logger.Info().
			Str("service", service).
			Str("instance", inst.InstanceID).
			Str("from", string(inst.Status)).
			Str("to", string(next)).
			Msg("Endpoint status changed")
	}

	m.pruneStates(service, insts)

	return false
}

func (m *Monitor) probeInstance(ctx context.Context, ep model.Endpoint, hc model.HealthCheck) model.Status {
	pCtx, cancel := context.WithTimeout(ctx, hc.Timeout)
	defer cancel()

	if hc.Check != nil {
		ok, err := hc.Check(pCtx, ep)
		if err != nil {
			m.metrics.errProbesCnt.Inc()
			m.logger.Warn().
				Str("service", ep.Service).
				Str("instance", ep.InstanceID).
				Err(err).
				Msg("Custom check failed")
			return model.StatusUnhealthy
		}
		if !ok {
			return model.StatusUnhealthy
		}
		return model.StatusHealthy
	}

	st, err := m.prober.Check(pCtx, ep, hc)
	if err != nil {
		m.metrics.errProbesCnt.Inc()
		m.logger.Warn().
			Str("service", ep.Service).
			Str("instance", ep.InstanceID).
			Err(err).
			Msg("Probe failed")
		return model.StatusUnhealthy
	}
	if !st.Up() {
		return model.StatusUnhealthy
	}

	return st
}

// advance applies an observation to the instance state machine.
// The first observation after registration applies immediately.
// A usable instance turns unhealthy only after FailureThreshold
// consecutive failures, an unhealthy one recovers only after
// SuccessThreshold consecutive successes. Transitions between
// healthy and degraded apply immediately.
func (m *Monitor) advance(ep model.Endpoint, observed model.Status, hc model.HealthCheck) (model.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stateKey{service: ep.Service, instance: ep.InstanceID}
	st, found := m.states[key]
	if !found {
		st = &probeState{}
		m.states[key] = st
	}

	if observed == model.StatusUnhealthy {
		st.fails++
		st.oks = 0
	} else {
		st.oks++
		st.fails = 0
	}

	current := ep.Status
	switch {
	case current == model.StatusUnknown:
		return observed, true
	case current.Up():
		if observed == model.StatusUnhealthy {
			if st.fails >= hc.FailureThreshold {
				return model.StatusUnhealthy, true
			}
			return current, false
		}
		return observed, observed != current
	default:
		if observed != model.StatusUnhealthy && st.oks >= hc.SuccessThreshold {
			return observed, true
		}
		return current, false
	}
}

func (m *Monitor) pruneStates(service string, insts []model.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alive := lo.SliceToMap(insts, func(ep model.Endpoint) (stateKey, struct{}) {
		return stateKey{service: service, instance: ep.InstanceID}, struct{}{}
	})

	for key := range m.states {
		if key.service != service {
			continue
		}
		if _, found := alive[key]; !found {
			delete(m.states, key)
		}
	}
}

package inmemory_endpoints

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/horockey/svcreg/internal/model"
	"github.com/horockey/svcreg/internal/repository/endpoints"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

var _ endpoints.Repository = &inmemoryEndpoints{}

type inmemoryEndpoints struct {
	mu       sync.RWMutex
	services map[string]map[string]*record
	checks   map[string]model.HealthCheck
	stats    map[string]*model.ServiceStats
	seq      uint64
	metrics  *metrics
}

// record keeps the insertion sequence so that listings
// stay in registration order regardless of map iteration.
type record struct {
	ep  model.Endpoint
	seq uint64
}

func New() *inmemoryEndpoints {
	repo := inmemoryEndpoints{
		services: map[string]map[string]*record{},
		checks:   map[string]model.HealthCheck{},
		stats:    map[string]*model.ServiceStats{},
	}

	repo.metrics = newMetrics(&repo)

	return &repo
}

func (repo *inmemoryEndpoints) Register(ep model.Endpoint, hc *model.HealthCheck) (res model.Endpoint, resErr error) {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	now := time.Now()
	ep.Status = model.StatusUnknown
	ep.RegisteredAt = now
	ep.LastHeartbeat = now
	ep.StatusChangedAt = now

	insts, found := repo.services[ep.Service]
	if !found {
		insts = map[string]*record{}
		repo.services[ep.Service] = insts
	}

	if rec, found := insts[ep.InstanceID]; found {
		rec.ep = ep
	} else {
		repo.seq++
		insts[ep.InstanceID] = &record{ep: ep, seq: repo.seq}
	}

	if hc != nil {
		repo.checks[ep.Service] = *hc
	}

	return ep, nil
}

func (repo *inmemoryEndpoints) Deregister(service string, instanceID string) (resErr error) {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	insts, found := repo.services[service]
	if !found {
		return endpoints.ServiceNotFoundError{Service: service}
	}
	if _, found := insts[instanceID]; !found {
		return endpoints.InstanceNotFoundError{Service: service, InstanceID: instanceID}
	}

	delete(insts, instanceID)
	if len(insts) == 0 {
		delete(repo.services, service)
		delete(repo.checks, service)
	}

	return nil
}

func (repo *inmemoryEndpoints) Instance(service string, instanceID string) (res model.Endpoint, resErr error) {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	insts, found := repo.services[service]
	if !found {
		return model.Endpoint{}, endpoints.ServiceNotFoundError{Service: service}
	}
	rec, found := insts[instanceID]
	if !found {
		return model.Endpoint{}, endpoints.InstanceNotFoundError{Service: service, InstanceID: instanceID}
	}

	return rec.ep, nil
}

func (repo *inmemoryEndpoints) Instances(service string, healthyOnly bool) []model.Endpoint {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		repo.metrics.successProcessCnt.Inc()
	}(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	return repo.instancesLocked(service, healthyOnly)
}

func (repo *inmemoryEndpoints) instancesLocked(service string, healthyOnly bool) []model.Endpoint {
	recs := lo.Filter(
		lo.Values(repo.services[service]),
		func(rec *record, _ int) bool {
			return !healthyOnly || rec.ep.Status == model.StatusHealthy
		},
	)
	slices.SortFunc(recs, func(a, b *record) int {
		return cmp.Compare(a.seq, b.seq)
	})

	return lo.Map(recs, func(rec *record, _ int) model.Endpoint {
		return rec.ep
	})
}

func (repo *inmemoryEndpoints) ServiceNames() []string {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		repo.metrics.successProcessCnt.Inc()
	}(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	names := lo.Keys(repo.services)
	slices.Sort(names)
	return names
}

func (repo *inmemoryEndpoints) HealthCheckFor(service string) (model.HealthCheck, bool) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	hc, found := repo.checks[service]
	return hc, found
}

func (repo *inmemoryEndpoints) UpdateStatus(service string, instanceID string, st model.Status) (resErr error) {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	insts, found := repo.services[service]
	if !found {
		return endpoints.ServiceNotFoundError{Service: service}
	}
	rec, found := insts[instanceID]
	if !found {
		return endpoints.InstanceNotFoundError{Service: service, InstanceID: instanceID}
	}

	if rec.ep.Status != st {
		rec.ep.Status = st
		rec.ep.StatusChangedAt = time.Now()
	}

	return nil
}

func (repo *inmemoryEndpoints) RefreshHeartbeat(service string, instanceID string) (resErr error) {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	insts, found := repo.services[service]
	if !found {
		return endpoints.ServiceNotFoundError{Service: service}
	}
	rec, found := insts[instanceID]
	if !found {
		return endpoints.InstanceNotFoundError{Service: service, InstanceID: instanceID}
	}

	rec.ep.LastHeartbeat = time.Now()

	return nil
}

func (repo *inmemoryEndpoints) RecordRequest(service string, responseTime time.Duration, success bool) {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		repo.metrics.successProcessCnt.Inc()
	}(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	st, found := repo.stats[service]
	if !found {
		st = &model.ServiceStats{}
		repo.stats[service] = st
	}

	st.TotalRequests++
	if !success {
		st.FailedRequests++
	}
	st.LastRequest = time.Now()

	n := time.Duration(st.TotalRequests)
	st.AvgResponseTime = (st.AvgResponseTime*(n-1) + responseTime) / n
}

func (repo *inmemoryEndpoints) StatsFor(service string) (model.ServiceStats, bool) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	st, found := repo.stats[service]
	if !found {
		return model.ServiceStats{}, false
	}
	return *st, true
}

func (repo *inmemoryEndpoints) Snapshot() map[string][]model.EndpointSummary {
	repo.metrics.requestsCnt.Inc()
	defer func(ts time.Time) {
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		repo.metrics.successProcessCnt.Inc()
	}(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	res := make(map[string][]model.EndpointSummary, len(repo.services))
	for svc := range repo.services {
		res[svc] = lo.Map(
			repo.instancesLocked(svc, false),
			func(ep model.Endpoint, _ int) model.EndpointSummary {
				return model.EndpointSummary{
					InstanceID:    ep.InstanceID,
					URL:           ep.URL(),
					Status:        ep.Status,
					Weight:        ep.Weight,
					Metadata:      ep.Metadata,
					LastHeartbeat: ep.LastHeartbeat,
				}
			},
		)
	}

	return res
}

func (repo *inmemoryEndpoints) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

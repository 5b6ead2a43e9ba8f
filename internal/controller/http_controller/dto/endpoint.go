package dto

import (
	"time"

	"github.com/horockey/svcreg/internal/model"
	"github.com/samber/lo"
)

type Registration struct {
	Service     string            `json:"service"`
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	InstanceID  string            `json:"instance_id,omitempty"`
	Protocol    string            `json:"protocol,omitempty"`
	Path        string            `json:"path,omitempty"`
	Weight      int               `json:"weight,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	HealthCheck *HealthCheck      `json:"health_check,omitempty"`
}

type HealthCheck struct {
	Path             string `json:"path,omitempty"`
	IntervalSeconds  int    `json:"interval_seconds,omitempty"`
	TimeoutSeconds   int    `json:"timeout_seconds,omitempty"`
	FailureThreshold int    `json:"failure_threshold,omitempty"`
	SuccessThreshold int    `json:"success_threshold,omitempty"`
}

type Endpoint struct {
	Service       string            `json:"service"`
	InstanceID    string            `json:"instance_id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	Weight        int               `json:"weight"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RegisteredAt  int64             `json:"registered_at"`
	LastHeartbeat int64             `json:"last_heartbeat"`
}

type Summary struct {
	InstanceID    string            `json:"instance_id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	Weight        int               `json:"weight"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	LastHeartbeat int64             `json:"last_heartbeat"`
}

type ServiceStats struct {
	TotalRequests     uint64  `json:"total_requests"`
	FailedRequests    uint64  `json:"failed_requests"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	LastRequest       int64   `json:"last_request,omitempty"`
}

type Stats struct {
	ActiveServices       int                     `json:"active_services"`
	TotalInstances       int                     `json:"total_instances"`
	HealthyInstances     int                     `json:"healthy_instances"`
	ServicesRegistered   uint64                  `json:"services_registered"`
	ServicesDeregistered uint64                  `json:"services_deregistered"`
	Lookups              uint64                  `json:"lookups"`
	LookupMisses         uint64                  `json:"lookup_misses"`
	PerService           map[string]ServiceStats `json:"per_service"`
}

func RegistrationToModel(reg Registration) model.Registration {
	res := model.Registration{
		Service:    reg.Service,
		Host:       reg.Host,
		Port:       reg.Port,
		InstanceID: reg.InstanceID,
		Protocol:   reg.Protocol,
		Path:       reg.Path,
		Weight:     reg.Weight,
		Metadata:   reg.Metadata,
	}

	if reg.HealthCheck != nil {
		res.HealthCheck = &model.HealthCheck{
			Path:             reg.HealthCheck.Path,
			Interval:         time.Duration(reg.HealthCheck.IntervalSeconds) * time.Second,
			Timeout:          time.Duration(reg.HealthCheck.TimeoutSeconds) * time.Second,
			FailureThreshold: reg.HealthCheck.FailureThreshold,
			SuccessThreshold: reg.HealthCheck.SuccessThreshold,
		}
	}

	return res
}

func NewEndpoint(ep model.Endpoint) Endpoint {
	return Endpoint{
		Service:       ep.Service,
		InstanceID:    ep.InstanceID,
		URL:           ep.URL(),
		Status:        string(ep.Status),
		Weight:        ep.Weight,
		Metadata:      ep.Metadata,
		RegisteredAt:  ep.RegisteredAt.Unix(),
		LastHeartbeat: ep.LastHeartbeat.Unix(),
	}
}

func NewSummary(sum model.EndpointSummary) Summary {
	return Summary{
		InstanceID:    sum.InstanceID,
		URL:           sum.URL,
		Status:        string(sum.Status),
		Weight:        sum.Weight,
		Metadata:      sum.Metadata,
		LastHeartbeat: sum.LastHeartbeat.Unix(),
	}
}

func NewSnapshot(snap map[string][]model.EndpointSummary) map[string][]Summary {
	return lo.MapValues(snap, func(sums []model.EndpointSummary, _ string) []Summary {
		return lo.Map(sums, func(sum model.EndpointSummary, _ int) Summary {
			return NewSummary(sum)
		})
	})
}

func NewServiceStats(st model.ServiceStats) ServiceStats {
	res := ServiceStats{
		TotalRequests:     st.TotalRequests,
		FailedRequests:    st.FailedRequests,
		AvgResponseTimeMs: float64(st.AvgResponseTime) / float64(time.Millisecond),
	}
	if !st.LastRequest.IsZero() {
		res.LastRequest = st.LastRequest.Unix()
	}
	return res
}

func NewStats(st model.DiscoveryStats) Stats {
	return Stats{
		ActiveServices:       st.ActiveServices,
		TotalInstances:       st.TotalInstances,
		HealthyInstances:     st.HealthyInstances,
		ServicesRegistered:   st.ServicesRegistered,
		ServicesDeregistered: st.ServicesDeregistered,
		Lookups:              st.Lookups,
		LookupMisses:         st.LookupMisses,
		PerService: lo.MapValues(st.PerService, func(s model.ServiceStats, _ string) ServiceStats {
			return NewServiceStats(s)
		}),
	}
}

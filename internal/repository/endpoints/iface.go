package endpoints

import (
	"time"

	"github.com/horockey/svcreg/internal/model"
)

type Repository interface {
	model.MetricsProvider
	Register(ep model.Endpoint, hc *model.HealthCheck) (model.Endpoint, error)
	Deregister(service string, instanceID string) error
	Instance(service string, instanceID string) (model.Endpoint, error)
	Instances(service string, healthyOnly bool) []model.Endpoint
	ServiceNames() []string
	HealthCheckFor(service string) (model.HealthCheck, bool)
	UpdateStatus(service string, instanceID string, st model.Status) error
	RefreshHeartbeat(service string, instanceID string) error
	RecordRequest(service string, responseTime time.Duration, success bool)
	StatsFor(service string) (model.ServiceStats, bool)
	Snapshot() map[string][]model.EndpointSummary
}

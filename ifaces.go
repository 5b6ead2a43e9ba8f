package svcreg

import (
	"context"

	"github.com/horockey/svcreg/internal/model"
	"github.com/horockey/svcreg/internal/processor"
	"github.com/horockey/svcreg/internal/repository/endpoints"
)

type (
	Processor  = processor.Processor
	Repository = endpoints.Repository

	Endpoint     = model.Endpoint
	Registration = model.Registration
	HealthCheck  = model.HealthCheck
	CheckFunc    = model.CheckFunc
	Prober       = model.Prober
	Status       = model.Status

	ServiceStats    = model.ServiceStats
	DiscoveryStats  = model.DiscoveryStats
	EndpointSummary = model.EndpointSummary
)

const (
	StatusUnknown   = model.StatusUnknown
	StatusHealthy   = model.StatusHealthy
	StatusDegraded  = model.StatusDegraded
	StatusUnhealthy = model.StatusUnhealthy
)

type Controller interface {
	model.MetricsProvider
	Start(ctx context.Context, proc *Processor) error
}

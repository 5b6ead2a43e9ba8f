package model

import (
	"context"
)

// Prober performs a single liveness check of an endpoint.
// A non-nil error is treated by callers as an unhealthy observation.
type Prober interface {
	Check(ctx context.Context, ep Endpoint, hc HealthCheck) (Status, error)
}

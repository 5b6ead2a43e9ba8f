package model

import (
	"context"
	"time"
)

const (
	DefaultHealthPath       = "/health"
	DefaultProbeInterval    = time.Second * 30
	DefaultProbeTimeout     = time.Second * 5
	DefaultFailureThreshold = 3
	DefaultSuccessThreshold = 2
)

// CheckFunc is a user-supplied liveness check.
// When set on a HealthCheck it takes precedence over the prober.
type CheckFunc func(ctx context.Context, ep Endpoint) (bool, error)

type HealthCheck struct {
	Path             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
	Check            CheckFunc
}

// WithDefaults returns a copy with every unset field filled in.
func (hc HealthCheck) WithDefaults() HealthCheck {
	if hc.Path == "" {
		hc.Path = DefaultHealthPath
	}
	if hc.Interval <= 0 {
		hc.Interval = DefaultProbeInterval
	}
	if hc.Timeout <= 0 {
		hc.Timeout = DefaultProbeTimeout
	}
	if hc.FailureThreshold <= 0 {
		hc.FailureThreshold = DefaultFailureThreshold
	}
	if hc.SuccessThreshold <= 0 {
		hc.SuccessThreshold = DefaultSuccessThreshold
	}
	return hc
}

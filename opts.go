package svcreg

import (
	"errors"
	"fmt"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/svcreg/internal/repository/endpoints"
	"github.com/horockey/svcreg/pkg/balancex"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Sets custom service port for the management API.
// Default is 7100.
func WithServicePort(p int) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if p <= 0 {
			return fmt.Errorf("port must be positive, got: %d", p)
		}
		target.servicePort = p
		return nil
	}
}

// Sets balancing strategy.
// Default is round robin.
func WithStrategy(s balancex.Strategy) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if s == "" {
			return errors.New("got empty strategy")
		}
		target.strategy = s
		return nil
	}
}

// Sets response time threshold for the default HTTP prober
// above which an endpoint is reported degraded.
// Default is 2s.
func WithDegradedAfter(d time.Duration) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if d <= 0 {
			return fmt.Errorf("degraded threshold must be positive, got: %s", d.String())
		}
		target.degradedAfter = d
		return nil
	}
}

// Sets health check parameters for services registered without their own.
// Unset fields fall back to package defaults.
func WithDefaultHealthCheck(hc HealthCheck) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if hc.Interval < 0 || hc.Timeout < 0 {
			return errors.New("got negative health check durations")
		}
		if hc.FailureThreshold < 0 || hc.SuccessThreshold < 0 {
			return errors.New("got negative health check thresholds")
		}
		target.defaultHC = hc
		return nil
	}
}

// Sets custom clock.
// Default is system clock.
func WithClock(c clockwork.Clock) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if c == nil {
			return errors.New("got nil clock")
		}
		target.clock = c
		return nil
	}
}

// Sets custom logger.
// Default is stdout logger.
func WithLogger(l zerolog.Logger) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		target.logger = l
		return nil
	}
}

// Sets custom prober implementation.
// Default probes endpoints over HTTP.
func WithProber(p Prober) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if p == nil {
			return errors.New("got nil prober")
		}
		target.prober = p
		return nil
	}
}

// Sets user-defined implementation of endpoints repository.
// Default is in-memory.
//
// WARNING! Apply this opt only if you know what you are doing.
func WithRepository(repo endpoints.Repository) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if repo == nil {
			return errors.New("got nil repository")
		}
		target.repo = repo
		return nil
	}
}

// Sets user-defined implementation of management API controller.
// Default is HTTP.
//
// WARNING! Apply this opt only if you know what you are doing.
func WithController(ctrl Controller) options.Option[createClientParams] {
	return func(target *createClientParams) error {
		if ctrl == nil {
			return errors.New("got nil controller")
		}
		target.controller = ctrl
		return nil
	}
}

package svcreg

import (
	"github.com/horockey/svcreg/internal/monitor"
	"github.com/horockey/svcreg/internal/repository/endpoints"
)

type (
	ServiceNotFoundError   = endpoints.ServiceNotFoundError
	InstanceNotFoundError  = endpoints.InstanceNotFoundError
	NoEndpointsError       = endpoints.NoEndpointsError
	MonitorNotRunningError = monitor.NotRunningError
)

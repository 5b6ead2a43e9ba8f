package endpoints

import (
	"fmt"
)

var _ error = ServiceNotFoundError{}

type ServiceNotFoundError struct {
	Service string
}

func (err ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service %s not found", err.Service)
}

type InstanceNotFoundError struct {
	Service    string
	InstanceID string
}

func (err InstanceNotFoundError) Error() string {
	return fmt.Sprintf("instance %s of service %s not found", err.InstanceID, err.Service)
}

type NoEndpointsError struct {
	Service string
}

func (err NoEndpointsError) Error() string {
	return fmt.Sprintf("no endpoints available for service %s", err.Service)
}

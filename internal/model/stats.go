package model

import "time"

type ServiceStats struct {
	TotalRequests   uint64
	FailedRequests  uint64
	AvgResponseTime time.Duration
	LastRequest     time.Time
}

type DiscoveryStats struct {
	ActiveServices       int
	TotalInstances       int
	HealthyInstances     int
	ServicesRegistered   uint64
	ServicesDeregistered uint64
	Lookups              uint64
	LookupMisses         uint64
	PerService           map[string]ServiceStats
}

type EndpointSummary struct {
	InstanceID    string
	URL           string
	Status        Status
	Weight        int
	Metadata      map[string]string
	LastHeartbeat time.Time
}

package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Up reports whether the status still admits traffic.
func (s Status) Up() bool {
	return s == StatusHealthy || s == StatusDegraded
}

type Endpoint struct {
	Service    string
	InstanceID string
	Host       string
	Port       int
	Protocol   string
	Path       string
	Weight     int
	Metadata   map[string]string

	Status          Status
	RegisteredAt    time.Time
	LastHeartbeat   time.Time
	StatusChangedAt time.Time
}

func (ep Endpoint) URL() string {
	path := ep.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s:%d%s", ep.Protocol, ep.Host, ep.Port, path)
}

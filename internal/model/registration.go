package model

const (
	DefaultProtocol = "http"
	DefaultWeight   = 100
)

type Registration struct {
	Service     string
	Host        string
	Port        int
	InstanceID  string
	Protocol    string
	Path        string
	Weight      int
	Metadata    map[string]string
	HealthCheck *HealthCheck
}

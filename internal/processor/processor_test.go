package processor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/horockey/svcreg/internal/model"
	"github.com/horockey/svcreg/internal/processor"
	"github.com/horockey/svcreg/internal/repository/endpoints"
	"github.com/horockey/svcreg/internal/repository/endpoints/inmemory_endpoints"
	"github.com/horockey/svcreg/pkg/balancex"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(t *testing.T, strategy balancex.Strategy) (*processor.Processor, endpoints.Repository) {
	t.Helper()

	repo := inmemory_endpoints.New()
	b, err := balancex.New(strategy)
	require.NoError(t, err)

	return processor.New(repo, b, zerolog.Nop()), repo
}

func registration(service string, instanceID string) model.Registration {
	return model.Registration{
		Service:    service,
		InstanceID: instanceID,
		Host:       "10.0.0.1",
		Port:       8080,
	}
}

func Test_Register_AppliesDefaults(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	ep, err := pr.Register(model.Registration{Service: "users", Host: "10.0.0.1", Port: 8080})
	require.NoError(t, err)

	assert.NotEmpty(t, ep.InstanceID)
	assert.Equal(t, "http", ep.Protocol)
	assert.Equal(t, 100, ep.Weight)
	assert.Equal(t, model.StatusUnknown, ep.Status)
}

func Test_Register_KeepsExplicitValues(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	ep, err := pr.Register(model.Registration{
		Service:    "users",
		InstanceID: "users-1",
		Host:       "10.0.0.1",
		Port:       8443,
		Protocol:   "https",
		Path:       "/api",
		Weight:     30,
		Metadata:   map[string]string{"zone": "eu-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "users-1", ep.InstanceID)
	assert.Equal(t, "https://10.0.0.1:8443/api", ep.URL())
	assert.Equal(t, 30, ep.Weight)
	assert.Equal(t, "eu-1", ep.Metadata["zone"])
}

func Test_Register_Validation(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	cases := []struct {
		name string
		reg  model.Registration
	}{
		{"empty service", model.Registration{Host: "10.0.0.1", Port: 8080}},
		{"empty host", model.Registration{Service: "users", Port: 8080}},
		{"zero port", model.Registration{Service: "users", Host: "10.0.0.1"}},
		{"port out of range", model.Registration{Service: "users", Host: "10.0.0.1", Port: 70_000}},
		{"negative weight", model.Registration{Service: "users", Host: "10.0.0.1", Port: 8080, Weight: -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pr.Register(tc.reg)
			assert.Error(t, err)
		})
	}
}

func Test_Deregister_NotFound(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	err := pr.Deregister("users", "users-1")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, endpoints.ServiceNotFoundError{Service: "users"}))
}

func Test_Discover_RoundRobinSequence(t *testing.T) {
	pr, repo := newProcessor(t, balancex.StrategyRoundRobin)

	for _, id := range []string{"users-a", "users-b"} {
		_, err := pr.Register(registration("users", id))
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus("users", id, model.StatusHealthy))
	}

	var got []string
	for range 4 {
		ep, err := pr.Discover("users")
		require.NoError(t, err)
		got = append(got, ep.InstanceID)
	}

	assert.Equal(t, []string{"users-a", "users-b", "users-a", "users-b"}, got)
}

func Test_Discover_PrefersHealthy(t *testing.T) {
	pr, repo := newProcessor(t, balancex.StrategyRoundRobin)

	for _, id := range []string{"users-a", "users-b"} {
		_, err := pr.Register(registration("users", id))
		require.NoError(t, err)
	}
	require.NoError(t, repo.UpdateStatus("users", "users-a", model.StatusHealthy))
	require.NoError(t, repo.UpdateStatus("users", "users-b", model.StatusUnhealthy))

	for range 5 {
		ep, err := pr.Discover("users")
		require.NoError(t, err)
		assert.Equal(t, "users-a", ep.InstanceID)
	}
}

func Test_Discover_FallbackWhenNoneHealthy(t *testing.T) {
	pr, repo := newProcessor(t, balancex.StrategyRoundRobin)

	_, err := pr.Register(registration("users", "users-a"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus("users", "users-a", model.StatusUnhealthy))

	ep, err := pr.Discover("users")

	require.NoError(t, err)
	assert.Equal(t, "users-a", ep.InstanceID)
}

func Test_Discover_FreshlyRegisteredIsDiscoverable(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	_, err := pr.Register(registration("users", "users-a"))
	require.NoError(t, err)

	ep, err := pr.Discover("users")

	require.NoError(t, err)
	assert.Equal(t, "users-a", ep.InstanceID)
	assert.Equal(t, model.StatusUnknown, ep.Status)
}

func Test_Discover_NoEndpoints(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	ep, err := pr.Discover("users")

	assert.Empty(t, ep)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, endpoints.NoEndpointsError{Service: "users"}))

	st := pr.Stats()
	assert.Equal(t, uint64(1), st.Lookups)
	assert.Equal(t, uint64(1), st.LookupMisses)
}

func Test_Discover_TracksInflight(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyLeastConn)

	_, err := pr.Register(registration("users", "users-a"))
	require.NoError(t, err)

	for range 2 {
		_, err := pr.Discover("users")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, pr.ConnCount("users", "users-a"))

	pr.Release("users", "users-a")
	assert.Equal(t, 1, pr.ConnCount("users", "users-a"))

	pr.Release("users", "users-a")
	pr.Release("users", "users-a")
	assert.Equal(t, 0, pr.ConnCount("users", "users-a"))
}

func Test_Heartbeat_RefreshesTimestamp(t *testing.T) {
	pr, repo := newProcessor(t, balancex.StrategyRoundRobin)

	ep, err := pr.Register(registration("users", "users-a"))
	require.NoError(t, err)

	require.NoError(t, pr.Heartbeat("users", "users-a"))

	got, err := repo.Instance("users", "users-a")
	require.NoError(t, err)
	assert.False(t, got.LastHeartbeat.Before(ep.LastHeartbeat))
}

func Test_Heartbeat_NotFound(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	err := pr.Heartbeat("users", "users-a")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, endpoints.ServiceNotFoundError{Service: "users"}))
}

func Test_ReportOutcome_Stats(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	_, err := pr.Register(registration("users", "users-a"))
	require.NoError(t, err)

	pr.ReportOutcome("users", 10*time.Millisecond, true)
	pr.ReportOutcome("users", 20*time.Millisecond, false)
	pr.ReportOutcome("users", 30*time.Millisecond, true)

	st, found := pr.StatsFor("users")
	require.True(t, found)
	assert.Equal(t, uint64(3), st.TotalRequests)
	assert.Equal(t, uint64(1), st.FailedRequests)
	assert.Equal(t, 20*time.Millisecond, st.AvgResponseTime)
}

func Test_Stats_Aggregates(t *testing.T) {
	pr, repo := newProcessor(t, balancex.StrategyRoundRobin)

	for _, id := range []string{"users-a", "users-b"} {
		_, err := pr.Register(registration("users", id))
		require.NoError(t, err)
	}
	_, err := pr.Register(registration("orders", "orders-a"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus("users", "users-a", model.StatusHealthy))

	_, err = pr.Discover("users")
	require.NoError(t, err)
	_, err = pr.Discover("ghost")
	require.Error(t, err)

	require.NoError(t, pr.Deregister("orders", "orders-a"))

	st := pr.Stats()

	assert.Equal(t, 1, st.ActiveServices)
	assert.Equal(t, 2, st.TotalInstances)
	assert.Equal(t, 1, st.HealthyInstances)
	assert.Equal(t, uint64(3), st.ServicesRegistered)
	assert.Equal(t, uint64(1), st.ServicesDeregistered)
	assert.Equal(t, uint64(2), st.Lookups)
	assert.Equal(t, uint64(1), st.LookupMisses)
	assert.Contains(t, st.PerService, "users")
}

func Test_ListServices_Sorted(t *testing.T) {
	pr, _ := newProcessor(t, balancex.StrategyRoundRobin)

	for _, svc := range []string{"users", "billing", "orders"} {
		_, err := pr.Register(registration(svc, svc+"-1"))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"billing", "orders", "users"}, pr.ListServices())
}

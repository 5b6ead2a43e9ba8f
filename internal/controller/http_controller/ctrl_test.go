package http_controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/horockey/svcreg/internal/controller/http_controller/dto"
	"github.com/horockey/svcreg/internal/model"
	"github.com/horockey/svcreg/internal/processor"
	"github.com/horockey/svcreg/internal/repository/endpoints/inmemory_endpoints"
	"github.com/horockey/svcreg/pkg/balancex"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

func setupController(t *testing.T) (*resty.Client, *processor.Processor) {
	t.Helper()

	repo := inmemory_endpoints.New()
	b, err := balancex.New(balancex.StrategyRoundRobin)
	require.NoError(t, err)
	pr := processor.New(repo, b, zerolog.Nop())

	ctrl := New("127.0.0.1:0", testAPIKey, zerolog.Nop())
	ctrl.proc = pr

	srv := httptest.NewServer(ctrl.serv.Handler)
	t.Cleanup(srv.Close)

	cl := resty.New().
		SetBaseURL(srv.URL).
		SetHeader("X-Api-Key", testAPIKey)

	return cl, pr
}

func Test_AuthMW_Forbidden(t *testing.T) {
	cl, pr := setupController(t)

	resp, err := cl.R().
		SetHeader("X-Api-Key", "wrong").
		SetBody(dto.Registration{Service: "users", Host: "10.0.0.1", Port: 8080}).
		Post("/services")

	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	assert.Empty(t, pr.ListServices())
}

func Test_PostService(t *testing.T) {
	cl, pr := setupController(t)

	resp, err := cl.R().
		SetBody(dto.Registration{
			Service:    "users",
			Host:       "10.0.0.1",
			Port:       8080,
			InstanceID: "users-1",
			HealthCheck: &dto.HealthCheck{
				Path:            "/ping",
				IntervalSeconds: 5,
			},
		}).
		Post("/services")

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	epOut := dto.Endpoint{}
	require.NoError(t, json.Unmarshal(resp.Body(), &epOut))
	assert.Equal(t, "users-1", epOut.InstanceID)
	assert.Equal(t, "http://10.0.0.1:8080", epOut.URL)
	assert.Equal(t, string(model.StatusUnknown), epOut.Status)

	assert.Equal(t, []string{"users"}, pr.ListServices())
}

func Test_PostService_GeneratedInstanceID(t *testing.T) {
	cl, _ := setupController(t)

	resp, err := cl.R().
		SetBody(dto.Registration{Service: "users", Host: "10.0.0.1", Port: 8080}).
		Post("/services")

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	epOut := dto.Endpoint{}
	require.NoError(t, json.Unmarshal(resp.Body(), &epOut))
	assert.NotEmpty(t, epOut.InstanceID)
}

func Test_PostService_BadJSON(t *testing.T) {
	cl, _ := setupController(t)

	resp, err := cl.R().
		SetHeader("Content-Type", "application/json").
		SetBody("{not json").
		Post("/services")

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func Test_PostService_InvalidRegistration(t *testing.T) {
	cl, _ := setupController(t)

	resp, err := cl.R().
		SetBody(dto.Registration{Service: "users", Port: 8080}).
		Post("/services")

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func Test_DeleteInstance(t *testing.T) {
	cl, pr := setupController(t)

	_, err := pr.Register(model.Registration{
		Service:    "users",
		InstanceID: "users-1",
		Host:       "10.0.0.1",
		Port:       8080,
	})
	require.NoError(t, err)

	resp, err := cl.R().Delete("/services/users/users-1")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Empty(t, pr.ListServices())
}

func Test_DeleteInstance_NotFound(t *testing.T) {
	cl, _ := setupController(t)

	resp, err := cl.R().Delete("/services/ghost/ghost-1")

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func Test_PostHeartbeat(t *testing.T) {
	cl, pr := setupController(t)

	_, err := pr.Register(model.Registration{
		Service:    "users",
		InstanceID: "users-1",
		Host:       "10.0.0.1",
		Port:       8080,
	})
	require.NoError(t, err)

	resp, err := cl.R().Post("/services/users/users-1/heartbeat")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func Test_PostHeartbeat_NotFound(t *testing.T) {
	cl, _ := setupController(t)

	resp, err := cl.R().Post("/services/ghost/ghost-1/heartbeat")

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func Test_GetServices(t *testing.T) {
	cl, pr := setupController(t)

	for _, id := range []string{"users-1", "users-2"} {
		_, err := pr.Register(model.Registration{
			Service:    "users",
			InstanceID: id,
			Host:       "10.0.0.1",
			Port:       8080,
		})
		require.NoError(t, err)
	}

	resp, err := cl.R().Get("/services")

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	snap := map[string][]dto.Summary{}
	require.NoError(t, json.Unmarshal(resp.Body(), &snap))
	require.Len(t, snap["users"], 2)
	assert.Equal(t, "users-1", snap["users"][0].InstanceID)
	assert.Equal(t, "users-2", snap["users"][1].InstanceID)
}

func Test_GetStats(t *testing.T) {
	cl, pr := setupController(t)

	_, err := pr.Register(model.Registration{
		Service:    "users",
		InstanceID: "users-1",
		Host:       "10.0.0.1",
		Port:       8080,
	})
	require.NoError(t, err)
	_, err = pr.Discover("users")
	require.NoError(t, err)

	resp, err := cl.R().Get("/stats")

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	stats := dto.Stats{}
	require.NoError(t, json.Unmarshal(resp.Body(), &stats))
	assert.Equal(t, 1, stats.ActiveServices)
	assert.Equal(t, 1, stats.TotalInstances)
	assert.Equal(t, uint64(1), stats.ServicesRegistered)
	assert.Equal(t, uint64(1), stats.Lookups)
}

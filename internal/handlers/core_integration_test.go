package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/handlers/testutil"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/internal/monitoring"
)

func TestHealth(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"status":"ok"}`, string(testutil.DecodeResponse(t, resp).Data))
	require.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header().Get("X-Frame-Options"))
}

func TestHealthReportsDatabaseOutage(t *testing.T) {
	env := testutil.NewEnv(t)
	require.NoError(t, database.Close(env.DB))

	resp := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	body := testutil.DecodeResponse(t, resp)
	require.False(t, body.Success)
	require.Equal(t, "DEPENDENCY_FAILED", body.Error.Code)
}

func TestReadiness(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var report monitoring.Report
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Len(t, report.Checks, 1)
	require.Equal(t, "database", report.Checks[0].Component)

	require.NoError(t, database.Close(env.DB))
	resp = env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Equal(t, monitoring.StatusDown, report.Status)
}

func TestSetupStatus(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/setup/status", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"initialized":false,"hasAdmin":false}`, string(testutil.DecodeResponse(t, resp).Data))

	env.CreateUser(models.RoleUser, "Passw0rd!")

	resp = env.Request(http.MethodGet, "/api/setup/status", nil, "")
	require.JSONEq(t, `{"initialized":true,"hasAdmin":false}`, string(testutil.DecodeResponse(t, resp).Data))

	env.CreateAdmin("Passw0rd!")

	resp = env.Request(http.MethodGet, "/api/setup/status", nil, "")
	require.JSONEq(t, `{"initialized":true,"hasAdmin":true}`, string(testutil.DecodeResponse(t, resp).Data))
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/nowhere", nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	body := testutil.DecodeResponse(t, resp)
	require.False(t, body.Success)
	require.Equal(t, "NOT_FOUND", body.Error.Code)
	require.Contains(t, body.Error.Message, "/api/nowhere")
}

func TestMetricsExposeDomainCounters(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAndLogin(models.RoleUser)

	resp := env.Request(http.MethodPost, "/api/census", censusPayload("2025-03-02", "1st Service", 4), token)
	require.Equal(t, http.StatusCreated, resp.Code)

	metrics := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, metrics.Code)
	body := metrics.Body.String()
	require.Contains(t, body, "kiddies_census_recorded_total")
	require.Contains(t, body, "kiddies_auth_attempts_total")
	require.Contains(t, body, "kiddies_api_latency_seconds")
}

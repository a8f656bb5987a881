package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldcompass/territory-engine/infra/distlock"
	svcerrors "github.com/fieldcompass/territory-engine/infrastructure/errors"
	"github.com/fieldcompass/territory-engine/infrastructure/logging"
	"github.com/fieldcompass/territory-engine/infrastructure/metrics"
	"github.com/fieldcompass/territory-engine/infrastructure/testutil"
	"github.com/fieldcompass/territory-engine/internal/assign/engine"
	"github.com/fieldcompass/territory-engine/internal/assign/repo/memory"
)

func newTestServer(t *testing.T, tokens []string) *server {
	t.Helper()
	store := memory.New()
	logger := logging.NewFromEnv("territoryd-test")
	eng := engine.New(store, logger)
	locker := distlock.New(nil, 0)
	m := metrics.New("territoryd-test")
	return newServer(eng, store, locker, logger, m, tokens, nil)
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	srv := newTestServer(t, []string{"secret"})
	ts := testutil.NewHTTPTestServer(t, srv.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunRequiresBearerTokenWhenTokensConfigured(t *testing.T) {
	srv := newTestServer(t, []string{"secret"})
	ts := testutil.NewHTTPTestServer(t, srv.router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/builds/b1/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetUnknownBuildReturnsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := testutil.NewHTTPTestServer(t, srv.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/builds/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, string(svcerrors.ErrCodeNotFound), body["code"])
}

func TestStatsEndpointReportsAuthRequired(t *testing.T) {
	srv := newTestServer(t, []string{"secret"})
	ts := testutil.NewHTTPTestServer(t, srv.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, true, stats["auth_required"])
}

func TestRunRejectsUnknownSolverMode(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := testutil.NewHTTPTestServer(t, srv.router())
	defer ts.Close()

	body, err := json.Marshal(runRequest{SolverMode: "quantum"})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/builds/b1/run", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Equal(t, string(svcerrors.ErrCodeInvalidInput), decoded["code"])
}

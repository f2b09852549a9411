package connectors_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseloop/server/pkg/connectors"
	"github.com/pulseloop/server/pkg/types"
)

var testDay = time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

func fitbitConnector(t *testing.T, serverURL string) *connectors.FitbitConnector {
	t.Helper()
	factory, err := connectors.Resolve(types.DeviceFitbit, "activities")
	require.NoError(t, err)
	conn, ok := factory(types.ProcessingRequest{ProcessingTime: testDay}).(*connectors.FitbitConnector)
	require.True(t, ok)
	conn.BaseURL = serverURL
	conn.Client = http.DefaultClient
	return conn
}

func TestFitbitFetch_Ready(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":{"steps":100}}`))
	}))
	defer srv.Close()

	conn := fitbitConnector(t, srv.URL)
	outcome, err := conn.Fetch(context.Background(), &types.UserCredential{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, connectors.StatusReady, outcome.Status)
	assert.JSONEq(t, `{"summary":{"steps":100}}`, string(outcome.Payload))
	assert.Equal(t, "/1/user/-/activities/date/2026-08-27.json", gotPath)
}

func TestFitbitFetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	conn := fitbitConnector(t, srv.URL)
	outcome, err := conn.Fetch(context.Background(), &types.UserCredential{UserID: "u1"})
	require.NoError(t, err, "rate limiting is an outcome, not an error")

	assert.Equal(t, connectors.StatusRateLimited, outcome.Status)
	assert.Equal(t, 120*time.Second, outcome.RetryAfter)
}

func TestFitbitFetch_RateLimitedWithoutHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	conn := fitbitConnector(t, srv.URL)
	outcome, err := conn.Fetch(context.Background(), &types.UserCredential{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, connectors.StatusRateLimited, outcome.Status)
	assert.Equal(t, 60*time.Second, outcome.RetryAfter, "missing Retry-After falls back to the default cool-down")
}

func TestFitbitFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	conn := fitbitConnector(t, srv.URL)
	_, err := conn.Fetch(context.Background(), &types.UserCredential{UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFitbitFetch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	conn := fitbitConnector(t, srv.URL)
	_, err := conn.Fetch(context.Background(), &types.UserCredential{UserID: "u1"})
	require.Error(t, err)
}

func TestMovesFetch_UsesProcessingDay(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[{"date":"20260827"}]`))
	}))
	defer srv.Close()

	conn, ok := connectors.NewMovesConnector(types.ProcessingRequest{ProcessingTime: testDay}).(*connectors.MovesConnector)
	require.True(t, ok)
	conn.BaseURL = srv.URL
	conn.Client = http.DefaultClient

	outcome, err := conn.Fetch(context.Background(), &types.UserCredential{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, connectors.StatusReady, outcome.Status)
	assert.Equal(t, "/api/1.1/user/summary/daily/20260827", gotPath)
}

func TestHumanAPIFetch_UpdatedSinceStartOfDay(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	conn, ok := connectors.NewHumanAPIConnector(types.ProcessingRequest{ProcessingTime: testDay}).(*connectors.HumanAPIConnector)
	require.True(t, ok)
	conn.BaseURL = srv.URL
	conn.Client = http.DefaultClient

	outcome, err := conn.Fetch(context.Background(), &types.UserCredential{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, connectors.StatusReady, outcome.Status)
	assert.Equal(t, "updated_since=20260827T000000Z", gotQuery)
}

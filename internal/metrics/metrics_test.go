package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRun("success", time.Second)
	m.ObserveStep("bool", time.Second, nil)
	m.ObserveBranch(true)
	m.ObserveCoercionFailure("int")
	m.ObserveTool("get_portfolio", false)
	m.ObserveOrder("buy", "us_equity")
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveRun("error", time.Second)
	m.ObserveRun("success", time.Second)
	m.ObserveRun("success", time.Second)
	m.ObserveBranch(false)
	m.ObserveStep("float", 10*time.Millisecond, errors.New("boom"))
	m.ObserveTool("cancel_order_by_id", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Branches.WithLabelValues("else")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("float", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("cancel_order_by_id", "error")))
}

func TestRouter(t *testing.T) {
	m := New()
	m.ObserveRun("success", time.Second)

	srv := httptest.NewServer(NewRouter(m, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestRouterUnhealthy(t *testing.T) {
	srv := httptest.NewServer(NewRouter(New(), func(context.Context) error {
		return errors.New("broker unreachable")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

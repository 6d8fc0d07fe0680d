package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/delivery/http/handler"
	"crm-sync/internal/infrastructure/metrics"
)

func newTestRouter() *Router {
	cfg := &config.Config{App: config.AppConfig{Name: "crm-sync", Env: "test"}}
	logger := zap.NewNop()
	r := NewRouter(cfg,
		handler.NewHealthHandler(cfg, nil, nil, nil, logger),
		handler.NewOAuthHandler(nil, logger),
		handler.NewSyncHandler(nil, logger),
		handler.NewLogHandler(nil, logger),
	)
	r.Setup()
	return r
}

func TestMetricsRoute(t *testing.T) {
	metrics.SyncRunsTotal.WithLabelValues("companies", "success").Inc()

	resp, err := newTestRouter().GetApp().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "crm_sync_sync_runs_total")
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	resp, err := newTestRouter().GetApp().Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"success":false`)
}

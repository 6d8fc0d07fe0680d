package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/infrastructure/httpclient"
)

func newTestConfig(baseURL string, enabled bool) *config.Config {
	return &config.Config{Platform: config.PlatformConfig{
		Enabled:      enabled,
		BaseURL:      baseURL,
		ClientID:     "platform-client",
		ClientSecret: "platform-secret",
		Timeout:      2,
	}}
}

func TestRecalculateSignsRequest(t *testing.T) {
	var gotAuth, gotDate, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("Date")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL, true), httpclient.NewFactory(nil, zap.NewNop()), zap.NewNop())

	require.NoError(t, client.Recalculate(context.Background()))
	assert.Equal(t, recalculateRolesPath, gotPath)
	assert.True(t, strings.HasPrefix(gotAuth, `hmac username="platform-client"`))
	assert.Contains(t, gotAuth, `headers="date request-line"`)
	assert.NotEmpty(t, gotDate)
}

func TestRecalculateReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL, true), httpclient.NewFactory(nil, zap.NewNop()), zap.NewNop())

	err := client.Recalculate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}

func TestRecalculateDisabledMakesNoCall(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL, false), httpclient.NewFactory(nil, zap.NewNop()), zap.NewNop())

	require.NoError(t, client.Recalculate(context.Background()))
	assert.Equal(t, int32(0), hits.Load())
}

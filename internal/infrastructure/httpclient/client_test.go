package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"crm-sync/internal/domain/entity"
)

type chanSaver struct {
	logs chan *entity.APILog
}

func (s *chanSaver) Save(_ context.Context, log *entity.APILog) error {
	s.logs <- log
	return nil
}

func TestFactorySavesAPILogWithRedactedSecrets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	saver := &chanSaver{logs: make(chan *entity.APILog, 1)}
	factory := NewFactory(saver, zap.NewNop())
	client := factory.New(Options{Name: "oauth", BaseURL: server.URL, Timeout: time.Second, SaveAPILogs: true})

	resp, err := client.R().
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": "r1",
			"client_secret": "top-secret",
		}).
		Post("/oauth2/access_token")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	select {
	case saved := <-saver.logs:
		assert.Equal(t, http.MethodPost, saved.Method)
		assert.Equal(t, server.URL+"/oauth2/access_token", saved.Endpoint)
		assert.Equal(t, http.StatusOK, saved.StatusCode)
		assert.Equal(t, `{"ok":true}`, saved.ResponseBody)
		assert.Contains(t, saved.RequestBody, "grant_type=refresh_token")
		assert.NotContains(t, saved.RequestBody, "top-secret")
		assert.NotContains(t, saved.RequestBody, "r1")
	case <-time.After(2 * time.Second):
		t.Fatal("api log was not saved")
	}
}

func TestFactoryRedactsTokensInResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"SECRET-ACCESS","token_type":"bearer","expires_in":3600,"refresh_token":"SECRET-REFRESH"}`))
	}))
	defer server.Close()

	core, recorded := observer.New(zapcore.DebugLevel)
	saver := &chanSaver{logs: make(chan *entity.APILog, 1)}
	client := NewFactory(saver, zap.New(core)).New(Options{Name: "oauth", BaseURL: server.URL, Timeout: time.Second, SaveAPILogs: true})

	resp, err := client.R().
		SetFormData(map[string]string{"grant_type": "authorization_code", "code": "c1"}).
		Post("/oauth2/access_token")
	require.NoError(t, err)
	assert.Contains(t, resp.String(), "SECRET-ACCESS")

	select {
	case saved := <-saver.logs:
		assert.NotContains(t, saved.ResponseBody, "SECRET-ACCESS")
		assert.NotContains(t, saved.ResponseBody, "SECRET-REFRESH")
		assert.JSONEq(t, `{"access_token":"[redacted]","token_type":"bearer","expires_in":3600,"refresh_token":"[redacted]"}`, saved.ResponseBody)
	case <-time.After(2 * time.Second):
		t.Fatal("api log was not saved")
	}

	for _, entry := range recorded.All() {
		assert.NotContains(t, entry.Message, "SECRET-ACCESS")
		assert.NotContains(t, entry.Message, "SECRET-REFRESH")
	}
}

func TestResponseBodyForLog(t *testing.T) {
	assert.Equal(t, `{"data":[]}`, string(responseBodyForLog([]byte(`{"data":[]}`))))
	assert.Equal(t, "not json", string(responseBodyForLog([]byte("not json"))))
	assert.JSONEq(t, `{"access_token":"[redacted]"}`, string(responseBodyForLog([]byte(`{"access_token":"abc"}`))))
}

func TestFactoryWithoutAPILogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	saver := &chanSaver{logs: make(chan *entity.APILog, 1)}
	client := NewFactory(saver, zap.NewNop()).New(Options{Name: "platform", BaseURL: server.URL, Timeout: time.Second})

	_, err := client.R().Post("/hook")
	require.NoError(t, err)

	select {
	case <-saver.logs:
		t.Fatal("api log must not be saved when disabled")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFactoryLogsTransportErrors(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	client := NewFactory(nil, zap.New(core)).New(Options{Name: "teamleader", Timeout: 200 * time.Millisecond})

	_, err := client.R().Post("http://127.0.0.1:1/companies.list")
	require.Error(t, err)

	entries := recorded.FilterMessage(">>> [WEBCLIENT-ERROR]").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "teamleader", entries[0].ContextMap()["client"])
}

func TestTruncateHelpers(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.True(t, strings.HasPrefix(truncateString(strings.Repeat("a", 20), 5), "aaaaa... [truncated, total 20 chars]"))

	long := `{"doc":"` + strings.Repeat("A", 150) + `"}`
	out := truncateBase64InJSON(long, 10)
	assert.Contains(t, out, "[base64 truncated, total 150 chars]")
}

func TestFormatHeadersRedactsAuthorization(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer abc")
	headers.Set("Content-Type", "application/json")

	out := formatHeadersForLog(headers)
	assert.NotContains(t, out, "Bearer abc")
	assert.Contains(t, out, "Header Authorization=[redacted]")
	assert.Contains(t, out, "Header Content-Type=application/json")
}

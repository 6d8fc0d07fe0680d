package teamleader

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crm-sync/internal/infrastructure/httpclient"
)

type staticTokens struct {
	token string
}

func (s staticTokens) AccessToken(context.Context) (string, bool) {
	return s.token, s.token != ""
}

type recordedRequest struct {
	path string
	auth string
	body map[string]any
}

func newTestClient(t *testing.T, tokens TokenProvider, handler http.HandlerFunc) (*client, *atomic.Int32, chan recordedRequest) {
	t.Helper()

	var hits atomic.Int32
	requests := make(chan recordedRequest, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		requests <- recordedRequest{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	factory := httpclient.NewFactory(nil, zap.NewNop())
	httpClient := factory.New(httpclient.Options{Name: "teamleader", BaseURL: server.URL, Timeout: 2 * time.Second})
	return newClient(httpClient, tokens, zap.NewNop()), &hits, requests
}

func TestListCompaniesSendsPageEnvelope(t *testing.T) {
	c, _, requests := newTestClient(t, staticTokens{"abc"}, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"c1"},{"id":"c2"}]}`))
	})

	resp := c.ListCompanies(context.Background(), 3, 50)
	require.False(t, resp.Failed())
	assert.Equal(t, int64(2), resp.Body.Get("data.#").Int())
	assert.Equal(t, "c2", resp.Body.Get("data.1.id").String())

	req := <-requests
	assert.Equal(t, "/companies.list", req.path)
	assert.Equal(t, "Bearer abc", req.auth)
	assert.Equal(t, map[string]any{"size": float64(50), "number": float64(3)}, req.body["page"])
}

func TestGetCompanySendsID(t *testing.T) {
	c, _, requests := newTestClient(t, staticTokens{"abc"}, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"c1","name":"Acme"}}`))
	})

	resp := c.GetCompany(context.Background(), "c1")
	require.False(t, resp.Failed())
	assert.Equal(t, "Acme", resp.Body.Get("data.name").String())

	req := <-requests
	assert.Equal(t, "/companies.info", req.path)
	assert.Equal(t, "c1", req.body["id"])
}

func TestTestConnectionProbesCurrentUser(t *testing.T) {
	c, _, requests := newTestClient(t, staticTokens{"abc"}, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"u1"}}`))
	})

	require.False(t, c.TestConnection(context.Background()).Failed())
	assert.Equal(t, "/users.me", (<-requests).path)
}

func TestMissingTokenMakesNoCall(t *testing.T) {
	c, hits, _ := newTestClient(t, staticTokens{}, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	resp := c.ListCompanies(context.Background(), 1, 50)
	require.True(t, resp.Failed())
	assert.Equal(t, CodeNotAuthorized, resp.Error.Code)
	assert.Equal(t, int32(0), hits.Load())
}

func TestRemoteErrorIsPassedThrough(t *testing.T) {
	c, hits, _ := newTestClient(t, staticTokens{"abc"}, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"code":404,"title":"Company not found","status":404}]}`))
	})

	resp := c.GetCompany(context.Background(), "missing")
	require.True(t, resp.Failed())
	assert.Equal(t, http.StatusNotFound, resp.Error.Status)
	assert.Equal(t, CodeRemote, resp.Error.Code)
	assert.Equal(t, "Company not found", resp.Error.Message)
	assert.JSONEq(t, `{"errors":[{"code":404,"title":"Company not found","status":404}]}`, string(resp.Error.Details))
	assert.Equal(t, int32(1), hits.Load())
}

func TestServerErrorWithoutBody(t *testing.T) {
	c, hits, _ := newTestClient(t, staticTokens{"abc"}, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	resp := c.ListCompanies(context.Background(), 1, 50)
	require.True(t, resp.Failed())
	assert.Equal(t, http.StatusServiceUnavailable, resp.Error.Status)
	assert.Equal(t, "Service Unavailable", resp.Error.Message)
	assert.Equal(t, int32(1), hits.Load())
}

func TestMalformedBody(t *testing.T) {
	c, _, _ := newTestClient(t, staticTokens{"abc"}, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[`))
	})

	resp := c.ListCompanies(context.Background(), 1, 50)
	require.True(t, resp.Failed())
	assert.Equal(t, CodeMalformed, resp.Error.Code)
}

func TestTransportError(t *testing.T) {
	factory := httpclient.NewFactory(nil, zap.NewNop())
	httpClient := factory.New(httpclient.Options{Name: "teamleader", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	c := newClient(httpClient, staticTokens{"abc"}, zap.NewNop())

	resp := c.GetCompany(context.Background(), "c1")
	require.True(t, resp.Failed())
	assert.Equal(t, CodeTransport, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Message)
}

func TestNilResponseCountsAsFailed(t *testing.T) {
	var resp *Response
	assert.True(t, resp.Failed())
}

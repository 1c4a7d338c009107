package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/cache"
	"github.com/gridpulse/gridpulse/internal/config"
	"github.com/gridpulse/gridpulse/internal/pipeline"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Backend = "memory"
	cfg.Newsletter.OutputDir = t.TempDir()

	manager := cache.NewManager(cache.NewMemory(), cache.WithNamespace("httpapi-test"))
	return NewServer(pipeline.New(cfg, manager), ":0")
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFlowsEndpoint(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/flows")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Count   int               `json:"count"`
		Records []json.RawMessage `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body.Count, 0)
	assert.Len(t, body.Records, body.Count)
}

func TestAlertsEndpoint(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.GreaterOrEqual(t, body.Count, 0)
}

func TestReportEndpointMarkdown(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/report?format=markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# ELECTRICITY INTERCONNECTION REPORT")
}

func TestReportEndpointJSON(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		ID       string `json:"id"`
		Sections []any  `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc.ID)
	assert.Len(t, doc.Sections, 5)
}

func TestCacheStatsAndClear(t *testing.T) {
	s := testServer(t)

	// Populate, hit, then clear.
	require.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/api/flows").Code)
	require.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/api/flows").Code)

	rec := doRequest(t, s, http.MethodGet, "/api/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Hits   uint64 `json:"hits"`
		Misses uint64 `json:"misses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)

	rec = doRequest(t, s, http.MethodPost, "/api/cache/clear")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cleared")
}

func TestCacheClearRejectsGet(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/cache/clear")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	// No EIA key is configured in tests, so the fetch fails with nothing
	// cached to fall back on.
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/demand/CA")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestUnknownRoute(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	s := testServer(t)
	require.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/api/flows").Code)

	rec := doRequest(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gridpulse_cache_lookups_total")
}

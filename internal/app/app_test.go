package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint-trends-engine/internal/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		CFPBBaseURL:        baseURL,
		CFPBTimeout:        2 * time.Second,
		CFPBLookbackMonths: 12,
		CFPBPageSize:       25,
		MockMonths:         12,
		AllowedOrigins:     []string{"*"},
		Stage:              "test",
	}
}

func newTestApp(t *testing.T, upstream http.HandlerFunc) *httptest.Server {
	t.Helper()
	t.Setenv("DATABASE_URL", "")

	api := httptest.NewServer(upstream)
	t.Cleanup(api.Close)

	a, err := New(context.Background(), testConfig(api.URL+"/search/api/v1/"))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestComplaintTrends_LiveUpstream(t *testing.T) {
	srv := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		total := 180
		if r.URL.Query().Get("search_term") != "" {
			total = 40
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":` + strconv.Itoa(total) + `,"relation":"eq"},"hits":[]},
			"aggregations":{"issue":{"issue":{"buckets":[{"key":"Fees","doc_count":20}]}},
			"date_received":{"buckets":[{"key_as_string":"2024-05-01T00:00:00.000Z","doc_count":45},{"key_as_string":"2024-06-01T00:00:00.000Z","doc_count":60}]}}}`))
	})

	resp, err := http.Get(srv.URL + "/api/complaint-trends")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["isMockData"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(220), data["totalComplaints"])
	assert.Contains(t, data["insights"], "Personal loan complaints increased by 33.3% compared to the previous month.")
}

func TestComplaintTrends_HTMLUpstreamFallsBack(t *testing.T) {
	srv := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>Service unavailable</body></html>"))
	})

	resp, err := http.Get(srv.URL + "/api/ai-analytics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["isBackupData"])
	data := body["data"].(map[string]interface{})
	assert.Greater(t, data["totalComplaints"].(float64), float64(0))
}

func TestComplaints_UpstreamFailureIs500(t *testing.T) {
	srv := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	resp, err := http.Get(srv.URL + "/api/complaints?product=Mortgage")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp)["success"])
}

func TestOptionalBackendsUnavailable(t *testing.T) {
	srv := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(srv.URL + "/api/analyses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/api/trends/digest", "application/json", strings.NewReader(`{"recipients":["a@example.com"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"total":1,"hits":[]}}`))
	})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "not configured", data["database"])

	resp, err = http.Get(srv.URL + "/api/cfpb-trends")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `complaint_upstream_requests_total{outcome="success"`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/cfpb-trends", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

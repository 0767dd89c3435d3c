package cfpb

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"complaint-trends-engine/internal/metrics"
	"complaint-trends-engine/internal/models"
)

func testQuery() models.ComplaintQuery {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	return models.ComplaintQuery{
		Product:         models.ProductPersonalLoan,
		SubProduct:      models.SubProductInstallment,
		DateReceivedMin: &since,
		DateReceivedMax: &until,
		Size:            25,
	}
}

func testMock() *MockGenerator {
	clock := func() time.Time { return time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC) }
	return NewMockGenerator(rand.New(rand.NewPCG(1, 2)), clock, 12)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *observer.ObservedLogs) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithMockGenerator(testMock())}, opts...)
	c := NewClient(ClientConfig{BaseURL: srv.URL + "/search/api/v1/", Timeout: 2 * time.Second}, srv.Client(), zap.New(core), opts...)
	return c, logs
}

func TestBuildParams_DirectFields(t *testing.T) {
	q := testQuery()
	q.State = "CA"

	params := BuildParams(q)

	assert.Equal(t, models.ProductPersonalLoan, params.Get("product"))
	assert.Equal(t, models.SubProductInstallment, params.Get("sub_product"))
	assert.Equal(t, "2024-01-01", params.Get("date_received_min"))
	assert.Equal(t, "2024-06-30", params.Get("date_received_max"))
	assert.Equal(t, "25", params.Get("size"))
	assert.Equal(t, "CA", params.Get("state"))
	assert.Equal(t, "json", params.Get("format"))
	assert.Equal(t, "false", params.Get("no_aggs"))
	assert.Contains(t, params["field[]"], "issue")
	assert.Empty(t, params.Get("search_term"))
}

func TestBuildParams_SearchTermIsFreeTextOnly(t *testing.T) {
	q := models.ComplaintQuery{Product: models.ProductPersonalLoan, SearchTerm: models.MerchantCashSearchTerm}

	params := BuildParams(q)

	assert.Equal(t, models.ProductPersonalLoan, params.Get("product"))
	assert.Equal(t, models.MerchantCashSearchTerm, params.Get("search_term"))
	assert.Empty(t, params.Get("size"))
}

func TestFetch_Success(t *testing.T) {
	var gotAccept string
	var gotQuery url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":180,"relation":"eq"},"hits":[]},"aggregations":{"issue":{"buckets":[{"key":"Fees","doc_count":45}]}}}`))
	})

	env, err := c.Fetch(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, models.ProductPersonalLoan, gotQuery.Get("product"))
	assert.Equal(t, 180, env.Hits.Total)
	assert.Equal(t, 45, env.IssueBuckets()[0].DocCount)
}

func TestFetch_HTMLIsNotParsed(t *testing.T) {
	c, logs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>" + strings.Repeat("maintenance ", 200) + "</body></html>"))
	})

	env, err := c.Fetch(context.Background(), testQuery())
	require.Error(t, err)
	assert.Nil(t, env)

	var ue *models.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, models.KindMalformed, ue.Kind)
	assert.True(t, ue.HTML)
	assert.Nil(t, ue.Err, "html must not reach the json decoder")
	assert.LessOrEqual(t, len(ue.Preview), 503)

	assert.Equal(t, 0, logs.FilterMessage("Failed to parse complaint API response").Len())
	warned := logs.FilterMessage("Complaint API returned HTML instead of JSON").All()
	require.Len(t, warned, 1)
	assert.LessOrEqual(t, len(warned[0].ContextMap()["body"].(string)), 503)
}

func TestFetch_HTMLBehindByteOrderMark(t *testing.T) {
	c, logs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\uFEFF<!DOCTYPE html><html><body>Service Unavailable</body></html>"))
	})

	_, err := c.Fetch(context.Background(), testQuery())

	var ue *models.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.True(t, ue.HTML)
	assert.Nil(t, ue.Err)
	assert.Equal(t, 0, logs.FilterMessage("Failed to parse complaint API response").Len())
}

func TestFetch_InvalidJSON(t *testing.T) {
	c, logs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits": {"total": 3,`))
	})

	_, err := c.Fetch(context.Background(), testQuery())

	var ue *models.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, models.KindMalformed, ue.Kind)
	assert.False(t, ue.HTML)
	assert.NotNil(t, ue.Err)
	assert.Equal(t, 1, logs.FilterMessage("Failed to parse complaint API response").Len())
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := c.Fetch(context.Background(), testQuery())

	var ue *models.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, models.KindStatus, ue.Kind)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Equal(t, "upstream down", ue.Preview)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client(), zap.NewNop())

	_, err := c.Fetch(context.Background(), testQuery())

	var ue *models.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, models.KindTransport, ue.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetch_InvalidQuerySkipsIO(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.Fetch(context.Background(), models.ComplaintQuery{})

	assert.ErrorIs(t, err, models.ErrEmptyProduct)
	assert.False(t, models.IsUpstreamError(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetch_RateLimitHonorsDeadline(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"hits":{"total":1,"hits":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, RateLimitRPS: 0.01}, srv.Client(), zap.NewNop())

	_, err := c.Fetch(context.Background(), testQuery())
	require.NoError(t, err)

	// the single token is spent; the next one is 100s away
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx, testQuery())

	var ue *models.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, models.KindTransport, ue.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchOrFallback_LiveAndFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewUpstreamMetrics(reg)

	live, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"total":7,"hits":[]}}`))
	}, WithMetrics(m))
	res := live.FetchOrFallback(context.Background(), testQuery())
	assert.False(t, res.IsFallback())
	assert.Equal(t, models.SourceLive, res.Source)
	assert.NoError(t, res.Reason)
	assert.Equal(t, 7, res.Envelope.Hits.Total)

	html, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>oops</body></html>"))
	}, WithMetrics(m))
	res = html.FetchOrFallback(context.Background(), testQuery())
	assert.True(t, res.IsFallback())
	assert.True(t, models.IsUpstreamError(res.Reason))
	require.NotNil(t, res.Envelope)
	assert.Greater(t, res.Envelope.Hits.Total, 0)
	assert.NotEmpty(t, res.Envelope.IssueBuckets())
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<!DOCTYPE html><html>"))
	assert.True(t, LooksLikeHTML("  \n<!doctype html>"))
	assert.True(t, LooksLikeHTML("<HTML><head>"))
	assert.True(t, LooksLikeHTML("\uFEFF<!DOCTYPE html>"))
	assert.True(t, LooksLikeHTML(" \uFEFF\n<html>"))
	assert.False(t, LooksLikeHTML("\uFEFF{\"hits\":{}}"))
	assert.False(t, LooksLikeHTML(`{"hits":{}}`))
	assert.False(t, LooksLikeHTML(""))
}

func TestRequestURL_InvalidBase(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "://bad"}, nil, zap.NewNop())
	_, err := c.RequestURL(testQuery())
	assert.Error(t, err)
}

// Package cfpb fetches consumer complaint data from the CFPB search API and
// supplies synthetic data of the same shape when the API cannot be used.
package cfpb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"complaint-trends-engine/internal/metrics"
	"complaint-trends-engine/internal/models"
	"complaint-trends-engine/internal/utils"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 10 << 20
	dateLayout     = "2006-01-02"
)

// recordFields are requested explicitly so hits carry only what the dashboard shows.
var recordFields = []string{
	"complaint_id",
	"product",
	"sub_product",
	"issue",
	"sub_issue",
	"company",
	"state",
	"date_received",
	"company_response",
	"submitted_via",
}

// HTTPDoer is the subset of *http.Client the fetcher needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the complaint fetcher.
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RateLimitRPS float64
}

// Client calls the complaint search API.
type Client struct {
	baseURL string
	timeout time.Duration
	doer    HTTPDoer
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.UpstreamMetrics
	mock    *MockGenerator
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics records upstream calls in m.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithMockGenerator sets the generator used by FetchOrFallback.
func WithMockGenerator(g *MockGenerator) Option {
	return func(c *Client) { c.mock = g }
}

// NewClient creates a fetcher. A nil doer gets a plain *http.Client and a nil
// logger falls back to the global logger.
func NewClient(cfg ClientConfig, doer HTTPDoer, logger *zap.Logger, opts ...Option) *Client {
	if doer == nil {
		doer = &http.Client{}
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		timeout: timeout,
		doer:    doer,
		logger:  logger.With(zap.String("component", "cfpb_client")),
	}
	if cfg.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mock == nil {
		c.mock = NewDefaultMockGenerator()
	}
	return c
}

// BuildParams encodes q as direct field parameters.
func BuildParams(q models.ComplaintQuery) url.Values {
	params := url.Values{}
	params.Set("product", q.Product)
	if q.SubProduct != "" {
		params.Set("sub_product", q.SubProduct)
	}
	if q.DateReceivedMin != nil {
		params.Set("date_received_min", q.DateReceivedMin.UTC().Format(dateLayout))
	}
	if q.DateReceivedMax != nil {
		params.Set("date_received_max", q.DateReceivedMax.UTC().Format(dateLayout))
	}
	if q.Size > 0 {
		params.Set("size", strconv.Itoa(q.Size))
	}
	if q.State != "" {
		params.Set("state", q.State)
	}
	if q.Issue != "" {
		params.Set("issue", q.Issue)
	}
	// Free-text search only; products always travel as their own parameters.
	if q.SearchTerm != "" {
		params.Set("search_term", q.SearchTerm)
	}
	for _, f := range recordFields {
		params.Add("field[]", f)
	}
	params.Set("format", "json")
	params.Set("no_aggs", "false")
	return params
}

// RequestURL returns the full GET URL for q.
func (c *Client) RequestURL(q models.ComplaintQuery) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid complaint api base url: %w", err)
	}
	base.RawQuery = BuildParams(q).Encode()
	return base.String(), nil
}

// Fetch performs one live request. Every failure is an *models.UpstreamError
// except an invalid query, which is rejected before any I/O.
func (c *Client) Fetch(ctx context.Context, q models.ComplaintQuery) (*models.ComplaintEnvelope, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid complaint query: %w", err)
	}

	reqURL, err := c.RequestURL(q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &models.UpstreamError{Kind: models.KindTransport, URL: reqURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Info("Requesting complaint data", zap.String("url", reqURL))

	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(q.Product, metrics.OutcomeTransport, time.Since(start))
		c.logger.Error("Complaint API request failed",
			zap.String("url", reqURL),
			zap.Error(err),
		)
		return nil, &models.UpstreamError{Kind: models.KindTransport, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	// Read as text first: the API sometimes answers 200 with an HTML error page.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveRequest(q.Product, metrics.OutcomeTransport, time.Since(start))
		return nil, &models.UpstreamError{Kind: models.KindTransport, URL: reqURL, StatusCode: resp.StatusCode, Err: err}
	}
	body := string(raw)

	c.logger.Info("Complaint API responded",
		zap.String("url", reqURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveRequest(q.Product, metrics.OutcomeStatus, time.Since(start))
		c.logger.Error("Complaint API returned error status",
			zap.String("url", reqURL),
			zap.Int("status", resp.StatusCode),
			utils.Body("body", body),
		)
		return nil, &models.UpstreamError{
			Kind:       models.KindStatus,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Preview:    utils.Truncate(body, utils.MaxLoggedBodyChars),
		}
	}

	if LooksLikeHTML(body) {
		c.metrics.ObserveRequest(q.Product, metrics.OutcomeMalformed, time.Since(start))
		c.logger.Warn("Complaint API returned HTML instead of JSON",
			zap.String("url", reqURL),
			zap.Int("status", resp.StatusCode),
			utils.Body("body", body),
		)
		return nil, &models.UpstreamError{
			Kind:       models.KindMalformed,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			HTML:       true,
			Preview:    utils.Truncate(body, utils.MaxLoggedBodyChars),
		}
	}

	env, err := models.DecodeEnvelope(raw)
	if err != nil {
		c.metrics.ObserveRequest(q.Product, metrics.OutcomeMalformed, time.Since(start))
		c.logger.Error("Failed to parse complaint API response",
			zap.String("url", reqURL),
			utils.Body("body", body),
			zap.Error(err),
		)
		return nil, &models.UpstreamError{
			Kind:       models.KindMalformed,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Preview:    utils.Truncate(body, utils.MaxLoggedBodyChars),
			Err:        err,
		}
	}

	c.metrics.ObserveRequest(q.Product, metrics.OutcomeSuccess, time.Since(start))
	c.logger.Debug("Parsed complaint envelope",
		zap.Int("total", env.Hits.Total),
		zap.Int("hits", len(env.Hits.Hits)),
	)
	return env, nil
}

// FetchOrFallback fetches live data and substitutes mock data on any failure.
// There is no retry.
func (c *Client) FetchOrFallback(ctx context.Context, q models.ComplaintQuery) FetchResult {
	env, err := c.Fetch(ctx, q)
	if err == nil {
		return Live(env)
	}

	c.metrics.ObserveFallback(q.Product)
	c.logger.Warn("Using fallback complaint data",
		zap.String("product", q.Product),
		zap.String("subProduct", q.SubProduct),
		zap.Error(err),
	)
	return Fallback(c.mock.MockFor(q), err)
}

// LooksLikeHTML reports whether body is an HTML document rather than JSON.
// Leading whitespace and byte order marks are ignored.
func LooksLikeHTML(body string) bool {
	trimmed := strings.TrimLeftFunc(body, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
	if len(trimmed) > 16 {
		trimmed = trimmed[:16]
	}
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

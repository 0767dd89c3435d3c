// Package handlers exposes the complaint trends API over net/http and API Gateway.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"complaint-trends-engine/internal/models"
	"complaint-trends-engine/internal/services/analytics"
	"complaint-trends-engine/internal/services/cfpb"
	"complaint-trends-engine/internal/utils"
)

const dateParamLayout = "2006-01-02"

// TrendsService is the part of analytics.Service the API depends on.
type TrendsService interface {
	Query(category models.Category) models.ComplaintQuery
	ComplaintTrends(ctx context.Context) analytics.TrendsReport
	AIAnalytics(ctx context.Context) analytics.TrendsReport
	ProductTrends(ctx context.Context, q models.ComplaintQuery) cfpb.FetchResult
	ProductComplaints(ctx context.Context, q models.ComplaintQuery) (*models.ComplaintEnvelope, error)
	RecentSnapshots(ctx context.Context, limit int) ([]models.AnalysisSnapshot, error)
	ReportURL(ctx context.Context, id string) (*analytics.ReportLink, error)
	Report(ctx context.Context, id string) (*models.AnalysisResult, error)
	SendDigest(ctx context.Context, recipients []string) (string, analytics.TrendsReport, error)
}

// Response represents a standard API response
type Response struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	Error        string      `json:"error,omitempty"`
	IsMockData   *bool       `json:"isMockData,omitempty"`
	IsBackupData *bool       `json:"isBackupData,omitempty"`
}

// DigestRequest is the body of a digest request.
type DigestRequest struct {
	Recipients []string `json:"recipients"`
}

// DigestResponse reports a sent digest.
type DigestResponse struct {
	MessageID       string `json:"messageId"`
	Recipients      int    `json:"recipients"`
	TotalComplaints int    `json:"totalComplaints"`
	IsMockData      bool   `json:"isMockData"`
}

// API implements the routes independent of the transport.
type API struct {
	svc               TrendsService
	defaultRecipients []string
	logger            *zap.Logger
	clock             func() time.Time
}

// NewAPI creates the API. defaultRecipients receive digests requested without an explicit list.
func NewAPI(svc TrendsService, defaultRecipients []string, logger *zap.Logger) *API {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &API{
		svc:               svc,
		defaultRecipients: defaultRecipients,
		logger:            logger,
		clock:             time.Now,
	}
}

// ComplaintTrends serves the dashboard analysis, or a single product's envelope when
// the product parameter is present. It always succeeds.
func (a *API) ComplaintTrends(ctx context.Context, params url.Values) (int, Response) {
	if product := strings.TrimSpace(params.Get("product")); product != "" {
		q, err := a.productQuery(product, params)
		if err != nil {
			a.logger.Warn("Ignoring invalid query parameters", zap.String("product", product), zap.Error(err))
		}
		res := a.svc.ProductTrends(ctx, q)
		return http.StatusOK, Response{
			Success:    true,
			Data:       res.Envelope,
			IsMockData: boolPtr(res.IsFallback()),
		}
	}

	report := a.svc.ComplaintTrends(ctx)
	return http.StatusOK, Response{
		Success:    true,
		Data:       report.Result,
		IsMockData: boolPtr(report.IsMockData),
	}
}

// CFPBTrends serves the dashboard analysis without a data-source flag.
func (a *API) CFPBTrends(ctx context.Context, _ url.Values) (int, Response) {
	report := a.svc.ComplaintTrends(ctx)
	return http.StatusOK, Response{Success: true, Data: report.Result}
}

// AIAnalytics serves the analytics panel, flagging fully synthetic output.
func (a *API) AIAnalytics(ctx context.Context, _ url.Values) (int, Response) {
	report := a.svc.AIAnalytics(ctx)
	return http.StatusOK, Response{
		Success:      true,
		Data:         report.Result,
		IsBackupData: boolPtr(report.IsBackupData),
	}
}

// PortfolioHealth serves the static portfolio overview.
func (a *API) PortfolioHealth(_ context.Context, _ url.Values) (int, Response) {
	return http.StatusOK, Response{Success: true, Data: models.DefaultPortfolioHealth(a.clock())}
}

// Complaints serves a raw upstream lookup. Unlike the trend routes it reports failures.
func (a *API) Complaints(ctx context.Context, params url.Values) (int, Response) {
	product := strings.TrimSpace(params.Get("product"))
	if product == "" {
		return errorResult(http.StatusBadRequest, "Missing required parameter: product")
	}

	q, err := a.productQuery(product, params)
	if err != nil {
		return errorResult(http.StatusBadRequest, err.Error())
	}

	env, err := a.svc.ProductComplaints(ctx, q)
	if err != nil {
		a.logger.Error("Complaint lookup failed", zap.String("product", product), zap.Error(err))
		if errors.Is(err, models.ErrInvalidSize) || errors.Is(err, models.ErrInvalidDateRange) {
			return errorResult(http.StatusBadRequest, err.Error())
		}
		return errorResult(http.StatusInternalServerError, "Failed to fetch complaint data")
	}
	return http.StatusOK, Response{Success: true, Data: env}
}

// Analyses lists persisted analysis snapshots.
func (a *API) Analyses(ctx context.Context, params url.Values) (int, Response) {
	limit := 0
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return errorResult(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	snapshots, err := a.svc.RecentSnapshots(ctx, limit)
	if err != nil {
		return a.serviceError("Failed to list analyses", err)
	}
	return http.StatusOK, Response{Success: true, Data: snapshots}
}

// ReportURL returns a presigned link to the archived report of snapshot id.
func (a *API) ReportURL(ctx context.Context, id string) (int, Response) {
	if strings.TrimSpace(id) == "" {
		return errorResult(http.StatusBadRequest, "Missing analysis id")
	}

	link, err := a.svc.ReportURL(ctx, id)
	if err != nil {
		return a.serviceError("Failed to create report URL", err)
	}
	return http.StatusOK, Response{Success: true, Data: link}
}

// Report returns the archived analysis of snapshot id.
func (a *API) Report(ctx context.Context, id string) (int, Response) {
	if strings.TrimSpace(id) == "" {
		return errorResult(http.StatusBadRequest, "Missing analysis id")
	}

	result, err := a.svc.Report(ctx, id)
	if err != nil {
		return a.serviceError("Failed to load report", err)
	}
	return http.StatusOK, Response{Success: true, Data: result}
}

// Digest emails the current analysis.
func (a *API) Digest(ctx context.Context, body []byte) (int, Response) {
	var req DigestRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return errorResult(http.StatusBadRequest, "Invalid JSON in request body")
		}
	}
	if len(req.Recipients) == 0 {
		req.Recipients = a.defaultRecipients
	}

	messageID, report, err := a.svc.SendDigest(ctx, req.Recipients)
	if err != nil {
		return a.serviceError("Failed to send digest", err)
	}
	return http.StatusOK, Response{
		Success: true,
		Message: "Digest sent",
		Data: DigestResponse{
			MessageID:       messageID,
			Recipients:      len(req.Recipients),
			TotalComplaints: report.Result.TotalComplaints,
			IsMockData:      report.IsMockData,
		},
	}
}

// productQuery builds a lookup from request parameters over the configured window.
// Malformed parameters are left at their defaults and reported in err.
func (a *API) productQuery(product string, params url.Values) (models.ComplaintQuery, error) {
	q := a.svc.Query(models.CategoryPersonalLoans)
	q.Product = product
	q.SubProduct = strings.TrimSpace(params.Get("sub_product"))
	q.SearchTerm = strings.TrimSpace(params.Get("search_term"))
	q.State = strings.TrimSpace(params.Get("state"))
	q.Issue = strings.TrimSpace(params.Get("issue"))

	var errs []error
	if raw := strings.TrimSpace(params.Get("size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("size must be an integer, got %q", raw))
		} else {
			q.Size = n
		}
	}
	for _, p := range []struct {
		name   string
		target **time.Time
	}{
		{"date_received_min", &q.DateReceivedMin},
		{"date_received_max", &q.DateReceivedMax},
	} {
		raw := strings.TrimSpace(params.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateParamLayout, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a YYYY-MM-DD date, got %q", p.name, raw))
			continue
		}
		*p.target = &t
	}
	return q, errors.Join(errs...)
}

func (a *API) serviceError(msg string, err error) (int, Response) {
	switch {
	case analytics.IsUnavailable(err):
		return errorResult(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrSnapshotNotFound), errors.Is(err, models.ErrNoReport):
		return errorResult(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrNoRecipients):
		return errorResult(http.StatusBadRequest, err.Error())
	}
	a.logger.Error(msg, zap.Error(err))
	return errorResult(http.StatusInternalServerError, msg)
}

func errorResult(status int, msg string) (int, Response) {
	return status, Response{Success: false, Error: msg}
}

func boolPtr(b bool) *bool {
	return &b
}

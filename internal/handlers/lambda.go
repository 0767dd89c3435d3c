package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// TrendsHandler serves the API through API Gateway proxy events.
type TrendsHandler struct {
	api *API
}

// NewTrendsHandler wraps api for Lambda.
func NewTrendsHandler(api *API) *TrendsHandler {
	return &TrendsHandler{api: api}
}

// Handle routes an API Gateway request by method and path suffix.
func (h *TrendsHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
		"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
		"Content-Type":                 "application/json",
	}

	// Handle CORS preflight
	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    headers,
		}, nil
	}

	params := url.Values{}
	for k, v := range request.QueryStringParameters {
		params.Set(k, v)
	}
	for k, vs := range request.MultiValueQueryStringParameters {
		params[k] = vs
	}

	path := strings.TrimSuffix(request.Path, "/")
	h.api.logger.Debug("Lambda request",
		zap.String("method", request.HTTPMethod),
		zap.String("path", path),
	)

	var (
		status int
		resp   Response
	)
	switch {
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/complaint-trends"):
		status, resp = h.api.ComplaintTrends(ctx, params)
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/cfpb-trends"):
		status, resp = h.api.CFPBTrends(ctx, params)
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/ai-analytics"):
		status, resp = h.api.AIAnalytics(ctx, params)
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/portfolio-health"):
		status, resp = h.api.PortfolioHealth(ctx, params)
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/complaints"):
		status, resp = h.api.Complaints(ctx, params)
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/report-url"):
		status, resp = h.api.ReportURL(ctx, reportID(request, path))
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/report"):
		status, resp = h.api.Report(ctx, reportID(request, path))
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/analyses"):
		status, resp = h.api.Analyses(ctx, params)
	case request.HTTPMethod == http.MethodPost && strings.HasSuffix(path, "/trends/digest"):
		status, resp = h.api.Digest(ctx, []byte(request.Body))
	default:
		status, resp = errorResult(http.StatusNotFound, "Route not found")
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return errorResponse(headers, http.StatusInternalServerError, "Failed to encode response")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// reportID prefers the {id} path parameter and falls back to the segment before the last one.
func reportID(request events.APIGatewayProxyRequest, path string) string {
	if id := request.PathParameters["id"]; id != "" {
		return id
	}
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-2]
}

func errorResponse(headers map[string]string, statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(Response{Success: false, Error: message})
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

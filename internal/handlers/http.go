package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

const maxRequestBody = 1 << 20

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/complaint-trends", a.serve(a.ComplaintTrends))
	mux.HandleFunc("GET /api/cfpb-trends", a.serve(a.CFPBTrends))
	mux.HandleFunc("GET /api/ai-analytics", a.serve(a.AIAnalytics))
	mux.HandleFunc("GET /api/portfolio-health", a.serve(a.PortfolioHealth))
	mux.HandleFunc("GET /api/complaints", a.serve(a.Complaints))
	mux.HandleFunc("GET /api/analyses", a.serve(a.Analyses))
	mux.HandleFunc("GET /api/analyses/{id}/report-url", func(w http.ResponseWriter, r *http.Request) {
		status, resp := a.ReportURL(r.Context(), r.PathValue("id"))
		writeJSON(w, status, resp)
	})
	mux.HandleFunc("GET /api/analyses/{id}/report", func(w http.ResponseWriter, r *http.Request) {
		status, resp := a.Report(r.Context(), r.PathValue("id"))
		writeJSON(w, status, resp)
	})
	mux.HandleFunc("POST /api/trends/digest", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Failed to read body"})
			return
		}
		status, resp := a.Digest(r.Context(), body)
		writeJSON(w, status, resp)
	})
}

func (a *API) serve(route func(context.Context, url.Values) (int, Response)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, resp := route(r.Context(), r.URL.Query())
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

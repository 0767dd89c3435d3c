package cfpb

import "complaint-trends-engine/internal/models"

// FetchResult is either live data or fallback data together with the failure that caused it.
type FetchResult struct {
	Source   models.DataSource
	Envelope *models.ComplaintEnvelope
	Reason   error
}

// Live wraps an envelope fetched from the API.
func Live(env *models.ComplaintEnvelope) FetchResult {
	return FetchResult{Source: models.SourceLive, Envelope: env}
}

// Fallback wraps a synthetic envelope and the error that made it necessary.
func Fallback(env *models.ComplaintEnvelope, reason error) FetchResult {
	return FetchResult{Source: models.SourceFallback, Envelope: env, Reason: reason}
}

// IsFallback reports whether the envelope is synthetic.
func (r FetchResult) IsFallback() bool {
	return r.Source == models.SourceFallback
}

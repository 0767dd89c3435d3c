package models

import (
	"time"
)

// Placeholder texts used when a result would otherwise carry an empty list.
const (
	NoInsightsPlaceholder        = "Not enough data to generate insights."
	NoRecommendationsPlaceholder = "Not enough data to generate recommendations."
)

// DataSource tells whether a category's numbers came from the live API or the fallback generator.
type DataSource string

const (
	SourceLive     DataSource = "live"
	SourceFallback DataSource = "fallback"
)

// IssueCount is one entry of a category's top issues.
type IssueCount struct {
	Issue      string  `json:"issue"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CompanyCount is one entry of a category's most complained-about companies.
type CompanyCount struct {
	Company    string  `json:"company"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthlyTrendPoint is the complaint volume of one calendar month.
type MonthlyTrendPoint struct {
	Month      string `json:"month"`
	Year       int    `json:"year"`
	Complaints int    `json:"complaints"`
}

// CategorySummary aggregates one product category.
type CategorySummary struct {
	TotalComplaints int                 `json:"totalComplaints"`
	TopIssues       []IssueCount        `json:"topIssues"`
	TopCompanies    []CompanyCount      `json:"topCompanies"`
	MonthlyTrend    []MonthlyTrendPoint `json:"monthlyTrend"`
}

// EmptyCategorySummary returns a summary with non-nil, empty lists.
func EmptyCategorySummary() CategorySummary {
	return CategorySummary{
		TopIssues:    []IssueCount{},
		TopCompanies: []CompanyCount{},
		MonthlyTrend: []MonthlyTrendPoint{},
	}
}

// Recommendation is one advisory underwriting adjustment.
type Recommendation struct {
	Category   string `json:"category" yaml:"category"`
	Adjustment string `json:"adjustment" yaml:"adjustment"`
	Rationale  string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// AnalysisResult is the dashboard payload built fresh on every request.
type AnalysisResult struct {
	LastUpdated                        time.Time               `json:"lastUpdated"`
	TotalComplaints                    int                     `json:"totalComplaints"`
	PersonalLoans                      CategorySummary         `json:"personalLoans"`
	MerchantCashAdvances               CategorySummary         `json:"merchantCashAdvances"`
	Insights                           []string                `json:"insights"`
	RecommendedUnderwritingAdjustments []Recommendation        `json:"recommendedUnderwritingAdjustments"`
	DataSources                        map[Category]DataSource `json:"dataSources,omitempty"`
}

// Summary returns the category summary for c.
func (r *AnalysisResult) Summary(c Category) CategorySummary {
	if c == CategoryMerchantCashAdvances {
		return r.MerchantCashAdvances
	}
	return r.PersonalLoans
}

// FullySynthetic reports whether every category in the result came from the fallback generator.
func (r *AnalysisResult) FullySynthetic() bool {
	if len(r.DataSources) == 0 {
		return false
	}
	for _, src := range r.DataSources {
		if src != SourceFallback {
			return false
		}
	}
	return true
}

// AnySynthetic reports whether at least one category came from the fallback generator.
func (r *AnalysisResult) AnySynthetic() bool {
	for _, src := range r.DataSources {
		if src == SourceFallback {
			return true
		}
	}
	return false
}

// AnalysisSnapshot is a persisted copy of an analysis result.
type AnalysisSnapshot struct {
	ID              string         `json:"id" db:"id"`
	TotalComplaints int            `json:"totalComplaints" db:"total_complaints"`
	IsMockData      bool           `json:"isMockData" db:"is_mock_data"`
	ReportKey       string         `json:"reportKey,omitempty" db:"report_key"`
	Result          AnalysisResult `json:"result" db:"result"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
}

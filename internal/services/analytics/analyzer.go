// Package analytics turns complaint envelopes into the dashboard's trend analysis.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"complaint-trends-engine/internal/models"
	"complaint-trends-engine/internal/utils"
)

const (
	topBucketLimit  = 5
	trendPointLimit = 6
)

// Analyzer computes AnalysisResults. It never fails: a failing step leaves
// its field empty and is logged.
type Analyzer struct {
	table  RecommendationTable
	logger *zap.Logger
	clock  func() time.Time
}

// NewAnalyzer creates an analyzer. Nil logger and clock use the global logger and time.Now.
func NewAnalyzer(table RecommendationTable, logger *zap.Logger, clock func() time.Time) *Analyzer {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Analyzer{
		table:  table,
		logger: logger.With(zap.String("component", "analyzer")),
		clock:  clock,
	}
}

// Analyze builds the result for the two categories. Either envelope may be nil.
func (a *Analyzer) Analyze(personalLoans, merchantCash *models.ComplaintEnvelope) models.AnalysisResult {
	pl := a.summarize(models.CategoryPersonalLoans, personalLoans)
	mca := a.summarize(models.CategoryMerchantCashAdvances, merchantCash)

	result := models.AnalysisResult{
		LastUpdated:          a.clock().UTC(),
		TotalComplaints:      pl.TotalComplaints + mca.TotalComplaints,
		PersonalLoans:        pl,
		MerchantCashAdvances: mca,
	}

	a.runStep("all", "insights", func() error {
		result.Insights = BuildInsights(pl, mca)
		return nil
	})
	if len(result.Insights) == 0 {
		result.Insights = []string{models.NoInsightsPlaceholder}
	}

	a.runStep("all", "recommendations", func() error {
		result.RecommendedUnderwritingAdjustments = a.table.Lookup(pl.TotalComplaints > 0, mca.TotalComplaints > 0)
		return nil
	})
	if len(result.RecommendedUnderwritingAdjustments) == 0 {
		result.RecommendedUnderwritingAdjustments = []models.Recommendation{{
			Category:   "general",
			Adjustment: models.NoRecommendationsPlaceholder,
		}}
	}

	return result
}

func (a *Analyzer) summarize(category models.Category, env *models.ComplaintEnvelope) models.CategorySummary {
	summary := models.EmptyCategorySummary()
	if env == nil {
		return summary
	}
	summary.TotalComplaints = env.TotalComplaints()

	a.runStep(category, "top_issues", func() error {
		summary.TopIssues = ExtractTopIssues(env.IssueBuckets(), summary.TotalComplaints)
		return nil
	})
	a.runStep(category, "top_companies", func() error {
		summary.TopCompanies = ExtractTopCompanies(env.CompanyBuckets(), summary.TotalComplaints)
		return nil
	})
	a.runStep(category, "monthly_trend", func() error {
		trend, err := ExtractMonthlyTrend(env.DateBuckets())
		summary.MonthlyTrend = trend
		return err
	})

	// a failed step may have left a nil slice behind
	if summary.TopIssues == nil {
		summary.TopIssues = []models.IssueCount{}
	}
	if summary.TopCompanies == nil {
		summary.TopCompanies = []models.CompanyCount{}
	}
	if summary.MonthlyTrend == nil {
		summary.MonthlyTrend = []models.MonthlyTrendPoint{}
	}
	return summary
}

// runStep executes fn, turning an error or panic into a logged AnalysisError.
func (a *Analyzer) runStep(category models.Category, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			a.logStepFailure(category, &models.AnalysisError{Step: step, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := fn(); err != nil {
		a.logStepFailure(category, &models.AnalysisError{Step: step, Err: err})
	}
}

func (a *Analyzer) logStepFailure(category models.Category, err *models.AnalysisError) {
	a.logger.Warn("Analysis step failed",
		zap.String("category", string(category)),
		zap.String("step", err.Step),
		zap.Error(err),
	)
}

// ExtractTopIssues returns up to the first five buckets with their share of total.
func ExtractTopIssues(buckets models.BucketSet, total int) []models.IssueCount {
	out := make([]models.IssueCount, 0, topBucketLimit)
	for _, b := range firstBuckets(buckets) {
		out = append(out, models.IssueCount{
			Issue:      b.Key,
			Count:      b.DocCount,
			Percentage: Percentage(b.DocCount, total),
		})
	}
	return out
}

// ExtractTopCompanies returns up to the first five buckets with their share of total.
func ExtractTopCompanies(buckets models.BucketSet, total int) []models.CompanyCount {
	out := make([]models.CompanyCount, 0, topBucketLimit)
	for _, b := range firstBuckets(buckets) {
		out = append(out, models.CompanyCount{
			Company:    b.Key,
			Count:      b.DocCount,
			Percentage: Percentage(b.DocCount, total),
		})
	}
	return out
}

func firstBuckets(buckets models.BucketSet) models.BucketSet {
	if len(buckets) > topBucketLimit {
		return buckets[:topBucketLimit]
	}
	return buckets
}

// Percentage returns count/total*100 rounded to one decimal. total is clamped to at least 1.
func Percentage(count, total int) float64 {
	return round1(float64(count) / float64(max(1, total)) * 100)
}

// ExtractMonthlyTrend converts date_received buckets into at most six points,
// newest first. Buckets whose key is not a date are skipped and reported in err.
func ExtractMonthlyTrend(buckets models.BucketSet) ([]models.MonthlyTrendPoint, error) {
	type month struct {
		sortKey    string
		date       time.Time
		complaints int
	}

	var skipped []error
	byKey := make(map[string]*month)
	for _, b := range buckets {
		t, err := parseBucketDate(b.Key)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		key := t.Format("2006-01")
		if m, ok := byKey[key]; ok {
			m.complaints += b.DocCount
			continue
		}
		byKey[key] = &month{sortKey: key, date: t, complaints: b.DocCount}
	}

	months := make([]*month, 0, len(byKey))
	for _, m := range byKey {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].sortKey > months[j].sortKey })
	if len(months) > trendPointLimit {
		months = months[:trendPointLimit]
	}

	years := make(map[int]struct{})
	for _, m := range months {
		years[m.date.Year()] = struct{}{}
	}
	withYear := len(years) > 1

	points := make([]models.MonthlyTrendPoint, 0, len(months))
	for _, m := range months {
		label := m.date.Month().String()[:3]
		if withYear {
			label += " " + strconv.Itoa(m.date.Year())
		}
		points = append(points, models.MonthlyTrendPoint{
			Month:      label,
			Year:       m.date.Year(),
			Complaints: m.complaints,
		})
	}

	if len(skipped) > 0 {
		return points, fmt.Errorf("skipped %d date buckets: %w", len(skipped), errors.Join(skipped...))
	}
	return points, nil
}

var bucketDateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01"}

func parseBucketDate(key string) (time.Time, error) {
	for _, layout := range bucketDateLayouts {
		if t, err := time.Parse(layout, key); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(key, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized bucket date %q", key)
}

// BuildInsights produces the insight sentences for two category summaries.
// The result is empty when there is nothing to say.
func BuildInsights(pl, mca models.CategorySummary) []string {
	var insights []string

	for _, c := range []struct {
		category models.Category
		summary  models.CategorySummary
	}{
		{models.CategoryPersonalLoans, pl},
		{models.CategoryMerchantCashAdvances, mca},
	} {
		if c.summary.TotalComplaints <= 0 {
			continue
		}
		if s, ok := trendInsight(c.category, c.summary.MonthlyTrend); ok {
			insights = append(insights, s)
		}
		if len(c.summary.TopIssues) > 0 {
			top := c.summary.TopIssues[0]
			insights = append(insights, fmt.Sprintf("The most common %s complaint issue is %q (%.1f%% of complaints).",
				lowerFirst(c.category.Label()), top.Issue, top.Percentage))
		}
	}

	if s, ok := comparisonInsight(pl.TotalComplaints, mca.TotalComplaints); ok {
		insights = append(insights, s)
	}
	return insights
}

// trendInsight compares the two most recent months. It is skipped when the
// change cannot be expressed as a finite percentage.
func trendInsight(category models.Category, trend []models.MonthlyTrendPoint) (string, bool) {
	if len(trend) < 2 {
		return "", false
	}
	current := float64(trend[0].Complaints)
	previous := float64(trend[1].Complaints)
	if previous == 0 {
		return "", false
	}
	change := (current - previous) / previous * 100
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return "", false
	}

	change = round1(change)
	switch {
	case change > 0:
		return fmt.Sprintf("%s complaints increased by %.1f%% compared to the previous month.", category.Label(), change), true
	case change < 0:
		return fmt.Sprintf("%s complaints decreased by %.1f%% compared to the previous month.", category.Label(), -change), true
	default:
		return fmt.Sprintf("%s complaints were unchanged compared to the previous month.", category.Label()), true
	}
}

func comparisonInsight(plTotal, mcaTotal int) (string, bool) {
	if plTotal <= 0 || mcaTotal <= 0 {
		return "", false
	}
	if plTotal == mcaTotal {
		return "Personal loans and merchant cash advances received the same number of complaints.", true
	}

	more, fewer := models.CategoryPersonalLoans, models.CategoryMerchantCashAdvances
	hi, lo := plTotal, mcaTotal
	if mcaTotal > plTotal {
		more, fewer = fewer, more
		hi, lo = lo, hi
	}
	relative := round1(float64(hi-lo) / float64(lo) * 100)
	return fmt.Sprintf("%s received %.1f%% more complaints than %s.",
		upperFirst(more.PluralLabel()), relative, fewer.PluralLabel()), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}

package analytics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"complaint-trends-engine/internal/models"
)

// RecommendationTable holds the advisory underwriting texts. Entries are
// selected by which categories have complaint volume; they are presentation
// content and are not derived from the numbers.
type RecommendationTable struct {
	PersonalLoans        []models.Recommendation `yaml:"personal_loans"`
	MerchantCashAdvances []models.Recommendation `yaml:"merchant_cash_advances"`
	Both                 []models.Recommendation `yaml:"both"`
}

// DefaultRecommendationTable returns the built-in advisory table.
func DefaultRecommendationTable() RecommendationTable {
	return RecommendationTable{
		PersonalLoans: []models.Recommendation{
			{
				Category:   string(models.CategoryPersonalLoans),
				Adjustment: "Disclose all origination fees and the total cost of credit before the applicant signs.",
				Rationale:  "Unexpected fees and interest are a recurring personal loan complaint theme.",
			},
			{
				Category:   string(models.CategoryPersonalLoans),
				Adjustment: "Verify income against bank data and cap payment-to-income at 35% for new borrowers.",
				Rationale:  "Borrowers struggling to repay drive a large share of complaints.",
			},
			{
				Category:   string(models.CategoryPersonalLoans),
				Adjustment: "Publish a written payoff procedure and confirm payoff amounts within two business days.",
			},
		},
		MerchantCashAdvances: []models.Recommendation{
			{
				Category:   string(models.CategoryMerchantCashAdvances),
				Adjustment: "State the factor rate, holdback percentage and estimated APR on every offer.",
				Rationale:  "Misrepresented terms are a common merchant cash advance grievance.",
			},
			{
				Category:   string(models.CategoryMerchantCashAdvances),
				Adjustment: "Check for existing advances and decline stacking above two concurrent positions.",
				Rationale:  "Stacked daily remittances lead to withdrawal disputes and defaults.",
			},
			{
				Category:   string(models.CategoryMerchantCashAdvances),
				Adjustment: "Offer reconciliation of daily remittances when merchant revenue drops.",
			},
		},
		Both: []models.Recommendation{
			{
				Category:   "portfolio",
				Adjustment: "Review complaint trends monthly alongside delinquency data before changing credit boxes.",
			},
		},
	}
}

// LoadRecommendationTable reads a YAML table from path, or returns the default table when path is empty.
func LoadRecommendationTable(path string) (RecommendationTable, error) {
	if path == "" {
		return DefaultRecommendationTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RecommendationTable{}, fmt.Errorf("failed to read recommendations file: %w", err)
	}

	var table RecommendationTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return RecommendationTable{}, fmt.Errorf("failed to parse recommendations file: %w", err)
	}
	if len(table.PersonalLoans) == 0 && len(table.MerchantCashAdvances) == 0 && len(table.Both) == 0 {
		return RecommendationTable{}, fmt.Errorf("recommendations file %s defines no entries", path)
	}
	return table, nil
}

// Lookup returns the entries for the categories that have complaint volume,
// or a single placeholder entry when neither does.
func (t RecommendationTable) Lookup(personalLoansActive, merchantCashActive bool) []models.Recommendation {
	var out []models.Recommendation
	if personalLoansActive {
		out = append(out, t.PersonalLoans...)
	}
	if merchantCashActive {
		out = append(out, t.MerchantCashAdvances...)
	}
	if personalLoansActive && merchantCashActive {
		out = append(out, t.Both...)
	}

	if len(out) == 0 {
		return []models.Recommendation{{
			Category:   "general",
			Adjustment: models.NoRecommendationsPlaceholder,
		}}
	}
	return out
}

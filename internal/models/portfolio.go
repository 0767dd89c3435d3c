package models

import "time"

// PortfolioHealth is the static portfolio overview shown beside the complaint panels.
type PortfolioHealth struct {
	AsOf               time.Time          `json:"asOf"`
	TotalFunded        float64            `json:"totalFunded"`
	ActiveContracts    int                `json:"activeContracts"`
	AverageFactorRate  float64            `json:"averageFactorRate"`
	DefaultRate        float64            `json:"defaultRate"`
	DelinquencyRate    float64            `json:"delinquencyRate"`
	CollectionRate     float64            `json:"collectionRate"`
	AllocationByType   map[string]float64 `json:"allocationByType"`
	RiskDistribution   map[string]int     `json:"riskDistribution"`
	HealthScore        int                `json:"healthScore"`
	HealthScoreOutlook string             `json:"healthScoreOutlook"`
}

// DefaultPortfolioHealth returns the static portfolio metrics.
func DefaultPortfolioHealth(now time.Time) PortfolioHealth {
	return PortfolioHealth{
		AsOf:              now.UTC(),
		TotalFunded:       12_450_000,
		ActiveContracts:   214,
		AverageFactorRate: 1.32,
		DefaultRate:       3.8,
		DelinquencyRate:   6.1,
		CollectionRate:    94.2,
		AllocationByType: map[string]float64{
			string(CategoryPersonalLoans):        45,
			string(CategoryMerchantCashAdvances): 55,
		},
		RiskDistribution: map[string]int{
			"low":    121,
			"medium": 71,
			"high":   22,
		},
		HealthScore:        82,
		HealthScoreOutlook: "stable",
	}
}

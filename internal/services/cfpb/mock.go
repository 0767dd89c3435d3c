package cfpb

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"complaint-trends-engine/internal/models"
)

const (
	minMockMonths     = 3
	maxMockMonths     = 24
	defaultMockMonths = 12
	mockRecordCount   = 10
	bucketDateLayout  = "2006-01-02T15:04:05.000Z"
)

var personalLoanIssues = []string{
	"Getting a loan",
	"Struggling to pay your loan",
	"Charged fees or interest you didn't expect",
	"Problem with the payoff process at the end of the loan",
	"Incorrect information on your report",
	"Managing the loan or lease",
	"Problem when making payments",
}

var merchantCashIssues = []string{
	"Unexpected fees",
	"Daily withdrawal problems",
	"Misrepresented terms",
	"Aggressive collection practices",
	"Confession of judgment",
	"Difficulty paying off early",
	"Stacking by multiple funders",
}

var personalLoanCompanies = []string{
	"OneMain Finance Corporation",
	"Lending Club Corp",
	"Prosper Funding LLC",
	"SoFi Lending Corp",
	"Avant, LLC",
	"Upstart Network, Inc.",
	"Best Egg",
}

var merchantCashCompanies = []string{
	"Yellowstone Capital LLC",
	"Rapid Finance",
	"Kapitus LLC",
	"Credibly",
	"Fundbox",
	"Libertas Funding",
	"Forward Financing LLC",
}

var (
	mockStates    = []string{"CA", "TX", "FL", "NY", "IL", "GA", "OH", "NC"}
	mockResponses = []string{"Closed with explanation", "Closed with monetary relief", "In progress", "Closed with non-monetary relief"}
	mockChannels  = []string{"Web", "Phone", "Referral", "Email"}
)

// MockGenerator fabricates complaint envelopes that decode and analyze exactly like live ones.
// Values are random; only the shape is guaranteed.
type MockGenerator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	clock  func() time.Time
	months int
}

// NewMockGenerator creates a generator drawing from rng. months is clamped to [3, 24].
func NewMockGenerator(rng *rand.Rand, clock func() time.Time, months int) *MockGenerator {
	if clock == nil {
		clock = time.Now
	}
	if months == 0 {
		months = defaultMockMonths
	}
	if months < minMockMonths {
		months = minMockMonths
	}
	if months > maxMockMonths {
		months = maxMockMonths
	}
	return &MockGenerator{rng: rng, clock: clock, months: months}
}

// NewDefaultMockGenerator seeds from the wall clock and produces 12 months of data.
func NewDefaultMockGenerator() *MockGenerator {
	seed := uint64(time.Now().UnixNano())
	return NewMockGenerator(rand.New(rand.NewPCG(seed, seed>>1|1)), time.Now, defaultMockMonths)
}

// Months returns how many monthly buckets each envelope carries.
func (g *MockGenerator) Months() int {
	return g.months
}

// MockFor generates data for a query, using the free-text term when no sub-product is set.
func (g *MockGenerator) MockFor(q models.ComplaintQuery) *models.ComplaintEnvelope {
	sub := q.SubProduct
	if sub == "" {
		sub = q.SearchTerm
	}
	return g.Mock(q.Product, sub)
}

// Mock returns a synthetic envelope for product / subProduct.
func (g *MockGenerator) Mock(product, subProduct string) *models.ComplaintEnvelope {
	g.mu.Lock()
	defer g.mu.Unlock()

	issues, companies := personalLoanIssues, personalLoanCompanies
	if isMerchantCash(product, subProduct) {
		issues, companies = merchantCashIssues, merchantCashCompanies
	}

	dateBuckets, months := g.monthlyBuckets()
	total := 0
	for _, b := range dateBuckets {
		total += b.DocCount
	}

	issueBuckets := g.distribute(total, issues)
	companyBuckets := g.distribute(total, companies)

	return &models.ComplaintEnvelope{
		Hits: models.Hits{
			Total: total,
			Hits:  g.records(product, subProduct, issueBuckets, companyBuckets, months),
		},
		Aggregations: &models.Aggregations{
			Issue:        issueBuckets,
			Company:      companyBuckets,
			DateReceived: dateBuckets,
		},
	}
}

// monthlyBuckets returns oldest-first month buckets, as a date histogram would.
func (g *MockGenerator) monthlyBuckets() (models.BucketSet, []time.Time) {
	now := g.clock().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	baseline := 40 + g.rng.IntN(80)

	buckets := make(models.BucketSet, 0, g.months)
	months := make([]time.Time, 0, g.months)
	for i := g.months - 1; i >= 0; i-- {
		month := current.AddDate(0, -i, 0)
		jitter := 0.8 + g.rng.Float64()*0.4
		count := int(math.Round(float64(baseline) * seasonalFactor(month.Month()) * jitter))
		if count < 1 {
			count = 1
		}
		buckets = append(buckets, models.Bucket{Key: month.Format(bucketDateLayout), DocCount: count})
		months = append(months, month)
	}
	return buckets, months
}

// distribute splits total across a random subset of candidates, largest first.
func (g *MockGenerator) distribute(total int, candidates []string) models.BucketSet {
	picked := make([]string, len(candidates))
	copy(picked, candidates)
	g.rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	picked = picked[:5+g.rng.IntN(len(picked)-4)]

	remaining := total
	buckets := make(models.BucketSet, 0, len(picked))
	for i, key := range picked {
		if remaining <= 0 {
			break
		}
		share := 0.2 + g.rng.Float64()*0.2
		count := int(math.Round(float64(remaining) * share))
		if i == len(picked)-1 {
			count = remaining / 2
		}
		if count < 1 {
			count = 1
		}
		if count > remaining {
			count = remaining
		}
		remaining -= count
		buckets = append(buckets, models.Bucket{Key: key, DocCount: count})
	}

	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].DocCount > buckets[j].DocCount })
	return buckets
}

func (g *MockGenerator) records(product, subProduct string, issues, companies models.BucketSet, months []time.Time) []models.ComplaintHit {
	hits := make([]models.ComplaintHit, 0, mockRecordCount)
	for i := 0; i < mockRecordCount; i++ {
		month := months[g.rng.IntN(len(months))]
		received := month.AddDate(0, 0, g.rng.IntN(28))
		id := fmt.Sprintf("MOCK-%d", 1_000_000+g.rng.IntN(9_000_000))

		hits = append(hits, models.ComplaintHit{
			ID: id,
			Source: models.ComplaintRecord{
				ComplaintID:     id,
				Product:         product,
				SubProduct:      subProduct,
				Issue:           pickKey(g.rng, issues),
				Company:         pickKey(g.rng, companies),
				State:           mockStates[g.rng.IntN(len(mockStates))],
				DateReceived:    received.Format("2006-01-02"),
				CompanyResponse: mockResponses[g.rng.IntN(len(mockResponses))],
				SubmittedVia:    mockChannels[g.rng.IntN(len(mockChannels))],
			},
		})
	}
	return hits
}

func pickKey(rng *rand.Rand, buckets models.BucketSet) string {
	if len(buckets) == 0 {
		return ""
	}
	return buckets[rng.IntN(len(buckets))].Key
}

// seasonalFactor scales winter months down and summer months up.
func seasonalFactor(m time.Month) float64 {
	switch m {
	case time.December, time.January, time.February:
		return 0.8
	case time.June, time.July, time.August:
		return 1.2
	default:
		return 1.0
	}
}

func isMerchantCash(product, subProduct string) bool {
	s := strings.ToLower(product + " " + subProduct)
	return strings.Contains(s, "merchant") || strings.Contains(s, "cash advance")
}

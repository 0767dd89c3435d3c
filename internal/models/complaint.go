// Package models defines the data structures for the complaint trends engine.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category identifies one of the product groups tracked on the dashboard.
type Category string

const (
	CategoryPersonalLoans        Category = "personal_loans"
	CategoryMerchantCashAdvances Category = "merchant_cash_advances"
)

// Label returns the human readable singular form used in insight text.
func (c Category) Label() string {
	switch c {
	case CategoryPersonalLoans:
		return "Personal loan"
	case CategoryMerchantCashAdvances:
		return "Merchant cash advance"
	default:
		return string(c)
	}
}

// PluralLabel returns the lower-case plural form used in comparisons.
func (c Category) PluralLabel() string {
	switch c {
	case CategoryPersonalLoans:
		return "personal loans"
	case CategoryMerchantCashAdvances:
		return "merchant cash advances"
	default:
		return string(c)
	}
}

// Upstream product names used when querying the complaint database.
const (
	ProductPersonalLoan    = "Payday loan, title loan, or personal loan"
	SubProductInstallment  = "Installment loan"
	MerchantCashSearchTerm = "merchant cash advance"
)

// ComplaintQuery describes one call against the complaint search API.
type ComplaintQuery struct {
	Product         string     `json:"product"`
	SubProduct      string     `json:"sub_product,omitempty"`
	DateReceivedMin *time.Time `json:"date_received_min,omitempty"`
	DateReceivedMax *time.Time `json:"date_received_max,omitempty"`
	Size            int        `json:"size,omitempty"`
	State           string     `json:"state,omitempty"`
	Issue           string     `json:"issue,omitempty"`
	SearchTerm      string     `json:"search_term,omitempty"`
}

// Validate checks that the query can be sent upstream.
func (q ComplaintQuery) Validate() error {
	if strings.TrimSpace(q.Product) == "" {
		return ErrEmptyProduct
	}
	if q.Size < 0 {
		return ErrInvalidSize
	}
	if q.DateReceivedMin != nil && q.DateReceivedMax != nil && q.DateReceivedMin.After(*q.DateReceivedMax) {
		return ErrInvalidDateRange
	}
	return nil
}

// QueryFor builds the query for a category covering the last lookbackMonths months.
func QueryFor(category Category, now time.Time, lookbackMonths, size int) ComplaintQuery {
	if lookbackMonths <= 0 {
		lookbackMonths = 12
	}
	until := now.UTC().Truncate(24 * time.Hour)
	since := until.AddDate(0, -lookbackMonths, 0)

	q := ComplaintQuery{
		Product:         ProductPersonalLoan,
		DateReceivedMin: &since,
		DateReceivedMax: &until,
		Size:            size,
	}

	switch category {
	case CategoryPersonalLoans:
		q.SubProduct = SubProductInstallment
	case CategoryMerchantCashAdvances:
		q.SearchTerm = MerchantCashSearchTerm
	}
	return q
}

// ComplaintRecord is a single complaint as returned by the search API.
type ComplaintRecord struct {
	ComplaintID     string `json:"complaint_id,omitempty"`
	Product         string `json:"product"`
	SubProduct      string `json:"sub_product,omitempty"`
	Issue           string `json:"issue"`
	SubIssue        string `json:"sub_issue,omitempty"`
	Company         string `json:"company"`
	State           string `json:"state,omitempty"`
	DateReceived    string `json:"date_received"`
	CompanyResponse string `json:"company_response,omitempty"`
	SubmittedVia    string `json:"submitted_via,omitempty"`
}

// ComplaintHit wraps a record the way the search engine returns it.
type ComplaintHit struct {
	ID     string          `json:"_id,omitempty"`
	Source ComplaintRecord `json:"_source"`
}

// UnmarshalJSON accepts both `{_id,_source:{...}}` hits and flat records.
func (h *ComplaintHit) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		ID     string           `json:"_id"`
		Source *ComplaintRecord `json:"_source"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Source != nil {
		h.ID = wrapped.ID
		h.Source = *wrapped.Source
		return nil
	}

	var flat ComplaintRecord
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	h.ID = flat.ComplaintID
	h.Source = flat
	return nil
}

// Bucket is one aggregation bucket.
type Bucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

// UnmarshalJSON accepts string or numeric keys and prefers key_as_string when present.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key         json.RawMessage `json:"key"`
		KeyAsString string          `json:"key_as_string"`
		DocCount    json.Number     `json:"doc_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.Key = raw.KeyAsString
	if b.Key == "" && len(raw.Key) > 0 {
		var s string
		if err := json.Unmarshal(raw.Key, &s); err == nil {
			b.Key = s
		} else {
			var n json.Number
			if err := json.Unmarshal(raw.Key, &n); err != nil {
				return fmt.Errorf("bucket key: %w", err)
			}
			b.Key = n.String()
		}
	}

	count, err := numberToInt(raw.DocCount)
	if err != nil {
		return fmt.Errorf("bucket doc_count: %w", err)
	}
	b.DocCount = count
	return nil
}

// BucketSet is an ordered list of buckets, sorted upstream by descending count.
type BucketSet []Bucket

// UnmarshalJSON accepts a bare array, `{buckets:[...]}` and the nested
// `{issue:{buckets:[...]}}` form the complaint API uses for its aggregations.
func (s *BucketSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	if data[0] == '[' {
		var buckets []Bucket
		if err := json.Unmarshal(data, &buckets); err != nil {
			return err
		}
		*s = buckets
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if raw, ok := obj["buckets"]; ok {
		var buckets []Bucket
		if err := json.Unmarshal(raw, &buckets); err != nil {
			return err
		}
		*s = buckets
		return nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw := bytes.TrimSpace(obj[k])
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var nested BucketSet
		if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
			*s = nested
			return nil
		}
	}

	*s = nil
	return nil
}

// MarshalJSON writes the search-engine shape `{"buckets":[...]}`.
func (s BucketSet) MarshalJSON() ([]byte, error) {
	buckets := []Bucket(s)
	if buckets == nil {
		buckets = []Bucket{}
	}
	return json.Marshal(struct {
		Buckets []Bucket `json:"buckets"`
	}{Buckets: buckets})
}

// Aggregations holds the bucket sets the analyzer consumes.
type Aggregations struct {
	Issue        BucketSet `json:"issue,omitempty"`
	Company      BucketSet `json:"company,omitempty"`
	DateReceived BucketSet `json:"date_received,omitempty"`
}

// Hits carries the normalized total and the returned records.
type Hits struct {
	Total int            `json:"total"`
	Hits  []ComplaintHit `json:"hits"`
}

// ComplaintEnvelope is the normalized search response.
type ComplaintEnvelope struct {
	Hits         Hits          `json:"hits"`
	Aggregations *Aggregations `json:"aggregations,omitempty"`
}

// IssueBuckets returns the issue buckets or nil when aggregations are absent.
func (e *ComplaintEnvelope) IssueBuckets() BucketSet {
	if e == nil || e.Aggregations == nil {
		return nil
	}
	return e.Aggregations.Issue
}

// CompanyBuckets returns the company buckets or nil when aggregations are absent.
func (e *ComplaintEnvelope) CompanyBuckets() BucketSet {
	if e == nil || e.Aggregations == nil {
		return nil
	}
	return e.Aggregations.Company
}

// DateBuckets returns the date_received buckets or nil when aggregations are absent.
func (e *ComplaintEnvelope) DateBuckets() BucketSet {
	if e == nil || e.Aggregations == nil {
		return nil
	}
	return e.Aggregations.DateReceived
}

// TotalComplaints returns hits.total, zero for a nil envelope.
func (e *ComplaintEnvelope) TotalComplaints() int {
	if e == nil {
		return 0
	}
	return e.Hits.Total
}

// HitsTotal is the boundary form of hits.total: either a bare integer or
// an object `{value, relation}` depending on the search engine version.
type HitsTotal struct {
	value int
}

// Value returns the normalized integer.
func (t HitsTotal) Value() int { return t.value }

// UnmarshalJSON decodes both upstream shapes.
func (t *HitsTotal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = HitsTotal{}
		return nil
	}

	if data[0] == '{' {
		var obj struct {
			Value json.Number `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("hits.total: %w", err)
		}
		n, err := numberToInt(obj.Value)
		if err != nil {
			return fmt.Errorf("hits.total.value: %w", err)
		}
		*t = HitsTotal{value: n}
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("hits.total: %w", err)
	}
	n, err := numberToInt(num)
	if err != nil {
		return fmt.Errorf("hits.total: %w", err)
	}
	*t = HitsTotal{value: n}
	return nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

// DecodeEnvelope parses a search response body into the canonical envelope.
// A bare JSON array is treated as a list of hits without aggregations.
func DecodeEnvelope(body []byte) (*ComplaintEnvelope, error) {
	body = bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(body), utf8BOM))
	if len(body) == 0 {
		return nil, ErrEmptyEnvelope
	}

	if body[0] == '[' {
		var hits []ComplaintHit
		if err := json.Unmarshal(body, &hits); err != nil {
			return nil, fmt.Errorf("decode hits array: %w", err)
		}
		return &ComplaintEnvelope{Hits: Hits{Total: len(hits), Hits: hits}}, nil
	}

	var wire struct {
		Hits *struct {
			Total *HitsTotal     `json:"total"`
			Hits  []ComplaintHit `json:"hits"`
		} `json:"hits"`
		Aggregations *Aggregations `json:"aggregations"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if wire.Hits == nil {
		return nil, ErrMissingHits
	}

	env := &ComplaintEnvelope{
		Hits:         Hits{Hits: wire.Hits.Hits},
		Aggregations: wire.Aggregations,
	}
	if wire.Hits.Total != nil {
		env.Hits.Total = wire.Hits.Total.Value()
	} else {
		env.Hits.Total = len(wire.Hits.Hits)
	}
	if env.Hits.Hits == nil {
		env.Hits.Hits = []ComplaintHit{}
	}
	return env, nil
}

func numberToInt(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitsTotal_BothShapesNormalizeToSameInteger(t *testing.T) {
	for _, n := range []int{0, 1, 180, 10000, 2147483647} {
		var raw, wrapped HitsTotal

		require.NoError(t, json.Unmarshal([]byte(jsonInt(n)), &raw))
		require.NoError(t, json.Unmarshal([]byte(`{"value":`+jsonInt(n)+`,"relation":"eq"}`), &wrapped))

		assert.Equal(t, n, raw.Value())
		assert.Equal(t, n, wrapped.Value())
	}
}

func TestHitsTotal_RejectsGarbage(t *testing.T) {
	var total HitsTotal
	assert.Error(t, json.Unmarshal([]byte(`"many"`), &total))
}

func TestDecodeEnvelope_ObjectTotal(t *testing.T) {
	body := `{"hits":{"total":{"value":250,"relation":"gte"},"hits":[{"_id":"1","_source":{"product":"P","issue":"Fees","company":"Acme","date_received":"2024-01-02"}}]}}`

	env, err := DecodeEnvelope([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 250, env.Hits.Total)
	require.Len(t, env.Hits.Hits, 1)
	assert.Equal(t, "1", env.Hits.Hits[0].ID)
	assert.Equal(t, "Fees", env.Hits.Hits[0].Source.Issue)
	assert.Nil(t, env.Aggregations)
}

func TestDecodeEnvelope_IntegerTotalWithAggregations(t *testing.T) {
	body := `{"hits":{"total":180,"hits":[]},"aggregations":{"issue":{"buckets":[{"key":"Fees","doc_count":45}]}}}`

	env, err := DecodeEnvelope([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 180, env.TotalComplaints())
	require.Len(t, env.IssueBuckets(), 1)
	assert.Equal(t, Bucket{Key: "Fees", DocCount: 45}, env.IssueBuckets()[0])
	assert.Empty(t, env.CompanyBuckets())
	assert.Empty(t, env.DateBuckets())
}

func TestDecodeEnvelope_NestedAggregationForm(t *testing.T) {
	body := `{"hits":{"total":{"value":9}},"aggregations":{
		"issue":{"doc_count":9,"issue":{"doc_count_error_upper_bound":0,"buckets":[{"key":"Fees","doc_count":5},{"key":"Billing","doc_count":4}]}},
		"date_received":{"buckets":[{"key":1704067200000,"key_as_string":"2024-01-01T00:00:00.000Z","doc_count":9}]}}}`

	env, err := DecodeEnvelope([]byte(body))
	require.NoError(t, err)

	require.Len(t, env.IssueBuckets(), 2)
	assert.Equal(t, "Billing", env.IssueBuckets()[1].Key)
	require.Len(t, env.DateBuckets(), 1)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", env.DateBuckets()[0].Key)
	assert.NotNil(t, env.Hits.Hits)
}

func TestDecodeEnvelope_BareArray(t *testing.T) {
	body := `[{"_source":{"product":"P","issue":"Fees"}},{"complaint_id":"77","product":"P","issue":"Billing"}]`

	env, err := DecodeEnvelope([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 2, env.Hits.Total)
	assert.Equal(t, "Fees", env.Hits.Hits[0].Source.Issue)
	assert.Equal(t, "77", env.Hits.Hits[1].ID)
}

func TestDecodeEnvelope_ByteOrderMark(t *testing.T) {
	env, err := DecodeEnvelope([]byte("\uFEFF{\"hits\":{\"total\":4,\"hits\":[]}}"))
	require.NoError(t, err)
	assert.Equal(t, 4, env.Hits.Total)
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	_, err := DecodeEnvelope([]byte("   "))
	assert.True(t, errors.Is(err, ErrEmptyEnvelope))

	_, err = DecodeEnvelope([]byte(`{"took":3}`))
	assert.True(t, errors.Is(err, ErrMissingHits))

	_, err = DecodeEnvelope([]byte(`{"hits":`))
	assert.Error(t, err)
}

func TestBucketSet_MarshalRoundTrip(t *testing.T) {
	env := ComplaintEnvelope{
		Hits: Hits{Total: 3, Hits: []ComplaintHit{}},
		Aggregations: &Aggregations{
			Issue: BucketSet{{Key: "Fees", DocCount: 3}},
		},
	}

	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"issue":{"buckets":[{"key":"Fees","doc_count":3}]}`)

	decoded, err := DecodeEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, env.Aggregations.Issue, decoded.Aggregations.Issue)
	assert.Equal(t, 3, decoded.Hits.Total)
}

func TestComplaintQuery_Validate(t *testing.T) {
	min := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query ComplaintQuery
		want  error
	}{
		{"valid", ComplaintQuery{Product: "P", Size: 10}, nil},
		{"empty product", ComplaintQuery{Product: "  "}, ErrEmptyProduct},
		{"negative size", ComplaintQuery{Product: "P", Size: -1}, ErrInvalidSize},
		{"inverted range", ComplaintQuery{Product: "P", DateReceivedMin: &min, DateReceivedMax: &max}, ErrInvalidDateRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Validate())
		})
	}
}

func TestQueryFor(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC)

	pl := QueryFor(CategoryPersonalLoans, now, 6, 25)
	assert.Equal(t, ProductPersonalLoan, pl.Product)
	assert.Equal(t, SubProductInstallment, pl.SubProduct)
	assert.Empty(t, pl.SearchTerm)
	assert.Equal(t, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), *pl.DateReceivedMin)
	assert.NoError(t, pl.Validate())

	mca := QueryFor(CategoryMerchantCashAdvances, now, 0, 25)
	assert.Equal(t, MerchantCashSearchTerm, mca.SearchTerm)
	assert.Equal(t, time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC), *mca.DateReceivedMin)
}

func TestUpstreamError(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := error(&UpstreamError{Kind: KindTransport, URL: "http://x", Err: cause})

	assert.True(t, IsUpstreamError(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "transport")

	html := &UpstreamError{Kind: KindMalformed, HTML: true, StatusCode: 200}
	assert.Contains(t, html.Error(), "html")

	assert.False(t, IsUpstreamError(cause))
}

func jsonInt(n int) string {
	out, _ := json.Marshal(n)
	return string(out)
}

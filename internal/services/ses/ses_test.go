package ses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint-trends-engine/internal/models"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	return &ses.SendEmailOutput{MessageId: aws.String("0100-abc")}, nil
}

func sampleResult() models.AnalysisResult {
	pl := models.EmptyCategorySummary()
	pl.TotalComplaints = 180
	pl.TopIssues = []models.IssueCount{{Issue: "Fees & <charges>", Count: 60, Percentage: 33.3}}
	pl.MonthlyTrend = []models.MonthlyTrendPoint{{Month: "Jun", Year: 2024, Complaints: 60}}

	result := models.AnalysisResult{
		LastUpdated:          time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		TotalComplaints:      180,
		PersonalLoans:        pl,
		MerchantCashAdvances: models.EmptyCategorySummary(),
		Insights:             []string{"Personal loan complaints increased by 33.3% compared to the previous month."},
	}
	result.RecommendedUnderwritingAdjustments = []models.Recommendation{
		{Category: "personal_loans", Adjustment: "Disclose fees up front."},
	}
	result.DataSources = map[models.Category]models.DataSource{
		models.CategoryPersonalLoans:        models.SourceLive,
		models.CategoryMerchantCashAdvances: models.SourceFallback,
	}
	return result
}

func TestSendTrendDigest(t *testing.T) {
	client := &fakeSES{}
	svc := NewWithClient(client, "reports@example.com")

	id, err := svc.SendTrendDigest(context.Background(), []string{"a@example.com"}, sampleResult())
	require.NoError(t, err)

	assert.Equal(t, "0100-abc", id)
	assert.Equal(t, "reports@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"a@example.com"}, client.input.Destination.ToAddresses)
	subject := aws.ToString(client.input.Message.Subject.Data)
	assert.Contains(t, subject, "180 complaints")
	assert.Contains(t, subject, "sample data")
	assert.NotNil(t, client.input.Message.Body.Html)
	assert.NotNil(t, client.input.Message.Body.Text)
}

func TestSendTrendDigest_Errors(t *testing.T) {
	svc := NewWithClient(&fakeSES{err: errors.New("MessageRejected")}, "reports@example.com")

	_, err := svc.SendTrendDigest(context.Background(), nil, sampleResult())
	assert.ErrorIs(t, err, models.ErrNoRecipients)

	_, err = svc.SendTrendDigest(context.Background(), []string{"a@example.com"}, sampleResult())
	assert.ErrorContains(t, err, "MessageRejected")
}

func TestRenderDigestHTML_EscapesContent(t *testing.T) {
	html, err := RenderDigestHTML(sampleResult())
	require.NoError(t, err)

	assert.Contains(t, html, "Fees &amp; &lt;charges&gt;")
	assert.Contains(t, html, "33.3%")
	assert.Contains(t, html, "Disclose fees up front.")
	assert.Contains(t, html, "sample data")
}

func TestRenderDigestText(t *testing.T) {
	text := RenderDigestText(sampleResult())

	assert.Contains(t, text, "Total complaints: 180")
	assert.Contains(t, text, "1. Fees & <charges> (60, 33.3%)")
	assert.Contains(t, text, "- Disclose fees up front.")
}

func TestNewService_RequiresSender(t *testing.T) {
	_, err := NewService(context.Background(), "us-east-1", "")
	assert.ErrorIs(t, err, models.ErrMailerUnavailable)
}

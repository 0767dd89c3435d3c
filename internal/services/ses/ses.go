// Package ses sends complaint trend digests via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"complaint-trends-engine/internal/models"
	"complaint-trends-engine/internal/utils"
)

// EmailAPI is the subset of the SES client used here.
type EmailAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Service handles SES email operations
type Service struct {
	client    EmailAPI
	fromEmail string
	logger    *zap.Logger
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
}

// NewService creates a new SES service sending from fromEmail.
func NewService(ctx context.Context, region, fromEmail string) (*Service, error) {
	if fromEmail == "" {
		return nil, models.ErrMailerUnavailable
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(ses.NewFromConfig(cfg), fromEmail), nil
}

// NewWithClient creates a service from an explicit client.
func NewWithClient(client EmailAPI, fromEmail string) *Service {
	return &Service{client: client, fromEmail: fromEmail, logger: utils.GetLogger()}
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (string, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: params.To,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.Strings("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	s.logger.Info("Email sent successfully",
		zap.Strings("to", params.To),
		zap.String("subject", params.Subject),
		zap.String("messageId", messageID),
	)
	return messageID, nil
}

// SendTrendDigest emails a summary of result to recipients and returns the SES message ID.
func (s *Service) SendTrendDigest(ctx context.Context, recipients []string, result models.AnalysisResult) (string, error) {
	if len(recipients) == 0 {
		return "", models.ErrNoRecipients
	}

	htmlBody, err := RenderDigestHTML(result)
	if err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Complaint trends digest: %d complaints as of %s",
		result.TotalComplaints, result.LastUpdated.Format("Jan 2, 2006"))
	if result.AnySynthetic() {
		subject += " (includes sample data)"
	}

	return s.SendEmail(ctx, EmailParams{
		To:       recipients,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: RenderDigestText(result),
	})
}

type digestSection struct {
	Title   string
	Summary models.CategorySummary
}

type digestData struct {
	Result      models.AnalysisResult
	Sections    []digestSection
	Sample      bool
	GeneratedAt string
}

func newDigestData(result models.AnalysisResult) digestData {
	return digestData{
		Result: result,
		Sections: []digestSection{
			{Title: "Personal loans", Summary: result.Summary(models.CategoryPersonalLoans)},
			{Title: "Merchant cash advances", Summary: result.Summary(models.CategoryMerchantCashAdvances)},
		},
		Sample:      result.AnySynthetic(),
		GeneratedAt: result.LastUpdated.UTC().Format(time.RFC1123),
	}
}

var digestTemplate = template.Must(template.New("trend_digest").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 640px; margin: 0 auto; padding: 20px; }
        .header { background: #1f3b57; color: white; padding: 24px; border-radius: 10px 10px 0 0; }
        .header h1 { margin: 0; font-size: 22px; }
        .content { background: #f9f9f9; padding: 24px; border-radius: 0 0 10px 10px; }
        .notice { background: #fff4e5; border-left: 4px solid #f0a030; padding: 10px 14px; margin-bottom: 16px; }
        table { width: 100%; border-collapse: collapse; margin: 8px 0 20px 0; }
        th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #e2e2e2; font-size: 14px; }
        .footer { text-align: center; margin-top: 24px; color: #999; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Complaint Trends Digest</h1>
        <p>{{.Result.TotalComplaints}} complaints analyzed, generated {{.GeneratedAt}}</p>
    </div>
    <div class="content">
        {{if .Sample}}<div class="notice">Live complaint data was unavailable for at least one product. Affected figures are sample data.</div>{{end}}
        <h2>Insights</h2>
        <ul>{{range .Result.Insights}}<li>{{.}}</li>{{end}}</ul>
        {{range .Sections}}
        <h2>{{.Title}} ({{.Summary.TotalComplaints}})</h2>
        <table>
            <tr><th>Top issue</th><th>Complaints</th><th>Share</th></tr>
            {{range .Summary.TopIssues}}<tr><td>{{.Issue}}</td><td>{{.Count}}</td><td>{{printf "%.1f" .Percentage}}%</td></tr>{{end}}
        </table>
        <table>
            <tr><th>Month</th><th>Complaints</th></tr>
            {{range .Summary.MonthlyTrend}}<tr><td>{{.Month}}</td><td>{{.Complaints}}</td></tr>{{end}}
        </table>
        {{end}}
        <h2>Recommended underwriting adjustments</h2>
        <ul>{{range .Result.RecommendedUnderwritingAdjustments}}<li>{{.Adjustment}}</li>{{end}}</ul>
    </div>
    <div class="footer">
        <p>Source: CFPB Consumer Complaint Database. Recommendations are advisory.</p>
    </div>
</body>
</html>`))

// RenderDigestHTML renders the HTML digest body.
func RenderDigestHTML(result models.AnalysisResult) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, newDigestData(result)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderDigestText renders the plain text digest body.
func RenderDigestText(result models.AnalysisResult) string {
	data := newDigestData(result)
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("Complaint trends digest (%s)\n", data.GeneratedAt))
	buf.WriteString(fmt.Sprintf("Total complaints: %d\n\n", result.TotalComplaints))
	if data.Sample {
		buf.WriteString("Note: live data was unavailable for at least one product; affected figures are sample data.\n\n")
	}

	buf.WriteString("Insights:\n")
	for _, insight := range result.Insights {
		buf.WriteString(fmt.Sprintf("  - %s\n", insight))
	}

	for _, section := range data.Sections {
		buf.WriteString(fmt.Sprintf("\n%s: %d complaints\n", section.Title, section.Summary.TotalComplaints))
		for i, issue := range section.Summary.TopIssues {
			buf.WriteString(fmt.Sprintf("  %d. %s (%d, %.1f%%)\n", i+1, issue.Issue, issue.Count, issue.Percentage))
		}
	}

	buf.WriteString("\nRecommended underwriting adjustments:\n")
	for _, rec := range result.RecommendedUnderwritingAdjustments {
		buf.WriteString(fmt.Sprintf("  - %s\n", rec.Adjustment))
	}
	return buf.String()
}

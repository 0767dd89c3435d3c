package s3service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint-trends-engine/internal/models"
)

type fakeObjects struct {
	put    *s3.PutObjectInput
	body   []byte
	putErr error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.put = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.body == nil || aws.ToString(in.Key) != aws.ToString(f.put.Key) {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(f.body)))}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + aws.ToString(in.Bucket) + ".s3.amazonaws.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc",
		Method: "GET",
	}, nil
}

func TestArchiveAndLoadReport(t *testing.T) {
	objects := &fakeObjects{}
	svc := NewWithClients(objects, &fakePresigner{}, "trend-reports")

	result := models.AnalysisResult{TotalComplaints: 12, Insights: []string{"hello"}}
	require.NoError(t, svc.ArchiveReport(context.Background(), "reports/2024/07/10/a.json", result))

	assert.Equal(t, "trend-reports", aws.ToString(objects.put.Bucket))
	assert.Equal(t, "application/json", aws.ToString(objects.put.ContentType))

	var stored models.AnalysisResult
	require.NoError(t, json.Unmarshal(objects.body, &stored))
	assert.Equal(t, 12, stored.TotalComplaints)

	loaded, err := svc.LoadReport(context.Background(), "reports/2024/07/10/a.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, loaded.Insights)
}

func TestArchiveReport_UploadError(t *testing.T) {
	svc := NewWithClients(&fakeObjects{putErr: errors.New("AccessDenied")}, &fakePresigner{}, "b")

	err := svc.ArchiveReport(context.Background(), "k", models.AnalysisResult{})
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestPresignReportURL(t *testing.T) {
	presigner := &fakePresigner{}
	svc := NewWithClients(&fakeObjects{}, presigner, "trend-reports")
	now := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	url, expiresAt, err := svc.PresignReportURL(context.Background(), "reports/x.json", 0)
	require.NoError(t, err)

	assert.Contains(t, url, "trend-reports")
	assert.Contains(t, url, "reports/x.json")
	assert.Equal(t, defaultPresignExpiry, presigner.expires)
	assert.Equal(t, now.Add(defaultPresignExpiry), expiresAt)
}

func TestNewService_RequiresBucket(t *testing.T) {
	_, err := NewService(context.Background(), "us-east-1", "")
	assert.ErrorIs(t, err, models.ErrArchiveUnavailable)
}

// Package s3service archives analysis reports in S3 and hands out presigned download links.
package s3service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"complaint-trends-engine/internal/models"
	"complaint-trends-engine/internal/utils"
)

const defaultPresignExpiry = 15 * time.Minute

// ObjectAPI is the subset of the S3 client used for archiving.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// PresignAPI is the subset of the S3 presign client used for download links.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Service handles S3 operations
type Service struct {
	client     ObjectAPI
	presigner  PresignAPI
	bucketName string
	logger     *zap.Logger
	clock      func() time.Time
}

// NewService creates a new S3 service for bucket in region.
func NewService(ctx context.Context, region, bucket string) (*Service, error) {
	if bucket == "" {
		return nil, models.ErrArchiveUnavailable
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return NewWithClients(client, s3.NewPresignClient(client), bucket), nil
}

// NewWithClients creates a service from explicit clients.
func NewWithClients(client ObjectAPI, presigner PresignAPI, bucket string) *Service {
	return &Service{
		client:     client,
		presigner:  presigner,
		bucketName: bucket,
		logger:     utils.GetLogger(),
		clock:      time.Now,
	}
}

// ArchiveReport uploads result as an indented JSON document under key.
func (s *Service) ArchiveReport(ctx context.Context, key string, result models.AnalysisResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Error("Failed to upload report to S3",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upload report: %w", err)
	}

	s.logger.Info("Archived analysis report",
		zap.String("bucket", s.bucketName),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return nil
}

// LoadReport downloads and decodes the report stored under key.
func (s *Service) LoadReport(ctx context.Context, key string) (*models.AnalysisResult, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download report: %w", err)
	}
	defer out.Body.Close()

	var result models.AnalysisResult
	if err := json.NewDecoder(out.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &result, nil
}

// PresignReportURL creates a presigned GET URL for the report under key.
func (s *Service) PresignReportURL(ctx context.Context, key string, expiry time.Duration) (string, time.Time, error) {
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}

	presignedReq, err := s.presigner.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		s.logger.Error("Failed to generate presigned URL",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", time.Time{}, fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return presignedReq.URL, s.clock().Add(expiry), nil
}

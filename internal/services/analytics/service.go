package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"complaint-trends-engine/internal/models"
	"complaint-trends-engine/internal/services/cfpb"
	"complaint-trends-engine/internal/utils"
)

const (
	defaultLookbackMonths = 12
	defaultPageSize       = 25
	defaultReportURLTTL   = 15 * time.Minute
	defaultSnapshotLimit  = 20
	maxSnapshotLimit      = 100
)

// Fetcher retrieves complaint envelopes. *cfpb.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q models.ComplaintQuery) (*models.ComplaintEnvelope, error)
	FetchOrFallback(ctx context.Context, q models.ComplaintQuery) cfpb.FetchResult
}

// SnapshotStore persists analysis snapshots.
type SnapshotStore interface {
	Create(ctx context.Context, snapshot *models.AnalysisSnapshot) error
	GetByID(ctx context.Context, id string) (*models.AnalysisSnapshot, error)
	ListRecent(ctx context.Context, limit int) ([]models.AnalysisSnapshot, error)
}

// ReportArchiver stores rendered reports and hands out temporary download links.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, key string, result models.AnalysisResult) error
	LoadReport(ctx context.Context, key string) (*models.AnalysisResult, error)
	PresignReportURL(ctx context.Context, key string, expiry time.Duration) (string, time.Time, error)
}

// DigestSender emails an analysis to a list of recipients.
type DigestSender interface {
	SendTrendDigest(ctx context.Context, recipients []string, result models.AnalysisResult) (string, error)
}

// TrendsReport is the outcome of one dashboard analysis.
type TrendsReport struct {
	Result       models.AnalysisResult
	IsMockData   bool
	IsBackupData bool
	SnapshotID   string
	ReportKey    string
}

// ReportLink is a temporary download link for an archived report.
type ReportLink struct {
	SnapshotID string    `json:"snapshotId"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Service orchestrates fetching, analysis and optional persistence.
type Service struct {
	fetcher        Fetcher
	analyzer       *Analyzer
	mock           *cfpb.MockGenerator
	store          SnapshotStore
	archiver       ReportArchiver
	mailer         DigestSender
	logger         *zap.Logger
	clock          func() time.Time
	lookbackMonths int
	pageSize       int
	reportURLTTL   time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithSnapshotStore persists every analysis in store.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Service) { s.store = store }
}

// WithReportArchiver archives every analysis as a JSON report.
func WithReportArchiver(archiver ReportArchiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithDigestSender enables SendDigest.
func WithDigestSender(mailer DigestSender) Option {
	return func(s *Service) { s.mailer = mailer }
}

// WithMockGenerator sets the generator used when the fetcher returns no envelope.
func WithMockGenerator(g *cfpb.MockGenerator) Option {
	return func(s *Service) { s.mock = g }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithQueryWindow sets the lookback and page size of the category queries.
func WithQueryWindow(lookbackMonths, pageSize int) Option {
	return func(s *Service) {
		if lookbackMonths > 0 {
			s.lookbackMonths = lookbackMonths
		}
		if pageSize > 0 {
			s.pageSize = pageSize
		}
	}
}

// NewService creates a new analytics service
func NewService(fetcher Fetcher, analyzer *Analyzer, opts ...Option) *Service {
	s := &Service{
		fetcher:        fetcher,
		analyzer:       analyzer,
		clock:          time.Now,
		lookbackMonths: defaultLookbackMonths,
		pageSize:       defaultPageSize,
		reportURLTTL:   defaultReportURLTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = utils.GetLogger()
	}
	if s.mock == nil {
		s.mock = cfpb.NewDefaultMockGenerator()
	}
	if s.analyzer == nil {
		s.analyzer = NewAnalyzer(DefaultRecommendationTable(), s.logger, s.clock)
	}
	return s
}

// Query returns the upstream query for a dashboard category.
func (s *Service) Query(category models.Category) models.ComplaintQuery {
	return models.QueryFor(category, s.clock(), s.lookbackMonths, s.pageSize)
}

// ComplaintTrends fetches both categories concurrently and analyzes them.
// It always returns a report; failed categories are filled with synthetic data.
func (s *Service) ComplaintTrends(ctx context.Context) TrendsReport {
	pl, mca := s.fetchCategories(ctx)

	result := s.analyzer.Analyze(pl.Envelope, mca.Envelope)
	result.DataSources = map[models.Category]models.DataSource{
		models.CategoryPersonalLoans:        pl.Source,
		models.CategoryMerchantCashAdvances: mca.Source,
	}

	report := TrendsReport{
		Result:       result,
		IsMockData:   result.AnySynthetic(),
		IsBackupData: result.FullySynthetic(),
	}

	s.logger.Info("Complaint trends analyzed",
		zap.Int("totalComplaints", result.TotalComplaints),
		zap.String("personalLoansSource", string(pl.Source)),
		zap.String("merchantCashSource", string(mca.Source)),
	)

	s.persist(ctx, &report)
	return report
}

// AIAnalytics is ComplaintTrends for the analytics panel, which flags fully synthetic output as backup data.
func (s *Service) AIAnalytics(ctx context.Context) TrendsReport {
	return s.ComplaintTrends(ctx)
}

// MockTrends analyzes freshly generated data for both categories.
func (s *Service) MockTrends() TrendsReport {
	pl := s.mock.MockFor(s.Query(models.CategoryPersonalLoans))
	mca := s.mock.MockFor(s.Query(models.CategoryMerchantCashAdvances))

	result := s.analyzer.Analyze(pl, mca)
	result.DataSources = map[models.Category]models.DataSource{
		models.CategoryPersonalLoans:        models.SourceFallback,
		models.CategoryMerchantCashAdvances: models.SourceFallback,
	}
	return TrendsReport{Result: result, IsMockData: true, IsBackupData: true}
}

// ProductComplaints fetches raw complaints for one query. Failures are returned, never masked.
func (s *Service) ProductComplaints(ctx context.Context, q models.ComplaintQuery) (*models.ComplaintEnvelope, error) {
	return s.fetcher.Fetch(ctx, q)
}

// ProductTrends fetches one query and falls back to synthetic data on failure.
func (s *Service) ProductTrends(ctx context.Context, q models.ComplaintQuery) cfpb.FetchResult {
	res := s.fetcher.FetchOrFallback(ctx, q)
	if res.Envelope == nil {
		res = cfpb.Fallback(s.mock.MockFor(q), res.Reason)
	}
	return res
}

func (s *Service) fetchCategories(ctx context.Context) (pl, mca cfpb.FetchResult) {
	plQuery := s.Query(models.CategoryPersonalLoans)
	mcaQuery := s.Query(models.CategoryMerchantCashAdvances)

	var g errgroup.Group
	g.Go(func() error {
		pl = s.ProductTrends(ctx, plQuery)
		return nil
	})
	g.Go(func() error {
		mca = s.ProductTrends(ctx, mcaQuery)
		return nil
	})
	_ = g.Wait()
	return pl, mca
}

// persist archives the report and stores a snapshot of it, each only when its
// backend is configured. Failures are logged and never affect the response.
func (s *Service) persist(ctx context.Context, report *TrendsReport) {
	if s.store == nil && s.archiver == nil {
		return
	}

	snapshot := &models.AnalysisSnapshot{
		ID:              uuid.New().String(),
		TotalComplaints: report.Result.TotalComplaints,
		IsMockData:      report.IsMockData,
		Result:          report.Result,
		CreatedAt:       s.clock().UTC(),
	}

	if s.archiver != nil {
		key := ReportKey(snapshot.ID, snapshot.CreatedAt)
		if err := s.archiver.ArchiveReport(ctx, key, report.Result); err != nil {
			s.logger.Warn("Failed to archive analysis report", zap.String("key", key), zap.Error(err))
		} else {
			snapshot.ReportKey = key
			report.ReportKey = key
		}
	}

	if s.store == nil {
		return
	}
	if err := s.store.Create(ctx, snapshot); err != nil {
		s.logger.Warn("Failed to save analysis snapshot", zap.String("id", snapshot.ID), zap.Error(err))
		return
	}
	report.SnapshotID = snapshot.ID
}

// ReportKey is the archive object key for a snapshot.
func ReportKey(id string, createdAt time.Time) string {
	return fmt.Sprintf("reports/%s/%s.json", createdAt.UTC().Format("2006/01/02"), id)
}

// RecentSnapshots lists persisted analyses, newest first.
func (s *Service) RecentSnapshots(ctx context.Context, limit int) ([]models.AnalysisSnapshot, error) {
	if s.store == nil {
		return nil, models.ErrStorageUnavailable
	}
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}
	return s.store.ListRecent(ctx, limit)
}

// ReportURL returns a temporary link to the archived report of snapshot id.
func (s *Service) ReportURL(ctx context.Context, id string) (*ReportLink, error) {
	key, err := s.reportKey(ctx, id)
	if err != nil {
		return nil, err
	}

	url, expiresAt, err := s.archiver.PresignReportURL(ctx, key, s.reportURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign report: %w", err)
	}
	return &ReportLink{SnapshotID: id, URL: url, ExpiresAt: expiresAt}, nil
}

// Report returns the archived analysis of snapshot id as it was stored.
func (s *Service) Report(ctx context.Context, id string) (*models.AnalysisResult, error) {
	key, err := s.reportKey(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.archiver.LoadReport(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return result, nil
}

// reportKey resolves the archive key of snapshot id.
func (s *Service) reportKey(ctx context.Context, id string) (string, error) {
	if s.store == nil {
		return "", models.ErrStorageUnavailable
	}
	if s.archiver == nil {
		return "", models.ErrArchiveUnavailable
	}

	snapshot, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if snapshot.ReportKey == "" {
		return "", models.ErrNoReport
	}
	return snapshot.ReportKey, nil
}

// SendDigest runs a fresh analysis and emails it to recipients.
func (s *Service) SendDigest(ctx context.Context, recipients []string) (string, TrendsReport, error) {
	if len(recipients) == 0 {
		return "", TrendsReport{}, models.ErrNoRecipients
	}
	if s.mailer == nil {
		return "", TrendsReport{}, models.ErrMailerUnavailable
	}

	report := s.ComplaintTrends(ctx)
	messageID, err := s.mailer.SendTrendDigest(ctx, recipients, report.Result)
	if err != nil {
		return "", report, fmt.Errorf("failed to send trend digest: %w", err)
	}

	s.logger.Info("Trend digest sent",
		zap.Int("recipients", len(recipients)),
		zap.String("messageId", messageID),
	)
	return messageID, report, nil
}

// IsUnavailable reports whether err means an optional backend is not configured.
func IsUnavailable(err error) bool {
	return errors.Is(err, models.ErrStorageUnavailable) ||
		errors.Is(err, models.ErrArchiveUnavailable) ||
		errors.Is(err, models.ErrMailerUnavailable)
}

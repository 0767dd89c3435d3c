// Package app wires configuration, storage, the complaint pipeline and the
// HTTP surface together for the server and Lambda entry points.
package app

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"complaint-trends-engine/internal/config"
	"complaint-trends-engine/internal/handlers"
	"complaint-trends-engine/internal/metrics"
	"complaint-trends-engine/internal/services/analytics"
	"complaint-trends-engine/internal/services/cfpb"
	"complaint-trends-engine/internal/services/database"
	s3service "complaint-trends-engine/internal/services/s3"
	"complaint-trends-engine/internal/services/ses"
	"complaint-trends-engine/internal/utils"
)

// App holds all dependencies
type App struct {
	Config   *config.Config
	DB       *database.DB
	Registry *prometheus.Registry
	Service  *analytics.Service
	API      *handlers.API
	Health   *handlers.HealthHandler
	logger   *zap.Logger
}

// New builds the application from cfg. Optional backends that fail to
// initialize are logged and left out; the trend routes work without them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := utils.GetLogger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	seed := uint64(time.Now().UnixNano())
	mock := cfpb.NewMockGenerator(rand.New(rand.NewPCG(seed, seed>>1|1)), time.Now, cfg.MockMonths)

	client := cfpb.NewClient(cfpb.ClientConfig{
		BaseURL:      cfg.CFPBBaseURL,
		Timeout:      cfg.CFPBTimeout,
		RateLimitRPS: cfg.CFPBRateLimitRPS,
	}, &http.Client{}, logger,
		cfpb.WithMetrics(metrics.NewUpstreamMetrics(registry)),
		cfpb.WithMockGenerator(mock),
	)

	table, err := analytics.LoadRecommendationTable(cfg.RecommendationsFile)
	if err != nil {
		return nil, err
	}
	analyzer := analytics.NewAnalyzer(table, logger, time.Now)

	a := &App{Config: cfg, Registry: registry, logger: logger}
	opts := []analytics.Option{
		analytics.WithLogger(logger),
		analytics.WithMockGenerator(mock),
		analytics.WithQueryWindow(cfg.CFPBLookbackMonths, cfg.CFPBPageSize),
	}

	if cfg.DatabaseConfigured() {
		db, err := database.New(cfg)
		if err != nil {
			logger.Warn("Could not connect to database, snapshots disabled", zap.Error(err))
		} else if err := db.EnsureSchema(ctx); err != nil {
			logger.Warn("Could not apply database schema, snapshots disabled", zap.Error(err))
			db.Close()
		} else {
			a.DB = db
			opts = append(opts, analytics.WithSnapshotStore(database.NewSnapshotRepository(db, cfg.SnapshotRetention)))
		}
	}

	if cfg.S3Bucket != "" {
		archive, err := s3service.NewService(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			logger.Warn("Could not initialize report archive", zap.Error(err))
		} else {
			opts = append(opts, analytics.WithReportArchiver(archive))
		}
	}

	if cfg.SESSenderEmail != "" {
		mailer, err := ses.NewService(ctx, cfg.AWSRegion, cfg.SESSenderEmail)
		if err != nil {
			logger.Warn("Could not initialize email delivery", zap.Error(err))
		} else {
			opts = append(opts, analytics.WithDigestSender(mailer))
		}
	}

	a.Service = analytics.NewService(client, analyzer, opts...)
	a.API = handlers.NewAPI(a.Service, cfg.DigestRecipients, logger)
	if a.DB != nil {
		a.Health = handlers.NewHealthHandler(a.DB, cfg.Stage, "")
	} else {
		a.Health = handlers.NewHealthHandler(nil, cfg.Stage, "")
	}

	logger.Info("Application initialized",
		zap.String("stage", cfg.Stage),
		zap.String("cfpbBaseURL", cfg.CFPBBaseURL),
		zap.Bool("database", a.DB != nil),
		zap.Bool("archive", cfg.S3Bucket != ""),
		zap.Bool("email", cfg.SESSenderEmail != ""),
	)
	return a, nil
}

// Handler returns the HTTP surface with CORS applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", a.Health)
	mux.Handle("GET /api/health", a.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	a.API.Register(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: a.Config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// Close cleans up resources.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

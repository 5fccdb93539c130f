// Package review ties detection, extraction and analysis together for one
// product URL.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/logging"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
	"github.com/maltedev/review-analyzer/internal/stats"
)

var (
	ErrMissingURL          = errors.New("url is required")
	ErrUnsupportedPlatform = errors.New("platform not supported")
	ErrNoReviews           = errors.New("no reviews found")
)

// Extractors resolves the extractor for a platform.
type Extractors interface {
	Get(p platform.Platform) (crawler.Extractor, bool)
	Fallback(p platform.Platform) (crawler.Extractor, bool)
}

type Analyzer interface {
	Analyze(ctx context.Context, reviews []string) (*models.Summary, error)
}

// Outcome is a completed crawl and analysis.
type Outcome struct {
	ID       string
	Platform platform.Platform
	Crawl    *models.CrawlResult
	Summary  *models.Summary
}

type Service struct {
	extractors Extractors
	analyzer   Analyzer
	stats      stats.Store
	logger     *slog.Logger
}

// NewService wires the service. store may be nil when counters are not kept.
func NewService(extractors Extractors, analyzer Analyzer, store stats.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractors: extractors,
		analyzer:   analyzer,
		stats:      store,
		logger:     logger.With("component", "review_service"),
	}
}

// Crawl detects the platform and extracts reviews without analyzing them.
func (s *Service) Crawl(ctx context.Context, rawURL string) (platform.Platform, *models.CrawlResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return platform.Unknown, nil, ErrMissingURL
	}

	p := platform.Detect(rawURL)
	if !p.IsSupported() {
		return p, nil, ErrUnsupportedPlatform
	}

	extractor, ok := s.extractors.Get(p)
	if !ok {
		return p, nil, fmt.Errorf("%w: no extractor registered for %s", ErrUnsupportedPlatform, p)
	}

	logger := logging.FromContext(ctx, s.logger).With("platform", string(p))
	logger.Info("crawl started", "url", rawURL)

	result, err := extractor.Extract(ctx, rawURL)
	if err != nil {
		return p, nil, err
	}

	if result.Empty() {
		if fallback, ok := s.extractors.Fallback(p); ok {
			logger.Info("no reviews from primary strategy, trying browser fallback")
			fbResult, fbErr := fallback.Extract(ctx, rawURL)
			if fbErr != nil {
				logger.Warn("browser fallback failed", "error", fbErr)
			} else if !fbResult.Empty() {
				if fbResult.Product.IsEmpty() {
					fbResult.Product = result.Product
				}
				result = fbResult
			}
		}
	}

	logger.Info("crawl finished", "reviews", len(result.Reviews))
	return p, result, nil
}

// Analyze runs the full pipeline for one URL.
func (s *Service) Analyze(ctx context.Context, rawURL string) (*Outcome, error) {
	p, result, err := s.Crawl(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, ErrNoReviews
	}

	outcome := &Outcome{
		ID:       uuid.New().String(),
		Platform: p,
		Crawl:    result,
	}
	logger := logging.FromContext(ctx, s.logger).With("analysis_id", outcome.ID, "platform", string(p))

	summary, err := s.analyzer.Analyze(ctx, result.Reviews)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		return nil, err
	}
	outcome.Summary = summary

	if s.stats != nil {
		if _, err := s.stats.Incr(ctx, stats.Analyses); err != nil {
			logger.Warn("failed to record analysis", "error", err)
		}
	}

	logger.Info("analysis finished", "reviews", len(result.Reviews))
	return outcome, nil
}

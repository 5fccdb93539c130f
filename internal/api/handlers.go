package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/maltedev/review-analyzer/internal/analyzer"
	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/logging"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
	"github.com/maltedev/review-analyzer/internal/review"
	"github.com/maltedev/review-analyzer/internal/stats"
)

const (
	msgInvalidBody   = "잘못된 요청 형식입니다."
	msgMissingURL    = "URL이 필요합니다."
	msgUnsupported   = "지원하지 않는 쇼핑몰입니다. 무신사, 29cm, 지그재그만 지원합니다."
	msgNoReviews     = "분석할 리뷰 데이터가 없습니다."
	msgAnalysis      = "분석 중 오류가 발생했습니다."
	msgCrawl         = "리뷰 수집 중 오류가 발생했습니다."
	msgStats         = "통계를 불러오지 못했습니다."
	msgDailyExceeded = "오늘의 분석 횟수를 모두 사용했습니다. 내일 다시 시도해주세요."
)

// Analyzer runs one product URL through crawl and analysis.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*review.Outcome, error)
}

type Handlers struct {
	analyzer Analyzer
	stats    stats.Store
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewHandlers wires the handlers. loc decides which calendar day /api/stats
// reports; nil means UTC.
func NewHandlers(a Analyzer, store stats.Store, loc *time.Location, logger *slog.Logger) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		analyzer: a,
		stats:    store,
		loc:      loc,
		now:      time.Now,
		logger:   logger.With("component", "api"),
	}
}

type AnalyzeRequest struct {
	URL string `json:"url"`
}

type AnalyzeResponse struct {
	Success  bool                     `json:"success"`
	ID       string                   `json:"id"`
	Product  models.ProductDescriptor `json:"product"`
	Reviews  []string                 `json:"reviews"`
	Data     *models.Summary          `json:"data"`
	Platform platform.Platform        `json:"platform"`
}

type ErrorResponse struct {
	Success bool                    `json:"success"`
	Error   string                  `json:"error"`
	Details *models.AnalysisFailure `json:"details,omitempty"`
}

type StatsResponse struct {
	Visits   int64  `json:"visits"`
	Analyses int64  `json:"analyses"`
	Date     string `json:"date"`
}

// Analyze handles POST /api/analyze.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	outcome, err := h.analyzer.Analyze(r.Context(), req.URL)
	if err != nil {
		h.handleAnalyzeError(w, r, req.URL, err)
		return
	}

	h.respondJSON(w, http.StatusOK, AnalyzeResponse{
		Success:  true,
		ID:       outcome.ID,
		Product:  outcome.Crawl.Product,
		Reviews:  outcome.Crawl.Reviews,
		Data:     outcome.Summary,
		Platform: outcome.Platform,
	})
}

func (h *Handlers) handleAnalyzeError(w http.ResponseWriter, r *http.Request, rawURL string, err error) {
	logger := logging.FromContext(r.Context(), h.logger)

	var analysisErr *analyzer.Error
	switch {
	case errors.Is(err, review.ErrMissingURL):
		h.respondError(w, http.StatusBadRequest, msgMissingURL)
	case errors.Is(err, review.ErrUnsupportedPlatform):
		h.respondError(w, http.StatusBadRequest, msgUnsupported)
	case errors.Is(err, review.ErrNoReviews):
		h.respondError(w, http.StatusNotFound, msgNoReviews)
	case errors.As(err, &analysisErr):
		failure := analysisErr.Failure()
		if analysisErr.Quota {
			logger.Error("analysis quota exceeded", "url", rawURL, "status", analysisErr.StatusCode, "details", string(analysisErr.Details))
		} else {
			logger.Warn("analysis failed", "url", rawURL, "kind", analysisErr.Kind, "error", err)
		}
		h.respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   msgAnalysis,
			Details: &failure,
		})
	case errors.Is(err, crawler.ErrExtractionFailed):
		logger.Error("extraction failed", "url", rawURL, "error", err)
		h.respondError(w, http.StatusInternalServerError, msgCrawl)
	default:
		logger.Error("analyze request failed", "url", rawURL, "error", err)
		h.respondError(w, http.StatusInternalServerError, msgAnalysis)
	}
}

// Visit handles POST /api/visit.
func (h *Handlers) Visit(w http.ResponseWriter, r *http.Request) {
	if _, err := h.stats.Incr(r.Context(), stats.Visits); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to record visit", "error", err)
		h.respondError(w, http.StatusInternalServerError, msgStats)
		return
	}
	h.GetStats(w, r)
}

// GetStats handles GET /api/stats.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.stats.Snapshot(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to read stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, msgStats)
		return
	}

	h.respondJSON(w, http.StatusOK, StatsResponse{
		Visits:   snap.Visits,
		Analyses: snap.Analyses,
		Date:     h.now().In(h.loc).Format("2006-01-02"),
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper methods

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}

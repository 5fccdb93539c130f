package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/review-analyzer/internal/analyzer"
	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
	"github.com/maltedev/review-analyzer/internal/ratelimit"
	"github.com/maltedev/review-analyzer/internal/review"
	"github.com/maltedev/review-analyzer/internal/stats"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, rawURL string) (*review.Outcome, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.Outcome), args.Error(1)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func (failingLimiter) Release(context.Context, ratelimit.Decision) error {
	return errors.New("redis down")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newTestRouter(a Analyzer, cfg RouterConfig) (http.Handler, *Handlers) {
	h := NewHandlers(a, stats.NewMemoryStore(), time.UTC, testLogger())
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = []string{"http://localhost:5173"}
	}
	return NewRouter(h, cfg, testLogger()), h
}

func postAnalyze(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:52000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const musinsaURL = "https://www.musinsa.com/products/12345"

func sampleOutcome() *review.Outcome {
	return &review.Outcome{
		ID:       "3f1c7b1e-0000-4000-8000-000000000001",
		Platform: platform.Musinsa,
		Crawl: &models.CrawlResult{
			Product: models.ProductDescriptor{Name: "오버핏 셔츠", Brand: "브랜드", SourceURL: musinsaURL},
			Reviews: []string{"핏이 좋아요", "배송이 빨라요"},
		},
		Summary: &models.Summary{
			Pros:           []string{"핏"},
			Cons:           []string{},
			SentimentRatio: "90:10",
			Summary:        "만족",
			TotalReviews:   2,
		},
	}
}

func TestAnalyze_Success(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, musinsaURL).Return(sampleOutcome(), nil)
	router, _ := newTestRouter(a, RouterConfig{})

	rec := postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "musinsa", body["platform"])
	assert.Equal(t, "3f1c7b1e-0000-4000-8000-000000000001", body["id"])
	assert.Equal(t, []any{"핏이 좋아요", "배송이 빨라요"}, body["reviews"])

	product := body["product"].(map[string]any)
	assert.Equal(t, "오버핏 셔츠", product["name"])

	data := body["data"].(map[string]any)
	assert.Equal(t, float64(2), data["total_reviews"])
	assert.Equal(t, "90:10", data["ratio"])

	a.AssertExpectations(t)
}

func TestAnalyze_Errors(t *testing.T) {
	quota := &analyzer.Error{
		Kind:       analyzer.KindTransport,
		Message:    "Resource has been exhausted",
		StatusCode: http.StatusTooManyRequests,
		Quota:      true,
		Details:    json.RawMessage(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`),
	}
	parse := &analyzer.Error{
		Kind:        analyzer.KindParse,
		Message:     "no JSON object in model output",
		RawResponse: "죄송합니다",
	}

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "invalid body",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
			wantError:  msgInvalidBody,
		},
		{
			name:       "missing url",
			body:       `{}`,
			err:        review.ErrMissingURL,
			wantStatus: http.StatusBadRequest,
			wantError:  msgMissingURL,
		},
		{
			name:       "unsupported platform",
			body:       `{"url":"https://example.com/p/1"}`,
			err:        review.ErrUnsupportedPlatform,
			wantStatus: http.StatusBadRequest,
			wantError:  msgUnsupported,
		},
		{
			name:       "no reviews",
			body:       `{"url":"` + musinsaURL + `"}`,
			err:        review.ErrNoReviews,
			wantStatus: http.StatusNotFound,
			wantError:  msgNoReviews,
		},
		{
			name:       "quota exceeded",
			body:       `{"url":"` + musinsaURL + `"}`,
			err:        quota,
			wantStatus: http.StatusInternalServerError,
			wantError:  msgAnalysis,
			check: func(t *testing.T, body map[string]any) {
				details := body["details"].(map[string]any)
				assert.Equal(t, true, details["quota"])
				assert.Equal(t, float64(429), details["statusCode"])
				assert.Equal(t, "transport", details["kind"])
				assert.Contains(t, fmt.Sprint(details["details"]), "RESOURCE_EXHAUSTED")
			},
		},
		{
			name:       "unparseable model output",
			body:       `{"url":"` + musinsaURL + `"}`,
			err:        parse,
			wantStatus: http.StatusInternalServerError,
			wantError:  msgAnalysis,
			check: func(t *testing.T, body map[string]any) {
				details := body["details"].(map[string]any)
				assert.Equal(t, "parse", details["kind"])
				assert.Equal(t, "죄송합니다", details["raw_response"])
			},
		},
		{
			name:       "extraction failed",
			body:       `{"url":"https://zigzag.kr/catalog/products/1"}`,
			err:        fmt.Errorf("%w: status 502", crawler.ErrExtractionFailed),
			wantStatus: http.StatusInternalServerError,
			wantError:  msgCrawl,
		},
		{
			name:       "unexpected error",
			body:       `{"url":"` + musinsaURL + `"}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  msgAnalysis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := new(MockAnalyzer)
			if tt.err != nil {
				a.On("Analyze", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			router, _ := newTestRouter(a, RouterConfig{})

			rec := postAnalyze(t, router, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
			if tt.check != nil {
				tt.check(t, body)
			} else {
				assert.NotContains(t, body, "details")
			}

			if tt.err == nil {
				a.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestVisitAndStats(t *testing.T) {
	router, h := newTestRouter(new(MockAnalyzer), RouterConfig{})
	h.now = func() time.Time { return time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC) }
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	h.loc = seoul

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/visit", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(2), got.Visits)
	assert.Equal(t, int64(0), got.Analyses)
	// 16:00 UTC is already the next day in Seoul.
	assert.Equal(t, "2026-03-02", got.Date)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(new(MockAnalyzer), RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDailyLimit(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, musinsaURL).Return(sampleOutcome(), nil).Once()
	router, _ := newTestRouter(a, RouterConfig{
		Daily: ratelimit.NewMemoryDailyLimiter(1, time.UTC),
	})

	first := postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, msgDailyExceeded, body["error"])

	// Counters are not limited.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	a.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestDailyLimit_RejectedRequestsKeepTheirSlot(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, "").Return(nil, review.ErrMissingURL)
	a.On("Analyze", mock.Anything, "https://example.com/p/1").Return(nil, review.ErrUnsupportedPlatform)
	a.On("Analyze", mock.Anything, "https://www.musinsa.com/products/1").Return(nil, review.ErrNoReviews)
	a.On("Analyze", mock.Anything, musinsaURL).Return(sampleOutcome(), nil)
	router, _ := newTestRouter(a, RouterConfig{
		Daily: ratelimit.NewMemoryDailyLimiter(1, time.UTC),
	})

	assert.Equal(t, http.StatusBadRequest, postAnalyze(t, router, `{"url":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, postAnalyze(t, router, `{"url":`).Code)
	assert.Equal(t, http.StatusBadRequest, postAnalyze(t, router, `{"url":"https://example.com/p/1"}`).Code)
	assert.Equal(t, http.StatusNotFound, postAnalyze(t, router, `{"url":"https://www.musinsa.com/products/1"}`).Code)

	assert.Equal(t, http.StatusOK, postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`).Code)
}

func TestDailyLimit_FailedAnalysisUsesSlot(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, musinsaURL).Return(nil, &analyzer.Error{Kind: analyzer.KindTransport, Message: "timeout"}).Once()
	router, _ := newTestRouter(a, RouterConfig{
		Daily: ratelimit.NewMemoryDailyLimiter(1, time.UTC),
	})

	assert.Equal(t, http.StatusInternalServerError, postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`).Code)
	a.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestDailyLimit_LimiterErrorLetsRequestThrough(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, musinsaURL).Return(sampleOutcome(), nil)
	router, _ := newTestRouter(a, RouterConfig{Daily: failingLimiter{}})

	rec := postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPerMinuteLimit(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, musinsaURL).Return(sampleOutcome(), nil)
	router, _ := newTestRouter(a, RouterConfig{PerMinute: 1})

	assert.Equal(t, http.StatusOK, postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postAnalyze(t, router, `{"url":"`+musinsaURL+`"}`).Code)
	a.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestCORS(t *testing.T) {
	router, _ := newTestRouter(new(MockAnalyzer), RouterConfig{
		CORSOrigins: []string{"http://localhost:5173", "https://mitgosa.vercel.app"},
	})

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed local", "http://localhost:5173", "http://localhost:5173"},
		{"allowed production", "https://mitgosa.vercel.app", "https://mitgosa.vercel.app"},
		{"foreign origin", "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.want != "" {
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.10:52000", "192.0.2.10"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.10", "192.0.2.10"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		assert.Equal(t, tt.want, clientKey(req), tt.remote)
	}
}

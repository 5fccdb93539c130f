package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/review-analyzer/internal/analyzer"
	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
	"github.com/maltedev/review-analyzer/internal/stats"
)

type MockExtractor struct {
	mock.Mock
	platform platform.Platform
}

func (m *MockExtractor) Platform() platform.Platform {
	return m.platform
}

func (m *MockExtractor) Extract(ctx context.Context, url string) (*models.CrawlResult, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CrawlResult), args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, reviews []string) (*models.Summary, error) {
	args := m.Called(ctx, reviews)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Summary), args.Error(1)
}

func crawlResult(url string, reviews ...string) *models.CrawlResult {
	r := models.NewCrawlResult(url)
	r.Product.Name = "Test Product"
	for _, text := range reviews {
		r.AddReview(text)
	}
	return r
}

func TestService_Analyze_InputErrors(t *testing.T) {
	ext := &MockExtractor{platform: platform.Musinsa}
	reg := crawler.NewRegistry()
	reg.Register(ext)
	an := &MockAnalyzer{}
	svc := NewService(reg, an, nil, nil)

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{name: "missing url", url: "  ", wantErr: ErrMissingURL},
		{name: "unsupported platform", url: "https://www.amazon.de/dp/B000", wantErr: ErrUnsupportedPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), tt.url)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	ext.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	an.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestService_Analyze(t *testing.T) {
	const url = "https://www.musinsa.com/products/1"
	ctx := context.Background()

	t.Run("success records analysis", func(t *testing.T) {
		ext := &MockExtractor{platform: platform.Musinsa}
		ext.On("Extract", ctx, url).Return(crawlResult(url, "great fit and fabric", "too short for me"), nil)
		an := &MockAnalyzer{}
		an.On("Analyze", ctx, []string{"great fit and fabric", "too short for me"}).
			Return(&models.Summary{Summary: "ok", TotalReviews: 2}, nil)

		reg := crawler.NewRegistry()
		reg.Register(ext)
		store := stats.NewMemoryStore()

		outcome, err := NewService(reg, an, store, nil).Analyze(ctx, url)
		require.NoError(t, err)

		assert.NotEmpty(t, outcome.ID)
		assert.Equal(t, platform.Musinsa, outcome.Platform)
		assert.Equal(t, 2, outcome.Summary.TotalReviews)
		snap, _ := store.Snapshot(ctx)
		assert.EqualValues(t, 1, snap.Analyses)
	})

	t.Run("no reviews skips analysis", func(t *testing.T) {
		ext := &MockExtractor{platform: platform.Musinsa}
		ext.On("Extract", ctx, url).Return(crawlResult(url), nil)
		an := &MockAnalyzer{}

		reg := crawler.NewRegistry()
		reg.Register(ext)

		_, err := NewService(reg, an, nil, nil).Analyze(ctx, url)
		assert.ErrorIs(t, err, ErrNoReviews)
		an.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
	})

	t.Run("hard extraction failure propagates", func(t *testing.T) {
		zurl := "https://zigzag.kr/catalog/products/9"
		ext := &MockExtractor{platform: platform.Zigzag}
		ext.On("Extract", ctx, zurl).Return(nil, fmt.Errorf("%w: boom", crawler.ErrExtractionFailed))

		reg := crawler.NewRegistry()
		reg.Register(ext)

		_, err := NewService(reg, &MockAnalyzer{}, nil, nil).Analyze(ctx, zurl)
		assert.ErrorIs(t, err, crawler.ErrExtractionFailed)
	})

	t.Run("fallback fills empty primary result", func(t *testing.T) {
		primary := &MockExtractor{platform: platform.Musinsa}
		primary.On("Extract", ctx, url).Return(crawlResult(url), nil)
		fallback := &MockExtractor{platform: platform.Musinsa}
		fallbackResult := models.NewCrawlResult(url)
		fallbackResult.AddReview("rendered page review text")
		fallback.On("Extract", ctx, url).Return(fallbackResult, nil)
		an := &MockAnalyzer{}
		an.On("Analyze", ctx, []string{"rendered page review text"}).Return(&models.Summary{TotalReviews: 1}, nil)

		reg := crawler.NewRegistry()
		reg.Register(primary)
		reg.RegisterFallback(fallback)

		outcome, err := NewService(reg, an, nil, nil).Analyze(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, []string{"rendered page review text"}, outcome.Crawl.Reviews)
		assert.Equal(t, "Test Product", outcome.Crawl.Product.Name)
		fallback.AssertExpectations(t)
	})

	t.Run("analysis failure is returned and not counted", func(t *testing.T) {
		ext := &MockExtractor{platform: platform.Musinsa}
		ext.On("Extract", ctx, url).Return(crawlResult(url, "some review text"), nil)
		an := &MockAnalyzer{}
		an.On("Analyze", ctx, mock.Anything).Return(nil, &analyzer.Error{Kind: analyzer.KindTransport, StatusCode: 429, Quota: true})

		reg := crawler.NewRegistry()
		reg.Register(ext)
		store := stats.NewMemoryStore()

		_, err := NewService(reg, an, store, nil).Analyze(ctx, url)
		var ae *analyzer.Error
		require.True(t, errors.As(err, &ae))
		assert.True(t, ae.Quota)
		snap, _ := store.Snapshot(ctx)
		assert.Zero(t, snap.Analyses)
	})
}

func TestService_Analyze_EndToEndMusinsa(t *testing.T) {
	musinsa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345", r.URL.Query().Get("goodsNo"))
		list := []map[string]any{}
		if r.URL.Query().Get("page") == "0" {
			list = []map[string]any{
				{"content": "정사이즈로 잘 맞아요", "goods": map[string]any{"goodsName": "Wide Denim", "brandName": "Brand M", "goodsImageFile": "/img_100.jpg"}},
				{"content": "색감이 사진이랑 달라요"},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"list": list, "page": map[string]any{"totalPages": 5}},
		})
	}))
	defer musinsa.Close()

	var prompt string
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text

		text := "```json\n{\"pros\":[\"fit\"],\"cons\":[\"color\"],\"ratio\":\"5:3:2\",\"summary\":\"good\",\"size\":\"true to size\",\"recommendation\":\"casual\"}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
		})
	}))
	defer gemini.Close()

	mcfg := crawler.DefaultMusinsaConfig()
	mcfg.ReviewURL = musinsa.URL
	mcfg.PageDelay = 0
	reg := crawler.NewRegistry()
	reg.Register(crawler.NewMusinsaExtractor(mcfg, nil))

	acfg := analyzer.DefaultConfig()
	acfg.APIKey = "key"
	acfg.BaseURL = gemini.URL

	svc := NewService(reg, analyzer.NewClient(acfg, nil), nil, nil)
	outcome, err := svc.Analyze(context.Background(), "https://www.musinsa.com/products/12345")
	require.NoError(t, err)

	assert.Equal(t, []string{"정사이즈로 잘 맞아요", "색감이 사진이랑 달라요"}, outcome.Crawl.Reviews)
	assert.Equal(t, "Wide Denim", outcome.Crawl.Product.Name)
	assert.Equal(t, 2, outcome.Summary.TotalReviews)
	assert.Equal(t, []string{"fit"}, outcome.Summary.Pros)
	assert.Contains(t, prompt, "정사이즈로 잘 맞아요\n\n색감이 사진이랑 달라요")
}

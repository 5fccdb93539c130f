package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/platform"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "https://mitgosa.vercel.app"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Gemini.Model)
	assert.InDelta(t, 0.7, cfg.Gemini.Temperature, 0.0001)
	assert.Equal(t, 5000, cfg.Gemini.MaxChars)
	assert.Equal(t, 300*time.Millisecond, cfg.Crawler.PageDelay)
	assert.Equal(t, "api", cfg.Crawler.Strategies[platform.Zigzag])
	assert.Equal(t, 20, cfg.Limits.Daily)
	assert.Equal(t, "file", cfg.Stats.Backend)
	assert.Equal(t, "ko-KR", cfg.Browser.Locale)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("GEMINI_TEMPERATURE", "0.2")
	t.Setenv("CRAWL_STRATEGY_ZIGZAG", "browser")
	t.Setenv("CRAWL_PAGE_DELAY", "500ms")
	t.Setenv("RATE_LIMIT_DAILY", "0")
	t.Setenv("STATS_BACKEND", "redis")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.InDelta(t, 0.2, cfg.Gemini.Temperature, 0.0001)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawler.PageDelay)
	assert.Equal(t, 0, cfg.Limits.Daily)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 5432, cfg.Database.Port)

	opts := cfg.CrawlerOptions(nil)
	assert.Equal(t, crawler.StrategyBrowser, opts.Strategies[platform.Zigzag])
	assert.Equal(t, crawler.StrategyAPI, opts.Strategies[platform.Musinsa])
	assert.Equal(t, 500*time.Millisecond, opts.Musinsa.PageDelay)
	assert.Equal(t, 100, opts.Zigzag.MaxReviews)

	ac := cfg.AnalyzerConfig()
	assert.Equal(t, "secret", ac.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad strategy", env: map[string]string{"CRAWL_STRATEGY_MUSINSA": "selenium"}, wantErr: "CRAWL_STRATEGY_MUSINSA"},
		{name: "bad stats backend", env: map[string]string{"STATS_BACKEND": "sqlite"}, wantErr: "STATS_BACKEND"},
		{name: "bad limiter backend", env: map[string]string{"RATE_LIMIT_BACKEND": "memcached"}, wantErr: "RATE_LIMIT_BACKEND"},
		{name: "bad time zone", env: map[string]string{"RATE_LIMIT_TZ": "Mars/Olympus"}, wantErr: "RATE_LIMIT_TZ"},
		{name: "temperature out of range", env: map[string]string{"GEMINI_TEMPERATURE": "3.5"}, wantErr: "GEMINI_TEMPERATURE"},
		{name: "zero max chars", env: map[string]string{"ANALYSIS_MAX_CHARS": "0"}, wantErr: "ANALYSIS_MAX_CHARS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/review-analyzer/internal/analyzer"
	"github.com/maltedev/review-analyzer/internal/browser"
	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/database"
	"github.com/maltedev/review-analyzer/internal/platform"
)

type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	Crawler  CrawlerConfig
	Browser  BrowserConfig
	Limits   LimitsConfig
	Stats    StatsConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	CORSOrigins     []string
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
	MaxChars    int
}

type CrawlerConfig struct {
	Strategies      map[platform.Platform]string
	BrowserFallback bool
	PageDelay       time.Duration
	HTTPTimeout     time.Duration
	SelectorsFile   string
	UserAgent       string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type LimitsConfig struct {
	Daily     int
	PerMinute int
	Backend   string
	TimeZone  string
}

type StatsConfig struct {
	Backend string
	File    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxConns int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", getEnvOrDefault("PORT", "3000")),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 6*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:  getDurationOrDefault("SERVER_REQUEST_TIMEOUT", 5*time.Minute),
			CORSOrigins:     getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "https://mitgosa.vercel.app"}),
		},
		Gemini: GeminiConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       getEnvOrDefault("GEMINI_MODEL", analyzer.DefaultModel),
			BaseURL:     getEnvOrDefault("GEMINI_BASE_URL", analyzer.DefaultBaseURL),
			Temperature: getFloatOrDefault("GEMINI_TEMPERATURE", analyzer.DefaultTemperature),
			Timeout:     getDurationOrDefault("GEMINI_TIMEOUT", analyzer.DefaultTimeout),
			MaxChars:    getIntOrDefault("ANALYSIS_MAX_CHARS", analyzer.DefaultMaxChars),
		},
		Crawler: CrawlerConfig{
			Strategies: map[platform.Platform]string{
				platform.Musinsa:      getEnvOrDefault("CRAWL_STRATEGY_MUSINSA", string(crawler.StrategyAPI)),
				platform.TwentyNineCM: getEnvOrDefault("CRAWL_STRATEGY_29CM", string(crawler.StrategyAPI)),
				platform.Zigzag:       getEnvOrDefault("CRAWL_STRATEGY_ZIGZAG", string(crawler.StrategyAPI)),
			},
			BrowserFallback: getBoolOrDefault("CRAWL_BROWSER_FALLBACK", false),
			PageDelay:       getDurationOrDefault("CRAWL_PAGE_DELAY", 300*time.Millisecond),
			HTTPTimeout:     getDurationOrDefault("CRAWL_HTTP_TIMEOUT", 10*time.Second),
			SelectorsFile:   os.Getenv("SELECTORS_FILE"),
			UserAgent:       os.Getenv("CRAWL_USER_AGENT"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1366),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 900),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Seoul"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ko-KR"),
			ProxyServer:    os.Getenv("BROWSER_PROXY"),
		},
		Limits: LimitsConfig{
			Daily:     getIntOrDefault("RATE_LIMIT_DAILY", 20),
			PerMinute: getIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
			Backend:   getEnvOrDefault("RATE_LIMIT_BACKEND", "memory"),
			TimeZone:  getEnvOrDefault("RATE_LIMIT_TZ", "Asia/Seoul"),
		},
		Stats: StatsConfig{
			Backend: getEnvOrDefault("STATS_BACKEND", "file"),
			File:    getEnvOrDefault("STATS_FILE", "stats.json"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "review_analyzer"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 5),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for p, s := range c.Crawler.Strategies {
		if _, err := crawler.ParseStrategy(s); err != nil {
			return fmt.Errorf("CRAWL_STRATEGY_%s: %w", strings.ToUpper(string(p)), err)
		}
	}

	if c.Crawler.PageDelay < 0 {
		return fmt.Errorf("CRAWL_PAGE_DELAY cannot be negative")
	}

	if c.Gemini.MaxChars < 1 {
		return fmt.Errorf("ANALYSIS_MAX_CHARS must be at least 1")
	}

	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("GEMINI_TEMPERATURE must be between 0 and 2")
	}

	if c.Limits.Daily < 0 || c.Limits.PerMinute < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}

	switch c.Limits.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.Limits.Backend)
	}

	if _, err := time.LoadLocation(c.Limits.TimeZone); err != nil {
		return fmt.Errorf("RATE_LIMIT_TZ: %w", err)
	}

	switch c.Stats.Backend {
	case "memory", "redis", "postgres":
	case "file":
		if c.Stats.File == "" {
			return fmt.Errorf("STATS_FILE is required for the file stats backend")
		}
	default:
		return fmt.Errorf("STATS_BACKEND must be memory, file, redis or postgres, got %q", c.Stats.Backend)
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when a redis backend is selected")
	}

	if c.Stats.Backend == "postgres" && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required for the postgres stats backend")
	}

	return nil
}

// UsesRedis reports whether any component is configured to use Redis.
func (c *Config) UsesRedis() bool {
	return c.Limits.Backend == "redis" || c.Stats.Backend == "redis"
}

func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		APIKey:      c.Gemini.APIKey,
		Model:       c.Gemini.Model,
		BaseURL:     c.Gemini.BaseURL,
		Temperature: c.Gemini.Temperature,
		Timeout:     c.Gemini.Timeout,
		MaxChars:    c.Gemini.MaxChars,
	}
}

func (c *Config) BrowserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = c.Browser.Headless
	opts.Timeout = c.Browser.Timeout
	opts.ViewportWidth = c.Browser.ViewportWidth
	opts.ViewportHeight = c.Browser.ViewportHeight
	opts.AcceptLanguage = c.Browser.AcceptLanguage
	opts.TimezoneID = c.Browser.TimezoneID
	opts.Locale = c.Browser.Locale
	opts.ProxyServer = c.Browser.ProxyServer
	if c.Crawler.UserAgent != "" {
		opts.UserAgent = c.Crawler.UserAgent
	}
	return opts
}

func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.DBName,
		MaxConns: int32(c.Database.MaxConns),
	}
}

// CrawlerOptions assembles the registry options from the crawler settings.
// Strategies must already be validated.
func (c *Config) CrawlerOptions(sets crawler.SelectorSets) crawler.BuildOptions {
	strategies := make(map[platform.Platform]crawler.Strategy, len(c.Crawler.Strategies))
	for p, s := range c.Crawler.Strategies {
		strategy, _ := crawler.ParseStrategy(s)
		strategies[p] = strategy
	}

	musinsa := crawler.DefaultMusinsaConfig()
	musinsa.PageDelay = c.Crawler.PageDelay
	musinsa.Timeout = c.Crawler.HTTPTimeout
	musinsa.UserAgent = c.Crawler.UserAgent

	twentyNine := crawler.DefaultTwentyNineConfig()
	twentyNine.PageDelay = c.Crawler.PageDelay
	twentyNine.Timeout = c.Crawler.HTTPTimeout
	twentyNine.UserAgent = c.Crawler.UserAgent

	zigzag := crawler.DefaultZigzagConfig()
	zigzag.PageDelay = c.Crawler.PageDelay
	zigzag.Timeout = c.Crawler.HTTPTimeout
	zigzag.UserAgent = c.Crawler.UserAgent

	return crawler.BuildOptions{
		Strategies:      strategies,
		BrowserFallback: c.Crawler.BrowserFallback,
		Selectors:       sets,
		Browser:         c.BrowserOptions(),
		Musinsa:         musinsa,
		TwentyNine:      twentyNine,
		Zigzag:          zigzag,
		Harvest:         crawler.DefaultHarvestOptions(),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

package crawler

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/review-analyzer/internal/httpx"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/parser"
	"github.com/maltedev/review-analyzer/internal/platform"
)

type TwentyNineConfig struct {
	ReviewURL  string
	PageSize   int
	MaxReviews int
	PageDelay  time.Duration
	Timeout    time.Duration
	UserAgent  string
}

func DefaultTwentyNineConfig() TwentyNineConfig {
	return TwentyNineConfig{
		ReviewURL: "https://review-api.29cm.co.kr/api/v4/reviews",
		PageSize:  20,
		PageDelay: 300 * time.Millisecond,
		Timeout:   httpx.DefaultTimeout,
	}
}

// TwentyNineExtractor pages through the review API while the product page is
// fetched and parsed concurrently.
type TwentyNineExtractor struct {
	cfg    TwentyNineConfig
	client *httpx.Client
	parser parser.Parser
	logger *slog.Logger
}

func NewTwentyNineExtractor(cfg TwentyNineConfig, p parser.Parser, logger *slog.Logger) *TwentyNineExtractor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpx.DefaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwentyNineExtractor{
		cfg: cfg,
		client: httpx.NewClient(cfg.Timeout, map[string]string{
			"Accept":             "*/*",
			"User-Agent":         cfg.UserAgent,
			"sec-ch-ua-mobile":   "?0",
			"sec-ch-ua-platform": `"macOS"`,
			"sec-fetch-dest":     "empty",
			"sec-fetch-mode":     "cors",
			"sec-fetch-site":     "same-site",
		}),
		parser: p,
		logger: logger.With("component", "29cm"),
	}
}

func (e *TwentyNineExtractor) Platform() platform.Platform {
	return platform.TwentyNineCM
}

type twentyNineReviewPage struct {
	Data struct {
		Results []struct {
			Contents string `json:"contents"`
		} `json:"results"`
		Next *string `json:"next"`
	} `json:"data"`
}

func (e *TwentyNineExtractor) Extract(ctx context.Context, rawURL string) (*models.CrawlResult, error) {
	result := models.NewCrawlResult(rawURL)

	itemID := productIDFromPath(rawURL)
	if itemID == "" {
		e.logger.Warn("product id not found in url", "url", rawURL)
		return result, nil
	}

	var (
		product models.ProductDescriptor
		reviews []string
	)

	// Neither branch fails the crawl; the group only joins them.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		product = e.fetchProduct(rawURL)
		return nil
	})
	g.Go(func() error {
		reviews = e.fetchReviews(gctx, itemID)
		return nil
	})
	_ = g.Wait()

	result.Product = product
	for _, text := range reviews {
		result.AddReview(text)
	}
	capReviews(result, e.cfg.MaxReviews)

	e.logger.Info("reviews collected", "item_id", itemID, "count", len(result.Reviews))
	return result, nil
}

func (e *TwentyNineExtractor) fetchReviews(ctx context.Context, itemID string) []string {
	pacer := httpx.NewPacer(e.cfg.PageDelay)
	reviews := make([]string, 0)

	for page := 0; ; page++ {
		pacer.Wait()

		var resp twentyNineReviewPage
		err := e.client.GetJSON(ctx, e.cfg.ReviewURL, map[string]string{
			"itemId": itemID,
			"page":   strconv.Itoa(page),
			"size":   strconv.Itoa(e.cfg.PageSize),
			"sort":   "best",
		}, nil, &resp)
		if err != nil {
			e.logger.Warn("review page fetch failed, keeping partial results",
				"item_id", itemID, "page", page, "reviews", len(reviews), "error", err)
			return reviews
		}

		if len(resp.Data.Results) == 0 {
			return reviews
		}
		for _, r := range resp.Data.Results {
			reviews = append(reviews, r.Contents)
		}

		if resp.Data.Next == nil {
			return reviews
		}
		if e.cfg.MaxReviews > 0 && len(reviews) >= e.cfg.MaxReviews {
			return reviews
		}
	}
}

// fetchProduct loads the product page with colly and parses the descriptor.
// Failures leave a descriptor that only carries the source URL.
func (e *TwentyNineExtractor) fetchProduct(rawURL string) models.ProductDescriptor {
	product := models.NewProduct(rawURL)

	c := colly.NewCollector(
		colly.UserAgent(e.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	if e.cfg.Timeout > 0 {
		c.SetRequestTimeout(e.cfg.Timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	})

	c.OnResponse(func(r *colly.Response) {
		parsed, err := e.parser.ParseProduct(string(r.Body), rawURL)
		if err != nil {
			e.logger.Warn("failed to parse product page", "url", rawURL, "error", err)
			return
		}
		product = parsed
	})

	c.OnError(func(r *colly.Response, err error) {
		e.logger.Warn("product page fetch failed", "url", rawURL, "status", r.StatusCode, "error", err)
	})

	if err := c.Visit(rawURL); err != nil {
		e.logger.Warn("product page visit failed", "url", rawURL, "error", err)
	}
	c.Wait()

	return product
}

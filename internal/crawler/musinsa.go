package crawler

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/review-analyzer/internal/httpx"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
)

type MusinsaConfig struct {
	ReviewURL  string
	ImageHost  string
	PageSize   int
	MaxReviews int
	PageDelay  time.Duration
	Timeout    time.Duration
	UserAgent  string
}

func DefaultMusinsaConfig() MusinsaConfig {
	return MusinsaConfig{
		ReviewURL: "https://goods.musinsa.com/api2/review/v1/view/list",
		ImageHost: "https://image.msscdn.net",
		PageSize:  10,
		PageDelay: 300 * time.Millisecond,
		Timeout:   httpx.DefaultTimeout,
	}
}

type MusinsaExtractor struct {
	cfg    MusinsaConfig
	client *httpx.Client
	logger *slog.Logger
}

func NewMusinsaExtractor(cfg MusinsaConfig, logger *slog.Logger) *MusinsaExtractor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MusinsaExtractor{
		cfg:    cfg,
		client: httpx.NewClient(cfg.Timeout, userAgentHeader(cfg.UserAgent)),
		logger: logger.With("component", "musinsa"),
	}
}

func (e *MusinsaExtractor) Platform() platform.Platform {
	return platform.Musinsa
}

type musinsaReviewPage struct {
	Data struct {
		List []struct {
			Content string        `json:"content"`
			Goods   *musinsaGoods `json:"goods"`
		} `json:"list"`
		Page struct {
			Page       int `json:"page"`
			TotalPages int `json:"totalPages"`
		} `json:"page"`
	} `json:"data"`
}

type musinsaGoods struct {
	GoodsName      string `json:"goodsName"`
	BrandName      string `json:"brandName"`
	GoodsImageFile string `json:"goodsImageFile"`
}

func (e *MusinsaExtractor) Extract(ctx context.Context, rawURL string) (*models.CrawlResult, error) {
	result := models.NewCrawlResult(rawURL)

	goodsNo := productIDFromPath(rawURL)
	if goodsNo == "" {
		e.logger.Warn("product id not found in url", "url", rawURL)
		return result, nil
	}

	pacer := httpx.NewPacer(e.cfg.PageDelay)
	productCaptured := false

	for page := 0; ; page++ {
		pacer.Wait()

		var resp musinsaReviewPage
		err := e.client.GetJSON(ctx, e.cfg.ReviewURL, map[string]string{
			"page":              strconv.Itoa(page),
			"pageSize":          strconv.Itoa(e.cfg.PageSize),
			"goodsNo":           goodsNo,
			"sort":              "up_cnt_desc",
			"selectedSimilarNo": goodsNo,
			"myFilter":          "false",
			"hasPhoto":          "false",
			"isExperience":      "false",
		}, nil, &resp)
		if err != nil {
			e.logger.Warn("review page fetch failed, keeping partial results",
				"goods_no", goodsNo, "page", page, "reviews", len(result.Reviews), "error", err)
			break
		}

		items := resp.Data.List
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if !productCaptured && item.Goods != nil {
				result.Product = e.product(rawURL, item.Goods)
				productCaptured = true
			}
			result.AddReview(item.Content)
		}

		if capReached(result, e.cfg.MaxReviews) || page >= resp.Data.Page.TotalPages-1 {
			break
		}
	}

	capReviews(result, e.cfg.MaxReviews)
	e.logger.Info("reviews collected", "goods_no", goodsNo, "count", len(result.Reviews))
	return result, nil
}

func (e *MusinsaExtractor) product(sourceURL string, g *musinsaGoods) models.ProductDescriptor {
	p := models.NewProduct(sourceURL)
	p.Name = g.GoodsName
	p.Brand = g.BrandName
	p.ImageURL = e.imageURL(g.GoodsImageFile)
	p.Normalize()
	return p
}

// imageURL upgrades the list thumbnail to the 500px rendition.
func (e *MusinsaExtractor) imageURL(file string) string {
	if file == "" {
		return ""
	}
	file = strings.Replace(file, "_100.jpg", "_500.jpg", 1)
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") {
		return file
	}
	return strings.TrimSuffix(e.cfg.ImageHost, "/") + "/" + strings.TrimPrefix(file, "/")
}

func userAgentHeader(ua string) map[string]string {
	if ua == "" {
		return nil
	}
	return map[string]string{"User-Agent": ua}
}

func capReached(r *models.CrawlResult, limit int) bool {
	return limit > 0 && len(r.Reviews) >= limit
}

func capReviews(r *models.CrawlResult, limit int) {
	if limit > 0 && len(r.Reviews) > limit {
		r.Reviews = r.Reviews[:limit]
	}
}

package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/review-analyzer/internal/httpx"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
)

const zigzagReviewQuery = `query GetNormalReviewFeedList($product_id: ID!, $limit_count: Int, $skip_count: Int, $order: UxReviewListOrderType) {
  feed_list: ux_review_list(
    input: {product_id: $product_id, order: $order, pagination: {limit_count: $limit_count, skip_count: $skip_count}}
  ) {
    total_count
    item_list {
      id
      contents
      rating
      product_info {
        name
        image_url
      }
    }
  }
}`

type ZigzagConfig struct {
	GraphQLURL string
	PageSize   int
	MaxReviews int
	PageDelay  time.Duration
	Timeout    time.Duration
	UserAgent  string
}

func DefaultZigzagConfig() ZigzagConfig {
	return ZigzagConfig{
		GraphQLURL: "https://api.zigzag.kr/api/2/graphql/batch/GetNormalReviewFeedList",
		PageSize:   20,
		MaxReviews: 100,
		PageDelay:  300 * time.Millisecond,
		Timeout:    httpx.DefaultTimeout,
	}
}

// ZigzagExtractor reads the GraphQL review feed. Unlike the other API
// extractors it fails hard when the product id is missing or a page cannot be
// fetched, so callers can tell a broken crawl from a product without reviews.
type ZigzagExtractor struct {
	cfg    ZigzagConfig
	client *httpx.Client
	logger *slog.Logger
}

func NewZigzagExtractor(cfg ZigzagConfig, logger *slog.Logger) *ZigzagExtractor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ZigzagExtractor{
		cfg:    cfg,
		client: httpx.NewClient(cfg.Timeout, userAgentHeader(cfg.UserAgent)),
		logger: logger.With("component", "zigzag"),
	}
}

func (e *ZigzagExtractor) Platform() platform.Platform {
	return platform.Zigzag
}

type zigzagRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type zigzagResponse struct {
	Data *struct {
		FeedList *struct {
			TotalCount int `json:"total_count"`
			ItemList   []struct {
				Contents    string `json:"contents"`
				ProductInfo *struct {
					Name     string `json:"name"`
					ImageURL string `json:"image_url"`
				} `json:"product_info"`
			} `json:"item_list"`
		} `json:"feed_list"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *ZigzagExtractor) Extract(ctx context.Context, rawURL string) (*models.CrawlResult, error) {
	productID := trailingID(rawURL)
	if productID == "" {
		return nil, fmt.Errorf("%w: zigzag product id not found in %s", ErrExtractionFailed, rawURL)
	}

	result := models.NewCrawlResult(rawURL)
	pacer := httpx.NewPacer(e.cfg.PageDelay)
	productCaptured := false

	for skip := 0; ; skip += e.cfg.PageSize {
		pacer.Wait()

		var batch []zigzagResponse
		err := e.client.PostJSON(ctx, e.cfg.GraphQLURL, []zigzagRequest{{
			OperationName: "GetNormalReviewFeedList",
			Variables: map[string]any{
				"order":       "BEST_SCORE_DESC",
				"limit_count": e.cfg.PageSize,
				"product_id":  productID,
				"skip_count":  skip,
			},
			Query: zigzagReviewQuery,
		}}, map[string]string{"Accept": "*/*"}, &batch)
		if err != nil {
			e.logger.Error("review page fetch failed", "product_id", productID, "skip", skip, "error", err)
			return nil, fmt.Errorf("%w: zigzag review feed: %v", ErrExtractionFailed, err)
		}

		if len(batch) == 0 {
			break
		}
		if errs := batch[0].Errors; len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, ge := range errs {
				msgs = append(msgs, ge.Message)
			}
			return nil, fmt.Errorf("%w: zigzag graphql: %s", ErrExtractionFailed, strings.Join(msgs, "; "))
		}
		if batch[0].Data == nil || batch[0].Data.FeedList == nil {
			break
		}

		items := batch[0].Data.FeedList.ItemList
		for _, item := range items {
			if !productCaptured && item.ProductInfo != nil {
				result.Product.Name = item.ProductInfo.Name
				result.Product.ImageURL = item.ProductInfo.ImageURL
				result.Product.Normalize()
				productCaptured = true
			}
			result.AddReview(item.Contents)
		}

		if len(items) < e.cfg.PageSize || capReached(result, e.cfg.MaxReviews) {
			break
		}
	}

	capReviews(result, e.cfg.MaxReviews)
	e.logger.Info("reviews collected", "product_id", productID, "count", len(result.Reviews))
	return result, nil
}

// Package crawler turns a product URL into a CrawlResult. Every supported
// platform has one Extractor behind a common interface; the Registry maps the
// detected platform to the configured strategy.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
)

// ErrExtractionFailed marks a crawl that failed hard instead of degrading to
// an empty result.
var ErrExtractionFailed = errors.New("extraction failed")

type Extractor interface {
	Platform() platform.Platform
	// Extract returns a well-formed result even when nothing was found. An
	// error is returned only by strategies that cannot degrade.
	Extract(ctx context.Context, url string) (*models.CrawlResult, error)
}

type Strategy string

const (
	StrategyAPI     Strategy = "api"
	StrategyBrowser Strategy = "browser"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAPI, StrategyBrowser:
		return Strategy(s), nil
	case "":
		return StrategyAPI, nil
	default:
		return "", fmt.Errorf("unknown crawl strategy %q", s)
	}
}

var (
	productsPathPattern = regexp.MustCompile(`/products/(\d+)`)
	trailingIDPattern   = regexp.MustCompile(`/(\d+)/?$`)
)

// productIDFromPath extracts the numeric id following /products/.
func productIDFromPath(rawURL string) string {
	if m := productsPathPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// trailingID extracts a numeric last path segment, ignoring query and fragment.
func trailingID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if m := trailingIDPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return ""
}

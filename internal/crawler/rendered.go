package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/review-analyzer/internal/browser"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/parser"
	"github.com/maltedev/review-analyzer/internal/platform"
)

type RenderedOptions struct {
	Browser           *browser.Options
	Harvest           HarvestOptions
	NavigationRetries int
	TitleTimeout      time.Duration
	ReviewTimeout     time.Duration
	ViewAllTimeout    time.Duration
}

type launchFunc func(opts *browser.Options, logger *slog.Logger) (*browser.Browser, error)

// RenderedExtractor drives a headless browser through a product page using
// the platform's SelectorSet. Every crawl gets its own browser, closed before
// Extract returns.
type RenderedExtractor struct {
	plat      platform.Platform
	selectors SelectorSet
	parser    *parser.HTMLParser
	opts      RenderedOptions
	launch    launchFunc
	logger    *slog.Logger
}

func NewRenderedExtractor(p platform.Platform, selectors SelectorSet, opts RenderedOptions, logger *slog.Logger) *RenderedExtractor {
	if opts.Browser == nil {
		opts.Browser = browser.DefaultOptions()
	}
	if opts.NavigationRetries <= 0 {
		opts.NavigationRetries = 2
	}
	if opts.TitleTimeout <= 0 {
		opts.TitleTimeout = 20 * time.Second
	}
	if opts.ReviewTimeout <= 0 {
		opts.ReviewTimeout = 30 * time.Second
	}
	if opts.ViewAllTimeout <= 0 {
		opts.ViewAllTimeout = 5 * time.Second
	}
	if selectors.ScrollMode != "" {
		opts.Harvest.Mode = selectors.ScrollMode
	}
	if selectors.Reviews.MinLength > 0 {
		opts.Harvest.MinLength = selectors.Reviews.MinLength
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RenderedExtractor{
		plat:      p,
		selectors: selectors,
		parser:    selectors.Parser(),
		opts:      opts,
		launch:    browser.New,
		logger:    logger.With("component", "rendered", "platform", string(p)),
	}
}

func (e *RenderedExtractor) Platform() platform.Platform {
	return e.plat
}

// Extract never returns an error. Failures at any step produce an empty
// result whose product name describes what went wrong.
func (e *RenderedExtractor) Extract(ctx context.Context, rawURL string) (result *models.CrawlResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rendered extraction panicked", "url", rawURL, "panic", r)
			result = failedResult(rawURL, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	result, crawlErr := e.crawl(ctx, rawURL)
	if crawlErr != nil {
		e.logger.Error("rendered extraction failed", "url", rawURL, "error", crawlErr)
		return failedResult(rawURL, crawlErr), nil
	}
	return result, nil
}

func failedResult(rawURL string, err error) *models.CrawlResult {
	result := models.NewCrawlResult(rawURL)
	result.Product.Name = "extraction failed: " + err.Error()
	return result
}

func (e *RenderedExtractor) crawl(ctx context.Context, rawURL string) (*models.CrawlResult, error) {
	b, err := e.launch(e.opts.Browser, e.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := b.Close(); err != nil {
			e.logger.Warn("failed to close browser", "error", err)
		}
	}()

	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}

	if err := b.NavigateWithRetry(page, rawURL, e.opts.NavigationRetries); err != nil {
		return nil, fmt.Errorf("navigation: %w", err)
	}
	if err := waitForAnchor(page, e.selectors.Anchors.Title, e.opts.TitleTimeout); err != nil {
		return nil, fmt.Errorf("title anchor %q: %w", e.selectors.Anchors.Title, err)
	}
	if err := waitForAnchor(page, e.selectors.Anchors.ReviewItem, e.opts.ReviewTimeout); err != nil {
		return nil, fmt.Errorf("review anchor %q: %w", e.selectors.Anchors.ReviewItem, err)
	}

	result := models.NewCrawlResult(rawURL)

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	if product, err := e.parser.ParseProduct(html, rawURL); err != nil {
		e.logger.Warn("failed to parse product fields", "error", err)
	} else {
		result.Product = product
	}

	if err := b.HumanizeInteraction(page); err != nil {
		e.logger.Debug("humanized interaction failed", "error", err)
	}

	var reviews []string
	if target, switched := e.openAllReviews(page, b.Context()); switched {
		if err := waitForAnchor(target, e.selectors.Anchors.ReviewItem, e.opts.ReviewTimeout); err != nil {
			e.logger.Warn("review anchor missing after switching view", "error", err)
		}
		harvester := NewHarvester(e.opts.Harvest, e.logger)
		reviews = harvester.Harvest(ctx, &pageSurface{page: target, parser: e.parser})
	} else {
		html, err := page.Content()
		if err != nil {
			return nil, fmt.Errorf("failed to read page content: %w", err)
		}
		if reviews, err = e.parser.ExtractReviews(html); err != nil {
			return nil, fmt.Errorf("failed to extract reviews: %w", err)
		}
	}

	for _, text := range reviews {
		result.AddReview(text)
	}

	e.logger.Info("reviews collected", "url", rawURL, "count", len(result.Reviews))
	return result, nil
}

// openAllReviews clicks the "view all reviews" control, matched by its
// visible text. It returns the page to harvest and whether the click opened a
// new tab or navigated the current one.
func (e *RenderedExtractor) openAllReviews(page playwright.Page, bctx playwright.BrowserContext) (playwright.Page, bool) {
	control, text, ok := e.findViewAll(page)
	if !ok {
		e.logger.Debug("no view-all control found")
		return page, false
	}

	before := page.URL()
	newPage, err := bctx.ExpectPage(func() error {
		return control.Click()
	}, playwright.BrowserContextExpectPageOptions{
		Timeout: playwright.Float(float64(e.opts.ViewAllTimeout.Milliseconds())),
	})
	if err == nil {
		e.logger.Debug("view-all opened a new tab", "text", text, "url", newPage.URL())
		if err := newPage.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateDomcontentloaded,
		}); err != nil {
			e.logger.Warn("new tab did not finish loading", "error", err)
		}
		return newPage, true
	}

	if page.URL() != before {
		e.logger.Debug("view-all navigated in place", "text", text, "url", page.URL())
		if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateDomcontentloaded,
		}); err != nil {
			e.logger.Warn("page did not finish loading", "error", err)
		}
		return page, true
	}

	return page, false
}

func (e *RenderedExtractor) findViewAll(page playwright.Page) (playwright.Locator, string, bool) {
	for _, text := range e.selectors.ViewAllTexts {
		loc := page.GetByText(text).First()
		visible, err := loc.IsVisible()
		if err == nil && visible {
			return loc, text, true
		}
	}
	return nil, "", false
}

func waitForAnchor(page playwright.Page, selector string, timeout time.Duration) error {
	return page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

// pageSurface adapts a playwright page to the harvester.
type pageSurface struct {
	page   playwright.Page
	parser *parser.HTMLParser
}

func (s *pageSurface) VisibleReviews() ([]string, error) {
	html, err := s.page.Content()
	if err != nil {
		return nil, err
	}
	return s.parser.ExtractReviews(html)
}

func (s *pageSurface) ScrollToBottom() error {
	_, err := s.page.Evaluate(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (s *pageSurface) PressKey(key string) error {
	return s.page.Keyboard().Press(key)
}

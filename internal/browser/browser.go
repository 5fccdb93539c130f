package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrBlocked is returned when a page turns out to be an anti-bot or access
// denied interstitial instead of the requested content.
var ErrBlocked = errors.New("page blocked by bot protection")

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
	// BlockedResources lists playwright resource types that are aborted
	// before they hit the network.
	BlockedResources []string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
		ViewportWidth:  1366,
		ViewportHeight: 900,
		AcceptLanguage: "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		TimezoneID:     "Asia/Seoul",
		Locale:         "ko-KR",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
		BlockedResources: []string{"image", "stylesheet", "font", "media"},
	}
}

// New starts playwright, launches Chromium and opens one isolated context.
// Callers own the returned Browser and must Close it.
func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	b := &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}

	if len(opts.BlockedResources) > 0 {
		if err := b.blockResources(opts.BlockedResources); err != nil {
			_ = b.Close()
			return nil, err
		}
	}

	return b, nil
}

func (b *Browser) blockResources(types []string) error {
	blocked := make(map[string]struct{}, len(types))
	for _, t := range types {
		blocked[t] = struct{}{}
	}

	err := b.context.Route("**/*", func(route playwright.Route) {
		if _, ok := blocked[route.Request().ResourceType()]; ok {
			_ = route.Abort()
			return
		}
		_ = route.Continue()
	})
	if err != nil {
		return fmt.Errorf("failed to install resource filter: %w", err)
	}
	return nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Context() playwright.BrowserContext {
	return b.context
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

// NavigateWithRetry loads url until DOM content is ready and the page is not
// a bot-check interstitial.
func (b *Browser) NavigateWithRetry(page playwright.Page, url string, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
		})
		if err != nil {
			lastErr = err
			b.logger.Error("navigation failed", "error", err, "attempt", i+1)
			continue
		}

		if err := b.CheckBlocked(page); err != nil {
			lastErr = err
			b.logger.Warn("blocked page detected", "url", url, "attempt", i+1)
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// blockedMarkers are fragments of common anti-bot and access denied pages.
var blockedMarkers = []string{
	"Access Denied",
	"Attention Required! | Cloudflare",
	"cf-challenge",
	"g-recaptcha",
	"비정상적인 접근",
	"접근이 차단",
}

// CheckBlocked returns ErrBlocked when the current page looks like a bot
// check rather than the product page.
func (b *Browser) CheckBlocked(page playwright.Page) error {
	title, err := page.Title()
	if err != nil {
		return fmt.Errorf("failed to get page title: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return fmt.Errorf("failed to get page content: %w", err)
	}

	if marker, ok := IsBlockedPage(title, content); ok {
		b.logger.Debug("bot protection marker found", "title", title, "marker", marker)
		return fmt.Errorf("%w: %s", ErrBlocked, marker)
	}
	return nil
}

// IsBlockedPage reports the first blocked-page marker found in title or html.
func IsBlockedPage(title, html string) (string, bool) {
	for _, marker := range blockedMarkers {
		if strings.Contains(title, marker) || strings.Contains(html, marker) {
			return marker, true
		}
	}
	return "", false
}

// HumanizeInteraction moves the mouse and nudges the scroll position before
// the page is driven programmatically.
func (b *Browser) HumanizeInteraction(page playwright.Page) error {
	for i := 0; i < 3; i++ {
		x := float64(100 + i*200)
		y := float64(100 + i*150)
		if err := page.Mouse().Move(x, y); err != nil {
			return fmt.Errorf("failed to move mouse: %w", err)
		}
		time.Sleep(time.Millisecond * time.Duration(200+i*100))
	}

	if _, err := page.Evaluate(`window.scrollBy(0, Math.random() * 300)`); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

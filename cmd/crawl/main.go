package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/review-analyzer/internal/analyzer"
	"github.com/maltedev/review-analyzer/internal/config"
	"github.com/maltedev/review-analyzer/internal/crawler"
	"github.com/maltedev/review-analyzer/internal/logging"
	"github.com/maltedev/review-analyzer/internal/models"
	"github.com/maltedev/review-analyzer/internal/platform"
	"github.com/maltedev/review-analyzer/internal/review"
)

type output struct {
	Platform platform.Platform   `json:"platform"`
	Crawl    *models.CrawlResult `json:"crawl"`
	Summary  *models.Summary     `json:"data,omitempty"`
}

func main() {
	var (
		url      = flag.String("url", "", "Product URL to crawl")
		strategy = flag.String("strategy", "", "Override the strategy for every platform (api or browser)")
		analyze  = flag.Bool("analyze", false, "Send the reviews to the analysis model")
		headful  = flag.Bool("headful", false, "Show the browser window")
	)
	flag.Parse()

	if *url == "" {
		fmt.Println("Please provide a URL with -url")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays valid JSON.
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if *strategy != "" {
		if _, err := crawler.ParseStrategy(*strategy); err != nil {
			logger.Error("invalid strategy", "error", err)
			os.Exit(1)
		}
		for p := range cfg.Crawler.Strategies {
			cfg.Crawler.Strategies[p] = *strategy
		}
	}
	if *headful {
		cfg.Browser.Headless = false
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	sets, err := crawler.LoadSelectorSets(cfg.Crawler.SelectorsFile)
	if err != nil {
		logger.Error("failed to load selector sets", "error", err)
		os.Exit(1)
	}

	buildOpts := cfg.CrawlerOptions(sets)
	buildOpts.Logger = logger
	registry, err := crawler.Build(buildOpts)
	if err != nil {
		logger.Error("failed to build extractors", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := review.NewService(registry, analyzer.NewClient(cfg.AnalyzerConfig(), logger), nil, logger)

	out := output{}
	if *analyze {
		outcome, err := service.Analyze(ctx, *url)
		if err != nil {
			logger.Error("analysis failed", "error", err)
			os.Exit(1)
		}
		out.Platform = outcome.Platform
		out.Crawl = outcome.Crawl
		out.Summary = outcome.Summary
	} else {
		p, result, err := service.Crawl(ctx, *url)
		if err != nil {
			logger.Error("crawl failed", "error", err)
			os.Exit(1)
		}
		out.Platform = p
		out.Crawl = result
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		logger.Error("failed to write result", "error", err)
		os.Exit(1)
	}
}

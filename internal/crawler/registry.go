package crawler

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/maltedev/review-analyzer/internal/browser"
	"github.com/maltedev/review-analyzer/internal/platform"
)

type Registry struct {
	mu         sync.RWMutex
	extractors map[platform.Platform]Extractor
	fallbacks  map[platform.Platform]Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[platform.Platform]Extractor),
		fallbacks:  make(map[platform.Platform]Extractor),
	}
}

// Register makes e the primary extractor of its platform.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Platform()] = e
}

// RegisterFallback sets the extractor tried when the primary one comes back
// without reviews.
func (r *Registry) RegisterFallback(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[e.Platform()] = e
}

func (r *Registry) Get(p platform.Platform) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[p]
	return e, ok
}

func (r *Registry) Fallback(p platform.Platform) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.fallbacks[p]
	return e, ok
}

// BuildOptions carries everything needed to assemble the default registry.
type BuildOptions struct {
	Strategies      map[platform.Platform]Strategy
	BrowserFallback bool
	Selectors       SelectorSets
	Browser         *browser.Options
	Musinsa         MusinsaConfig
	TwentyNine      TwentyNineConfig
	Zigzag          ZigzagConfig
	Harvest         HarvestOptions
	Logger          *slog.Logger
}

// Build registers one extractor per supported platform according to the
// configured strategy, plus rendered-page fallbacks for API strategies when
// enabled.
func Build(opts BuildOptions) (*Registry, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	reg := NewRegistry()

	for _, p := range platform.Supported() {
		strategy := opts.Strategies[p]
		if strategy == "" {
			strategy = StrategyAPI
		}

		rendered, err := opts.rendered(p)
		if err != nil && (strategy == StrategyBrowser || opts.BrowserFallback) {
			return nil, err
		}

		switch strategy {
		case StrategyBrowser:
			reg.Register(rendered)
		case StrategyAPI:
			reg.Register(opts.api(p))
			if opts.BrowserFallback {
				reg.RegisterFallback(rendered)
			}
		default:
			return nil, fmt.Errorf("unknown crawl strategy %q for %s", strategy, p)
		}
	}

	return reg, nil
}

func (o BuildOptions) api(p platform.Platform) Extractor {
	switch p {
	case platform.Musinsa:
		return NewMusinsaExtractor(o.Musinsa, o.Logger)
	case platform.TwentyNineCM:
		sel := o.Selectors[platform.TwentyNineCM]
		return NewTwentyNineExtractor(o.TwentyNine, sel.Parser(), o.Logger)
	default:
		return NewZigzagExtractor(o.Zigzag, o.Logger)
	}
}

func (o BuildOptions) rendered(p platform.Platform) (*RenderedExtractor, error) {
	sel, ok := o.Selectors[p]
	if !ok {
		return nil, fmt.Errorf("no selector set configured for %s", p)
	}
	return NewRenderedExtractor(p, sel, RenderedOptions{
		Browser: o.Browser,
		Harvest: o.Harvest,
	}, o.Logger), nil
}

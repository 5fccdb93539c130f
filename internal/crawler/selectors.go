package crawler

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/review-analyzer/internal/parser"
	"github.com/maltedev/review-analyzer/internal/platform"
)

//go:embed selectors.yaml
var defaultSelectorsYAML []byte

// Anchors must both mount before a rendered page counts as loaded.
type Anchors struct {
	Title      string `yaml:"title"`
	ReviewItem string `yaml:"review_item"`
}

// SelectorSet is the DOM contract of one platform's product page. Keeping it
// in configuration turns a site redesign into a config update.
type SelectorSet struct {
	Product      parser.ProductSelectors `yaml:"product"`
	Anchors      Anchors                 `yaml:"anchors"`
	Reviews      parser.ReviewSelectors  `yaml:"reviews"`
	ViewAllTexts []string                `yaml:"view_all_texts"`
	ScrollMode   ScrollMode              `yaml:"scroll_mode"`
}

type SelectorSets map[platform.Platform]SelectorSet

func (s SelectorSet) Validate() error {
	if s.Anchors.Title == "" {
		return fmt.Errorf("anchors.title is required")
	}
	if s.Anchors.ReviewItem == "" {
		return fmt.Errorf("anchors.review_item is required")
	}
	if s.Reviews.Item == "" {
		return fmt.Errorf("reviews.item is required")
	}
	switch s.ScrollMode {
	case "", ScrollModeBottom, ScrollModeKeys:
	default:
		return fmt.Errorf("unknown scroll_mode %q", s.ScrollMode)
	}
	return nil
}

func (s SelectorSet) Parser() *parser.HTMLParser {
	return parser.NewHTMLParser(s.Product, s.Reviews)
}

// DefaultSelectorSets returns the embedded selector sets.
func DefaultSelectorSets() (SelectorSets, error) {
	return ParseSelectorSets(defaultSelectorsYAML)
}

func ParseSelectorSets(data []byte) (SelectorSets, error) {
	var raw map[string]SelectorSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse selector sets: %w", err)
	}

	sets := make(SelectorSets, len(raw))
	for key, set := range raw {
		p := platform.Parse(key)
		if p == platform.Unknown {
			return nil, fmt.Errorf("selector set for unsupported platform %q", key)
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("selector set %s: %w", key, err)
		}
		sets[p] = set
	}
	return sets, nil
}

// LoadSelectorSets returns the embedded defaults, overridden per platform by
// the YAML file at path when path is non-empty.
func LoadSelectorSets(path string) (SelectorSets, error) {
	sets, err := DefaultSelectorSets()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return sets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector file: %w", err)
	}
	overrides, err := ParseSelectorSets(data)
	if err != nil {
		return nil, err
	}
	for p, set := range overrides {
		sets[p] = set
	}
	return sets, nil
}

package parser

import (
	"github.com/maltedev/review-analyzer/internal/models"
)

type Parser interface {
	ParseProduct(html string, sourceURL string) (models.ProductDescriptor, error)
	ExtractReviews(html string) ([]string, error)
}

// ProductSelectors lists candidate selectors per field, tried in order. A
// selector ending in "@attr" reads that attribute instead of the text.
type ProductSelectors struct {
	Name        []string `yaml:"name"`
	Brand       []string `yaml:"brand"`
	Price       []string `yaml:"price"`
	Image       []string `yaml:"image"`
	TitleSuffix string   `yaml:"title_suffix"`
}

// ReviewSelectors locate review texts: every ReviewItem container, then the
// Text node inside it. An empty Text uses the container's own text.
type ReviewSelectors struct {
	Item      string `yaml:"item"`
	Text      string `yaml:"text"`
	MinLength int    `yaml:"min_length"`
}

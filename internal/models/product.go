package models

import (
	"strings"
)

// ProductDescriptor is the best-effort product metadata of a crawled page.
// Missing fields are empty strings, never absent.
type ProductDescriptor struct {
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Price     string `json:"price"`
	ImageURL  string `json:"image"`
	SourceURL string `json:"url"`
}

// CrawlResult is what an extractor hands to the analysis step.
type CrawlResult struct {
	Product ProductDescriptor `json:"product"`
	Reviews []string          `json:"reviews"`
}

// Summary is the normalized model output of a successful analysis.
type Summary struct {
	Pros           []string `json:"pros"`
	Cons           []string `json:"cons"`
	SentimentRatio string   `json:"ratio"`
	Summary        string   `json:"summary"`
	SizeNote       string   `json:"size"`
	Recommendation string   `json:"recommendation"`
	TotalReviews   int      `json:"total_reviews"`
}

const MaxSummaryItems = 5

func NewProduct(sourceURL string) ProductDescriptor {
	return ProductDescriptor{SourceURL: sourceURL}
}

func NewCrawlResult(sourceURL string) *CrawlResult {
	return &CrawlResult{
		Product: NewProduct(sourceURL),
		Reviews: make([]string, 0),
	}
}

// Normalize trims descriptor fields in place.
func (p *ProductDescriptor) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Brand = strings.TrimSpace(p.Brand)
	p.Price = strings.TrimSpace(p.Price)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
}

func (p *ProductDescriptor) IsEmpty() bool {
	return p.Name == "" && p.Brand == "" && p.Price == "" && p.ImageURL == ""
}

// AddReview appends text if it is non-empty after trimming and reports whether
// it was accepted.
func (r *CrawlResult) AddReview(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	r.Reviews = append(r.Reviews, text)
	return true
}

func (r *CrawlResult) Empty() bool {
	return len(r.Reviews) == 0
}

// Normalize caps the list fields and replaces nil slices so the JSON shape is
// stable for clients.
func (s *Summary) Normalize() {
	s.Pros = capItems(s.Pros)
	s.Cons = capItems(s.Cons)
}

func capItems(items []string) []string {
	out := make([]string, 0, MaxSummaryItems)
	for _, item := range items {
		if len(out) == MaxSummaryItems {
			break
		}
		out = append(out, item)
	}
	return out
}

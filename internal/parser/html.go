package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/review-analyzer/internal/models"
)

// DefaultMinReviewLength drops star-only and one-word reviews.
const DefaultMinReviewLength = 10

var whitespacePattern = regexp.MustCompile(`\s+`)

type HTMLParser struct {
	product ProductSelectors
	reviews ReviewSelectors
}

func NewHTMLParser(product ProductSelectors, reviews ReviewSelectors) *HTMLParser {
	if reviews.MinLength <= 0 {
		reviews.MinLength = DefaultMinReviewLength
	}
	return &HTMLParser{product: product, reviews: reviews}
}

func (p *HTMLParser) ParseProduct(html string, sourceURL string) (models.ProductDescriptor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.NewProduct(sourceURL), fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.ParseProductDocument(doc, sourceURL), nil
}

// ParseProductDocument never fails: a field whose selectors all miss stays "".
func (p *HTMLParser) ParseProductDocument(doc *goquery.Document, sourceURL string) models.ProductDescriptor {
	product := models.NewProduct(sourceURL)

	product.Name = firstMatch(doc, p.product.Name)
	if product.Name == "" {
		product.Name = p.titleFallback(doc)
	}
	product.Brand = firstMatch(doc, p.product.Brand)
	product.Price = firstMatch(doc, p.product.Price)
	product.ImageURL = firstMatch(doc, p.product.Image)

	product.Normalize()
	return product
}

// titleFallback derives the product name from <title>, minus the shop suffix.
func (p *HTMLParser) titleFallback(doc *goquery.Document) string {
	title := cleanText(doc.Find("title").First().Text())
	if p.product.TitleSuffix != "" {
		title = strings.TrimSuffix(title, strings.TrimSpace(p.product.TitleSuffix))
	}
	return strings.TrimSpace(title)
}

func (p *HTMLParser) ExtractReviews(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.ExtractReviewsDocument(doc), nil
}

// ExtractReviewsDocument returns review texts in document order, trimmed and
// longer than the minimum length. Duplicates are kept.
func (p *HTMLParser) ExtractReviewsDocument(doc *goquery.Document) []string {
	reviews := make([]string, 0)
	if p.reviews.Item == "" {
		return reviews
	}

	doc.Find(p.reviews.Item).Each(func(_ int, item *goquery.Selection) {
		node := item
		if p.reviews.Text != "" {
			node = item.Find(p.reviews.Text).First()
			if node.Length() == 0 {
				return
			}
		}
		text := strings.TrimSpace(node.Text())
		if utf8.RuneCountInString(text) > p.reviews.MinLength {
			reviews = append(reviews, text)
		}
	})

	return reviews
}

func firstMatch(doc *goquery.Document, selectors []string) string {
	for _, raw := range selectors {
		selector, attr := splitAttr(raw)
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		var value string
		if attr != "" {
			value, _ = sel.Attr(attr)
		} else {
			value = sel.Text()
		}
		if value = cleanText(value); value != "" {
			return value
		}
	}
	return ""
}

func splitAttr(selector string) (string, string) {
	idx := strings.LastIndex(selector, "@")
	if idx <= 0 || strings.ContainsAny(selector[idx:], " ]") {
		return selector, ""
	}
	return selector[:idx], selector[idx+1:]
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

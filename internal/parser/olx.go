package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/models"
)

// blockMatcher locates candidate listing blocks in a document.
type blockMatcher struct {
	name  string
	match func(doc *goquery.Document) *goquery.Selection
}

func selectorMatcher(selector string) blockMatcher {
	return blockMatcher{
		name: selector,
		match: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find(selector)
		},
	}
}

// classPatternMatcher matches tag elements having at least one class name
// that contains pattern.
func classPatternMatcher(tag string, pattern *regexp.Regexp) blockMatcher {
	return blockMatcher{
		name: fmt.Sprintf("%s.class~/%s/", tag, pattern),
		match: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find(tag + "[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
				class, _ := s.Attr("class")
				for _, name := range strings.Fields(class) {
					if pattern.MatchString(name) {
						return true
					}
				}
				return false
			})
		},
	}
}

var (
	titleSelectors = []string{
		"[data-aut-id='itemTitle']",
		"span[class*='title']",
		"h2",
		".title",
		"[class*='title']",
	}
	priceSelectors = []string{
		"[data-aut-id='itemPrice']",
		"span[class*='price']",
		".price",
		"[class*='price']",
	}
	locationSelectors = []string{
		"[data-aut-id='item-location']",
		"span[class*='location']",
		".location",
		"[class*='location']",
	}
	dateSelectors = []string{
		"[data-aut-id='itemCreationDate']",
		"span[class*='date']",
		".date",
		"[class*='date']",
		"[class*='time']",
	}
)

type OlxParser struct {
	baseURL       string
	blockMatchers []blockMatcher
}

// NewOlxParser returns a parser resolving listing links against baseURL
// (for example https://www.olx.in). The parser holds no per-call state.
func NewOlxParser(baseURL string) *OlxParser {
	return &OlxParser{
		baseURL: strings.TrimRight(baseURL, "/"),
		blockMatchers: []blockMatcher{
			selectorMatcher("[data-aut-id='itemBox']"),
			classPatternMatcher("li", regexp.MustCompile(`_.*item.*`)),
			selectorMatcher(".EIR5N"),
			selectorMatcher("div[class*='listing']"),
			selectorMatcher("div[class*='item']"),
		},
	}
}

func (p *OlxParser) Extract(content string, format Format) ([]models.Listing, error) {
	switch format {
	case FormatHTML:
		return p.ParseListings(content)
	case FormatJSON:
		return p.ParseAPIResponse([]byte(content))
	default:
		return nil, apperrors.Parse(fmt.Sprintf("unsupported content format %d", format), nil)
	}
}

// ParseListings extracts listings from a search result page. A page without
// any recognizable listing block yields no listings and a Parse or Blocked
// error describing why.
func (p *OlxParser) ParseListings(html string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.Parse("failed to parse HTML", err)
	}

	blocks := p.segment(doc)
	if blocks == nil {
		if signal := DetectBlock(html); signal != BlockNone {
			return nil, apperrors.Blocked(signal.Description(), nil)
		}
		return nil, apperrors.Parse("no listings found using any selector method", nil)
	}

	listings := make([]models.Listing, 0, blocks.Length())
	blocks.Each(func(_ int, block *goquery.Selection) {
		listings = append(listings, p.extractListing(block))
	})

	return models.Retain(listings), nil
}

func (p *OlxParser) segment(doc *goquery.Document) *goquery.Selection {
	for _, m := range p.blockMatchers {
		if blocks := m.match(doc); blocks.Length() > 0 {
			return blocks
		}
	}
	return nil
}

func (p *OlxParser) extractListing(block *goquery.Selection) models.Listing {
	listing := models.NewListing()
	listing.Title = firstText(block, titleSelectors)
	listing.Price = firstText(block, priceSelectors)
	listing.Location = firstText(block, locationSelectors)
	listing.DatePosted = firstText(block, dateSelectors)
	listing.URL = p.extractURL(block)
	return listing
}

// extractURL reads the href of the block's first anchor. An anchor without
// an href yields N/A even when a later anchor has one.
func (p *OlxParser) extractURL(block *goquery.Selection) string {
	link := block.Filter("a")
	if link.Length() == 0 {
		link = block.Find("a").First()
	}

	href, ok := link.Attr("href")
	if !ok {
		return models.NotAvailable
	}
	return models.OrNotAvailable(ResolveURL(p.baseURL, href))
}

// firstText returns the normalized text of the first selector whose first
// match has non-empty text.
func firstText(block *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := normalizeText(block.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return models.NotAvailable
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

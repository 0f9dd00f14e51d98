// Package parser implements crawler.PageParser with goquery selectors.
package parser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Selectors names the structural classes of the catalog markup.
type Selectors struct {
	// Entry matches item links on a category listing page.
	Entry string `mapstructure:"entry"`
	// Listing matches follow-on links on item and intermediate pages.
	Listing string `mapstructure:"listing"`
	// Download matches terminal resource links.
	Download string `mapstructure:"download"`
	// Title matches title candidates; TitleIndex picks one of them.
	Title      string `mapstructure:"title"`
	TitleIndex int    `mapstructure:"title_index"`
}

// DefaultSelectors matches the catalog markup the crawler was built for.
func DefaultSelectors() Selectors {
	return Selectors{
		Entry:      ".f>a",
		Listing:    ".f a",
		Download:   ".dlink a",
		Title:      ".line",
		TitleIndex: 1,
	}
}

// Parser extracts ParsedPage values from HTML documents.
type Parser struct {
	selectors Selectors
	baseURL   string
}

// New builds a Parser. baseURL is used when a document carries no URL of its own.
func New(selectors Selectors, baseURL string) *Parser {
	return &Parser{selectors: selectors, baseURL: baseURL}
}

// Parse never fails: malformed documents yield an Unknown title and no links.
func (p *Parser) Parse(doc crawler.Document) crawler.ParsedPage {
	page := crawler.ParsedPage{Title: crawler.UnknownTitle}
	if len(doc.Body) == 0 {
		return page
	}
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return page
	}
	base := doc.URL
	if base == "" {
		base = p.baseURL
	}

	if title := p.title(dom); title != "" {
		page.Title = title
	}
	page.EntryLinks = p.links(dom, p.selectors.Entry, base)
	page.ListingLinks = p.links(dom, p.selectors.Listing, base)
	page.ResourceLinks = p.links(dom, p.selectors.Download, base)
	return page
}

func (p *Parser) title(dom *goquery.Document) string {
	if p.selectors.Title == "" {
		return ""
	}
	candidates := dom.Find(p.selectors.Title)
	if candidates.Length() <= p.selectors.TitleIndex {
		return ""
	}
	return strings.TrimSpace(candidates.Eq(p.selectors.TitleIndex).Text())
}

// links returns resolved hrefs in document order. Duplicates are kept; callers
// that need set semantics dedupe themselves.
func (p *Parser) links(dom *goquery.Document, selector, base string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	dom.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if link := crawler.ResolveReference(base, href); link != "" {
			out = append(out, link)
		}
	})
	return out
}

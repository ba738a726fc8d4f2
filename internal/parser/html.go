package parser

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// pageMarkup is what the HTML-based backends read off one document.
type pageMarkup struct {
	Title   string
	Heading string
	Hrefs   []string
}

// parseMarkup extracts the title, first h1 and all listing hrefs from an
// HTML document.
func parseMarkup(r io.Reader) (pageMarkup, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return pageMarkup{}, fmt.Errorf("failed to parse document: %w", err)
	}

	m := pageMarkup{
		Title:   doc.Find("title").First().Text(),
		Heading: doc.Find("h1").First().Text(),
	}
	doc.Find(listingSelector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			m.Hrefs = append(m.Hrefs, href)
		}
	})
	return m, nil
}

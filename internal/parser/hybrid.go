package parser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/kilebles/ozon-parser/internal/app"
)

// Hybrid drives the page with chromedp like the primary backend but reads
// listings from full outerHTML snapshots parsed with goquery, which keeps
// the extraction logic out of injected JavaScript.
type Hybrid struct {
	*Chrome
}

func NewHybrid(cfg *app.Config, solver Solver) (*Hybrid, error) {
	chrome, err := NewChrome(cfg, solver)
	if err != nil {
		return nil, err
	}
	h := &Hybrid{Chrome: chrome}
	chrome.collect = h.collectFromSnapshot
	return h, nil
}

func (h *Hybrid) collectFromSnapshot() ([]string, error) {
	var html string
	if err := h.runWithTimeout(chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	markup, err := parseMarkup(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return markup.Hrefs, nil
}

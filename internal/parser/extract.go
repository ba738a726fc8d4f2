package parser

import (
	"strings"
)

// captchaKeywords in a page title mark a bot-challenge interstitial.
var captchaKeywords = []string{
	"бот", "robot", "bot", "captcha", "подтверд", "confirm", "antibot", "challenge",
}

// IsChallengeTitle reports whether a page title belongs to a captcha page.
func IsChallengeTitle(title string) bool {
	title = strings.ToLower(title)
	for _, kw := range captchaKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// IsBlockedHeading reports whether an h1 text belongs to the access
// restriction page.
func IsBlockedHeading(heading string) bool {
	return strings.Contains(strings.ToLower(heading), "доступ ограничен")
}

// ExtractProductID pulls the numeric product ID out of a listing href.
// Ozon product links look like /product/some-slug-123456789/?asb=...;
// the ID is the digit run after the last dash of the slug. Review and
// question links under /product/ are not listings.
func ExtractProductID(href string) (string, bool) {
	idx := strings.Index(href, "/product/")
	if idx < 0 {
		return "", false
	}
	if strings.Contains(href, "/reviews") || strings.Contains(href, "/questions") {
		return "", false
	}
	path := href[idx+len("/product/"):]
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	path = strings.TrimSuffix(path, "/")
	// A slug without dashes is a bare ID.
	id := path
	if dash := strings.LastIndexByte(path, '-'); dash >= 0 {
		id = path[dash+1:]
	}
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}

// scan tracks position across successive batches of extracted hrefs.
// Positions are 1-based and count distinct products only.
type scan struct {
	target   string
	limit    int
	seen     map[string]struct{}
	position int
}

func newScan(target string, limit int) *scan {
	return &scan{target: target, limit: limit, seen: make(map[string]struct{})}
}

// advance feeds one batch of hrefs in DOM order. It returns (position, true)
// on a match. fresh reports how many previously unseen products the batch
// contributed, which drives the empty-scroll counter.
func (s *scan) advance(hrefs []string) (pos int, found bool, fresh int) {
	for _, href := range hrefs {
		id, ok := ExtractProductID(href)
		if !ok {
			continue
		}
		if _, dup := s.seen[id]; dup {
			continue
		}
		s.seen[id] = struct{}{}
		s.position++
		fresh++
		if id == s.target {
			return s.position, true, fresh
		}
		if s.position >= s.limit {
			return 0, false, fresh
		}
	}
	return 0, false, fresh
}

// exhausted reports whether the scan hit its position limit.
func (s *scan) exhausted() bool {
	return s.position >= s.limit
}

// outcomeFor maps a finished, matchless scan to its sentinel.
func (s *scan) outcomeFor() Outcome {
	if s.exhausted() {
		return Outcome{Status: ExceedsLimit}
	}
	if s.position == 0 {
		return Outcome{Status: NotFound}
	}
	// Results ended before the limit: the article is simply not ranked
	// within what the site serves, report it the same as over-limit.
	return Outcome{Status: ExceedsLimit}
}

// Package parser resolves the rank of a product in Ozon search results.
// Three interchangeable backends exist: a full chromedp browser session,
// a static HTTP client, and a hybrid of the two.
package parser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBlocked means the site served its access-restriction page and
	// refresh attempts did not clear it.
	ErrBlocked = errors.New("access restricted by anti-bot protection")
	// ErrChallengeTimeout means a captcha page stayed unsolved for the
	// whole challenge wait window.
	ErrChallengeTimeout = errors.New("challenge page not solved within wait window")
	// ErrPageLoad covers navigation timeouts and pages without results markup.
	ErrPageLoad = errors.New("search page failed to load")
)

// Status classifies a finished scan.
type Status int

const (
	// Found: the article appeared within the scan limit.
	Found Status = iota
	// NotFound: the result list ended (or was empty) before the limit.
	NotFound
	// ExceedsLimit: the scan limit was exhausted without a match.
	ExceedsLimit
)

// Outcome is the result of one position scan.
type Outcome struct {
	Status   Status
	Position int // 1-based, meaningful only when Status == Found
}

func (o Outcome) String() string {
	switch o.Status {
	case Found:
		return fmt.Sprintf("found at %d", o.Position)
	case NotFound:
		return "not found"
	default:
		return "exceeds scan limit"
	}
}

// Backend drives one search session. Implementations are not safe for
// concurrent use: one session is shared sequentially across tasks to keep
// the automation signature of a single shopper.
type Backend interface {
	// FindPosition scans search results for query until article is seen
	// or the position limit is reached.
	FindPosition(ctx context.Context, query, article string) (Outcome, error)
	// Warmup visits the homepage once before the first search.
	Warmup(ctx context.Context) error
	Close() error
}

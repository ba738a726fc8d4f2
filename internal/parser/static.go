package parser

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/kilebles/ozon-parser/internal/app"
)

// resultsPerPage is the usual size of one server-rendered results page,
// used to bound pagination against the position limit.
const resultsPerPage = 36

// Static is the no-browser backend: plain paginated GETs parsed with
// goquery. It cannot sit through a JS challenge, so it only waits and
// re-fetches when it hits one.
type Static struct {
	cfg           *app.Config
	client        *resty.Client
	challengePoll time.Duration
	pageDelay     func() time.Duration
}

func NewStatic(cfg *app.Config) *Static {
	client := resty.New().
		SetTimeout(cfg.BrowserTimeout).
		SetHeader("User-Agent",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36").
		SetHeader("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")
	if cfg.ProxyURL != "" {
		client.SetProxy(cfg.ProxyURL)
	}
	return &Static{
		cfg:           cfg,
		client:        client,
		challengePoll: 5 * time.Second,
		pageDelay: func() time.Duration {
			return time.Duration(1000+rand.Intn(2000)) * time.Millisecond
		},
	}
}

func (s *Static) Warmup(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get(s.cfg.BaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("Warmup request failed")
		return nil
	}
	log.Debug().Int("status", resp.StatusCode()).Msg("Warmup done")
	return nil
}

func (s *Static) FindPosition(ctx context.Context, query, article string) (Outcome, error) {
	log.Info().Str("query", query).Str("article", article).Msg("Search")

	sc := newScan(article, s.cfg.MaxPosition)
	maxPages := s.cfg.MaxPosition/resultsPerPage + 1

	for page := 1; page <= maxPages && !sc.exhausted(); page++ {
		markup, err := s.fetchPage(ctx, query, page)
		if err != nil {
			return Outcome{}, err
		}

		if page == 1 && len(markup.Hrefs) == 0 {
			return Outcome{Status: NotFound}, nil
		}

		pos, found, fresh := sc.advance(markup.Hrefs)
		if found {
			log.Info().Int("position", pos).Int("page", page).Msg("Found")
			return Outcome{Status: Found, Position: pos}, nil
		}
		if fresh == 0 {
			// No new products on this page: the result list has ended.
			break
		}
		log.Debug().Int("page", page).Int("scanned", sc.position).Msg("Page scanned")

		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-time.After(s.pageDelay()):
		}
	}
	return sc.outcomeFor(), nil
}

// fetchPage gets one results page, sitting out challenge responses by
// re-fetching inside the challenge wait window.
func (s *Static) fetchPage(ctx context.Context, query string, page int) (pageMarkup, error) {
	pageURL := fmt.Sprintf("%s/search/?text=%s&page=%d",
		s.cfg.BaseURL, url.QueryEscape(query), page)

	deadline := time.Now().Add(s.cfg.ChallengeWait)
	for {
		resp, err := s.client.R().SetContext(ctx).Get(pageURL)
		if err != nil {
			return pageMarkup{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
		}

		markup, err := parseMarkup(bytes.NewReader(resp.Body()))
		if err != nil {
			return pageMarkup{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
		}
		if IsBlockedHeading(markup.Heading) {
			return pageMarkup{}, ErrBlocked
		}
		if !IsChallengeTitle(markup.Title) {
			return markup, nil
		}

		if time.Now().After(deadline) {
			return pageMarkup{}, ErrChallengeTimeout
		}
		log.Warn().Int("page", page).Msg("Challenge response, re-fetching shortly")
		select {
		case <-ctx.Done():
			return pageMarkup{}, ctx.Err()
		case <-time.After(s.challengePoll):
		}
	}
}

func (s *Static) Close() error {
	return nil
}

package captcha

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kilebles/ozon-parser/internal/parser"
)

// AutoSolver clears challenge pages through RuCaptcha, falling back to the
// blocking manual wait when the page carries no solvable captcha or the
// service fails.
type AutoSolver struct {
	client   *Client
	fallback parser.Solver
}

func NewAutoSolver(client *Client, fallback parser.Solver) *AutoSolver {
	return &AutoSolver{client: client, fallback: fallback}
}

func (s *AutoSolver) Solve(ctx context.Context, page parser.ChallengePage) error {
	siteKey, err := page.SiteKey(ctx)
	if err != nil || siteKey == "" {
		log.Debug().Err(err).Msg("No site key on challenge page, using manual wait")
		return s.fallback.Solve(ctx, page)
	}
	pageURL, err := page.Location(ctx)
	if err != nil {
		return s.fallback.Solve(ctx, page)
	}

	token, err := s.client.SolveRecaptcha(ctx, siteKey, pageURL)
	if err != nil {
		log.Warn().Err(err).Msg("Automated solve failed, using manual wait")
		return s.fallback.Solve(ctx, page)
	}
	if err := page.SubmitToken(ctx, token); err != nil {
		log.Warn().Err(err).Msg("Token injection failed, using manual wait")
		return s.fallback.Solve(ctx, page)
	}

	// The page needs a moment to verify the token and navigate on.
	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
		if solved, err := page.Solved(ctx); err == nil && solved {
			log.Info().Msg("Challenge solved automatically")
			return nil
		}
	}
	return s.fallback.Solve(ctx, page)
}

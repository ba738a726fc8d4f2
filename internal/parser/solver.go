package parser

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ChallengePage is the surface a Solver works against while a challenge
// interstitial is showing.
type ChallengePage interface {
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// SiteKey extracts the captcha site key, empty when none is present.
	SiteKey(ctx context.Context) (string, error)
	// SubmitToken injects a solved captcha token into the page.
	SubmitToken(ctx context.Context, token string) error
	// Solved reports whether the challenge has cleared.
	Solved(ctx context.Context) (bool, error)
}

// Solver clears a challenge page. The manual solver blocks and waits for a
// human; an automated solver can submit the captcha to a solving service.
type Solver interface {
	Solve(ctx context.Context, page ChallengePage) error
}

// ManualSolver suspends the scan and polls until a human solves the
// challenge in the visible browser window, or the wait window runs out.
type ManualSolver struct {
	wait time.Duration
}

func NewManualSolver(wait time.Duration) *ManualSolver {
	return &ManualSolver{wait: wait}
}

func (s *ManualSolver) Solve(ctx context.Context, page ChallengePage) error {
	log.Warn().Dur("wait", s.wait).Msg("Challenge detected, waiting for manual solve")

	deadline := time.Now().Add(s.wait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
		solved, err := page.Solved(ctx)
		if err != nil {
			continue
		}
		if solved {
			log.Info().Msg("Challenge solved")
			return nil
		}
	}
	return ErrChallengeTimeout
}

package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// pageStatus is one combined DOM probe for both interstitial kinds.
type pageStatus struct {
	Captcha bool
	Blocked bool
}

func (c *Chrome) checkPageStatus() (pageStatus, error) {
	var title, heading string
	err := c.runWithTimeout(
		chromedp.Title(&title),
		chromedp.Evaluate(`(document.querySelector('h1') || {innerText: ''}).innerText`, &heading),
	)
	if err != nil {
		return pageStatus{}, err
	}
	return pageStatus{
		Captcha: IsChallengeTitle(title),
		Blocked: IsBlockedHeading(heading),
	}, nil
}

// clearInterstitials handles a block page or captcha if one is showing.
// The scan resumes afterwards; only an unclearable page is an error.
func (c *Chrome) clearInterstitials(ctx context.Context) error {
	status, err := c.checkPageStatus()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if status.Blocked {
		if !c.handleBlockPage() {
			return ErrBlocked
		}
	}
	if status.Captcha {
		if err := c.solver.Solve(ctx, &chromeChallengePage{c}); err != nil {
			return err
		}
		log.Info().Msg("Challenge cleared, resuming scan")
	}
	return nil
}

// handleBlockPage waits for the JS challenge behind the access-restriction
// page, then falls back to up to three refreshes.
func (c *Chrome) handleBlockPage() bool {
	log.Info().Msg("Block page detected, waiting for JS challenge")

	for i := 0; i < 5; i++ {
		if err := c.runWithTimeout(chromedp.Sleep(2 * time.Second)); err != nil {
			return false
		}
		if status, err := c.checkPageStatus(); err == nil && !status.Blocked {
			log.Info().Int("seconds", (i+1)*2).Msg("JS challenge resolved")
			return true
		}
	}

	for attempt := 1; attempt <= 3; attempt++ {
		status, err := c.checkPageStatus()
		if err == nil && !status.Blocked {
			return true
		}
		log.Warn().Int("attempt", attempt).Msg("Still blocked, refreshing")
		if err := c.runWithTimeout(
			chromedp.Reload(),
			chromedp.Sleep(5*time.Second),
		); err != nil {
			return false
		}
	}

	status, err := c.checkPageStatus()
	return err == nil && !status.Blocked
}

// chromeChallengePage exposes the live browser page to a Solver.
type chromeChallengePage struct {
	c *Chrome
}

func (p *chromeChallengePage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.c.runWithTimeout(chromedp.Location(&loc))
	return loc, err
}

func (p *chromeChallengePage) SiteKey(ctx context.Context) (string, error) {
	var key string
	err := p.c.runWithTimeout(chromedp.Evaluate(
		`(document.querySelector('[data-sitekey]') || {getAttribute: () => ''}).getAttribute('data-sitekey') || ''`,
		&key))
	return key, err
}

func (p *chromeChallengePage) SubmitToken(ctx context.Context, token string) error {
	return p.c.runWithTimeout(chromedp.Evaluate(fmt.Sprintf(`
		(() => {
			const area = document.querySelector('textarea[name="g-recaptcha-response"]');
			if (area) area.value = %q;
			if (typeof ___grecaptcha_cfg !== 'undefined') {
				for (const id of Object.keys(___grecaptcha_cfg.clients)) {
					const cb = ___grecaptcha_cfg.clients[id];
					// walk the config for the site callback
					for (const k of Object.keys(cb)) {
						const inner = cb[k];
						if (inner && typeof inner === 'object') {
							for (const kk of Object.keys(inner)) {
								if (inner[kk] && typeof inner[kk].callback === 'function') {
									inner[kk].callback(%q);
									return;
								}
							}
						}
					}
				}
			}
			const form = area && area.closest('form');
			if (form) form.submit();
		})()`, token, token), nil))
}

func (p *chromeChallengePage) Solved(ctx context.Context) (bool, error) {
	status, err := p.c.checkPageStatus()
	if err != nil {
		return false, err
	}
	return !status.Captcha && !status.Blocked, nil
}

package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// exportedCookie matches the Cookie-Editor browser extension export format.
type exportedCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	ExpirationDate float64 `json:"expirationDate"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
	SameSite       string  `json:"sameSite"`
}

// loadCookies imports a cookies.json export into the browser session.
// A missing file is not an error: the persistent profile usually carries
// the session already.
func loadCookies(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debug().Str("path", path).Msg("No cookies file")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cookies file: %w", err)
	}

	var exported []exportedCookie
	if err := json.Unmarshal(raw, &exported); err != nil {
		return fmt.Errorf("failed to parse cookies file: %w", err)
	}

	imported := 0
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range exported {
			if c.Name == "" || c.Value == "" {
				continue
			}
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(defaultString(c.Domain, ".ozon.ru")).
				WithPath(defaultString(c.Path, "/")).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.ExpirationDate > 0 {
				expires := cdp.TimeSinceEpoch(epochTime(c.ExpirationDate))
				p = p.WithExpires(&expires)
			}
			if ss := sameSite(c.SameSite); ss != "" {
				p = p.WithSameSite(ss)
			}
			if err := p.Do(ctx); err != nil {
				log.Debug().Err(err).Str("cookie", c.Name).Msg("Skipping cookie")
				continue
			}
			imported++
		}
		return nil
	}))
	if err != nil {
		return err
	}
	log.Info().Int("cookies", imported).Msg("Imported cookies")
	return nil
}

func epochTime(sec float64) time.Time {
	return time.Unix(int64(sec), 0)
}

func sameSite(value string) network.CookieSameSite {
	switch strings.ToLower(value) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

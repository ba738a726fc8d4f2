package parser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/kilebles/ozon-parser/internal/app"
	"github.com/kilebles/ozon-parser/internal/geo"
)

const (
	listingSelector = `a[href*='/product/']`
	maxEmptyScrolls = 5
)

// analyticsHosts are aborted at the network layer to cut noise and load time.
var analyticsHosts = []string{
	"*mc.yandex*",
	"*google-analytics*",
	"*facebook*",
	"*vk.com/rtrg*",
	"*top-fwz*",
	"*criteo*",
	// heavy static assets
	"*.png", "*.jpg", "*.jpeg", "*.webp", "*.gif", "*.svg",
	"*.woff", "*.woff2", "*.ttf", "*.mp4", "*.webm",
}

// Chrome is the primary backend: a real Chromium session with a persistent
// profile, reused across runs so that cookies and local storage survive.
type Chrome struct {
	cfg         *app.Config
	solver      Solver
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	// collect extracts listing hrefs from the current page. The hybrid
	// backend swaps in a goquery-based strategy.
	collect func() ([]string, error)
}

// NewChrome launches Chromium and prepares the session: geolocation and
// timezone overrides for the configured city, analytics blocking, and a
// cookie import when a cookies.json export is present.
func NewChrome(cfg *app.Config, solver Solver) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserDataDir(cfg.UserDataDir),
		chromedp.Flag("headless", cfg.Headless),

		// Anti-detection flags
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("disable-site-isolation-trials", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-service-autorun", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("start-maximized", true),

		// Stability flags
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	if cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		cfg:         cfg,
		solver:      solver,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}
	if c.solver == nil {
		c.solver = NewManualSolver(cfg.ChallengeWait)
	}
	c.collect = c.collectHrefs

	if err := chromedp.Run(ctx, c.sessionActions()...); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	if err := loadCookies(ctx, cfg.CookiesFile); err != nil {
		log.Warn().Err(err).Msg("Cookie import failed, continuing with profile cookies only")
	}

	log.Info().
		Bool("headless", cfg.Headless).
		Str("profile", cfg.UserDataDir).
		Msg("Chromium session started")
	return c, nil
}

// sessionActions applies per-session overrides right after launch.
func (c *Chrome) sessionActions() []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		network.SetBlockedURLS(analyticsHosts),
	}

	city, err := geo.Lookup(c.cfg.GeoCity)
	if err != nil {
		log.Warn().Err(err).Msg("Skipping geolocation override")
		return actions
	}
	return append(actions,
		emulation.SetGeolocationOverride().
			WithLatitude(city.Latitude).
			WithLongitude(city.Longitude).
			WithAccuracy(100),
		emulation.SetTimezoneOverride(city.Timezone),
	)
}

// Warmup visits the homepage once so the first search does not start cold.
func (c *Chrome) Warmup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.runWithTimeout(
		chromedp.Navigate(c.cfg.BaseURL),
		chromedp.Sleep(time.Duration(500+rand.Intn(700))*time.Millisecond),
		c.moveMouse(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Warmup visit failed")
	}
	return nil
}

// FindPosition scans the search results for article, scrolling until a
// match, the configured limit, or the end of the result list.
func (c *Chrome) FindPosition(ctx context.Context, query, article string) (Outcome, error) {
	log.Info().Str("query", query).Str("article", article).Msg("Search")

	searchURL := fmt.Sprintf("%s/search/?text=%s", c.cfg.BaseURL, url.QueryEscape(query))
	if err := c.runWithTimeout(chromedp.Navigate(searchURL)); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := c.settleAfterLoad(); err != nil {
		return Outcome{}, err
	}

	// Human-like pause before touching the page
	if err := c.runWithTimeout(
		chromedp.Sleep(time.Duration(300+rand.Intn(500))*time.Millisecond),
		c.moveMouse(),
	); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	if err := c.clearInterstitials(ctx); err != nil {
		return Outcome{}, err
	}

	if err := c.runWithTimeout(chromedp.WaitVisible(listingSelector, chromedp.ByQuery)); err != nil {
		// Legitimate zero-result pages have no listing links either.
		if empty, eerr := c.hasEmptyResults(); eerr == nil && empty {
			return Outcome{Status: NotFound}, nil
		}
		return Outcome{}, fmt.Errorf("%w: no listings for query %q", ErrPageLoad, query)
	}

	sc := newScan(article, c.cfg.MaxPosition)

	hrefs, err := c.collect()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if pos, found, _ := sc.advance(hrefs); found {
		log.Info().Int("position", pos).Msg("Found on first screen")
		return Outcome{Status: Found, Position: pos}, nil
	}

	emptyScrolls := 0
	for !sc.exhausted() {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if err := c.scrollStep(); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
		}

		// A challenge can appear mid-scan; clear it and keep scrolling
		// from where we paused.
		if err := c.clearInterstitials(ctx); err != nil {
			return Outcome{}, err
		}

		hrefs, err = c.collect()
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
		}
		pos, found, fresh := sc.advance(hrefs)
		if found {
			log.Info().Int("position", pos).Msg("Found")
			return Outcome{Status: Found, Position: pos}, nil
		}
		if fresh == 0 {
			emptyScrolls++
			if emptyScrolls >= maxEmptyScrolls {
				break
			}
			continue
		}
		emptyScrolls = 0
		log.Debug().Int("scanned", sc.position).Int("fresh", fresh).Msg("Scroll batch")
	}

	return sc.outcomeFor(), nil
}

func (c *Chrome) Close() error {
	c.cancel()
	c.allocCancel()
	return nil
}

// runWithTimeout runs actions against the browser context with the
// per-navigation timeout from the config.
func (c *Chrome) runWithTimeout(actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(c.ctx, c.cfg.BrowserTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("action timed out after %v", c.cfg.BrowserTimeout)
		}
		return err
	}
	return nil
}

// settleAfterLoad waits out the site's JS shell when the initial document
// comes back nearly empty.
func (c *Chrome) settleAfterLoad() error {
	var size int
	if err := c.runWithTimeout(chromedp.Evaluate(`document.body.innerHTML.length`, &size)); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if size >= 5000 {
		return nil
	}
	log.Debug().Int("bytes", size).Msg("Small page, waiting for JS to render")
	for i := 0; i < 30; i++ {
		if err := c.runWithTimeout(
			chromedp.Sleep(500*time.Millisecond),
			chromedp.Evaluate(`document.body.innerHTML.length`, &size),
		); err != nil {
			return fmt.Errorf("%w: %v", ErrPageLoad, err)
		}
		if size > 10000 {
			return nil
		}
	}
	return nil
}

func (c *Chrome) collectHrefs() ([]string, error) {
	var hrefs []string
	err := c.runWithTimeout(chromedp.Evaluate(
		`Array.from(document.getElementsByTagName('a')).map(a => a.href)`, &hrefs))
	return hrefs, err
}

func (c *Chrome) hasEmptyResults() (bool, error) {
	var count int
	err := c.runWithTimeout(chromedp.Evaluate(
		`document.querySelectorAll(`+"`"+listingSelector+"`"+`).length`, &count))
	return count == 0, err
}

// scrollStep performs one randomized wheel scroll with occasional jitter,
// imitating a person skimming the list.
func (c *Chrome) scrollStep() error {
	actions := []chromedp.Action{
		c.moveMouse(),
		chromedp.Sleep(time.Duration(100+rand.Intn(200)) * time.Millisecond),
		c.wheel(600 + rand.Intn(400)),
		chromedp.Sleep(time.Duration(400+rand.Intn(400)) * time.Millisecond),
	}
	if rand.Float64() < 0.3 {
		actions = append(actions,
			c.wheel(100+rand.Intn(200)),
			chromedp.Sleep(time.Duration(200+rand.Intn(200))*time.Millisecond),
		)
	}
	if rand.Float64() < 0.1 {
		actions = append(actions, chromedp.Sleep(time.Duration(1000+rand.Intn(1000))*time.Millisecond))
	}
	return c.runWithTimeout(actions...)
}

func (c *Chrome) moveMouse() chromedp.Action {
	return chromedp.MouseEvent(input.MouseMoved,
		float64(300+rand.Intn(600)), float64(200+rand.Intn(300)))
}

func (c *Chrome) wheel(delta int) chromedp.Action {
	return input.DispatchMouseEvent(input.MouseWheel,
		float64(300+rand.Intn(600)), float64(200+rand.Intn(300))).
		WithDeltaX(0).
		WithDeltaY(float64(delta))
}

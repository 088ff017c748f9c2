package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
)

// stealthScript hides the usual automation fingerprints before any page script runs.
const stealthScript = `() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	window.chrome = { runtime: {} };
}`

// rawBodyScript re-requests the document from inside the page so the response
// carries the cookies earned by passing the challenge, and returns it verbatim.
const rawBodyScript = `() => fetch(location.href, { credentials: 'include' }).then(r => r.text())`

var cookieSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button#accept-cookies",
	".cookie-accept",
	"[id*='cookie'][id*='accept']",
	"button[aria-label='Accept all']",
}

// HeavyConfig controls the headless browser.
type HeavyConfig struct {
	BrowserBin        string
	Headless          bool
	NavigationTimeout time.Duration
	HumanDelay        bool
	ViewportWidth     int
	ViewportHeight    int
}

// Heavy acquires sources through a full Chromium context with anti-detection
// countermeasures. The browser is started on first use and shared by workers;
// every attempt runs in its own incognito context.
type Heavy struct {
	cfg    HeavyConfig
	logger *slog.Logger

	mu       sync.Mutex
	launch   *launcher.Launcher
	browser  *rod.Browser
	startErr error
}

var _ fetcher.Strategy = (*Heavy)(nil)

// NewHeavy builds a lazy browser strategy.
func NewHeavy(cfg HeavyConfig, log *slog.Logger) *Heavy {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = 1920
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = 1080
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Heavy{cfg: cfg, logger: log}
}

// Kind identifies the strategy inside the registry.
func (h *Heavy) Kind() domain.StrategyKind {
	return domain.StrategyHeavy
}

// Attempt navigates to the URL and classifies what the browser received.
func (h *Heavy) Attempt(ctx context.Context, url string, want domain.PayloadKind) fetcher.Outcome {
	browser, err := h.ensureBrowser()
	if err != nil {
		return fetcher.Malformed(h.Kind(), fmt.Sprintf("start browser: %v", err))
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return fetcher.Malformed(h.Kind(), fmt.Sprintf("incognito context: %v", err))
	}
	defer func() { _ = incognito.Close() }()

	navCtx, cancel := context.WithTimeout(ctx, h.cfg.NavigationTimeout)
	defer cancel()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fetcher.Malformed(h.Kind(), fmt.Sprintf("open page: %v", err))
	}
	page = page.Context(navCtx)
	defer func() { _ = page.Close() }()

	if err := h.disguise(page); err != nil {
		return fetcher.Malformed(h.Kind(), fmt.Sprintf("prepare page: %v", err))
	}

	if err := page.Navigate(url); err != nil {
		return h.failure(navCtx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return h.failure(navCtx, err)
	}

	h.dismissCookieBanner(page)
	if h.cfg.HumanDelay {
		select {
		case <-time.After(time.Second + rand.N(2*time.Second)):
		case <-navCtx.Done():
			return fetcher.TimedOut(h.Kind())
		}
	}

	if res, err := page.Eval(rawBodyScript); err == nil {
		body := []byte(res.Value.Str())
		if out := fetcher.Classify(h.Kind(), 0, body, want); out.OK() {
			h.logger.Debug("heavy attempt", "url", url, "source", "in-page fetch", "bytes", len(body))
			return out
		}
	}

	html, err := page.HTML()
	if err != nil {
		return h.failure(navCtx, err)
	}
	out := fetcher.Classify(h.Kind(), 0, []byte(html), want)
	h.logger.Debug("heavy attempt", "url", url, "source", "rendered dom", "outcome", out.Kind.String(), "bytes", len(html))
	return out
}

func (h *Heavy) disguise(page *rod.Page) error {
	if _, err := page.EvalOnNewDocument(stealthScript); err != nil {
		return fmt.Errorf("stealth script: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      randomUserAgent(),
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return fmt.Errorf("user agent: %w", err)
	}
	if _, err := page.SetExtraHeaders([]string{
		"Accept-Language", "en-US,en;q=0.9",
		"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}); err != nil {
		return fmt.Errorf("extra headers: %w", err)
	}
	return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             h.cfg.ViewportWidth,
		Height:            h.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	})
}

func (h *Heavy) dismissCookieBanner(page *rod.Page) {
	for _, selector := range cookieSelectors {
		found, el, err := page.Has(selector)
		if err != nil || !found {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			h.logger.Debug("cookie consent dismissed", "selector", selector)
			return
		}
	}
}

func (h *Heavy) failure(ctx context.Context, err error) fetcher.Outcome {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fetcher.TimedOut(h.Kind())
	}
	return fetcher.Malformed(h.Kind(), err.Error())
}

func (h *Heavy) ensureBrowser() (*rod.Browser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		return h.browser, nil
	}
	if h.startErr != nil {
		return nil, h.startErr
	}

	l := launcher.New().
		Headless(h.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Delete("enable-automation")
	if h.cfg.BrowserBin != "" {
		l = l.Bin(h.cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		h.startErr = fmt.Errorf("launch chrome: %w", err)
		return nil, h.startErr
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		h.startErr = fmt.Errorf("connect to chrome: %w", err)
		return nil, h.startErr
	}

	h.launch = l
	h.browser = browser
	h.logger.Info("browser started", "headless", h.cfg.Headless)
	return browser, nil
}

// Close shuts the browser down; safe to call when it never started.
func (h *Heavy) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.browser != nil {
		err = h.browser.Close()
		h.browser = nil
	}
	if h.launch != nil {
		h.launch.Cleanup()
		h.launch = nil
	}
	return err
}

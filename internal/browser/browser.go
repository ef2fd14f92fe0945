package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/FranksOps/serpent/pkg/useragent"
)

// Config holds engine-wide browser settings.
type Config struct {
	Headless bool
	// ChromePath overrides binary discovery when non-empty.
	ChromePath string
	// NavTimeout bounds a single page load. Zero means 30s.
	NavTimeout   time.Duration
	WindowWidth  int
	WindowHeight int
}

// Engine creates browser sessions. Each session owns its own OS-level
// browser process, so there is no shared mutable browser state between
// concurrent calls; the engine itself only carries configuration and the
// resolved binary path.
type Engine struct {
	cfg    Config
	path   string
	logger *slog.Logger
	agents *useragent.Pool
	// Proxies may be nil when proxy usage is disabled.
	Proxies *proxy.Pool
}

// NewEngine resolves the browser binary and returns an engine. It fails
// when no Chrome/Chromium installation can be found, so misconfiguration
// surfaces at startup rather than on the first search.
func NewEngine(cfg Config, agents *useragent.Pool, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if agents == nil {
		agents = useragent.NewPool(nil)
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = 1366, 768
	}

	path := cfg.ChromePath
	if path == "" {
		path = findChromePath()
	}
	if path == "" {
		return nil, &LaunchError{Err: errors.New("no Chrome/Chromium binary found")}
	}

	logger.Debug("browser binary resolved", "path", path)

	return &Engine{
		cfg:    cfg,
		path:   path,
		logger: logger,
		agents: agents,
	}, nil
}

// findChromePath probes well-known install locations per platform.
func findChromePath() string {
	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			os.Getenv("LOCALAPPDATA") + `\Google\Chrome\Application\chrome.exe`,
		}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// SessionOptions configures a single browser session.
type SessionOptions struct {
	// UserAgent overrides the pool rotation when non-empty.
	UserAgent string
	// Stealth installs the fingerprint-masking init script and randomizes
	// the User-Agent instead of rotating sequentially.
	Stealth bool
	// UseProxy picks the next healthy proxy from the engine's pool.
	UseProxy bool
	// Locale sets the Accept-Language/--lang value, e.g. "it".
	Locale string
	// Timeout bounds the whole session lifetime. Zero means no bound
	// beyond the parent context.
	Timeout time.Duration
}

// Session is one headless browser process plus a tab context, owned by a
// single in-flight call. Close must run on every exit path; it tears the
// process down and is safe to call more than once.
type Session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	proxyURL  string
	userAgent string
	logger    *slog.Logger
	closeOnce sync.Once
	engine    *Engine
}

// NewSession launches a browser process configured per opts and returns a
// session bound to ctx: cancelling ctx tears the process down, so an
// abandoned caller cannot leak it.
func (e *Engine) NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	ua := opts.UserAgent
	if ua == "" {
		if opts.Stealth {
			ua = e.agents.Random()
		} else {
			ua = e.agents.Next()
		}
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(e.path),
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.WindowSize(e.cfg.WindowWidth, e.cfg.WindowHeight),
		chromedp.UserAgent(ua),
	)
	if opts.Locale != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Locale))
	}

	var proxyURL string
	if opts.UseProxy && e.Proxies != nil {
		if u := e.Proxies.Next(); u != nil {
			proxyURL = u.String()
			allocOpts = append(allocOpts, chromedp.ProxyServer(proxyURL))
			e.logger.Debug("session using proxy", "proxy", proxyURL)
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	var timeoutCancel context.CancelFunc = func() {}
	if opts.Timeout > 0 {
		tabCtx, timeoutCancel = context.WithTimeout(tabCtx, opts.Timeout)
	}

	cancel := func() {
		timeoutCancel()
		tabCancel()
		allocCancel()
	}

	// Force the process launch now so launch failures are classified here
	// rather than surfacing as navigation errors later.
	startupActions := []chromedp.Action{}
	if opts.Stealth {
		startupActions = append(startupActions, installStealth())
	}
	if len(startupActions) == 0 {
		startupActions = append(startupActions, chromedp.ActionFunc(func(context.Context) error { return nil }))
	}
	if err := chromedp.Run(tabCtx, startupActions...); err != nil {
		cancel()
		return nil, &LaunchError{Err: err}
	}

	return &Session{
		ctx:       tabCtx,
		cancel:    cancel,
		proxyURL:  proxyURL,
		userAgent: ua,
		logger:    e.logger,
		engine:    e,
	}, nil
}

// UserAgent reports the User-Agent the session was launched with.
func (s *Session) UserAgent() string { return s.userAgent }

// SetCookie installs a cookie before navigation, e.g. the Google consent
// cookie so result pages are served instead of the consent wall.
func (s *Session) SetCookie(name, value, domain string) error {
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookie(name, value).
			WithDomain(domain).
			WithPath("/").
			Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("set cookie %s: %w", name, err)
	}
	return nil
}

// FetchHTML navigates to pageURL, waits for the document body, lets the
// page settle, and returns the rendered outer HTML. Timeouts and load
// failures come back as *NavigationError.
func (s *Session) FetchHTML(ctx context.Context, pageURL string, settle time.Duration) (string, error) {
	navCtx, cancel := context.WithTimeout(s.ctx, s.engine.cfg.NavTimeout)
	defer cancel()

	// Propagate caller-side cancellation into the chromedp context.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if settle > 0 {
		actions = append(actions, chromedp.Sleep(settle))
	}
	actions = append(actions,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.OuterHTML("html", &html),
	)

	if err := chromedp.Run(navCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &NavigationError{URL: pageURL, Err: err}
	}
	return html, nil
}

// Evaluate runs a JavaScript expression in the page and stores the result
// into res (pass nil to discard).
func (s *Session) Evaluate(expr string, res any) error {
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(expr, res)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

// Title returns the current document title.
func (s *Session) Title() (string, error) {
	var title string
	if err := chromedp.Run(s.ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// Location returns the current page URL after redirects.
func (s *Session) Location() (string, error) {
	var loc string
	if err := chromedp.Run(s.ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// ProxyURL reports the proxy the session was bound to, empty if none.
func (s *Session) ProxyURL() string { return s.proxyURL }

// Close tears down the tab and the browser process. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
}

// installStealth registers the fingerprint-masking script to run in every
// new document before any page script.
func installStealth() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}

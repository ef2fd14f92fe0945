package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/serpent/internal/block"
	"github.com/FranksOps/serpent/internal/browser"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/pkg/ratelimit"
)

// Session is one browser tab owned by a single search call.
// *browser.Session satisfies it; tests substitute fakes.
type Session interface {
	SetCookie(name, value, domain string) error
	FetchHTML(ctx context.Context, pageURL string, settle time.Duration) (string, error)
	Close()
}

// Opener acquires browser sessions.
type Opener interface {
	Open(ctx context.Context, opts browser.SessionOptions) (Session, error)
}

// EngineOpener adapts *browser.Engine to the Opener interface.
type EngineOpener struct {
	Engine *browser.Engine
}

func (o EngineOpener) Open(ctx context.Context, opts browser.SessionOptions) (Session, error) {
	s, err := o.Engine.NewSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Config tunes the searcher.
type Config struct {
	// Detectors classify block/challenge pages. Nil means the defaults.
	Detectors []block.Detector
	// Limiter applies call-level backpressure. Nil disables limiting.
	Limiter *ratelimit.Limiter
	// BackoffBase is the first retry delay; it doubles per attempt.
	// Zero means 1s.
	BackoffBase time.Duration
	// SessionTimeout bounds one attempt's browser session lifetime.
	// Zero means 90s.
	SessionTimeout time.Duration
	Logger         *slog.Logger
}

// Searcher runs the scrape-paginate-dedup-retry control loop. It is safe
// for concurrent use: each call owns its session and aggregation state,
// the only shared piece is the rate limiter.
type Searcher struct {
	opener         Opener
	detectors      []block.Detector
	limiter        *ratelimit.Limiter
	backoffBase    time.Duration
	sessionTimeout time.Duration
	logger         *slog.Logger
}

// New creates a Searcher backed by the given session opener.
func New(opener Opener, cfg Config) *Searcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Detectors == nil {
		cfg.Detectors = block.DefaultDetectors()
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 90 * time.Second
	}
	return &Searcher{
		opener:         opener,
		detectors:      cfg.Detectors,
		limiter:        cfg.Limiter,
		backoffBase:    cfg.BackoffBase,
		sessionTimeout: cfg.SessionTimeout,
		logger:         cfg.Logger,
	}
}

// Search executes one search call end to end: rate-limit admission, then
// up to 1+RetryCount attempts, each with its own browser session. Block
// signals and launch failures are terminal; navigation failures are
// retried with exponential backoff.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if delay := s.limiter.Delay(); delay > 0 {
			s.logger.Warn("rate limit reached, delaying search", "query", req.Query, "delay", delay)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= req.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := s.backoffBase << (attempt - 1)
			s.logger.Info("retrying search",
				"query", req.Query, "attempt", attempt, "retry_count", req.RetryCount, "backoff", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}

		resp, err := s.runAttempt(ctx, req)
		if err == nil {
			resp.Retries = attempt
			outcome := "success"
			if resp.Partial {
				outcome = "partial"
			}
			metrics.RecordSearch(req.Lang, outcome, time.Since(start),
				resp.PagesFetched, len(resp.Results), attempt)
			s.logger.Info("search completed",
				"query", req.Query,
				"results", len(resp.Results),
				"pages_fetched", resp.PagesFetched,
				"retries", attempt,
				"elapsed", time.Since(start).Seconds())
			return resp, nil
		}
		lastErr = err

		var be *BlockError
		if errors.As(err, &be) {
			metrics.RecordSearch(req.Lang, TypeBlock, time.Since(start), 0, 0, attempt)
			s.logger.Error("search blocked", "query", req.Query, "source", be.Source)
			return nil, err
		}
		var le *browser.LaunchError
		if errors.As(err, &le) {
			metrics.RecordSearch(req.Lang, TypeLaunch, time.Since(start), 0, 0, attempt)
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.logger.Warn("search attempt failed", "query", req.Query, "attempt", attempt, "err", err)
	}

	metrics.RecordSearch(req.Lang, ErrorType(lastErr), time.Since(start), 0, 0, req.RetryCount)
	return nil, fmt.Errorf("search failed after %d attempts: %w", req.RetryCount+1, lastErr)
}

// runAttempt performs one full attempt: open session, page loop,
// aggregate. The session is released on every path, including caller
// cancellation, since its lifetime is bound to ctx.
func (s *Searcher) runAttempt(ctx context.Context, req Request) (*Response, error) {
	session, err := s.opener.Open(ctx, browser.SessionOptions{
		Stealth:  req.UseStealth,
		UseProxy: req.UseProxy,
		Locale:   req.Lang,
		Timeout:  s.sessionTimeout * time.Duration(req.MaxPages),
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	// Pre-set the consent cookie so the first navigation lands on results
	// instead of the consent wall. Best effort.
	if err := session.SetCookie("CONSENT", consentCookie(), ".google.com"); err != nil {
		s.logger.Debug("consent cookie not set", "err", err)
	}

	agg := newAggregator()
	stats := ""
	partial := false
	sleep := time.Duration(req.SleepInterval * float64(time.Second))
	settle := sleep / 2

	for page := 1; page <= req.MaxPages; page++ {
		pageURL := PageURL(req.Query, req.Lang, page)
		s.logger.Info("fetching results page",
			"query", req.Query, "page", page, "max_pages", req.MaxPages)

		html, err := session.FetchHTML(ctx, pageURL, settle)
		if err != nil {
			if agg.count() > 0 {
				// Partial success beats total failure once something came
				// back.
				s.logger.Warn("page fetch failed, keeping partial results",
					"query", req.Query, "page", page, "err", err)
				partial = true
				break
			}
			return nil, err
		}

		if blocked, source := block.Analyze(html, s.detectors); blocked {
			metrics.BlockDetectionsTotal.WithLabelValues(source).Inc()
			if agg.count() > 0 {
				s.logger.Warn("block detected mid-pagination, keeping partial results",
					"query", req.Query, "page", page, "source", source)
				partial = true
				break
			}
			return nil, &BlockError{Source: source}
		}

		parsed, err := ParsePage(html, pageURL)
		if err != nil {
			return nil, err
		}

		pageResults := parsed.Results
		if len(pageResults) > req.NumResults {
			pageResults = pageResults[:req.NumResults]
		}
		agg.addPage(page, pageResults)

		if page == 1 {
			stats = parsed.Stats
		}

		s.logger.Debug("page parsed",
			"query", req.Query, "page", page,
			"raw_results", len(parsed.Results), "merged_total", agg.count())

		// Empty page means end of results, not an error.
		if len(parsed.Results) == 0 || !parsed.HasNext {
			break
		}

		if page < req.MaxPages {
			if err := sleepCtx(ctx, sleep); err != nil {
				return nil, err
			}
		}
	}

	return &Response{
		Query:        req.Query,
		Results:      agg.results(),
		Stats:        stats,
		PagesFetched: agg.pages(),
		Partial:      partial,
	}, nil
}

// consentCookie builds a plausible Google consent cookie value.
func consentCookie() string {
	return fmt.Sprintf("YES+cb.%d", time.Now().Add(-28*time.Hour).Unix())
}

// sleepCtx sleeps without blocking unrelated calls and without outliving
// the caller.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

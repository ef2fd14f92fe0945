package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	maxDepthLimit = 5
	maxPagesLimit = 200
)

// Config provides the crawl-independent parameters of the crawler.
type Config struct {
	Concurrency int
	// UserAgent is matched against robots.txt groups.
	UserAgent string
	// RequestsPerSecond limits the fetch rate (0 = unlimited).
	RequestsPerSecond float64
	// Jitter applies randomness to the pacing (0.0 to 1.0).
	Jitter float64
	// QueueSize bounds the internal BFS queue (0 = default 10000).
	QueueSize int
}

// Request describes one crawl call.
type Request struct {
	Seeds []string `json:"seeds"`
	// Domains scope the crawl; empty means the seed hosts.
	Domains       []string `json:"domains"`
	MaxDepth      int      `json:"max_depth"`
	MaxPages      int      `json:"max_pages"`
	Terms         []string `json:"terms"`
	RespectRobots bool     `json:"respect_robots"`
	UseSitemaps   bool     `json:"use_sitemaps"`
}

// Validate checks the request and fills zero values.
func (r *Request) Validate() error {
	if len(r.Seeds) == 0 {
		return errors.New("seeds cannot be empty")
	}
	for _, seed := range r.Seeds {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid seed url: %q", seed)
		}
	}
	if r.MaxDepth <= 0 {
		r.MaxDepth = 1
	}
	if r.MaxDepth > maxDepthLimit {
		return fmt.Errorf("max_depth cannot exceed %d", maxDepthLimit)
	}
	if r.MaxPages <= 0 {
		r.MaxPages = 20
	}
	if r.MaxPages > maxPagesLimit {
		return fmt.Errorf("max_pages cannot exceed %d", maxPagesLimit)
	}
	return nil
}

// Page is one crawled document with its extracted content.
type Page struct {
	URL         string      `json:"url"`
	Depth       int         `json:"depth"`
	StatusCode  int         `json:"status_code"`
	Title       string      `json:"title"`
	Text        string      `json:"text,omitempty"`
	Links       []string    `json:"links,omitempty"`
	Matches     []TermMatch `json:"matches,omitempty"`
	Blocked     bool        `json:"blocked,omitempty"`
	BlockSource string      `json:"block_source,omitempty"`
	Error       string      `json:"error,omitempty"`
	Elapsed     float64     `json:"elapsed"`
}

// Report is the outcome of a completed crawl.
type Report struct {
	Seeds        []string `json:"seeds"`
	Pages        []Page   `json:"pages"`
	PagesFetched int      `json:"pages_fetched"`
	Blocked      int      `json:"blocked"`
	Elapsed      float64  `json:"elapsed"`
}

// Crawler runs breadth-first crawls and returns the extracted pages. It is
// safe for concurrent use: each Crawl call owns its frontier and results.
type Crawler struct {
	cfg      Config
	fetcher  *Fetcher
	auditor  *RobotsAuditor
	sitemaps *SitemapFetcher
	logger   *slog.Logger
}

type job struct {
	URL   string
	Depth int
}

// New creates a crawler on top of the given fetcher.
func New(cfg Config, fetcher *Fetcher, logger *slog.Logger) *Crawler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "*"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		cfg:      cfg,
		fetcher:  fetcher,
		auditor:  NewRobotsAuditor(fetcher, logger),
		sitemaps: NewSitemapFetcher(fetcher, logger),
		logger:   logger,
	}
}

// crawlRun holds the per-call frontier state.
type crawlRun struct {
	req     Request
	domains []string

	mu      sync.Mutex
	visited map[string]struct{}
	pages   []Page
	budget  int
}

// Crawl runs one breadth-first crawl from the request's seeds. Pages are
// returned in completion order; a fetch failure is recorded on its page
// rather than aborting the crawl.
func (c *Crawler) Crawl(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		metrics.CrawlRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	start := time.Now()
	seeds := req.Seeds
	if req.UseSitemaps {
		seeds = append(seeds, c.sitemapSeeds(ctx, req.Seeds)...)
	}

	run := &crawlRun{
		req:     req,
		domains: crawlDomains(req),
		visited: make(map[string]struct{}),
		budget:  req.MaxPages,
	}

	pacer := ratelimit.NewPacer(c.cfg.RequestsPerSecond, c.cfg.Jitter)
	defer pacer.Stop()

	queueSize := c.cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 10000
	}
	queue := make(chan job, queueSize)

	var jobsWg sync.WaitGroup
	for _, seed := range seeds {
		if run.shouldVisit(seed) {
			run.markVisited(seed)
			jobsWg.Add(1)
			queue <- job{URL: seed, Depth: 0}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return gCtx.Err()
				case j := <-queue:
					c.processJob(gCtx, run, j, queue, &jobsWg, pacer)
					jobsWg.Done()
				}
			}
		})
	}

	done := make(chan struct{})
	go func() {
		jobsWg.Wait()
		close(done)
	}()

	select {
	case <-gCtx.Done():
		cancel()
		_ = g.Wait()
		metrics.CrawlRequestsTotal.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	case <-done:
	}

	// Frontier drained; release the workers.
	cancel()
	_ = g.Wait()

	report := run.report(seeds, time.Since(start))
	metrics.CrawlRequestsTotal.WithLabelValues("success").Inc()
	c.logger.Info("crawl completed",
		"seeds", len(req.Seeds),
		"pages", report.PagesFetched,
		"blocked", report.Blocked,
		"elapsed", report.Elapsed)
	return report, nil
}

func (c *Crawler) processJob(ctx context.Context, run *crawlRun, j job, queue chan<- job, wg *sync.WaitGroup, pacer *ratelimit.Pacer) {
	if run.req.RespectRobots {
		allowed, err := c.auditor.IsAllowed(ctx, j.URL, c.cfg.UserAgent)
		if err != nil {
			c.logger.Warn("error checking robots.txt", "url", j.URL, "err", err)
		} else if !allowed {
			c.logger.Debug("url blocked by robots.txt", "url", j.URL)
			return
		}
	}

	if !run.acquire() {
		return
	}

	if err := pacer.Wait(ctx); err != nil {
		c.logger.Error("pacer cancelled", "url", j.URL, "err", err)
		return
	}

	c.logger.Debug("fetching", "url", j.URL, "depth", j.Depth)
	result, err := c.fetcher.Fetch(ctx, j.URL)
	if err != nil || result == nil {
		c.logger.Error("fetch error", "url", j.URL, "err", err)
		return
	}
	metrics.CrawlPagesTotal.Inc()

	page := Page{
		URL:         j.URL,
		Depth:       j.Depth,
		StatusCode:  result.StatusCode,
		Blocked:     result.Blocked,
		BlockSource: result.BlockSource,
		Error:       result.Error,
		Elapsed:     result.Duration.Seconds(),
	}

	contentType := result.Headers.Get("Content-Type")
	isHTML := strings.Contains(strings.ToLower(contentType), "text/html")

	if result.Error == "" && !result.Blocked && isHTML {
		content := extractContent(j.URL, result.Body)
		page.Title = content.title
		page.Text = content.text
		page.Links = content.links
		page.Matches = findTermMatches(content.text, run.req.Terms)
	}

	run.addPage(page)

	if j.Depth >= run.req.MaxDepth || page.Error != "" || page.Blocked {
		return
	}

	for _, link := range page.Links {
		if !run.shouldVisit(link) {
			continue
		}
		run.markVisited(link)
		wg.Add(1)
		select {
		case queue <- job{URL: link, Depth: j.Depth + 1}:
		case <-ctx.Done():
			wg.Done()
			return
		}
	}
}

// sitemapSeeds expands the seed hosts' robots.txt sitemaps into extra
// seed URLs. Best effort.
func (c *Crawler) sitemapSeeds(ctx context.Context, seeds []string) []string {
	hosts := make(map[string]struct{})
	for _, seed := range seeds {
		if u, err := url.Parse(seed); err == nil && u.Host != "" {
			hosts[u.Scheme+"://"+u.Host] = struct{}{}
		}
	}

	var extra []string
	for host := range hosts {
		maps, err := c.auditor.Sitemaps(ctx, host)
		if err != nil {
			continue
		}
		for _, m := range maps {
			urls, err := c.sitemaps.FetchSitemap(ctx, m)
			if err != nil {
				c.logger.Warn("sitemap seeding failed", "sitemap", m, "err", err)
				continue
			}
			extra = append(extra, urls...)
		}
	}
	return extra
}

// crawlDomains resolves the in-scope domain list, falling back to the seed
// hosts so a crawl never wanders off into the open web by default.
func crawlDomains(req Request) []string {
	if len(req.Domains) > 0 {
		return req.Domains
	}
	var domains []string
	seen := make(map[string]struct{})
	for _, seed := range req.Seeds {
		u, err := url.Parse(seed)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if _, dup := seen[host]; dup || host == "" {
			continue
		}
		seen[host] = struct{}{}
		domains = append(domains, host)
	}
	return domains
}

func (r *crawlRun) shouldVisit(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	u.Fragment = ""
	normalized := u.String()

	r.mu.Lock()
	_, seen := r.visited[normalized]
	r.mu.Unlock()
	if seen {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, domain := range r.domains {
		d := strings.ToLower(domain)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (r *crawlRun) markVisited(rawURL string) {
	if u, err := url.Parse(rawURL); err == nil {
		u.Fragment = ""
		rawURL = u.String()
	}
	r.mu.Lock()
	r.visited[rawURL] = struct{}{}
	r.mu.Unlock()
}

// acquire consumes one unit of the page budget.
func (r *crawlRun) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.budget <= 0 {
		return false
	}
	r.budget--
	return true
}

func (r *crawlRun) addPage(p Page) {
	r.mu.Lock()
	r.pages = append(r.pages, p)
	r.mu.Unlock()
}

func (r *crawlRun) report(seeds []string, elapsed time.Duration) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	blocked := 0
	for _, p := range r.pages {
		if p.Blocked {
			blocked++
		}
	}
	return &Report{
		Seeds:        seeds,
		Pages:        r.pages,
		PagesFetched: len(r.pages),
		Blocked:      blocked,
		Elapsed:      elapsed.Seconds(),
	}
}

// Package crawl fetches a bounded, priority-ordered set of pages from a
// domain and distills them into the text and structural signals the rest of
// the pipeline consumes. It fails soft: a blocked or script-shell site still
// yields a minimal bundle plus a tiered quality warning, never an abort.
package crawl

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/resilience"
	"github.com/radius-labs/visibility-cli/pkg/reader"
)

const (
	// crawlConcurrency limits simultaneous fetches against one site.
	crawlConcurrency = 4

	// defaultFreshnessDays is assumed when no page carries a parseable date.
	defaultFreshnessDays = 365

	probeBodyCap = 64 * 1024
)

type pathEntry struct {
	path string
	kind model.PageKind
}

// priorityPaths are tried in order of importance; the crawl keeps the first
// MaxPages successes. Several paths map to one kind because sites disagree
// on naming.
var priorityPaths = []pathEntry{
	{"/", model.PageHomepage},
	{"/about", model.PageAbout},
	{"/about-us", model.PageAbout},
	{"/company", model.PageAbout},
	{"/products", model.PageProducts},
	{"/product", model.PageProducts},
	{"/services", model.PageProducts},
	{"/solutions", model.PageProducts},
	{"/features", model.PageProducts},
	{"/pricing", model.PagePricing},
	{"/plans", model.PagePricing},
	{"/docs", model.PageDocumentation},
	{"/documentation", model.PageDocumentation},
	{"/help", model.PageSupport},
	{"/support", model.PageSupport},
	{"/blog", model.PageBlog},
	{"/resources", model.PageResources},
	{"/customers", model.PageCustomers},
	{"/case-studies", model.PageCustomers},
	{"/security", model.PageTrust},
	{"/privacy", model.PageTrust},
	{"/compliance", model.PageTrust},
}

// browserAgents is the rotation pool used when no explicit UserAgent is
// configured. Identifying as a crawler gets many sites' empty bot shell;
// mainstream browser agents get the page humans see.
var browserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
}

// Crawler walks a site's priority paths and assembles a CrawlBundle.
type Crawler struct {
	cfg    config.CrawlConfig
	client *http.Client
	reader *readerFallback

	uaNext   atomic.Uint64
	rateWait time.Duration
}

// userAgent returns the pinned agent when one is configured, otherwise the
// next agent in the rotation.
func (c *Crawler) userAgent() string {
	if c.cfg.UserAgent != "" {
		return c.cfg.UserAgent
	}
	n := c.uaNext.Add(1) - 1
	return browserAgents[n%uint64(len(browserAgents))]
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithHTTPClient overrides the HTTP client used for direct fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Crawler) { c.client = hc }
}

// WithReader enables the reader-proxy fallback for pages that block direct
// fetches.
func WithReader(rc reader.Client) Option {
	return func(c *Crawler) {
		c.reader = newReaderFallback(rc,
			resilience.FromCircuitConfig(c.cfg.ReaderFailureThreshold, c.cfg.ReaderResetSecs))
	}
}

// New creates a Crawler with sensible defaults for any zero config values.
func New(cfg config.CrawlConfig, opts ...Option) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.PageCharCap <= 0 {
		cfg.PageCharCap = 15000
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	if cfg.ReaderFailureThreshold <= 0 {
		cfg.ReaderFailureThreshold = 3
	}
	if cfg.ReaderResetSecs <= 0 {
		cfg.ReaderResetSecs = 60
	}
	c := &Crawler{
		cfg:      cfg,
		rateWait: rateLimitWait,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: crawlConcurrency,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl fetches up to MaxPages priority pages from the domain plus the
// robots.txt and sitemap.xml probes, and grades what came back. The returned
// warning is nil for a healthy crawl; a degraded crawl still returns a
// bundle. The error is reserved for invalid input and cancellation.
func (c *Crawler) Crawl(ctx context.Context, domain string) (*model.CrawlBundle, *model.QualityWarning, error) {
	base, host, err := resolveBase(domain)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "crawl: resolve domain %q", domain)
	}

	start := time.Now()
	bundle := &model.CrawlBundle{Domain: host, FetchedAt: start.UTC()}

	// The homepage goes first and alone: it is the one mandatory page, and
	// a block there tells us direct fetches are pointless for the rest.
	home, homeBlocked, homeErr := c.fetchOne(ctx, base+"/", model.PageHomepage, false)
	if homeErr != nil {
		if ctx.Err() != nil {
			return nil, nil, eris.Wrap(ctx.Err(), "crawl: cancelled")
		}
		zap.L().Debug("crawl: homepage fetch failed",
			zap.String("domain", host),
			zap.Error(homeErr),
		)
	}
	if home == nil && homeBlocked {
		// Direct fetches are walled off and the reader could not get in
		// either. Probing the remaining paths would just hammer the wall.
		bundle.Signals.FreshnessDays = defaultFreshnessDays
		warn := &model.QualityWarning{
			Tier:   model.TierSevere,
			Phase:  "crawl",
			Reason: "site blocks automated fetches and the reader fallback returned nothing usable",
			Signals: map[string]any{
				"pages":     0,
				"attempted": 1,
			},
		}
		zap.L().Warn("crawl: site blocked",
			zap.String("domain", host),
			zap.Bool("reader_configured", c.reader != nil),
		)
		return bundle, warn, nil
	}

	results := make([]*fetched, len(priorityPaths))
	results[0] = home

	var robots, sitemap bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(crawlConcurrency)

	g.Go(func() error {
		robots = c.probeRobots(gctx, base)
		return nil
	})
	g.Go(func() error {
		sitemap = c.probeSitemap(gctx, base)
		return nil
	})

	for i, entry := range priorityPaths[1:] {
		idx := i + 1
		g.Go(func() error {
			p, _, ferr := c.fetchOne(gctx, base+entry.path, entry.kind, homeBlocked)
			if ferr != nil {
				zap.L().Debug("crawl: page skipped",
					zap.String("path", entry.path),
					zap.Error(ferr),
				)
				return nil
			}
			results[idx] = p
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, nil, eris.Wrap(ctx.Err(), "crawl: cancelled")
	}

	sc := newSignalCollector()
	seenURL := make(map[string]bool)
	seenContent := make(map[string]bool)
	for _, f := range results {
		if f == nil {
			continue
		}
		if len(bundle.Pages) >= c.cfg.MaxPages {
			break
		}
		if key := pageKey(f.page.URL); seenURL[key] {
			continue
		} else {
			seenURL[key] = true
		}
		// Catch-all routers serve the same shell for every path; keep one.
		if fp := fingerprint(f.page); seenContent[fp] {
			continue
		} else {
			seenContent[fp] = true
		}
		bundle.Pages = append(bundle.Pages, f.page)
		bundle.TotalChars += len(f.page.Text)
		sc.observe(f)
	}
	bundle.Signals = sc.finish(robots, sitemap, time.Now().UTC())

	warn := assessQuality(bundle, len(priorityPaths))

	zap.L().Info("crawl: complete",
		zap.String("domain", host),
		zap.Int("pages", len(bundle.Pages)),
		zap.Int("total_chars", bundle.TotalChars),
		zap.Bool("robots", robots),
		zap.Bool("sitemap", sitemap),
		zap.Duration("took", time.Since(start)),
	)
	if warn != nil {
		zap.L().Warn("crawl: degraded quality",
			zap.String("domain", host),
			zap.String("tier", string(warn.Tier)),
			zap.String("reason", warn.Reason),
		)
	}
	return bundle, warn, nil
}

// resolveBase turns user input into a fetch base URL and a normalized domain
// key. The base keeps the caller's scheme, host, and port so explicit http
// targets stay reachable; the domain drops scheme and www for cache keying.
func resolveBase(raw string) (base, domain string, err error) {
	domain, err = model.NormalizeDomain(raw)
	if err != nil {
		return "", "", err
	}
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, perr := url.Parse(s)
	if perr != nil {
		return "", "", perr
	}
	return u.Scheme + "://" + u.Host, domain, nil
}

// pageKey canonicalizes a final URL for duplicate detection. Redirect
// aliases like /about and /about-us often land on the same page.
func pageKey(pageURL string) string {
	return strings.TrimSuffix(strings.ToLower(pageURL), "/")
}

// fingerprint identifies a page by its text so path aliases that serve
// identical content collapse to one entry.
func fingerprint(p model.CrawledPage) string {
	t := p.Text
	if len(t) > 200 {
		t = t[:200]
	}
	return t
}

func (c *Crawler) probeRobots(ctx context.Context, base string) bool {
	body, ok := c.probe(ctx, base+"/robots.txt")
	if !ok {
		return false
	}
	s := strings.ToLower(string(body))
	if strings.Contains(s, "<html") {
		// Catch-all routers return their app shell for any path.
		return false
	}
	return strings.Contains(s, "user-agent") ||
		strings.Contains(s, "disallow") ||
		strings.Contains(s, "sitemap") ||
		strings.TrimSpace(s) == ""
}

func (c *Crawler) probeSitemap(ctx context.Context, base string) bool {
	body, ok := c.probe(ctx, base+"/sitemap.xml")
	if !ok {
		return false
	}
	s := strings.ToLower(string(body))
	return strings.Contains(s, "<urlset") || strings.Contains(s, "<sitemapindex")
}

func (c *Crawler) probe(ctx context.Context, probeURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyCap))
	if err != nil {
		return nil, false
	}
	return body, true
}

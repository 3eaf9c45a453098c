package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/pkg/reader"
)

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		MaxPages:    10,
		PageCharCap: 15000,
		TimeoutSecs: 5,
		UserAgent:   "RadiusBot-test/1.0",
	}
}

// pageHTML builds a realistic page with enough text for extraction to chew on.
func pageHTML(title, desc string, headings []string, marker string, paras int) string {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title>")
	b.WriteString(`<meta name="description" content="` + desc + `">`)
	b.WriteString("</head><body><nav>Home About Products Pricing</nav><main>")
	for _, h := range headings {
		b.WriteString("<h2>" + h + "</h2>")
	}
	for i := 0; i < paras; i++ {
		b.WriteString("<p>" + marker + " covers how teams adopt the analytics platform, from first ")
		b.WriteString("integration through governance reviews, with enough operational detail that ")
		b.WriteString("content extraction has real material to work with on every pass.</p>")
	}
	b.WriteString("</main><footer>Privacy Policy | Terms of Service</footer></body></html>")
	return b.String()
}

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/": pageHTML("Acme Analytics Platform", "Analytics for product teams",
			[]string{"Understand your customers", "Built for product teams", "Trusted by data leaders"}, "The homepage", 10),
		"/about": pageHTML("About Acme Analytics", "Who we are",
			[]string{"Our mission", "The team behind Acme", "Company history"}, "The about page", 10),
		"/products": pageHTML("Acme Products and Integrations", "What we build",
			[]string{"Dashboards", "Pipelines and alerts", "Integrations catalog"}, "The products page", 10),
		"/pricing": pageHTML("Acme Pricing Plans", "Plans from $29 per month",
			[]string{"Starter at $29 per month", "Growth plan", "Enterprise and custom pricing"}, "The pricing page", 10),
		"/docs": pageHTML("Acme Documentation", "Guides and API reference",
			[]string{"Getting started", "API reference", "Frequently asked questions"}, "The documentation", 10),
		"/blog": pageHTML("Acme Blog Product Updates", "News and updates",
			[]string{"Latest releases", "Engineering notes", "Customer stories"}, "The blog index", 10),
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /admin\nSitemap: /sitemap.xml\n"))
		case "/sitemap.xml":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<?xml version="1.0"?><urlset><url><loc>/</loc><lastmod>2026-07-01</lastmod></url></urlset>`))
		case "/about-us":
			http.Redirect(w, r, "/about", http.StatusMovedPermanently)
		default:
			body, ok := pages[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		}
	}))
}

func TestCrawl_HealthySite(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	c := New(testCrawlConfig())
	bundle, warn, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Nil(t, warn)

	kinds := make([]model.PageKind, 0, len(bundle.Pages))
	for _, p := range bundle.Pages {
		kinds = append(kinds, p.Kind)
	}
	assert.Equal(t, []model.PageKind{
		model.PageHomepage,
		model.PageAbout,
		model.PageProducts,
		model.PagePricing,
		model.PageDocumentation,
		model.PageBlog,
	}, kinds)

	assert.Greater(t, bundle.TotalChars, 5000)
	assert.False(t, bundle.FetchedAt.IsZero())

	home := bundle.Pages[0]
	assert.Equal(t, "Acme Analytics Platform", home.Title)
	assert.Equal(t, "Analytics for product teams", home.Description)
	assert.Contains(t, home.Text, "analytics platform")
	assert.NotEmpty(t, home.Headings)
	assert.False(t, home.ViaReader)

	assert.True(t, bundle.Signals.HasRobotsTxt)
	assert.True(t, bundle.Signals.HasSitemap)
	assert.True(t, bundle.Signals.HasPricing)
	assert.True(t, bundle.Signals.HasBlog)
	assert.True(t, bundle.Signals.HasFAQ)
	assert.True(t, bundle.Signals.HasDisclaimers)
	assert.Contains(t, bundle.Signals.DetectedSections, "about")
	assert.Contains(t, bundle.Signals.DetectedSections, "pricing")
	assert.InDelta(t, 1.0, bundle.Signals.TitleQuality, 0.01)
}

func TestCrawl_MaxPagesCap(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	cfg := testCrawlConfig()
	cfg.MaxPages = 2
	c := New(cfg)
	bundle, _, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, bundle.Pages, 2)
	assert.Equal(t, model.PageHomepage, bundle.Pages[0].Kind)
	assert.Equal(t, model.PageAbout, bundle.Pages[1].Kind)
}

func TestCrawl_RedirectAliasDeduped(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	c := New(testCrawlConfig())
	bundle, _, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	aboutPages := 0
	for _, p := range bundle.Pages {
		if p.Kind == model.PageAbout {
			aboutPages++
		}
	}
	assert.Equal(t, 1, aboutPages, "/about and /about-us land on the same page")
}

func TestCrawl_CatchAllShellDeduped(t *testing.T) {
	shell := pageHTML("Acme one page for all", "Single page app",
		[]string{"One shell to rule them all"}, "The only page", 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(shell))
	}))
	defer srv.Close()

	c := New(testCrawlConfig())
	bundle, warn, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, bundle.Pages, 1, "identical content on every path collapses to one page")
	require.NotNil(t, warn)
	assert.Equal(t, model.TierLimited, warn.Tier)
}

func TestCrawl_BlockedSiteNoReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cf-Ray", "8a1b2c3d4e5f")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html><body>Access denied</body></html>"))
	}))
	defer srv.Close()

	c := New(testCrawlConfig())
	bundle, warn, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Empty(t, bundle.Pages)
	require.NotNil(t, warn)
	assert.Equal(t, model.TierSevere, warn.Tier)
	assert.Contains(t, warn.Reason, "blocks automated fetches")
}

func TestCrawl_BlockedSiteReaderRescues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cf-Ray", "8a1b2c3d4e5f")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html><body>Access denied</body></html>"))
	}))
	defer srv.Close()

	fr := &fakeReader{fn: func(_ context.Context, u string) (*reader.ReadResponse, error) {
		name := strings.Trim(strings.TrimPrefix(u, srv.URL), "/")
		if name == "" {
			name = "home"
		}
		content := "# The " + name + " page\n\n" +
			strings.Repeat("Readable "+name+" content recovered through the proxy service. ", 30)
		return &reader.ReadResponse{
			Code: 200,
			Data: reader.ReadData{Title: "Acme " + name + " page", URL: u, Content: content},
		}, nil
	}}

	c := New(testCrawlConfig(), WithReader(fr))
	bundle, warn, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Nil(t, warn)
	require.Len(t, bundle.Pages, 10)
	for _, p := range bundle.Pages {
		assert.True(t, p.ViaReader)
		assert.NotEmpty(t, p.Text)
	}
	assert.False(t, bundle.Signals.HasRobotsTxt, "probes cannot get past the block")
}

func TestCrawl_OnlyHomepageExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(pageHTML("Tiny Startup Site", "Just us",
			[]string{"What we do"}, "The homepage", 6)))
	}))
	defer srv.Close()

	c := New(testCrawlConfig())
	bundle, warn, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, bundle.Pages, 1)
	assert.Equal(t, model.PageHomepage, bundle.Pages[0].Kind)
	require.NotNil(t, warn)
	assert.Equal(t, model.TierLimited, warn.Tier)
	assert.Contains(t, warn.Reason, "thin crawl")
}

func TestCrawl_InvalidDomain(t *testing.T) {
	c := New(testCrawlConfig())
	_, _, err := c.Crawl(context.Background(), "not a domain")
	assert.Error(t, err)

	_, _, err = c.Crawl(context.Background(), "")
	assert.Error(t, err)
}

func TestCrawl_ContextCancelled(t *testing.T) {
	srv := newTestSite(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(testCrawlConfig())
	_, _, err := c.Crawl(ctx, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestResolveBase(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantBase   string
		wantDomain string
		wantErr    bool
	}{
		{name: "bare_domain", raw: "acme.dev", wantBase: "https://acme.dev", wantDomain: "acme.dev"},
		{name: "https_with_path", raw: "https://www.acme.dev/pricing", wantBase: "https://www.acme.dev", wantDomain: "acme.dev"},
		{name: "http_with_port", raw: "http://127.0.0.1:8080", wantBase: "http://127.0.0.1:8080", wantDomain: "127.0.0.1"},
		{name: "empty", raw: "", wantErr: true},
		{name: "no_tld", raw: "localhost", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, domain, err := resolveBase(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantDomain, domain)
		})
	}
}

func TestPageKey(t *testing.T) {
	assert.Equal(t, pageKey("https://acme.dev/about"), pageKey("https://acme.dev/about/"))
	assert.Equal(t, pageKey("https://Acme.dev/About"), pageKey("https://acme.dev/about"))
	assert.NotEqual(t, pageKey("https://acme.dev/about"), pageKey("https://acme.dev/pricing"))
}

func TestPriorityPathsCoverHomepageFirst(t *testing.T) {
	require.NotEmpty(t, priorityPaths)
	assert.Equal(t, "/", priorityPaths[0].path)
	assert.Equal(t, model.PageHomepage, priorityPaths[0].kind)

	seen := make(map[string]bool)
	for _, e := range priorityPaths {
		assert.False(t, seen[e.path], "duplicate priority path %s", e.path)
		seen[e.path] = true
	}
}

package model

import "time"

// PageKind labels what a crawled page is, based on the path it was found at.
type PageKind string

const (
	PageHomepage      PageKind = "homepage"
	PageAbout         PageKind = "about"
	PageProducts      PageKind = "products"
	PagePricing       PageKind = "pricing"
	PageDocumentation PageKind = "documentation"
	PageSupport       PageKind = "support"
	PageBlog          PageKind = "blog"
	PageResources     PageKind = "resources"
	PageCustomers     PageKind = "customers"
	PageTrust         PageKind = "trust"
)

// CrawledPage is one successfully fetched and extracted page.
type CrawledPage struct {
	URL         string   `json:"url"`
	Kind        PageKind `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Headings    []string `json:"headings,omitempty"`
	// Text is readable content with markup stripped, capped per page.
	Text       string `json:"text"`
	StatusCode int    `json:"status_code"`
	// ViaReader is true when the page came through the reader fallback
	// rather than a direct fetch.
	ViaReader bool `json:"via_reader,omitempty"`
}

// SiteSignals are the structural facts about the site that feed technical
// scoring. They are collected during the crawl, not re-fetched later.
type SiteSignals struct {
	HasRobotsTxt     bool     `json:"has_robots_txt"`
	HasSitemap       bool     `json:"has_sitemap"`
	HasFAQ           bool     `json:"has_faq"`
	HasPricing       bool     `json:"has_pricing"`
	HasTestimonials  bool     `json:"has_testimonials"`
	HasBlog          bool     `json:"has_blog"`
	HasComparisons   bool     `json:"has_comparisons"`
	HasAuthorInfo    bool     `json:"has_author_info"`
	HasDisclaimers   bool     `json:"has_disclaimers"`
	TitleQuality     float64  `json:"title_quality"`
	HeadingQuality   float64  `json:"heading_quality"`
	ScriptRatio      float64  `json:"script_ratio"`
	FreshnessDays    int      `json:"freshness_days"`
	DetectedSections []string `json:"detected_sections,omitempty"`
}

// CrawlBundle is everything one crawl produced. It is stored with the
// analysis so feedback passes can re-synthesize without re-crawling.
type CrawlBundle struct {
	Domain     string        `json:"domain"`
	Pages      []CrawledPage `json:"pages"`
	Signals    SiteSignals   `json:"signals"`
	TotalChars int           `json:"total_chars"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// ContentConfidence grades the bundle by volume: five or more pages with
// over 10000 characters is high, three pages with over 5000 is medium,
// anything less is low.
func (b *CrawlBundle) ContentConfidence() Confidence {
	switch {
	case len(b.Pages) >= 5 && b.TotalChars > 10000:
		return ConfidenceHigh
	case len(b.Pages) >= 3 && b.TotalChars > 5000:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

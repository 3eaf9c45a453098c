package crawl

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/radius-labs/visibility-cli/internal/model"
)

var (
	isoDateRe = regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`)
	priceRe   = regexp.MustCompile(`\$\d`)
)

// sectionOrder fixes the emission order of DetectedSections so identical
// crawls produce identical signal payloads.
var sectionOrder = []string{
	"about",
	"products",
	"pricing",
	"documentation",
	"support",
	"blog",
	"resources",
	"customers",
	"trust",
	"faq",
	"testimonials",
	"comparisons",
}

// headingsForFullMarks is how many headings per page earn a heading quality
// of 1.0.
const headingsForFullMarks = 4

// signalCollector accumulates structural facts across kept pages and emits
// one SiteSignals when the crawl settles.
type signalCollector struct {
	sig         model.SiteSignals
	sections    map[string]bool
	pages       int
	titled      int
	headings    int
	totalBytes  int
	scriptBytes int
	newest      time.Time
}

func newSignalCollector() *signalCollector {
	return &signalCollector{sections: make(map[string]bool)}
}

func (sc *signalCollector) observe(f *fetched) {
	p := f.page
	sc.pages++
	if n := len(p.Title); n >= 10 && n <= 120 {
		sc.titled++
	}
	sc.headings += len(p.Headings)

	if f.html != "" {
		sc.totalBytes += len(f.html)
		sc.scriptBytes += countScriptBytes(f.html)
	} else {
		// Reader markdown carries no scripts; count it as clean content.
		sc.totalBytes += len(p.Text)
	}

	textLower := strings.ToLower(p.Text + " " + strings.Join(p.Headings, " "))
	docLower := textLower
	if f.html != "" {
		// Nav and footer links betray sections the readable text loses.
		docLower = strings.ToLower(f.html)
	}

	switch p.Kind {
	case model.PageAbout:
		sc.mark("about")
	case model.PageProducts:
		sc.mark("products")
	case model.PagePricing:
		sc.mark("pricing")
		sc.sig.HasPricing = true
	case model.PageDocumentation:
		sc.mark("documentation")
	case model.PageSupport:
		sc.mark("support")
	case model.PageBlog:
		sc.mark("blog")
		sc.sig.HasBlog = true
	case model.PageResources:
		sc.mark("resources")
	case model.PageCustomers:
		sc.mark("customers")
		sc.sig.HasTestimonials = true
	case model.PageTrust:
		sc.mark("trust")
	}

	if containsAny(docLower, "faq", "frequently asked") {
		sc.mark("faq")
		sc.sig.HasFAQ = true
	}
	if containsAny(docLower, "testimonial", "what our customers", "customer stories", "trusted by", "case stud") {
		sc.mark("testimonials")
		sc.sig.HasTestimonials = true
	}
	if containsAny(textLower, " vs ", " versus ", "alternative to", "compared to", "comparison") {
		sc.mark("comparisons")
		sc.sig.HasComparisons = true
	}
	if !sc.sig.HasPricing {
		if priceRe.MatchString(textLower) && containsAny(textLower, "month", "year", "per user", "per seat", "pricing") {
			sc.sig.HasPricing = true
		} else if containsAny(textLower, "free trial", "free tier", "custom pricing", "contact sales") {
			sc.sig.HasPricing = true
		}
	}
	if containsAny(textLower, "written by", "reviewed by") ||
		strings.Contains(docLower, `name="author"`) ||
		strings.Contains(docLower, `rel="author"`) {
		sc.sig.HasAuthorInfo = true
	}
	if containsAny(docLower, "disclaimer", "for informational purposes", "terms of service", "privacy policy") {
		sc.sig.HasDisclaimers = true
	}

	sc.observeDates(f, docLower)
}

func (sc *signalCollector) mark(section string) {
	sc.sections[section] = true
}

// observeDates tracks the newest plausible content date from ISO dates in
// the document and the Last-Modified header.
func (sc *signalCollector) observeDates(f *fetched, docLower string) {
	horizon := time.Now().UTC().Add(48 * time.Hour)
	for _, m := range isoDateRe.FindAllString(docLower, -1) {
		d, err := time.Parse("2006-01-02", m)
		if err != nil || d.After(horizon) {
			continue
		}
		if d.After(sc.newest) {
			sc.newest = d
		}
	}
	if f.header != nil {
		if lm, err := http.ParseTime(f.header.Get("Last-Modified")); err == nil {
			if !lm.After(horizon) && lm.After(sc.newest) {
				sc.newest = lm
			}
		}
	}
}

func (sc *signalCollector) finish(robots, sitemap bool, now time.Time) model.SiteSignals {
	s := sc.sig
	s.HasRobotsTxt = robots
	s.HasSitemap = sitemap
	if sc.pages > 0 {
		s.TitleQuality = float64(sc.titled) / float64(sc.pages)
		s.HeadingQuality = clamp01(float64(sc.headings) / float64(sc.pages*headingsForFullMarks))
	}
	if sc.totalBytes > 0 {
		s.ScriptRatio = float64(sc.scriptBytes) / float64(sc.totalBytes)
	}
	s.FreshnessDays = defaultFreshnessDays
	if !sc.newest.IsZero() {
		if days := int(now.Sub(sc.newest).Hours() / 24); days >= 0 && days < defaultFreshnessDays {
			s.FreshnessDays = days
		}
	}
	for _, name := range sectionOrder {
		if sc.sections[name] {
			s.DetectedSections = append(s.DetectedSections, name)
		}
	}
	return s
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

package crawl

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/radius-labs/visibility-cli/internal/model"
)

var (
	titleRe       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	headingRe     = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	metaTagRe     = regexp.MustCompile(`(?is)<meta[^>]+>`)
	nameAttrRe    = regexp.MustCompile(`(?i)(?:name|property)\s*=\s*["']([^"']+)["']`)
	contentAttrRe = regexp.MustCompile(`(?i)content\s*=\s*["']([^"']*)["']`)

	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	newlnRe  = regexp.MustCompile(`\n{3,}`)
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
)

const (
	maxHeadingsPerPage = 30
	maxHeadingLen      = 200
)

// extractPage turns a fetched document into a CrawledPage. Main content
// comes from readability extraction with a manual tag-strip fallback for
// pages readability cannot make sense of.
func (c *Crawler) extractPage(raw *rawPage, kind model.PageKind) model.CrawledPage {
	title := strings.TrimSpace(metaContent(raw.HTML, "og:title"))
	if title == "" {
		title = htmlTitle(raw.HTML)
	}
	desc := strings.TrimSpace(metaContent(raw.HTML, "description"))
	if desc == "" {
		desc = strings.TrimSpace(metaContent(raw.HTML, "og:description"))
	}

	var text string
	pu, perr := url.Parse(raw.URL)
	if perr == nil {
		article, rerr := readability.FromReader(strings.NewReader(raw.HTML), pu)
		if rerr == nil {
			text = normalizeSpace(article.TextContent)
			if title == "" {
				title = strings.TrimSpace(article.Title)
			}
			if desc == "" {
				desc = strings.TrimSpace(article.Excerpt)
			}
		}
	}
	if len(text) < minReadableChars {
		if alt := stripHTML(raw.HTML); len(alt) > len(text) {
			text = alt
		}
	}

	return model.CrawledPage{
		URL:         raw.URL,
		Kind:        kind,
		Title:       title,
		Description: desc,
		Headings:    extractHeadings(raw.HTML),
		Text:        truncate(text, c.cfg.PageCharCap),
		StatusCode:  raw.Status,
	}
}

// metaContent returns the content attribute of the meta tag whose name or
// property equals key, tolerating either attribute order.
func metaContent(doc, key string) string {
	for _, tag := range metaTagRe.FindAllString(doc, -1) {
		m := nameAttrRe.FindStringSubmatch(tag)
		if m == nil || !strings.EqualFold(m[1], key) {
			continue
		}
		if cm := contentAttrRe.FindStringSubmatch(tag); cm != nil {
			return decodeEntities(cm[1])
		}
	}
	return ""
}

// htmlTitle pulls the <title> from a document.
func htmlTitle(doc string) string {
	if m := titleRe.FindStringSubmatch(doc); len(m) > 1 {
		return strings.TrimSpace(decodeEntities(tagRe.ReplaceAllString(m[1], "")))
	}
	return ""
}

// extractHeadings collects h1-h3 text, skipping trivial fragments.
func extractHeadings(doc string) []string {
	var out []string
	for _, m := range headingRe.FindAllStringSubmatch(doc, -1) {
		h := strings.TrimSpace(decodeEntities(tagRe.ReplaceAllString(m[1], " ")))
		h = spaceRe.ReplaceAllString(h, " ")
		if len(h) <= 3 {
			continue
		}
		if len(h) > maxHeadingLen {
			h = truncate(h, maxHeadingLen)
		}
		out = append(out, h)
		if len(out) >= maxHeadingsPerPage {
			break
		}
	}
	return out
}

// stripHTML removes script/style/nav/header/footer/aside blocks entirely,
// strips remaining tags, decodes entities, and collapses whitespace. The
// result is plaintext suitable for LLM synthesis.
func stripHTML(doc string) string {
	for _, tag := range []string{"script", "style", "nav", "header", "footer", "aside", "noscript", "svg", "iframe"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		doc = re.ReplaceAllString(doc, "")
	}
	doc = tagRe.ReplaceAllString(doc, " ")
	doc = decodeEntities(doc)
	return normalizeSpace(doc)
}

func decodeEntities(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return r.Replace(s)
}

// normalizeSpace collapses runs of spaces and blank lines.
func normalizeSpace(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	s = newlnRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// countScriptBytes measures how much of a document is script and style
// payload, feeding the script-to-content ratio signal.
func countScriptBytes(doc string) int {
	total := 0
	for _, m := range scriptRe.FindAllString(doc, -1) {
		total += len(m)
	}
	return total
}

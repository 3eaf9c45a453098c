package crawl

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/resilience"
	"github.com/radius-labs/visibility-cli/pkg/reader"
)

// readerFallback fetches pages through the reader proxy when direct fetches
// are blocked. A circuit breaker stops the crawl from hammering a flaky
// proxy: a few consecutive failures open the circuit for the configured
// reset window.
type readerFallback struct {
	client  reader.Client
	breaker *resilience.CircuitBreaker
}

func newReaderFallback(rc reader.Client, cb resilience.CircuitBreakerConfig) *readerFallback {
	cb.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("crawl: reader circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &readerFallback{
		client:  rc,
		breaker: resilience.NewCircuitBreaker(cb),
	}
}

// fetch reads one page through the proxy and converts it to a CrawledPage.
// Unusable responses count as breaker failures so a proxy that returns
// challenge pages trips the circuit just like one that errors.
func (r *readerFallback) fetch(ctx context.Context, pageURL string, kind model.PageKind, charCap int) (*model.CrawledPage, error) {
	return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*model.CrawledPage, error) {
		resp, err := r.client.Read(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		if reason := unusableReaderContent(resp); reason != "" {
			return nil, eris.Errorf("crawl: reader content unusable: %s", reason)
		}

		content := normalizeSpace(resp.Data.Content)
		finalURL := resp.Data.URL
		if finalURL == "" {
			finalURL = pageURL
		}
		return &model.CrawledPage{
			URL:        finalURL,
			Kind:       kind,
			Title:      strings.TrimSpace(resp.Data.Title),
			Headings:   markdownHeadings(resp.Data.Content),
			Text:       truncate(content, charCap),
			StatusCode: 200,
			ViaReader:  true,
		}, nil
	})
}

// unusableReaderContent checks whether a reader response carries real page
// content or just the upstream block it was supposed to bypass. Returns an
// empty string when the content is usable.
func unusableReaderContent(resp *reader.ReadResponse) string {
	if resp == nil {
		return "nil response"
	}
	if resp.Code != 0 && resp.Code != 200 {
		return "non-200 upstream code"
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < minReadableChars {
		return "content too short"
	}

	lower := strings.ToLower(content)
	challengeSignatures := []string{
		"checking your browser",
		"enable javascript",
		"please enable cookies",
		"access denied",
		"403 forbidden",
		"just a moment",
		"attention required",
	}
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return "challenge page"
		}
	}
	return ""
}

// markdownHeadings collects #, ##, and ### heading lines from reader
// markdown output.
func markdownHeadings(md string) []string {
	var out []string
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		if level == 0 || level > 3 || level >= len(trimmed) || trimmed[level] != ' ' {
			continue
		}
		h := strings.TrimSpace(trimmed[level:])
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

package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/radius-labs/visibility-cli/internal/model"
)

const (
	// maxBodyBytes bounds how much of a page is read before extraction.
	maxBodyBytes = 512 * 1024

	// minReadableChars is the least extracted text a page must carry to
	// count as fetched.
	minReadableChars = 100

	// rateLimitWait is the pause before the single retry of a rate-limited
	// fetch when the server does not advertise Retry-After.
	rateLimitWait = 2 * time.Second

	// rateLimitWaitCap bounds an advertised Retry-After so one slow host
	// cannot stall the whole crawl.
	rateLimitWaitCap = 10 * time.Second
)

// rawPage is a direct fetch before extraction.
type rawPage struct {
	URL    string
	Status int
	Header http.Header
	HTML   string
}

// fetched pairs an extracted page with the raw material signal collection
// still needs. html is empty for reader-proxy fetches.
type fetched struct {
	page   model.CrawledPage
	html   string
	header http.Header
}

// blockError marks a fetch rejected by anti-bot protection rather than a
// missing or broken page. Blocked fetches are worth retrying through the
// reader proxy; missing pages are not.
type blockError struct {
	kind BlockType
	// retryAfter is the server-advertised wait for rate-limit blocks,
	// zero when none was given.
	retryAfter time.Duration
}

func (e *blockError) Error() string {
	return fmt.Sprintf("blocked (%s)", e.kind)
}

func isBlock(err error) bool {
	var be *blockError
	return errors.As(err, &be)
}

// rateLimited extracts the rate-limit block from err, nil for any other
// failure.
func rateLimited(err error) *blockError {
	var be *blockError
	if errors.As(err, &be) && be.kind == BlockRateLimit {
		return be
	}
	return nil
}

// fetchOne fetches one page, going through the reader proxy when the direct
// fetch is blocked or skipDirect is set. A rate-limited fetch is retried
// once after the advertised delay before counting as blocked. blocked
// reports whether the direct path hit anti-bot protection, regardless of
// whether the reader rescued the page.
func (c *Crawler) fetchOne(ctx context.Context, pageURL string, kind model.PageKind, skipDirect bool) (page *fetched, blocked bool, err error) {
	if !skipDirect {
		raw, derr := c.fetchDirect(ctx, pageURL)
		if be := rateLimited(derr); be != nil {
			wait := be.retryAfter
			if wait <= 0 {
				wait = c.rateWait
			}
			zap.L().Debug("crawl: rate limited, retrying once",
				zap.String("url", pageURL),
				zap.Duration("wait", wait),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, false, eris.Wrap(ctx.Err(), "crawl: cancelled")
			}
			raw, derr = c.fetchDirect(ctx, pageURL)
		}
		if derr == nil {
			p := c.extractPage(raw, kind)
			return &fetched{page: p, html: raw.HTML, header: raw.Header}, false, nil
		}
		if !isBlock(derr) {
			return nil, false, derr
		}
		zap.L().Debug("crawl: direct fetch blocked",
			zap.String("url", pageURL),
			zap.Error(derr),
		)
	}
	blocked = true

	if c.reader == nil {
		return nil, blocked, eris.Errorf("crawl: blocked with no reader fallback: %s", pageURL)
	}
	p, rerr := c.reader.fetch(ctx, pageURL, kind, c.cfg.PageCharCap)
	if rerr != nil {
		return nil, blocked, eris.Wrapf(rerr, "crawl: reader fallback %s", pageURL)
	}
	return &fetched{page: *p}, blocked, nil
}

// fetchDirect performs the plain HTTP fetch with block detection and
// charset decoding.
func (c *Crawler) fetchDirect(ctx context.Context, pageURL string) (*rawPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "crawl: create request %s", pageURL)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "crawl: fetch %s", pageURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "crawl: read body %s", pageURL)
	}

	if yes, kind := detectBlock(resp, body); yes {
		be := &blockError{kind: kind}
		if kind == BlockRateLimit {
			be.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, eris.Wrapf(be, "crawl: fetch %s", pageURL)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("crawl: status %d for %s", resp.StatusCode, pageURL)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return nil, eris.Errorf("crawl: non-html content type %q for %s", ct, pageURL)
	}

	doc := decodeBody(body, ct)
	if len(strings.TrimSpace(doc)) < minReadableChars {
		return nil, eris.Errorf("crawl: empty page %s", pageURL)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &rawPage{
		URL:    finalURL,
		Status: resp.StatusCode,
		Header: resp.Header,
		HTML:   doc,
	}, nil
}

// parseRetryAfter reads a Retry-After header in either seconds or HTTP-date
// form, clamped to rateLimitWaitCap. Absent or unparseable values read as
// zero, leaving the wait to the crawler default.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs <= 0 {
			return 0
		}
		return min(time.Duration(secs)*time.Second, rateLimitWaitCap)
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return min(d, rateLimitWaitCap)
		}
	}
	return 0
}

// decodeBody converts a response body to UTF-8 using the charset declared in
// the Content-Type header. Unknown or missing charsets pass through as-is.
func decodeBody(body []byte, contentType string) string {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if cs := params["charset"]; cs != "" {
				if enc, err := htmlindex.Get(cs); err == nil {
					if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
						return string(decoded)
					}
				}
			}
		}
	}
	return string(body)
}

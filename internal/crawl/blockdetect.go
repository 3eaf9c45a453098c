package crawl

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot protection detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockRateLimit  BlockType = "rate_limit"
	BlockForbidden  BlockType = "forbidden"
)

// detectBlock checks an HTTP response for signs of anti-bot protection.
// A block means the page exists but refuses automated fetches, so the
// reader proxy is worth trying; a plain 404/500 is not a block.
func detectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true, BlockRateLimit
	case http.StatusForbidden, http.StatusServiceUnavailable:
		if resp.Header.Get("cf-ray") != "" ||
			resp.Header.Get("cf-cache-status") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
		if resp.StatusCode == http.StatusForbidden {
			return true, BlockForbidden
		}
	}

	lower := strings.ToLower(string(body))

	// Challenge interstitial markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "just a moment...") {
		return true, BlockCloudflare
	}

	// Captcha walls are small pages; real pages embedding a captcha widget
	// in a form are not walls.
	if len(body) < 4096 &&
		(strings.Contains(lower, "captcha") || strings.Contains(lower, "verify you are human")) {
		return true, BlockCaptcha
	}

	// JS-only shell: tiny body that tells non-JS clients nothing.
	if len(body) < 2048 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

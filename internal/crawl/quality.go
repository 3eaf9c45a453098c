package crawl

import (
	"fmt"
	"math"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// Thresholds separating the quality tiers. A crawl below the severe line
// gives synthesis essentially nothing to work with; the limited line tracks
// the medium-confidence floor.
const (
	severeCharFloor  = 500
	limitedCharFloor = 5000
	limitedPageFloor = 3
	shellScriptRatio = 0.70
	shellCharCeiling = 2000
	heavyScriptRatio = 0.50
)

// assessQuality grades a finished bundle. Nil means healthy; otherwise the
// tier tells downstream phases how far to degrade. It never aborts a crawl.
func assessQuality(b *model.CrawlBundle, attempted int) *model.QualityWarning {
	sig := map[string]any{
		"pages":        len(b.Pages),
		"attempted":    attempted,
		"total_chars":  b.TotalChars,
		"script_ratio": math.Round(b.Signals.ScriptRatio*100) / 100,
	}
	warn := func(tier model.WarningTier, reason string) *model.QualityWarning {
		return &model.QualityWarning{Tier: tier, Phase: "crawl", Reason: reason, Signals: sig}
	}

	switch {
	case len(b.Pages) == 0:
		return warn(model.TierSevere, "no pages could be fetched")
	case b.TotalChars < severeCharFloor:
		return warn(model.TierSevere,
			fmt.Sprintf("only %d readable characters across %d pages", b.TotalChars, len(b.Pages)))
	case b.Signals.ScriptRatio > shellScriptRatio && b.Signals.HeadingQuality == 0 && b.TotalChars < shellCharCeiling:
		return warn(model.TierSevere,
			"client-rendered shell: scripts dominate and no headings or meaningful text survive")
	case len(b.Pages) < limitedPageFloor || b.TotalChars < limitedCharFloor:
		return warn(model.TierLimited,
			fmt.Sprintf("thin crawl: %d pages, %d characters", len(b.Pages), b.TotalChars))
	case b.Signals.ScriptRatio > heavyScriptRatio:
		return warn(model.TierWarning,
			"script-heavy pages may hide content from AI crawlers")
	case b.Signals.TitleQuality < 0.5 || b.Signals.HeadingQuality < 0.25:
		return warn(model.TierWarning,
			"weak titles or headings reduce machine readability")
	default:
		return nil
	}
}

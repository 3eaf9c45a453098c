package scoring

import "github.com/radius-labs/visibility-cli/internal/model"

const (
	// weakSubMetric is the value below which a sub-metric earns its owner a
	// recommendation.
	weakSubMetric = 5.0
	// criticalSubMetric is the value below which that recommendation is
	// high priority.
	criticalSubMetric = 2.5
	// maxRecommendations caps the report so it stays actionable.
	maxRecommendations = 5
)

// playbook maps each sub-metric to the advice given when it scores low.
// The slice order is the tie-break order in the report, so it stays fixed.
var playbook = []struct {
	sub string
	rec model.Recommendation
}{
	{subMentionRate, model.Recommendation{
		Category:    model.DimensionAIC,
		Title:       "Improve AI Visibility",
		Description: "Assistants rarely name the brand when answering relevant questions. Create content that matches how customers actually ask.",
		Impact:      "+20-30 overall points",
		Actions: []string{
			"Create FAQ pages answering common customer questions",
			"Publish comparison content against named alternatives",
			"Optimize documentation for discoverability",
		},
	}},
	{subIntentCoverage, model.Recommendation{
		Category:    model.DimensionAIC,
		Title:       "Cover More Question Intents",
		Description: "The brand only surfaces for some kinds of questions. Fill the intents where it never appears.",
		Impact:      "+10-15 overall points",
		Actions: []string{
			"Write use-case guides for each customer segment",
			"Add a security and trust page",
			"Publish decision-stage content such as pricing guides",
		},
	}},
	{subProminence, model.Recommendation{
		Category:    model.DimensionAIC,
		Title:       "Lead With the Brand",
		Description: "When the brand does appear, it shows up late in the answer. Stronger positioning moves it forward.",
		Impact:      "+5-10 overall points",
		Actions: []string{
			"Open key pages with a one-sentence positioning statement",
			"Use the brand name consistently across the site",
		},
	}},
	{subRecommendationRate, model.Recommendation{
		Category:    model.DimensionAIC,
		Title:       "Earn Recommendations",
		Description: "Answers describe the space without steering anyone toward the brand. Third-party validation changes that.",
		Impact:      "+5-10 overall points",
		Actions: []string{
			"Collect reviews on the platforms assistants cite",
			"Get listed in credible industry roundups",
		},
	}},
	{subEvidenceDensity, model.Recommendation{
		Category:    model.DimensionCES,
		Title:       "Add Supporting Evidence",
		Description: "The profile carries little proof. Case studies, statistics, and reviews give assistants something to cite.",
		Impact:      "+10-15 points",
		Actions: []string{
			"Publish customer case studies with concrete outcomes",
			"Add verifiable statistics to product pages",
			"Surface customer reviews",
		},
	}},
	{subAuthorTransparency, model.Recommendation{
		Category:    model.DimensionCES,
		Title:       "Show the People Behind the Content",
		Description: "No identifiable authors or team stand behind the site. Attribution builds machine trust.",
		Impact:      "+5-10 points",
		Actions: []string{
			"Add author bylines to articles",
			"Publish a team page with real names and roles",
		},
	}},
	{subSafetyDisclaimers, model.Recommendation{
		Category:    model.DimensionCES,
		Title:       "Publish Disclaimers and Policies",
		Description: "The site lacks visible legal, safety, or privacy language, which reads as a credibility gap.",
		Impact:      "+3-5 points",
		Actions: []string{
			"Add a privacy policy and terms of service",
			"State disclaimers where claims need them",
		},
	}},
	{subFreshness, model.Recommendation{
		Category:    model.DimensionCES,
		Title:       "Refresh Stale Content",
		Description: "Nothing on the site carries a recent date. Assistants discount content that looks abandoned.",
		Impact:      "+5-10 points",
		Actions: []string{
			"Date-stamp articles and update the most-read ones",
			"Keep a changelog or news feed current",
		},
	}},
	{subTitleHeadings, model.Recommendation{
		Category:    model.DimensionMTS,
		Title:       "Fix Titles and Headings",
		Description: "Pages are missing titles or a usable heading structure, so machines cannot outline the content.",
		Impact:      "+5-10 points",
		Actions: []string{
			"Give every page a descriptive title",
			"Structure pages with meaningful headings",
		},
	}},
	{subScriptLoad, model.Recommendation{
		Category:    model.DimensionMTS,
		Title:       "Reduce Client-Side Rendering",
		Description: "Most of the page weight is script, leaving little content for crawlers that do not execute it.",
		Impact:      "+10-15 points",
		Actions: []string{
			"Server-render the pages that describe the product",
			"Keep core copy in plain HTML",
		},
	}},
	{subStructuredSections, model.Recommendation{
		Category:    model.DimensionMTS,
		Title:       "Add Structured Sections",
		Description: "The site lacks the sections assistants mine for answers: FAQ, pricing, testimonials, comparisons.",
		Impact:      "+10-15 points",
		Actions: []string{
			"Add an FAQ section with schema markup",
			"Publish a pricing page",
			"Create comparison pages",
		},
	}},
	{subCrawlability, model.Recommendation{
		Category:    model.DimensionMTS,
		Title:       "Open the Site to Crawlers",
		Description: "robots.txt or sitemap.xml is missing, so crawlers cannot tell what they may index.",
		Impact:      "+3-5 points",
		Actions: []string{
			"Serve a robots.txt that allows reputable crawlers",
			"Publish and register a sitemap.xml",
		},
	}},
}

// buildRecommendations returns advice for the weakest sub-metrics, high
// priority first, capped at maxRecommendations. The walk order is fixed so
// identical reports yield identical advice.
func buildRecommendations(dims []model.DimensionScore) []model.Recommendation {
	values := make(map[string]float64, 12)
	for _, d := range dims {
		for _, sm := range d.SubMetrics {
			values[sm.Name] = sm.Value
		}
	}

	var high, medium []model.Recommendation
	for _, entry := range playbook {
		v, ok := values[entry.sub]
		if !ok || v >= weakSubMetric {
			continue
		}
		rec := entry.rec
		if v < criticalSubMetric {
			rec.Priority = model.PriorityHigh
			high = append(high, rec)
		} else {
			rec.Priority = model.PriorityMedium
			medium = append(medium, rec)
		}
	}

	recs := append(high, medium...)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

package scoring

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// Sub-metric names, also the keys the recommendation playbook matches on.
const (
	subMentionRate        = "mention_rate"
	subIntentCoverage     = "intent_coverage"
	subProminence         = "mention_prominence"
	subRecommendationRate = "recommendation_rate"

	subEvidenceDensity    = "evidence_density"
	subAuthorTransparency = "author_transparency"
	subSafetyDisclaimers  = "safety_disclaimers"
	subFreshness          = "content_freshness"

	subTitleHeadings      = "title_headings"
	subScriptLoad         = "script_load"
	subStructuredSections = "structured_sections"
	subCrawlability       = "crawlability"
)

// Engine computes score reports from run outputs. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine creates an Engine with the given sub-metric weights.
func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

// Score computes one report from a run's panel, answers, knowledge
// representation, and crawl signals. Identical inputs always yield
// identical numbers: sub-metrics evaluate in fixed order and nothing here
// consults a clock except the GeneratedAt stamp.
func (e *Engine) Score(panel *model.QuestionPanel, answers *model.AnswerSet, kr *model.KnowledgeRepresentation, signals model.SiteSignals) *model.ScoreReport {
	aic := e.scoreAIC(panel, answers)
	ces := e.scoreCES(kr, signals)
	mts := e.scoreMTS(signals)

	overall := model.Overall(aic.Score, ces.Score, mts.Score)
	dims := []model.DimensionScore{aic, ces, mts}

	report := &model.ScoreReport{
		AIC:             aic.Score,
		CES:             ces.Score,
		MTS:             mts.Score,
		Overall:         overall,
		Grade:           model.GradeFor(overall),
		Dimensions:      dims,
		Recommendations: buildRecommendations(dims),
		GeneratedAt:     time.Now().UTC(),
	}

	zap.L().Info("scoring: report computed",
		zap.Float64("aic", report.AIC),
		zap.Float64("ces", report.CES),
		zap.Float64("mts", report.MTS),
		zap.Int("overall", report.Overall),
		zap.String("grade", report.Grade),
	)

	return report
}

func (e *Engine) scoreAIC(panel *model.QuestionPanel, answers *model.AnswerSet) model.DimensionScore {
	w := e.weights.AIC
	subs := []model.SubMetric{
		{Name: subMentionRate, Value: scoreMentionRate(answers), Weight: w.MentionRate},
		{Name: subIntentCoverage, Value: scoreIntentCoverage(panel, answers), Weight: w.IntentCoverage},
		{Name: subProminence, Value: scoreProminence(answers), Weight: w.Prominence},
		{Name: subRecommendationRate, Value: scoreRecommendationRate(answers), Weight: w.RecommendationRate},
	}
	return combine(model.DimensionAIC, model.WeightAIC, subs)
}

func (e *Engine) scoreCES(kr *model.KnowledgeRepresentation, signals model.SiteSignals) model.DimensionScore {
	w := e.weights.CES
	subs := []model.SubMetric{
		{Name: subEvidenceDensity, Value: scoreEvidenceDensity(kr), Weight: w.EvidenceDensity},
		{Name: subAuthorTransparency, Value: scoreAuthorTransparency(signals), Weight: w.AuthorTransparency},
		{Name: subSafetyDisclaimers, Value: scoreSafetyDisclaimers(signals), Weight: w.SafetyDisclaimers},
		{Name: subFreshness, Value: scoreFreshness(signals.FreshnessDays), Weight: w.Freshness},
	}
	return combine(model.DimensionCES, model.WeightCES, subs)
}

func (e *Engine) scoreMTS(signals model.SiteSignals) model.DimensionScore {
	w := e.weights.MTS
	subs := []model.SubMetric{
		{Name: subTitleHeadings, Value: scoreTitleHeadings(signals), Weight: w.TitleHeadings},
		{Name: subScriptLoad, Value: scoreScriptLoad(signals.ScriptRatio), Weight: w.ScriptLoad},
		{Name: subStructuredSections, Value: scoreStructuredSections(signals), Weight: w.StructuredSections},
		{Name: subCrawlability, Value: scoreCrawlability(signals), Weight: w.Crawlability},
	}
	return combine(model.DimensionMTS, model.WeightMTS, subs)
}

// combine weight-averages sub-metrics into one 0-10 dimension score.
func combine(dim model.Dimension, weight float64, subs []model.SubMetric) model.DimensionScore {
	var total, weightSum float64
	for _, sm := range subs {
		total += sm.Value * sm.Weight
		weightSum += sm.Weight
	}

	var score float64
	if weightSum > 0 {
		score = total / weightSum
	}

	return model.DimensionScore{
		Dimension:  dim,
		Score:      round2(score),
		Weight:     weight,
		SubMetrics: subs,
	}
}

// scoreMentionRate is the share of answers naming the brand, on 0-10.
func scoreMentionRate(set *model.AnswerSet) float64 {
	if set == nil || len(set.Answers) == 0 {
		return 0
	}
	mentioned := 0
	for _, a := range set.Answers {
		if a.MentionsBrand {
			mentioned++
		}
	}
	return round2(float64(mentioned) / float64(len(set.Answers)) * 10)
}

// scoreIntentCoverage measures how many intent categories got at least one
// brand mention, over the categories the panel actually asked about.
func scoreIntentCoverage(panel *model.QuestionPanel, set *model.AnswerSet) float64 {
	if panel == nil || len(panel.Questions) == 0 || set == nil {
		return 0
	}

	mentionedRefs := make(map[int]bool, len(set.Answers))
	for _, a := range set.Answers {
		if a.MentionsBrand {
			mentionedRefs[a.QuestionRef] = true
		}
	}

	asked, covered := 0, 0
	for _, cat := range model.IntentCategories() {
		catAsked, catCovered := false, false
		for i, q := range panel.Questions {
			if q.IntentCategory != cat {
				continue
			}
			catAsked = true
			if mentionedRefs[i] {
				catCovered = true
				break
			}
		}
		if catAsked {
			asked++
			if catCovered {
				covered++
			}
		}
	}

	if asked == 0 {
		return 0
	}
	return round2(float64(covered) / float64(asked) * 10)
}

// scoreProminence rewards early brand mentions: a first-sentence mention
// earns full credit and each later sentence drops a quarter.
func scoreProminence(set *model.AnswerSet) float64 {
	if set == nil {
		return 0
	}

	var total float64
	mentions := 0
	for _, a := range set.Answers {
		if !a.MentionsBrand || a.MentionPosition < 1 {
			continue
		}
		mentions++
		credit := 1 - float64(a.MentionPosition-1)*0.25
		if credit < 0 {
			credit = 0
		}
		total += credit
	}

	if mentions == 0 {
		return 0
	}
	return round2(total / float64(mentions) * 10)
}

// scoreRecommendationRate is the share of answers that recommend anything
// at all, on 0-10. Answers that steer the user somewhere are the ones with
// visibility value.
func scoreRecommendationRate(set *model.AnswerSet) float64 {
	if set == nil || len(set.Answers) == 0 {
		return 0
	}
	recommending := 0
	for _, a := range set.Answers {
		if a.ContainsRecommendation {
			recommending++
		}
	}
	return round2(float64(recommending) / float64(len(set.Answers)) * 10)
}

// scoreEvidenceDensity grows with evidence volume and type variety: six
// items and all four types reach full marks.
func scoreEvidenceDensity(kr *model.KnowledgeRepresentation) float64 {
	if kr == nil || len(kr.EvidenceItems) == 0 {
		return 0
	}

	count := math.Min(float64(len(kr.EvidenceItems)), 6)
	types := make(map[model.EvidenceType]bool, 4)
	for _, item := range kr.EvidenceItems {
		types[item.Type] = true
	}
	variety := math.Min(float64(len(types)), 4)

	return count + variety
}

// scoreAuthorTransparency checks whether identifiable people stand behind
// the content: bylines or a team page carry most of the weight, a
// maintained blog the rest.
func scoreAuthorTransparency(s model.SiteSignals) float64 {
	var score float64
	if s.HasAuthorInfo {
		score += 7
	}
	if s.HasBlog {
		score += 3
	}
	return score
}

// scoreSafetyDisclaimers is full marks when the site carries legal or
// safety disclaimers, a low floor otherwise. Absence reads as risk, not as
// proof of harm.
func scoreSafetyDisclaimers(s model.SiteSignals) float64 {
	if s.HasDisclaimers {
		return 10
	}
	return 3
}

// scoreFreshness maps days since the newest dated content onto 0-10. A
// crawl that found no dated content reports the one-year default and lands
// on the floor.
func scoreFreshness(days int) float64 {
	switch {
	case days <= 30:
		return 10
	case days <= 90:
		return 8
	case days <= 180:
		return 6
	case days <= 270:
		return 4
	case days < 365:
		return 2
	default:
		return 1
	}
}

// scoreTitleHeadings averages the crawl's title and heading quality ratios.
func scoreTitleHeadings(s model.SiteSignals) float64 {
	return round2((s.TitleQuality + s.HeadingQuality) / 2 * 10)
}

// scriptCeiling is the script-to-content ratio past which a site reads as
// an empty client-rendered shell.
const scriptCeiling = 0.70

// scoreScriptLoad is full marks for script-free content, falling linearly
// to zero at the shell ceiling.
func scoreScriptLoad(ratio float64) float64 {
	if ratio <= 0 {
		return 10
	}
	if ratio >= scriptCeiling {
		return 0
	}
	return round2((1 - ratio/scriptCeiling) * 10)
}

// scoreStructuredSections gives two points per machine-friendly section.
func scoreStructuredSections(s model.SiteSignals) float64 {
	var score float64
	for _, present := range []bool{s.HasFAQ, s.HasPricing, s.HasTestimonials, s.HasBlog, s.HasComparisons} {
		if present {
			score += 2
		}
	}
	return score
}

// scoreCrawlability splits evenly between robots.txt and a sitemap.
func scoreCrawlability(s model.SiteSignals) float64 {
	var score float64
	if s.HasRobotsTxt {
		score += 5
	}
	if s.HasSitemap {
		score += 5
	}
	return score
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

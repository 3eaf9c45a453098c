package model

import (
	"math"
	"time"
)

// ScoreTrigger records what caused a score version to be computed.
type ScoreTrigger string

const (
	// TriggerInitial is the first score of an analysis run.
	TriggerInitial ScoreTrigger = "initial"
	// TriggerFeedback is a re-score after user corrections to the
	// knowledge representation.
	TriggerFeedback ScoreTrigger = "feedback"
)

// Dimension names the three scored dimensions.
type Dimension string

const (
	// DimensionAIC is AI Citability: how often and how prominently
	// assistants mention the brand.
	DimensionAIC Dimension = "ai_citability"
	// DimensionCES is Content Evidence Strength: how well the site backs
	// its claims.
	DimensionCES Dimension = "content_evidence"
	// DimensionMTS is Machine Trust Signals: how legible the site is to
	// machines.
	DimensionMTS Dimension = "machine_trust"
)

// Dimension weights for the overall score. They sum to 1.
const (
	WeightAIC = 0.40
	WeightCES = 0.35
	WeightMTS = 0.25
)

// MinOverall is the floor for the overall score. Even an invisible brand
// scores at least this much, so the number reads as "room to grow" rather
// than a verdict of zero.
const MinOverall = 10

// SubMetric is one component of a dimension score.
type SubMetric struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// DimensionScore is one dimension's 0-10 score with its sub-metric breakdown.
type DimensionScore struct {
	Dimension  Dimension   `json:"dimension"`
	Score      float64     `json:"score"`
	Weight     float64     `json:"weight"`
	SubMetrics []SubMetric `json:"sub_metrics"`
}

// RecommendationPriority orders recommendations by urgency.
type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "high"
	PriorityMedium RecommendationPriority = "medium"
	PriorityLow    RecommendationPriority = "low"
)

// Recommendation is one concrete improvement derived from weak sub-metrics.
type Recommendation struct {
	Priority    RecommendationPriority `json:"priority"`
	Category    Dimension              `json:"category"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Impact      string                 `json:"impact"`
	Actions     []string               `json:"actions,omitempty"`
}

// ScoreReport is one versioned scoring pass over an analysis.
type ScoreReport struct {
	Version int          `json:"version"`
	Trigger ScoreTrigger `json:"trigger"`

	AIC     float64 `json:"aic"`
	CES     float64 `json:"ces"`
	MTS     float64 `json:"mts"`
	Overall int     `json:"overall"`
	Grade   string  `json:"grade"`

	Dimensions      []DimensionScore `json:"dimensions"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Overall combines the three dimension scores into the 10-100 overall.
// Each dimension is 0-10; the weighted blend is scaled by 10, rounded half
// away from zero, and floored at MinOverall.
func Overall(aic, ces, mts float64) int {
	raw := (aic*WeightAIC + ces*WeightCES + mts*WeightMTS) * 10
	overall := int(math.Round(raw))
	if overall < MinOverall {
		return MinOverall
	}
	return overall
}

// GradeFor maps an overall score to its letter grade.
func GradeFor(overall int) string {
	switch {
	case overall >= 90:
		return "A+"
	case overall >= 80:
		return "A"
	case overall >= 70:
		return "B"
	case overall >= 60:
		return "C"
	case overall >= 50:
		return "D"
	default:
		return "F"
	}
}

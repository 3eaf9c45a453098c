// Package scoring turns one run's collected answers and site signals into a
// versioned ScoreReport. Scoring is a pure computation: the same inputs
// always produce the same numbers.
package scoring

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights holds the sub-metric weights for each dimension. Within one
// dimension the weights must sum to 1; the dimension weights themselves are
// fixed by the overall formula and not configurable.
type Weights struct {
	AIC AICWeights `yaml:"aic"`
	CES CESWeights `yaml:"ces"`
	MTS MTSWeights `yaml:"mts"`
}

// AICWeights weight the answerability sub-metrics.
type AICWeights struct {
	MentionRate        float64 `yaml:"mention_rate"`
	IntentCoverage     float64 `yaml:"intent_coverage"`
	Prominence         float64 `yaml:"prominence"`
	RecommendationRate float64 `yaml:"recommendation_rate"`
}

// CESWeights weight the credibility sub-metrics.
type CESWeights struct {
	EvidenceDensity    float64 `yaml:"evidence_density"`
	AuthorTransparency float64 `yaml:"author_transparency"`
	SafetyDisclaimers  float64 `yaml:"safety_disclaimers"`
	Freshness          float64 `yaml:"freshness"`
}

// MTSWeights weight the machine-readability sub-metrics.
type MTSWeights struct {
	TitleHeadings      float64 `yaml:"title_headings"`
	ScriptLoad         float64 `yaml:"script_load"`
	StructuredSections float64 `yaml:"structured_sections"`
	Crawlability       float64 `yaml:"crawlability"`
}

// DefaultWeights returns the built-in sub-metric weights. Each dimension
// sums to 1.
func DefaultWeights() Weights {
	return Weights{
		AIC: AICWeights{
			MentionRate:        0.35,
			IntentCoverage:     0.25,
			Prominence:         0.25,
			RecommendationRate: 0.15,
		},
		CES: CESWeights{
			EvidenceDensity:    0.35,
			AuthorTransparency: 0.20,
			SafetyDisclaimers:  0.20,
			Freshness:          0.25,
		},
		MTS: MTSWeights{
			TitleHeadings:      0.30,
			ScriptLoad:         0.25,
			StructuredSections: 0.25,
			Crawlability:       0.20,
		},
	}
}

// weightSumTolerance is how far a dimension's weight sum may drift from 1
// before validation rejects it.
const weightSumTolerance = 0.001

// Validate checks that every weight is non-negative and that each
// dimension's weights sum to 1.
func (w Weights) Validate() error {
	var errs []string

	dims := []struct {
		name    string
		weights []float64
	}{
		{"aic", []float64{w.AIC.MentionRate, w.AIC.IntentCoverage, w.AIC.Prominence, w.AIC.RecommendationRate}},
		{"ces", []float64{w.CES.EvidenceDensity, w.CES.AuthorTransparency, w.CES.SafetyDisclaimers, w.CES.Freshness}},
		{"mts", []float64{w.MTS.TitleHeadings, w.MTS.ScriptLoad, w.MTS.StructuredSections, w.MTS.Crawlability}},
	}

	for _, d := range dims {
		var sum float64
		for _, v := range d.weights {
			if v < 0 {
				errs = append(errs, fmt.Sprintf("%s has a negative weight", d.name))
				break
			}
		}
		for _, v := range d.weights {
			sum += v
		}
		if math.Abs(sum-1) > weightSumTolerance {
			errs = append(errs, fmt.Sprintf("%s weights must sum to 1, got %.3f", d.name, sum))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadWeights reads a weights file and overlays it on the defaults, so a
// file only needs to list the sub-metrics it changes. An empty path returns
// the defaults unchanged.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrap(err, "scoring: read weights file")
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrap(err, "scoring: unmarshal weights file")
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

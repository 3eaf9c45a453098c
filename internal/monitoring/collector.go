package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of analysis health.
type MetricsSnapshot struct {
	// Analysis counts within the lookback window.
	AnalysesTotal     int     `json:"analyses_total"`
	AnalysesPersisted int     `json:"analyses_persisted"`
	AnalysesFailed    int     `json:"analyses_failed"`
	AnalysesInFlight  int     `json:"analyses_in_flight"`
	FailureRate       float64 `json:"failure_rate"`
	AvgOverall        float64 `json:"avg_overall"`
	AvgTokens         int     `json:"avg_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`

	// Answer provenance within the window.
	AnswersTotal     int     `json:"answers_total"`
	AnswersSimulated int     `json:"answers_simulated"`
	SimulatedRate    float64 `json:"simulated_rate"`

	// Quality warnings attached to runs in the window.
	WarningsTotal int `json:"warnings_total"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// AnalysisLister abstracts the single store read the collector needs.
type AnalysisLister interface {
	ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.AnalysisRecord, error)
}

// Collector gathers metrics from stored analyses.
type Collector struct {
	store AnalysisLister
}

// NewCollector creates a metrics collector over the store.
func NewCollector(st AnalysisLister) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of analysis metrics over the given lookback
// window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	recs, err := c.store.ListAnalyses(ctx, store.AnalysisFilter{
		Since: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list analyses")
	}

	snap.AnalysesTotal = len(recs)
	var totalOverall int
	var totalTokens int
	var scored int

	for _, rec := range recs {
		switch rec.Status {
		case model.StatusPersisted:
			snap.AnalysesPersisted++
		case model.StatusFailed:
			snap.AnalysesFailed++
		default:
			snap.AnalysesInFlight++
		}

		snap.TotalCostUSD += rec.CostUSD
		totalTokens += rec.Tokens.InputTokens + rec.Tokens.OutputTokens
		snap.WarningsTotal += len(rec.Warnings)

		snap.AnswersTotal += len(rec.Answers.Answers)
		snap.AnswersSimulated += rec.Answers.SimulatedCount()

		if score := rec.CurrentScore(); score != nil {
			totalOverall += score.Overall
			scored++
		}
	}

	finished := snap.AnalysesPersisted + snap.AnalysesFailed
	if finished > 0 {
		snap.FailureRate = float64(snap.AnalysesFailed) / float64(finished)
	}
	if snap.AnalysesTotal > 0 {
		snap.AvgTokens = totalTokens / snap.AnalysesTotal
	}
	if scored > 0 {
		snap.AvgOverall = float64(totalOverall) / float64(scored)
	}
	if snap.AnswersTotal > 0 {
		snap.SimulatedRate = float64(snap.AnswersSimulated) / float64(snap.AnswersTotal)
	}

	return snap, nil
}

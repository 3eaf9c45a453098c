package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalysisStatus represents the current state of a visibility analysis run.
type AnalysisStatus string

const (
	StatusCreated             AnalysisStatus = "created"
	StatusCrawling            AnalysisStatus = "crawling"
	StatusSynthesizing        AnalysisStatus = "synthesizing"
	StatusGeneratingQuestions AnalysisStatus = "generating_questions"
	StatusQuerying            AnalysisStatus = "querying"
	StatusScoring             AnalysisStatus = "scoring"
	StatusPersisted           AnalysisStatus = "persisted"
	StatusFailed              AnalysisStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusPersisted || s == StatusFailed
}

// NewAnalysisID returns a fresh analysis identifier. IDs are never reused:
// every run mints its own, even for a domain analyzed before.
func NewAnalysisID(now time.Time) string {
	return fmt.Sprintf("radius_%s_%s", now.UTC().Format("20060102_150405"), uuid.New().String()[:8])
}

// AnalysisRecord is the complete persisted output of one analysis run.
type AnalysisRecord struct {
	ID        string                  `json:"id"`
	Domain    string                  `json:"domain"`
	CallerID  string                  `json:"caller_id,omitempty"`
	Status    AnalysisStatus          `json:"status"`
	Knowledge KnowledgeRepresentation `json:"knowledge"`
	Questions QuestionPanel           `json:"questions"`
	Answers   AnswerSet               `json:"answers"`
	// Scores is append-only history: feedback passes add a new version
	// instead of overwriting. The highest version is the current report.
	Scores     []ScoreReport    `json:"scores"`
	Crawl      *CrawlBundle     `json:"crawl,omitempty"`
	Provenance Provenance       `json:"provenance"`
	Warnings   []QualityWarning `json:"warnings,omitempty"`
	Phases     []PhaseResult    `json:"phases,omitempty"`
	Tokens     TokenUsage       `json:"tokens"`
	CostUSD    float64          `json:"cost_usd"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CurrentScore returns the most recent score version, or nil before scoring.
func (a *AnalysisRecord) CurrentScore() *ScoreReport {
	if len(a.Scores) == 0 {
		return nil
	}
	latest := &a.Scores[0]
	for i := range a.Scores {
		if a.Scores[i].Version > latest.Version {
			latest = &a.Scores[i]
		}
	}
	return latest
}

// Provenance records how an analysis was produced, so cached, simulated, and
// fallback results are always distinguishable from fresh live ones.
type Provenance struct {
	UsedCache       bool      `json:"used_cache"`
	FreshCrawl      bool      `json:"fresh_crawl"`
	FreshGeneration bool      `json:"fresh_generation"`
	Timestamp       time.Time `json:"timestamp"`
}

// WarningTier grades how degraded a phase's input or output was.
type WarningTier string

const (
	// TierSevere marks content that was essentially unusable (blocked or
	// client-rendered shell); downstream output is a minimal baseline.
	TierSevere WarningTier = "severe"
	// TierLimited marks thin-but-present content.
	TierLimited WarningTier = "limited"
	// TierWarning marks a recoverable quality concern.
	TierWarning WarningTier = "warning"
)

// QualityWarning is the diagnostic attached when a phase degrades instead of
// failing. It never aborts a run.
type QualityWarning struct {
	Tier    WarningTier    `json:"tier"`
	Phase   string         `json:"phase"`
	Reason  string         `json:"reason"`
	Signals map[string]any `json:"signals,omitempty"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusDegraded PhaseStatus = "degraded"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name       string         `json:"name"`
	Status     PhaseStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.Cost += other.Cost
}

// Package pipeline orchestrates one visibility analysis end to end: crawl,
// synthesize, generate questions, query platforms, score, persist. Runs move
// through a fixed status machine and absorb every phase failure into that
// phase's fallback payload; the only fault that can end a run in Failed is
// the store rejecting the final persist. An admitted run always reaches a
// terminal state, even when the caller abandons its context.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/radius-labs/visibility-cli/internal/assistant"
	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/internal/cost"
	"github.com/radius-labs/visibility-cli/internal/knowledge"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/question"
	"github.com/radius-labs/visibility-cli/internal/scoring"
	"github.com/radius-labs/visibility-cli/internal/store"
)

// Phase names as they appear in phase results and warnings.
const (
	phaseCrawl      = "crawl"
	phaseSynthesize = "synthesize"
	phaseQuestions  = "generate_questions"
	phaseQuery      = "query_platforms"
	phaseScore      = "score"
)

// persistTimeout bounds the final write so a hung store cannot keep a run
// from settling.
const persistTimeout = 15 * time.Second

// Crawler fetches a domain's pages and structural signals.
type Crawler interface {
	Crawl(ctx context.Context, domain string) (*model.CrawlBundle, *model.QualityWarning, error)
}

// Synthesizer builds knowledge representations and rewrites field text.
type Synthesizer interface {
	Synthesize(ctx context.Context, bundle *model.CrawlBundle, pinned map[string]string) (*knowledge.Result, error)
	Improve(ctx context.Context, text string, mode knowledge.ImproveMode) (string, model.TokenUsage, error)
}

// Generator produces the question panel for a run.
type Generator interface {
	Generate(ctx context.Context, domain string, kr *model.KnowledgeRepresentation) (*question.Result, error)
}

// Querier collects one analyzed answer per panel question.
type Querier interface {
	Run(ctx context.Context, domain string, panel *model.QuestionPanel, kr *model.KnowledgeRepresentation) (*assistant.Result, error)
}

// Engine runs analyses and owns every mutation of their records.
type Engine struct {
	cfg       *config.Config
	store     store.Store
	crawler   Crawler
	synth     Synthesizer
	questions Generator
	querier   Querier
	scorer    *scoring.Engine
	costs     *cost.Calculator
}

// New creates an Engine with all dependencies. The store is wrapped with the
// bounded fallback cache, so reads survive short store outages.
func New(
	cfg *config.Config,
	st store.Store,
	crawler Crawler,
	synth Synthesizer,
	questions Generator,
	querier Querier,
	scorer *scoring.Engine,
) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store.NewCachedStore(st, cfg.Cache.FallbackSize),
		crawler:   crawler,
		synth:     synth,
		questions: questions,
		querier:   querier,
		scorer:    scorer,
		costs:     cost.NewCalculator(cost.FromConfig(cfg.Pricing)),
	}
}

// GetAnalysis returns a stored record by id. Missing ids report
// store.ErrNotFound.
func (e *Engine) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	return e.store.GetAnalysis(ctx, id)
}

// ListAnalyses returns stored records matching the filter, newest first.
func (e *Engine) ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.AnalysisRecord, error) {
	return e.store.ListAnalyses(ctx, filter)
}

// ImproveText rewrites copy in the given mode. The operation is independent
// of any record: failure here propagates and touches nothing stored.
func (e *Engine) ImproveText(ctx context.Context, text string, mode knowledge.ImproveMode) (string, error) {
	out, _, err := e.synth.Improve(ctx, text, mode)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: improve text")
	}
	return out, nil
}

package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/knowledge"
	"github.com/radius-labs/visibility-cli/internal/model"
)

// SubmitFeedback applies field-level corrections to a stored analysis and
// appends a fresh score version under the same id. Only synthesis and scoring
// re-run: the stored crawl bundle and answer set are reused verbatim, so
// feedback never spends crawl or platform budget.
func (e *Engine) SubmitFeedback(ctx context.Context, analysisID string, patches map[string]string) (*model.ScoreReport, error) {
	if len(patches) == 0 {
		return nil, eris.New("pipeline: no field patches supplied")
	}

	rec, err := e.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: feedback load %s", analysisID)
	}

	known := rec.Knowledge.TextFields()
	for field := range patches {
		if _, ok := known[field]; !ok {
			return nil, eris.Errorf("pipeline: unknown knowledge field %q", field)
		}
	}

	log := zap.L().With(zap.String("analysis_id", analysisID), zap.String("domain", rec.Domain))

	// Each patch lands field-level first, so concurrent edits settle
	// last-writer-wins without whole-record races.
	for field, value := range patches {
		if err := e.store.SetKnowledgeField(ctx, analysisID, field, value); err != nil {
			return nil, eris.Wrapf(err, "pipeline: patch field %s", field)
		}
	}

	kr, usage, fresh := e.resynthesize(ctx, rec, patches)
	// Evidence items are user-curated through their own append/delete
	// operations; a re-synthesis never replaces them.
	kr.EvidenceItems = rec.Knowledge.EvidenceItems

	var signals model.SiteSignals
	if rec.Crawl != nil {
		signals = rec.Crawl.Signals
	}
	report := e.scorer.Score(&rec.Questions, &rec.Answers, kr, signals)
	report.Trigger = model.TriggerFeedback
	report.Version = 1
	if cur := rec.CurrentScore(); cur != nil {
		report.Version = cur.Version + 1
	}

	if err := e.store.AppendScore(ctx, analysisID, *report); err != nil {
		return nil, eris.Wrap(
			&model.StorageUnavailableError{Op: "append score", Err: err},
			"pipeline: feedback",
		)
	}

	// Refresh the rest of the record best-effort; the field patches and the
	// score version above are already durable.
	rec.Knowledge = *kr
	rec.Scores = append(rec.Scores, *report)
	rec.Provenance = model.Provenance{
		FreshCrawl:      false,
		FreshGeneration: fresh,
		Timestamp:       time.Now().UTC(),
	}
	rec.Tokens.Add(usage)
	rec.CostUSD += usage.Cost
	rec.UpdatedAt = time.Now().UTC()
	if err := e.store.SaveAnalysis(ctx, rec); err != nil {
		log.Warn("pipeline: failed to refresh record after feedback", zap.Error(err))
	}

	log.Info("pipeline: feedback scored",
		zap.Int("version", report.Version),
		zap.Int("overall", report.Overall),
		zap.Strings("fields", patchedFields(patches)),
		zap.Bool("fresh_generation", fresh))
	return report, nil
}

// resynthesize re-runs the synthesizer against the stored crawl bundle with
// the patches pinned as authoritative. Whenever generation is unavailable or
// degraded, the stored representation with the patches applied stands in;
// feedback never fails for lack of a generation backend.
func (e *Engine) resynthesize(ctx context.Context, rec *model.AnalysisRecord, patches map[string]string) (*model.KnowledgeRepresentation, model.TokenUsage, bool) {
	res, err := e.synth.Synthesize(ctx, rec.Crawl, patches)
	if err == nil && res.Warning == nil {
		usage := res.Usage
		usage.Cost = e.costs.Anthropic(e.cfg.Synthesis.Model,
			usage.InputTokens, usage.OutputTokens,
			usage.CacheCreationTokens, usage.CacheReadTokens)
		return &res.KR, usage, true
	}

	kr := rec.Knowledge
	fc := make(map[string]model.FieldConfidence, len(kr.FieldConfidence)+len(patches))
	for name, conf := range kr.FieldConfidence {
		fc[name] = conf
	}
	kr.FieldConfidence = fc
	for field, value := range patches {
		kr.SetTextField(field, value)
		kr.FieldConfidence[field] = model.FieldVerified
	}
	if verr := knowledge.Validate(&kr); verr != nil {
		zap.L().Warn("pipeline: patched knowledge failed validation, scoring it anyway",
			zap.String("analysis_id", rec.ID),
			zap.Error(verr))
	}

	var usage model.TokenUsage
	if err == nil {
		// The degraded call may still have burned tokens before falling back.
		usage = res.Usage
		usage.Cost = e.costs.Anthropic(e.cfg.Synthesis.Model,
			usage.InputTokens, usage.OutputTokens,
			usage.CacheCreationTokens, usage.CacheReadTokens)
	}
	zap.L().Warn("pipeline: feedback generation unavailable, using patched stored knowledge",
		zap.String("analysis_id", rec.ID),
		zap.Error(err))
	return &kr, usage, false
}

func patchedFields(patches map[string]string) []string {
	fields := make([]string, 0, len(patches))
	for field := range patches {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

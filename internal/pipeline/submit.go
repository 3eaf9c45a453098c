package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/knowledge"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/store"
)

// Submit runs one full analysis for a domain, blocking until the record is
// terminal. An authenticated caller gets their own prior record back when one
// exists inside the recency window; an anonymous caller gets the newest
// persisted record for the domain at any age. Cache misses and store read
// failures both fall through to a fresh run under a fresh id.
func (e *Engine) Submit(ctx context.Context, domain, callerID string) (*model.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: submit cancelled")
	}
	host, err := model.NormalizeDomain(domain)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: submit %q", domain)
	}

	if rec := e.reusableRecord(ctx, host, callerID); rec != nil {
		return rec, nil
	}

	// The run detaches from the caller's cancellation here: once admitted it
	// always reaches a terminal state, abandoned caller or not. Every
	// outbound call below carries its own timeout, so detaching cannot leak
	// an unbounded run.
	return e.run(context.WithoutCancel(ctx), host, callerID)
}

// reusableRecord applies the reuse policy. Any lookup error that is not a
// clean not-found is logged and treated as a miss; a read outage must never
// block a fresh run.
func (e *Engine) reusableRecord(ctx context.Context, domain, callerID string) *model.AnalysisRecord {
	var (
		rec *model.AnalysisRecord
		err error
	)
	if callerID == "" {
		rec, err = e.store.LatestForDomain(ctx, domain)
	} else {
		cutoff := time.Now().Add(-time.Duration(e.cfg.Cache.CallerTTLHours) * time.Hour)
		rec, err = e.store.LatestForCaller(ctx, domain, callerID, cutoff)
	}
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("pipeline: reuse lookup failed, running fresh",
				zap.String("domain", domain),
				zap.Error(err))
		}
		return nil
	}
	if rec == nil {
		return nil
	}

	rec.Provenance.UsedCache = true
	zap.L().Info("pipeline: serving prior analysis",
		zap.String("domain", domain),
		zap.String("analysis_id", rec.ID),
		zap.Bool("authenticated", callerID != ""))
	return rec
}

func (e *Engine) run(ctx context.Context, domain, callerID string) (*model.AnalysisRecord, error) {
	now := time.Now().UTC()
	rec := &model.AnalysisRecord{
		ID:       model.NewAnalysisID(now),
		Domain:   domain,
		CallerID: callerID,
		Status:   model.StatusCreated,
		Provenance: model.Provenance{
			FreshCrawl:      true,
			FreshGeneration: true,
			Timestamp:       now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	log := zap.L().With(zap.String("analysis_id", rec.ID), zap.String("domain", domain))
	log.Info("pipeline: starting analysis")

	// Status transitions persist as they happen so the record is observable
	// mid-run. A failed intermediate save is only a warning; the final
	// persist decides the run's fate.
	setStatus := func(s model.AnalysisStatus) {
		rec.Status = s
		rec.UpdatedAt = time.Now().UTC()
		if err := e.store.SaveAnalysis(ctx, rec); err != nil {
			log.Warn("pipeline: failed to persist status",
				zap.String("status", string(s)),
				zap.Error(err))
		}
	}
	setStatus(model.StatusCreated)

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) {
		start := time.Now()
		pr, err := fn()
		duration := time.Since(start).Milliseconds()

		if pr == nil {
			pr = &model.PhaseResult{}
		}
		pr.Name = name
		pr.Duration = duration

		switch {
		case err != nil:
			pr.Status = model.PhaseStatusFailed
			pr.Error = err.Error()
			log.Error("pipeline: phase failed, continuing with fallback",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err))
		case pr.Status == "":
			pr.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration))
		default:
			log.Warn("pipeline: phase degraded",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration))
		}

		rec.Tokens.Add(pr.TokenUsage)
		rec.Phases = append(rec.Phases, *pr)
	}

	setStatus(model.StatusCrawling)
	trackPhase(phaseCrawl, func() (*model.PhaseResult, error) {
		bundle, warn, err := e.crawler.Crawl(ctx, domain)
		if err != nil {
			rec.Crawl = emptyBundle(domain)
			rec.Warnings = append(rec.Warnings, model.QualityWarning{
				Tier:    model.TierSevere,
				Phase:   phaseCrawl,
				Reason:  "crawl failed; continuing with an empty content bundle",
				Signals: map[string]any{"cause": eris.Cause(err).Error()},
			})
			return nil, eris.Wrap(err, "pipeline: crawl")
		}
		rec.Crawl = bundle
		pr := &model.PhaseResult{
			Metadata: map[string]any{
				"pages":       len(bundle.Pages),
				"total_chars": bundle.TotalChars,
				"robots_txt":  bundle.Signals.HasRobotsTxt,
				"sitemap":     bundle.Signals.HasSitemap,
			},
		}
		if warn != nil {
			rec.Warnings = append(rec.Warnings, *warn)
			pr.Status = model.PhaseStatusDegraded
			pr.Metadata["warning_tier"] = string(warn.Tier)
		}
		return pr, nil
	})

	setStatus(model.StatusSynthesizing)
	trackPhase(phaseSynthesize, func() (*model.PhaseResult, error) {
		res, err := e.synth.Synthesize(ctx, rec.Crawl, nil)
		if err != nil {
			rec.Knowledge = knowledge.DemoProfile(domain)
			rec.Provenance.FreshGeneration = false
			rec.Warnings = append(rec.Warnings, model.QualityWarning{
				Tier:    model.TierLimited,
				Phase:   phaseSynthesize,
				Reason:  "synthesis failed; continuing with the demo profile",
				Signals: map[string]any{"cause": eris.Cause(err).Error()},
			})
			return nil, eris.Wrap(err, "pipeline: synthesize")
		}
		rec.Knowledge = res.KR
		rec.Provenance.FreshGeneration = res.KR.Generated

		pr := &model.PhaseResult{
			TokenUsage: res.Usage,
			Metadata: map[string]any{
				"confidence": string(res.KR.Confidence),
				"generated":  res.KR.Generated,
				"evidence":   len(res.KR.EvidenceItems),
			},
		}
		pr.TokenUsage.Cost = e.costs.Anthropic(e.cfg.Synthesis.Model,
			res.Usage.InputTokens, res.Usage.OutputTokens,
			res.Usage.CacheCreationTokens, res.Usage.CacheReadTokens)
		if res.Warning != nil {
			rec.Warnings = append(rec.Warnings, *res.Warning)
			pr.Status = model.PhaseStatusDegraded
		}
		return pr, nil
	})

	setStatus(model.StatusGeneratingQuestions)
	trackPhase(phaseQuestions, func() (*model.PhaseResult, error) {
		res, err := e.questions.Generate(ctx, domain, &rec.Knowledge)
		if err != nil {
			rec.Warnings = append(rec.Warnings, model.QualityWarning{
				Tier:    model.TierSevere,
				Phase:   phaseQuestions,
				Reason:  "question generation failed; run continues with an empty panel",
				Signals: map[string]any{"cause": eris.Cause(err).Error()},
			})
			return nil, eris.Wrap(err, "pipeline: generate questions")
		}
		rec.Questions = res.Panel

		pr := &model.PhaseResult{
			TokenUsage: res.Usage,
			Metadata: map[string]any{
				"questions": len(res.Panel.Questions),
				"fallback":  res.Panel.Fallback,
			},
		}
		pr.TokenUsage.Cost = e.costs.Anthropic(e.cfg.Questions.Model,
			res.Usage.InputTokens, res.Usage.OutputTokens,
			res.Usage.CacheCreationTokens, res.Usage.CacheReadTokens)
		if res.Warning != nil {
			rec.Warnings = append(rec.Warnings, *res.Warning)
			pr.Status = model.PhaseStatusDegraded
		}
		return pr, nil
	})

	setStatus(model.StatusQuerying)
	trackPhase(phaseQuery, func() (*model.PhaseResult, error) {
		res, err := e.querier.Run(ctx, domain, &rec.Questions, &rec.Knowledge)
		if err != nil {
			rec.Answers = model.AnswerSet{CollectedAt: time.Now().UTC()}
			rec.Warnings = append(rec.Warnings, model.QualityWarning{
				Tier:    model.TierSevere,
				Phase:   phaseQuery,
				Reason:  "platform querying failed; scoring an empty answer set",
				Signals: map[string]any{"cause": eris.Cause(err).Error()},
			})
			return nil, eris.Wrap(err, "pipeline: query platforms")
		}
		rec.Answers = res.Answers

		live, simulated := 0, 0
		summaries := make(map[string]any, len(res.Reports))
		for _, r := range res.Reports {
			live += r.Live
			simulated += r.Simulated
			summaries[string(r.Platform)] = map[string]any{
				"status":       string(r.Status),
				"mention_rate": r.MentionRate,
			}
		}
		pr := &model.PhaseResult{
			TokenUsage: res.Usage,
			Metadata: map[string]any{
				"live":      live,
				"simulated": simulated,
				"platforms": summaries,
			},
		}
		if res.Warning != nil {
			rec.Warnings = append(rec.Warnings, *res.Warning)
			pr.Status = model.PhaseStatusDegraded
		}
		return pr, nil
	})

	setStatus(model.StatusScoring)
	trackPhase(phaseScore, func() (*model.PhaseResult, error) {
		report := e.scorer.Score(&rec.Questions, &rec.Answers, &rec.Knowledge, rec.Crawl.Signals)
		report.Version = 1
		report.Trigger = model.TriggerInitial
		rec.Scores = append(rec.Scores, *report)
		return &model.PhaseResult{
			Metadata: map[string]any{
				"overall": report.Overall,
				"grade":   report.Grade,
				"aic":     report.AIC,
				"ces":     report.CES,
				"mts":     report.MTS,
			},
		}, nil
	})

	rec.CostUSD = rec.Tokens.Cost
	rec.Status = model.StatusPersisted
	rec.UpdatedAt = time.Now().UTC()

	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := e.store.SaveAnalysis(persistCtx, rec); err != nil {
		rec.Status = model.StatusFailed
		rec.Error = err.Error()
		log.Error("pipeline: final persist failed", zap.Error(err))
		return rec, eris.Wrap(
			&model.StorageUnavailableError{Op: "persist analysis", Err: err},
			"pipeline: submit",
		)
	}

	score := rec.CurrentScore()
	log.Info("pipeline: analysis persisted",
		zap.Int("overall", score.Overall),
		zap.String("grade", score.Grade),
		zap.Int("warnings", len(rec.Warnings)),
		zap.Int("input_tokens", rec.Tokens.InputTokens),
		zap.Int("output_tokens", rec.Tokens.OutputTokens),
		zap.Float64("cost_usd", rec.CostUSD))
	return rec, nil
}

// emptyBundle stands in when the crawler itself errored. Freshness defaults
// to a year so the freshness sub-metric reads stale rather than perfect.
func emptyBundle(domain string) *model.CrawlBundle {
	return &model.CrawlBundle{
		Domain:    domain,
		FetchedAt: time.Now().UTC(),
		Signals:   model.SiteSignals{FreshnessDays: 365},
	}
}

package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/assistant"
	"github.com/radius-labs/visibility-cli/internal/cost"
	"github.com/radius-labs/visibility-cli/internal/crawl"
	"github.com/radius-labs/visibility-cli/internal/crm"
	"github.com/radius-labs/visibility-cli/internal/knowledge"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/pipeline"
	"github.com/radius-labs/visibility-cli/internal/question"
	"github.com/radius-labs/visibility-cli/internal/scoring"
	"github.com/radius-labs/visibility-cli/internal/store"
	anthropicpkg "github.com/radius-labs/visibility-cli/pkg/anthropic"
	"github.com/radius-labs/visibility-cli/pkg/reader"
)

// analysisEnv holds the initialized store, engine, and optional CRM syncer
// shared by the analyze/analyses/feedback/evidence/improve/serve commands.
type analysisEnv struct {
	Store  store.Store
	Engine *pipeline.Engine
	Syncer *crm.Syncer // nil unless salesforce.enabled
}

// Close releases resources held by the environment.
func (e *analysisEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine validates config for the given mode, opens the store, builds
// every phase component, and assembles the engine. Callers should defer
// env.Close().
func initEngine(ctx context.Context, mode string) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// One Anthropic key drives synthesis, question generation, and answer
	// simulation. Without it every generation degrades to its deterministic
	// fallback and the run is fully simulated.
	var anthroClient anthropicpkg.Client
	if cfg.Platforms.Claude.Key != "" {
		anthroClient = anthropicpkg.NewClient(cfg.Platforms.Claude.Key)
	} else {
		zap.L().Warn("no claude key configured, generation will use deterministic fallbacks")
	}

	crawlOpts := []crawl.Option{}
	if cfg.Reader.Key != "" {
		crawlOpts = append(crawlOpts, crawl.WithReader(
			reader.NewClient(cfg.Reader.Key, reader.WithBaseURL(cfg.Reader.BaseURL)),
		))
		zap.L().Info("reader fallback enabled")
	}
	crawler := crawl.New(cfg.Crawl, crawlOpts...)

	synth := knowledge.New(anthroClient, cfg.Synthesis)

	questions, err := question.NewGenerator(anthroClient, cfg.Questions)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init question generator")
	}

	calc := cost.NewCalculator(cost.FromConfig(cfg.Pricing))
	querier := assistant.NewQuerier(
		assistant.NewConfigCredentials(cfg.Platforms),
		anthroClient,
		cfg.Platforms,
		assistant.WithCostCalculator(calc),
	)

	weights, err := scoring.LoadWeights(cfg.Scoring.WeightsPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	scorer := scoring.NewEngine(weights)

	env := &analysisEnv{
		Store:  st,
		Engine: pipeline.New(cfg, st, crawler, synth, questions, querier, scorer),
	}

	if cfg.Salesforce.Enabled {
		sfClient, err := crm.Connect(cfg.Salesforce)
		if err != nil {
			env.Close()
			return nil, err
		}
		syncer := crm.NewSyncer(sfClient)
		if err := syncer.Preflight(ctx); err != nil {
			env.Close()
			return nil, err
		}
		env.Syncer = syncer
		zap.L().Info("salesforce sync enabled")
	}

	return env, nil
}

// syncToCRM pushes a finished analysis to Salesforce when sync is enabled.
// Failures are logged only; they never change the analysis outcome.
func syncToCRM(ctx context.Context, syncer *crm.Syncer, rec *model.AnalysisRecord) {
	if syncer == nil || rec == nil || rec.Status != model.StatusPersisted {
		return
	}
	if _, err := syncer.Sync(ctx, rec); err != nil {
		zap.L().Warn("crm sync failed",
			zap.String("analysis_id", rec.ID),
			zap.String("domain", rec.Domain),
			zap.Error(err),
		)
	}
}

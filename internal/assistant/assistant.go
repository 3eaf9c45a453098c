// Package assistant puts the panel questions to the conversational AI
// platforms and turns the replies into analyzed answers. Each platform is
// either live (credentials present, calls succeeding), not configured, or
// degraded after its first failed call; degraded is sticky for the rest of
// the run. Questions belonging to non-live platforms are answered by one
// shared simulation call, with deterministic canned answers behind that, so
// every run yields a complete answer set.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radius-labs/visibility-cli/internal/competitor"
	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/internal/cost"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/resilience"
	"github.com/radius-labs/visibility-cli/pkg/anthropic"
	"github.com/radius-labs/visibility-cli/pkg/gemini"
	"github.com/radius-labs/visibility-cli/pkg/openai"
	"github.com/radius-labs/visibility-cli/pkg/perplexity"
)

// defaultAskTimeout caps a single live platform call, retries included per
// attempt.
const defaultAskTimeout = 30 * time.Second

// Credential is what a platform needs to be queried live.
type Credential struct {
	Key     string
	Model   string
	BaseURL string
}

// CredentialProvider resolves per-platform credentials at run time.
type CredentialProvider interface {
	Credential(platform model.Platform) (Credential, bool)
}

// ConfigCredentials serves credentials straight from the platforms config.
type ConfigCredentials struct {
	cfg config.PlatformsConfig
}

// NewConfigCredentials creates a config-backed credential provider.
func NewConfigCredentials(cfg config.PlatformsConfig) *ConfigCredentials {
	return &ConfigCredentials{cfg: cfg}
}

// Credential returns the configured credential for p. A platform with no
// API key is not configured.
func (c *ConfigCredentials) Credential(p model.Platform) (Credential, bool) {
	var pc config.PlatformConfig
	switch p {
	case model.PlatformChatGPT:
		pc = c.cfg.ChatGPT
	case model.PlatformClaude:
		pc = c.cfg.Claude
	case model.PlatformGemini:
		pc = c.cfg.Gemini
	case model.PlatformPerplexity:
		pc = c.cfg.Perplexity
	default:
		return Credential{}, false
	}
	if pc.Key == "" {
		return Credential{}, false
	}
	return Credential{Key: pc.Key, Model: pc.Model, BaseURL: pc.BaseURL}, true
}

// PlatformStatus is the per-run state of one platform.
type PlatformStatus string

const (
	// StatusNotConfigured means no credential was available this run.
	StatusNotConfigured PlatformStatus = "not_configured"
	// StatusLive means every call to the platform succeeded.
	StatusLive PlatformStatus = "live"
	// StatusDegraded means a live call failed; the platform is skipped for
	// the remainder of the run.
	StatusDegraded PlatformStatus = "degraded"
)

// PlatformReport records how one platform behaved during a run.
type PlatformReport struct {
	Platform  model.Platform `json:"platform"`
	Status    PlatformStatus `json:"status"`
	Live      int            `json:"live"`
	Simulated int            `json:"simulated"`
	// MentionRate is the share of the platform's answers naming the brand,
	// 0 to 1.
	MentionRate float64 `json:"mention_rate"`
	// Error carries the root cause of the failure that degraded the
	// platform, empty otherwise.
	Error string `json:"error,omitempty"`
}

// Querier fans the panel out across the platforms and analyzes the answers.
type Querier struct {
	cfg   config.PlatformsConfig
	creds CredentialProvider
	sim   anthropic.Client
	comp  competitor.Source
	costs *cost.Calculator

	askTimeout time.Duration

	newChatGPT    func(Credential) openai.Client
	newClaude     func(Credential) anthropic.Client
	newGemini     func(Credential) gemini.Client
	newPerplexity func(Credential) perplexity.Client
}

// Option configures a Querier.
type Option func(*Querier)

// WithCompetitorSource replaces the competitor catalog answers are counted
// against.
func WithCompetitorSource(src competitor.Source) Option {
	return func(q *Querier) { q.comp = src }
}

// WithCostCalculator replaces the pricing calculator.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(q *Querier) { q.costs = c }
}

// WithAskTimeout caps each live platform call.
func WithAskTimeout(d time.Duration) Option {
	return func(q *Querier) { q.askTimeout = d }
}

// WithChatGPTClient replaces how the ChatGPT client is built from a
// credential.
func WithChatGPTClient(fn func(Credential) openai.Client) Option {
	return func(q *Querier) { q.newChatGPT = fn }
}

// WithClaudeClient replaces how the Claude client is built from a credential.
func WithClaudeClient(fn func(Credential) anthropic.Client) Option {
	return func(q *Querier) { q.newClaude = fn }
}

// WithGeminiClient replaces how the Gemini client is built from a credential.
func WithGeminiClient(fn func(Credential) gemini.Client) Option {
	return func(q *Querier) { q.newGemini = fn }
}

// WithPerplexityClient replaces how the Perplexity client is built from a
// credential.
func WithPerplexityClient(fn func(Credential) perplexity.Client) Option {
	return func(q *Querier) { q.newPerplexity = fn }
}

// NewQuerier creates a Querier. sim answers the questions of non-live
// platforms and may be nil, in which case those fall straight through to
// canned answers.
func NewQuerier(creds CredentialProvider, sim anthropic.Client, cfg config.PlatformsConfig, opts ...Option) *Querier {
	q := &Querier{
		cfg:           cfg,
		creds:         creds,
		sim:           sim,
		comp:          competitor.NewStaticSource(),
		costs:         cost.NewCalculator(cost.DefaultRates()),
		askTimeout:    defaultAskTimeout,
		newChatGPT:    defaultChatGPTClient,
		newClaude:     defaultClaudeClient,
		newGemini:     defaultGeminiClient,
		newPerplexity: defaultPerplexityClient,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Result bundles everything the query phase produced.
type Result struct {
	Answers  model.AnswerSet
	Reports  []PlatformReport
	Usage    model.TokenUsage
	Warning  *model.QualityWarning
	Duration int64
}

// Run queries every platform with its share of the panel and returns one
// analyzed answer per question, in panel order. Platform failures degrade
// to simulation; only a context already cancelled on entry is an error.
func (q *Querier) Run(ctx context.Context, domain string, panel *model.QuestionPanel, kr *model.KnowledgeRepresentation) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "assistant: query cancelled")
	}
	if panel == nil || len(panel.Questions) == 0 {
		return nil, eris.New("assistant: empty question panel")
	}

	brand := model.BrandLabel(domain)
	names := q.competitorNames(ctx, domain)

	platforms := model.Platforms()
	groups := panel.ByPlatform()

	reports := make([]PlatformReport, len(platforms))
	usages := make([]model.TokenUsage, len(platforms))
	texts := make([]string, len(panel.Questions))
	live := make([]bool, len(panel.Questions))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		reports[i].Platform = p

		cred, ok := q.credential(p)
		if !ok {
			reports[i].Status = StatusNotConfigured
			continue
		}
		ask := q.asker(p, cred)
		if ask == nil {
			reports[i].Status = StatusNotConfigured
			continue
		}
		reports[i].Status = StatusLive

		indices := groups[p]
		g.Go(func() error {
			for _, qi := range indices {
				text, usage, err := q.askOnce(gctx, p, ask, panel.Questions[qi].Text)
				usages[i].Add(usage)
				if err != nil {
					reports[i].Status = StatusDegraded
					reports[i].Error = eris.Cause(err).Error()
					zap.L().Warn("platform degraded for rest of run",
						zap.String("platform", string(p)),
						zap.Int("question_ref", qi),
						zap.Error(err))
					return nil
				}
				texts[qi] = text
				live[qi] = true
				reports[i].Live++
			}
			return nil
		})
	}
	_ = g.Wait()

	var simItems []simItem
	for i, question := range panel.Questions {
		if !live[i] {
			simItems = append(simItems, simItem{
				Ref:      i,
				Platform: question.TargetPlatform,
				Question: question.Text,
			})
		}
	}

	simTexts := map[int]string{}
	var simUsage model.TokenUsage
	if len(simItems) > 0 {
		var err error
		simTexts, simUsage, err = q.simulate(ctx, domain, brand, kr, simItems)
		if err != nil {
			zap.L().Warn("batched simulation unavailable, using canned answers",
				zap.Int("questions", len(simItems)),
				zap.Error(err))
		}
	}

	answers := make([]model.Answer, 0, len(panel.Questions))
	for i, question := range panel.Questions {
		a := model.Answer{
			QuestionRef: i,
			Platform:    question.TargetPlatform,
			Simulated:   !live[i],
		}
		switch {
		case live[i]:
			a.Text = texts[i]
		case strings.TrimSpace(simTexts[i]) != "":
			a.Text = strings.TrimSpace(simTexts[i])
		default:
			a.Text = cannedAnswer(question.TargetPlatform, brand)
		}
		analyzeAnswer(&a, brand, names)
		answers = append(answers, a)
	}

	liveCount := 0
	for i, p := range platforms {
		reports[i].Simulated = len(groups[p]) - reports[i].Live
		reports[i].MentionRate = mentionRate(answers, p)
		liveCount += reports[i].Live
	}
	simCount := len(panel.Questions) - liveCount

	total := simUsage
	for i := range usages {
		total.Add(usages[i])
	}

	res := &Result{
		Answers:  model.AnswerSet{Answers: answers, CollectedAt: time.Now().UTC()},
		Reports:  reports,
		Usage:    total,
		Duration: time.Since(start).Milliseconds(),
	}
	res.Warning = coverageWarning(reports, liveCount, simCount)

	zap.L().Info("platform querying complete",
		zap.String("domain", domain),
		zap.Int("live_answers", liveCount),
		zap.Int("simulated_answers", simCount),
		zap.Duration("duration", time.Since(start)))

	return res, nil
}

// coverageWarning describes how much of the answer set is simulated. Full
// simulation is a limited-quality run; partial simulation is a warning.
func coverageWarning(reports []PlatformReport, liveCount, simCount int) *model.QualityWarning {
	if simCount == 0 {
		return nil
	}

	statuses := make(map[string]any, len(reports))
	for _, r := range reports {
		statuses[string(r.Platform)] = string(r.Status)
	}
	signals := map[string]any{
		"live":      liveCount,
		"simulated": simCount,
		"platforms": statuses,
	}

	if liveCount == 0 {
		return &model.QualityWarning{
			Tier:    model.TierLimited,
			Phase:   "query_platforms",
			Reason:  "no live assistant coverage; every answer is simulated",
			Signals: signals,
		}
	}
	return &model.QualityWarning{
		Tier:    model.TierWarning,
		Phase:   "query_platforms",
		Reason:  "some assistant answers are simulated",
		Signals: signals,
	}
}

type askReply struct {
	text  string
	usage model.TokenUsage
}

// askOnce issues one live question with a per-attempt timeout. An empty
// reply counts as a failure so the platform degrades rather than scoring
// blank text.
func (q *Querier) askOnce(ctx context.Context, p model.Platform, ask asker, question string) (string, model.TokenUsage, error) {
	retry := resilience.FromRetryConfig(q.cfg.RetryMaxAttempts, q.cfg.RetryInitialBackoffMs, 0, 0, 0)
	retry.OnRetry = resilience.RetryLogger(string(p), "ask")
	reply, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (askReply, error) {
		callCtx, cancel := context.WithTimeout(ctx, q.askTimeout)
		defer cancel()

		text, usage, err := ask.Ask(callCtx, question)
		if err != nil {
			return askReply{}, err
		}
		return askReply{text: text, usage: usage}, nil
	})
	if err != nil {
		return "", reply.usage, eris.Wrapf(err, "assistant: %s call", p)
	}
	if strings.TrimSpace(reply.text) == "" {
		return "", reply.usage, eris.Errorf("assistant: %s returned an empty answer", p)
	}
	return reply.text, reply.usage, nil
}

func (q *Querier) credential(p model.Platform) (Credential, bool) {
	if q.creds == nil {
		return Credential{}, false
	}
	return q.creds.Credential(p)
}

func (q *Querier) competitorNames(ctx context.Context, domain string) []string {
	if q.comp == nil {
		return nil
	}
	cs, err := q.comp.Competitors(ctx, domain)
	if err != nil {
		zap.L().Warn("competitor lookup failed, counting no competitor mentions",
			zap.String("domain", domain),
			zap.Error(err))
		return nil
	}
	return competitor.Names(cs)
}

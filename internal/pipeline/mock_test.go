package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/radius-labs/visibility-cli/internal/assistant"
	"github.com/radius-labs/visibility-cli/internal/knowledge"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/question"
	"github.com/radius-labs/visibility-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisRecord), args.Error(1)
}

func (m *mockStore) LatestForDomain(ctx context.Context, domain string) (*model.AnalysisRecord, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisRecord), args.Error(1)
}

func (m *mockStore) LatestForCaller(ctx context.Context, domain, callerID string, since time.Time) (*model.AnalysisRecord, error) {
	args := m.Called(ctx, domain, callerID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisRecord), args.Error(1)
}

func (m *mockStore) ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.AnalysisRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AnalysisRecord), args.Error(1)
}

func (m *mockStore) SetKnowledgeField(ctx context.Context, analysisID, field, value string) error {
	args := m.Called(ctx, analysisID, field, value)
	return args.Error(0)
}

func (m *mockStore) AppendEvidence(ctx context.Context, analysisID string, item model.EvidenceItem) error {
	args := m.Called(ctx, analysisID, item)
	return args.Error(0)
}

func (m *mockStore) DeleteEvidence(ctx context.Context, analysisID, evidenceID string) error {
	args := m.Called(ctx, analysisID, evidenceID)
	return args.Error(0)
}

func (m *mockStore) AppendScore(ctx context.Context, analysisID string, report model.ScoreReport) error {
	args := m.Called(ctx, analysisID, report)
	return args.Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Crawler Mock ---

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) Crawl(ctx context.Context, domain string) (*model.CrawlBundle, *model.QualityWarning, error) {
	args := m.Called(ctx, domain)
	var bundle *model.CrawlBundle
	if args.Get(0) != nil {
		bundle = args.Get(0).(*model.CrawlBundle)
	}
	var warn *model.QualityWarning
	if args.Get(1) != nil {
		warn = args.Get(1).(*model.QualityWarning)
	}
	return bundle, warn, args.Error(2)
}

// --- Synthesizer Mock ---

type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, bundle *model.CrawlBundle, pinned map[string]string) (*knowledge.Result, error) {
	args := m.Called(ctx, bundle, pinned)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*knowledge.Result), args.Error(1)
}

func (m *mockSynthesizer) Improve(ctx context.Context, text string, mode knowledge.ImproveMode) (string, model.TokenUsage, error) {
	args := m.Called(ctx, text, mode)
	return args.String(0), args.Get(1).(model.TokenUsage), args.Error(2)
}

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, domain string, kr *model.KnowledgeRepresentation) (*question.Result, error) {
	args := m.Called(ctx, domain, kr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*question.Result), args.Error(1)
}

// --- Querier Mock ---

type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) Run(ctx context.Context, domain string, panel *model.QuestionPanel, kr *model.KnowledgeRepresentation) (*assistant.Result, error) {
	args := m.Called(ctx, domain, panel, kr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.Result), args.Error(1)
}

// --- Ensure interface compliance ---
var (
	_ store.Store = (*mockStore)(nil)
	_ Crawler     = (*mockCrawler)(nil)
	_ Synthesizer = (*mockSynthesizer)(nil)
	_ Generator   = (*mockGenerator)(nil)
	_ Querier     = (*mockQuerier)(nil)
)

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radius-labs/visibility-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(id, domain string, createdAt time.Time) *model.AnalysisRecord {
	return &model.AnalysisRecord{
		ID:     id,
		Domain: domain,
		Status: model.StatusPersisted,
		Knowledge: model.KnowledgeRepresentation{
			Overview:   domain + " builds things.",
			Confidence: model.ConfidenceMedium,
			Generated:  true,
			EvidenceItems: []model.EvidenceItem{
				{ID: "ev_seed", Type: model.EvidenceCaseStudy, Title: "Seed", Content: "Seed evidence", CreatedAt: createdAt},
			},
		},
		Questions: model.QuestionPanel{
			Questions: []model.Question{{
				Text:           "What is a good option for this?",
				IntentCategory: model.IntentDiscovery,
				TargetPlatform: model.PlatformChatGPT,
				Relevance:      0.8,
			}},
			GeneratedAt: createdAt,
		},
		Answers: model.AnswerSet{
			Answers: []model.Answer{{
				QuestionRef: 0,
				Platform:    model.PlatformChatGPT,
				Text:        "There are a few options.",
				Sentiment:   model.SentimentNeutral,
				Simulated:   true,
			}},
			CollectedAt: createdAt,
		},
		Scores: []model.ScoreReport{{
			Version: 1, Trigger: model.TriggerInitial,
			AIC: 4, CES: 5, MTS: 6, Overall: 49, Grade: "F",
			GeneratedAt: createdAt,
		}},
		Provenance: model.Provenance{FreshCrawl: true, FreshGeneration: true, Timestamp: createdAt},
		Tokens:     model.TokenUsage{InputTokens: 1000, OutputTokens: 250, Cost: 0.01},
		CostUSD:    0.01,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// --- Save / Get ---

func TestSQLite_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_aaaa0001", "acme.dev", now)
	rec.CallerID = "caller-1"
	rec.Crawl = &model.CrawlBundle{
		Domain:     "acme.dev",
		Pages:      []model.CrawledPage{{URL: "https://acme.dev/", Kind: model.PageHomepage, Text: "welcome"}},
		TotalChars: 7,
		FetchedAt:  now,
	}
	rec.Warnings = []model.QualityWarning{{Tier: model.TierWarning, Phase: "crawl", Reason: "thin content"}}
	rec.Phases = []model.PhaseResult{{Name: "crawl", Status: model.PhaseStatusComplete, Duration: 900}}

	require.NoError(t, st.SaveAnalysis(ctx, rec))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "acme.dev", got.Domain)
	assert.Equal(t, "caller-1", got.CallerID)
	assert.Equal(t, model.StatusPersisted, got.Status)
	assert.Equal(t, rec.Knowledge.Overview, got.Knowledge.Overview)
	require.Len(t, got.Questions.Questions, 1)
	require.Len(t, got.Answers.Answers, 1)
	assert.True(t, got.Answers.Answers[0].Simulated)
	require.Len(t, got.Scores, 1)
	assert.Equal(t, 49, got.Scores[0].Overall)
	require.NotNil(t, got.Crawl)
	assert.Len(t, got.Crawl.Pages, 1)
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, model.TierWarning, got.Warnings[0].Tier)
	require.Len(t, got.Phases, 1)
	assert.InDelta(t, 0.01, got.CostUSD, 0.0001)
}

func TestSQLite_Get_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetAnalysis(context.Background(), "radius_nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Save_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_aaaa0002", "acme.dev", now)
	rec.Status = model.StatusScoring
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	rec.Status = model.StatusPersisted
	rec.CostUSD = 0.05
	rec.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPersisted, got.Status)
	assert.InDelta(t, 0.05, got.CostUSD, 0.0001)
}

// --- Latest lookups ---

func TestSQLite_LatestForDomain(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	older := testRecord("radius_20260101_000000_old00001", "acme.dev", base)
	newer := testRecord("radius_20260101_010000_new00001", "acme.dev", base.Add(time.Hour))
	other := testRecord("radius_20260101_020000_oth00001", "other.io", base.Add(2*time.Hour))

	for _, r := range []*model.AnalysisRecord{older, newer, other} {
		require.NoError(t, st.SaveAnalysis(ctx, r))
	}

	got, err := st.LatestForDomain(ctx, "acme.dev")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = st.LatestForDomain(ctx, "nobody.example")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_LatestForDomain_IgnoresUnpersisted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_fail0001", "acme.dev", now)
	rec.Status = model.StatusFailed
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	_, err := st.LatestForDomain(ctx, "acme.dev")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_LatestForCaller(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	fresh := testRecord("radius_20260101_000000_cal00001", "acme.dev", now.Add(-time.Hour))
	fresh.CallerID = "caller-1"
	stale := testRecord("radius_20251230_000000_cal00002", "acme.dev", now.Add(-48*time.Hour))
	stale.CallerID = "caller-1"
	someoneElse := testRecord("radius_20260101_000000_cal00003", "acme.dev", now.Add(-time.Minute))
	someoneElse.CallerID = "caller-2"

	for _, r := range []*model.AnalysisRecord{fresh, stale, someoneElse} {
		require.NoError(t, st.SaveAnalysis(ctx, r))
	}

	cutoff := now.Add(-24 * time.Hour)

	got, err := st.LatestForCaller(ctx, "acme.dev", "caller-1", cutoff)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)

	// Only the stale record exists inside a tighter window.
	_, err = st.LatestForCaller(ctx, "acme.dev", "caller-1", now.Add(-time.Minute))
	assert.True(t, errors.Is(err, ErrNotFound))

	// Another caller's records are invisible.
	_, err = st.LatestForCaller(ctx, "acme.dev", "caller-3", cutoff)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- List ---

func TestSQLite_ListAnalyses(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i, domain := range []string{"a.dev", "a.dev", "b.dev"} {
		rec := testRecord(model.NewAnalysisID(base.Add(time.Duration(i)*time.Minute)), domain, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, st.SaveAnalysis(ctx, rec))
	}

	all, err := st.ListAnalyses(ctx, AnalysisFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first.
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	onlyA, err := st.ListAnalyses(ctx, AnalysisFilter{Domain: "a.dev"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	limited, err := st.ListAnalyses(ctx, AnalysisFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	offset, err := st.ListAnalyses(ctx, AnalysisFilter{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, offset, 1)

	since, err := st.ListAnalyses(ctx, AnalysisFilter{Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

// --- Field-level updates ---

func TestSQLite_SetKnowledgeField(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_patch001", "acme.dev", now)
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	require.NoError(t, st.SetKnowledgeField(ctx, rec.ID, "overview", "Acme ships infrastructure tooling."))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme ships infrastructure tooling.", got.Knowledge.Overview)
	// Other fields untouched.
	assert.Equal(t, model.ConfidenceMedium, got.Knowledge.Confidence)

	err = st.SetKnowledgeField(ctx, "radius_missing", "overview", "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_SetKnowledgeField_LastWriteWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_patch002", "acme.dev", now)
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	require.NoError(t, st.SetKnowledgeField(ctx, rec.ID, "positioning", "first write"))
	require.NoError(t, st.SetKnowledgeField(ctx, rec.ID, "positioning", "second write"))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "second write", got.Knowledge.Positioning)
}

// --- Evidence ---

func TestSQLite_AppendEvidence(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_evid0001", "acme.dev", now)
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	item := model.EvidenceItem{
		ID:        "ev_added",
		Type:      model.EvidenceReview,
		Title:     "G2 review",
		Content:   "Best tool we adopted this year.",
		Source:    "https://g2.com/acme",
		CreatedAt: now,
	}
	require.NoError(t, st.AppendEvidence(ctx, rec.ID, item))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Knowledge.EvidenceItems, 2)
	assert.Equal(t, "ev_added", got.Knowledge.EvidenceItems[1].ID)
	assert.Equal(t, model.EvidenceReview, got.Knowledge.EvidenceItems[1].Type)

	err = st.AppendEvidence(ctx, "radius_missing", item)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_AppendEvidence_EmptyList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_evid0002", "acme.dev", now)
	rec.Knowledge.EvidenceItems = nil
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	item := model.EvidenceItem{ID: "ev_first", Type: model.EvidenceStatistic, Title: "Uptime", Content: "99.99% in 2025"}
	require.NoError(t, st.AppendEvidence(ctx, rec.ID, item))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Knowledge.EvidenceItems, 1)
	assert.Equal(t, "ev_first", got.Knowledge.EvidenceItems[0].ID)
}

func TestSQLite_DeleteEvidence(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_evid0003", "acme.dev", now)
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	require.NoError(t, st.DeleteEvidence(ctx, rec.ID, "ev_seed"))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Knowledge.EvidenceItems)

	// Deleting again reports not found.
	err = st.DeleteEvidence(ctx, rec.ID, "ev_seed")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = st.DeleteEvidence(ctx, "radius_missing", "ev_seed")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Scores ---

func TestSQLite_AppendScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("radius_20260101_000000_scor0001", "acme.dev", now)
	require.NoError(t, st.SaveAnalysis(ctx, rec))

	v2 := model.ScoreReport{
		Version: 2, Trigger: model.TriggerFeedback,
		AIC: 6, CES: 6, MTS: 6, Overall: 60, Grade: "C",
		GeneratedAt: now.Add(time.Minute),
	}
	require.NoError(t, st.AppendScore(ctx, rec.ID, v2))

	got, err := st.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Scores, 2)
	assert.Equal(t, 1, got.Scores[0].Version)
	assert.Equal(t, 2, got.Scores[1].Version)

	cur := got.CurrentScore()
	require.NotNil(t, cur)
	assert.Equal(t, 2, cur.Version)
	assert.Equal(t, model.TriggerFeedback, cur.Trigger)

	err = st.AppendScore(ctx, "radius_missing", v2)
	assert.True(t, errors.Is(err, ErrNotFound))
}

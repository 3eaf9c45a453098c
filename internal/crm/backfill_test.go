package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/pkg/salesforce"
)

func TestSyncAll_MixedBatch(t *testing.T) {
	older := scoredRecord("acme.dev")
	older.ID = "radius_20260201_090000_00000001"
	older.CreatedAt = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	newer := scoredRecord("acme.dev")
	newer.ID = "radius_20260210_120000_00000002"
	newer.Scores[0].Overall = 85
	newer.Scores[0].Grade = "A"

	fresh := scoredRecord("beta.io")

	failed := scoredRecord("gamma.co")
	failed.Status = model.StatusFailed

	unscored := scoredRecord("delta.app")
	unscored.Scores = nil

	var insertedDomains []string
	var collected []salesforce.CollectionRecord
	mc := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			refs, ok := out.(*[]analysisSummary)
			if !ok {
				return nil
			}
			assert.Contains(t, soql, "'acme.dev'")
			assert.Contains(t, soql, "'beta.io'")
			assert.NotContains(t, soql, "gamma.co")
			assert.NotContains(t, soql, "delta.app")
			*refs = []analysisSummary{{ID: "a0XACME", Domain: "acme.dev"}}
			return nil
		},
		insertOneFn: func(_ context.Context, sObject string, record map[string]any) (string, error) {
			assert.Equal(t, "AI_Visibility_Analysis__c", sObject)
			insertedDomains = append(insertedDomains, record["Domain__c"].(string))
			return "a0XNEW", nil
		},
		updateCollectionFn: func(_ context.Context, sObject string, records []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
			assert.Equal(t, "AI_Visibility_Analysis__c", sObject)
			collected = records
			results := make([]salesforce.CollectionResult, len(records))
			for i, r := range records {
				results[i] = salesforce.CollectionResult{ID: r.ID, Success: true}
			}
			return results, nil
		},
	}

	recs := []model.AnalysisRecord{*older, *newer, *fresh, *failed, *unscored}
	result, err := NewSyncer(mc).SyncAll(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 0, result.AccountsUpdated, "no Accounts match these domains")

	assert.Equal(t, []string{"beta.io"}, insertedDomains)
	require.Len(t, collected, 1)
	assert.Equal(t, "a0XACME", collected[0].ID)
	assert.Equal(t, 85, collected[0].Fields["Overall_Score__c"])
	assert.Equal(t, newer.ID, collected[0].Fields["Analysis_Id__c"])
}

func TestSyncAll_NothingToSync(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		mc := &mockClient{}
		result, err := NewSyncer(mc).SyncAll(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, &BatchResult{}, result)
		assert.Equal(t, 0, mc.queryCalls)
	})

	t.Run("all unsyncable", func(t *testing.T) {
		failed := scoredRecord("acme.dev")
		failed.Status = model.StatusFailed
		unscored := scoredRecord("beta.io")
		unscored.Scores = nil

		mc := &mockClient{}
		result, err := NewSyncer(mc).SyncAll(context.Background(), []model.AnalysisRecord{*failed, *unscored})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, 0, result.Created+result.Updated+result.Failed)
		assert.Equal(t, 0, mc.queryCalls)
	})
}

func TestSyncAll_InsertFailureCountedNotFatal(t *testing.T) {
	mc := &mockClient{
		insertOneFn: func(_ context.Context, _ string, record map[string]any) (string, error) {
			if record["Domain__c"] == "beta.io" {
				return "", errors.New("STORAGE_LIMIT_EXCEEDED")
			}
			return "a0XNEW", nil
		},
	}

	recs := []model.AnalysisRecord{*scoredRecord("acme.dev"), *scoredRecord("beta.io")}
	result, err := NewSyncer(mc).SyncAll(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Failed)
}

func TestSyncAll_RejectedUpdateCounted(t *testing.T) {
	mc := &mockClient{
		queryFn: func(_ context.Context, _ string, out any) error {
			if refs, ok := out.(*[]analysisSummary); ok {
				*refs = []analysisSummary{{ID: "a0XACME", Domain: "acme.dev"}}
			}
			return nil
		},
		updateCollectionFn: func(_ context.Context, _ string, records []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
			return []salesforce.CollectionResult{
				{ID: records[0].ID, Success: false, Errors: []string{"ENTITY_IS_LOCKED"}},
			}, nil
		},
	}

	result, err := NewSyncer(mc).SyncAll(context.Background(), []model.AnalysisRecord{*scoredRecord("acme.dev")})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Failed)
}

func TestSyncAll_BatchUpdateErrorPropagates(t *testing.T) {
	mc := &mockClient{
		queryFn: func(_ context.Context, _ string, out any) error {
			if refs, ok := out.(*[]analysisSummary); ok {
				*refs = []analysisSummary{{ID: "a0XACME", Domain: "acme.dev"}}
			}
			return nil
		},
		updateCollectionFn: func(_ context.Context, _ string, _ []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
			return nil, errors.New("connection reset")
		},
	}

	_, err := NewSyncer(mc).SyncAll(context.Background(), []model.AnalysisRecord{*scoredRecord("acme.dev")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill batch update")
}

func TestSyncAll_BulkAccountRollup(t *testing.T) {
	recs := []model.AnalysisRecord{
		*scoredRecord("acme.dev"), *scoredRecord("beta.io"), *scoredRecord("gamma.co"),
	}

	// gamma.co has no matching Account.
	accounts := map[string]string{
		"%acme.dev%": "001ACME",
		"%beta.io%":  "001BETA",
	}

	var rollup []salesforce.CollectionRecord
	mc := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			accts, ok := out.(*[]salesforce.Account)
			if !ok {
				return nil
			}
			for pattern, id := range accounts {
				if strings.Contains(soql, pattern) {
					*accts = []salesforce.Account{{ID: id}}
				}
			}
			return nil
		},
		updateCollectionFn: func(_ context.Context, sObject string, records []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
			require.Equal(t, "Account", sObject, "every summary is new, so only the rollup batches")
			rollup = records
			results := make([]salesforce.CollectionResult, len(records))
			for i, r := range records {
				results[i] = salesforce.CollectionResult{ID: r.ID, Success: i == 0}
			}
			return results, nil
		},
	}

	result, err := NewSyncer(mc).SyncAll(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.AccountsUpdated,
		"one rollup accepted, one rejected, one domain without an Account")

	require.Len(t, rollup, 2)
	assert.ElementsMatch(t, []string{"001ACME", "001BETA"}, []string{rollup[0].ID, rollup[1].ID})
	assert.Equal(t, 72, rollup[0].Fields["AI_Visibility_Score__c"])
	assert.Equal(t, "B", rollup[0].Fields["AI_Visibility_Grade__c"])
	assert.Equal(t, "2026-02-10T12:00:00Z", rollup[0].Fields["Last_Visibility_Check__c"])
}

func TestSyncAll_ChunksExistenceQueries(t *testing.T) {
	recs := make([]model.AnalysisRecord, 0, 201)
	for i := 0; i < 201; i++ {
		recs = append(recs, *scoredRecord(fmt.Sprintf("site-%03d.dev", i)))
	}

	var lookupCalls int
	mc := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			if _, ok := out.(*[]analysisSummary); !ok {
				return nil
			}
			lookupCalls++
			// Each chunk holds at most queryChunk quoted domains.
			assert.LessOrEqual(t, strings.Count(soql, "'"), 2*queryChunk)
			return nil
		},
	}

	result, err := NewSyncer(mc).SyncAll(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 2, lookupCalls)
	assert.Equal(t, 201, result.Created)
	assert.Equal(t, 0, result.Skipped)
}

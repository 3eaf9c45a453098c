package salesforce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAccountByWebsite(t *testing.T) {
	t.Run("returns account when found", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "Website LIKE 'radiuslabs.dev'")
				assert.Contains(t, soql, "LIMIT 1")
				for _, field := range accountFields {
					assert.Contains(t, soql, field)
				}

				accounts := out.(*[]Account)
				*accounts = []Account{
					{ID: "001xx", Name: "Radius Labs", Website: "radiuslabs.dev"},
				}
				return nil
			},
		}

		acct, err := FindAccountByWebsite(context.Background(), mock, "radiuslabs.dev")
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, "001xx", acct.ID)
		assert.Equal(t, "Radius Labs", acct.Name)
	})

	t.Run("returns nil when not found", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, out any) error {
				accounts := out.(*[]Account)
				*accounts = []Account{}
				return nil
			},
		}

		acct, err := FindAccountByWebsite(context.Background(), mock, "nonexistent.com")
		require.NoError(t, err)
		assert.Nil(t, acct)
	})

	t.Run("returns error on query failure", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				return errors.New("connection refused")
			},
		}

		acct, err := FindAccountByWebsite(context.Background(), mock, "radiuslabs.dev")
		assert.Error(t, err)
		assert.Nil(t, acct)
		assert.Contains(t, err.Error(), "find account by website")
	})

	t.Run("quotes in the pattern cannot break out of the literal", func(t *testing.T) {
		var capturedSOQL string
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				capturedSOQL = soql
				accounts := out.(*[]Account)
				*accounts = []Account{}
				return nil
			},
		}

		_, _ = FindAccountByWebsite(context.Background(), mock, "test'; DROP TABLE Account; --")
		assert.Contains(t, capturedSOQL, "test\\'; DROP TABLE Account; --")
		assert.NotContains(t, capturedSOQL, "test'; DROP")
	})
}

func TestUpdateAccount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var capturedID string
		var capturedFields map[string]any
		mock := &mockClient{
			updateOneFn: func(_ context.Context, sObject string, id string, fields map[string]any) error {
				assert.Equal(t, "Account", sObject)
				capturedID = id
				capturedFields = fields
				return nil
			},
		}

		fields := map[string]any{"AI_Visibility_Score__c": 72, "AI_Visibility_Grade__c": "B"}
		err := UpdateAccount(context.Background(), mock, "001xx", fields)
		require.NoError(t, err)
		assert.Equal(t, "001xx", capturedID)
		assert.Equal(t, 72, capturedFields["AI_Visibility_Score__c"])
	})

	t.Run("empty id", func(t *testing.T) {
		mock := &mockClient{}
		err := UpdateAccount(context.Background(), mock, "", map[string]any{"Name": "test"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "account id is required")
	})

	t.Run("empty fields", func(t *testing.T) {
		mock := &mockClient{}
		err := UpdateAccount(context.Background(), mock, "001xx", map[string]any{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no fields to update")
	})

	t.Run("nil fields", func(t *testing.T) {
		mock := &mockClient{}
		err := UpdateAccount(context.Background(), mock, "001xx", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no fields to update")
	})

	t.Run("propagates error", func(t *testing.T) {
		mock := &mockClient{
			updateOneFn: func(_ context.Context, _ string, _ string, _ map[string]any) error {
				return errors.New("unauthorized")
			},
		}

		err := UpdateAccount(context.Background(), mock, "001xx", map[string]any{"Name": "test"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "update account")
	})
}

func okCollection(records []CollectionRecord) []CollectionResult {
	results := make([]CollectionResult, len(records))
	for i, r := range records {
		results[i] = CollectionResult{ID: r.ID, Success: true}
	}
	return results
}

func makeUpdates(n int) []AccountUpdate {
	updates := make([]AccountUpdate, n)
	for i := range updates {
		updates[i] = AccountUpdate{
			ID:     fmt.Sprintf("001xx%06d", i),
			Fields: map[string]any{"Industry": "Tech"},
		}
	}
	return updates
}

func TestBulkUpdateAccounts(t *testing.T) {
	t.Run("empty updates returns nil", func(t *testing.T) {
		mock := &mockClient{}
		results, err := BulkUpdateAccounts(context.Background(), mock, nil)
		require.NoError(t, err)
		assert.Nil(t, results)
	})

	t.Run("single batch under the limit", func(t *testing.T) {
		var callCount int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, sObject string, records []CollectionRecord) ([]CollectionResult, error) {
				callCount++
				assert.Equal(t, "Account", sObject)
				return okCollection(records), nil
			},
		}

		results, err := BulkUpdateAccounts(context.Background(), mock, makeUpdates(50))
		require.NoError(t, err)
		assert.Len(t, results, 50)
		assert.Equal(t, 1, callCount)
	})

	t.Run("exactly 200 stays one batch", func(t *testing.T) {
		var callCount int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				callCount++
				assert.Len(t, records, 200)
				return okCollection(records), nil
			},
		}

		results, err := BulkUpdateAccounts(context.Background(), mock, makeUpdates(200))
		require.NoError(t, err)
		assert.Len(t, results, 200)
		assert.Equal(t, 1, callCount)
	})

	t.Run("splits on the batch limit", func(t *testing.T) {
		var batchSizes []int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				batchSizes = append(batchSizes, len(records))
				return okCollection(records), nil
			},
		}

		results, err := BulkUpdateAccounts(context.Background(), mock, makeUpdates(450))
		require.NoError(t, err)
		assert.Len(t, results, 450)
		assert.Equal(t, []int{200, 200, 50}, batchSizes)
	})

	t.Run("201 becomes two batches", func(t *testing.T) {
		var batchSizes []int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				batchSizes = append(batchSizes, len(records))
				return okCollection(records), nil
			},
		}

		results, err := BulkUpdateAccounts(context.Background(), mock, makeUpdates(201))
		require.NoError(t, err)
		assert.Len(t, results, 201)
		assert.Equal(t, []int{200, 1}, batchSizes)
	})

	t.Run("error in second batch returns partial results", func(t *testing.T) {
		callCount := 0
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				callCount++
				if callCount == 2 {
					return nil, errors.New("rate limit exceeded")
				}
				return okCollection(records), nil
			},
		}

		results, err := BulkUpdateAccounts(context.Background(), mock, makeUpdates(250))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "bulk update accounts")
		assert.Len(t, results, 200, "first batch survives the second's failure")
	})

	t.Run("fields pass through untouched", func(t *testing.T) {
		var capturedRecords []CollectionRecord
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, sObject string, records []CollectionRecord) ([]CollectionResult, error) {
				assert.Equal(t, "Account", sObject)
				capturedRecords = records
				return okCollection(records), nil
			},
		}

		updates := []AccountUpdate{
			{ID: "001xx", Fields: map[string]any{"AI_Visibility_Score__c": 72, "AI_Visibility_Grade__c": "B"}},
			{ID: "002xx", Fields: map[string]any{"AI_Visibility_Score__c": 48}},
		}

		results, err := BulkUpdateAccounts(context.Background(), mock, updates)
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Len(t, capturedRecords, 2)
		assert.Equal(t, "001xx", capturedRecords[0].ID)
		assert.Equal(t, 72, capturedRecords[0].Fields["AI_Visibility_Score__c"])
		assert.Equal(t, "002xx", capturedRecords[1].ID)
		assert.Equal(t, 48, capturedRecords[1].Fields["AI_Visibility_Score__c"])
	})
}

func TestEscapeSoql(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"radiuslabs.dev", "radiuslabs.dev"},
		{"O'Reilly", "O\\'Reilly"},
		{"it's a test's case", "it\\'s a test\\'s case"},
		{"no-quotes", "no-quotes"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeSoql(tt.input))
		})
	}
}

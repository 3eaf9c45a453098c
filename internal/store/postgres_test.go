package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetAnalysis_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, domain, caller_id, status`).
		WithArgs("radius_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAnalysis(context.Background(), "radius_missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestForDomain_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE domain = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT 1`).
		WithArgs("nobody.example", "persisted").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestForDomain(context.Background(), "nobody.example")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAnalysis_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analyses`).
		WithArgs(
			"radius_20260101_000000_aaaa0001", "acme.dev", pgxmock.AnyArg(), "persisted",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := testRecord("radius_20260101_000000_aaaa0001", "acme.dev", time.Now().UTC())
	err := s.SaveAnalysis(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetKnowledgeField(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`jsonb_set\(knowledge, ARRAY\[\$2\]`).
		WithArgs("radius_1", "overview", "Updated overview.", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetKnowledgeField(context.Background(), "radius_1", "overview", "Updated overview.")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetKnowledgeField_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`jsonb_set\(knowledge, ARRAY\[\$2\]`).
		WithArgs("radius_missing", "overview", "x", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetKnowledgeField(context.Background(), "radius_missing", "overview", "x")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendEvidence(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`COALESCE\(knowledge->'evidence_items', '\[\]'::jsonb\) \|\| \$2::jsonb`).
		WithArgs("radius_1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	item := model.EvidenceItem{ID: "ev_1", Type: model.EvidenceReview, Title: "Review", Content: "Great"}
	err := s.AppendEvidence(context.Background(), "radius_1", item)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteEvidence_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`jsonb_array_elements`).
		WithArgs("radius_1", "ev_gone", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.DeleteEvidence(context.Background(), "radius_1", "ev_gone")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendScore(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`scores = scores \|\| \$2::jsonb`).
		WithArgs("radius_1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	report := model.ScoreReport{Version: 2, Trigger: model.TriggerFeedback, Overall: 61, Grade: "C"}
	err := s.AppendScore(context.Background(), "radius_1", report)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/radius-labs/visibility-cli/internal/db"
	"github.com/radius-labs/visibility-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_analysis":      selectAnalysisPG + ` WHERE id = $1`,
	"latest_for_domain": selectAnalysisPG + ` WHERE domain = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`,
	"latest_for_caller": selectAnalysisPG + ` WHERE domain = $1 AND caller_id = $2 AND status = $3 AND created_at > $4 ORDER BY created_at DESC LIMIT 1`,
	"set_knowledge_field": `UPDATE analyses SET knowledge = jsonb_set(knowledge, ARRAY[$2], to_jsonb($3::text)), updated_at = $4 WHERE id = $1`,
	"append_score":        `UPDATE analyses SET scores = scores || $2::jsonb, updated_at = $3 WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests pass a pgxmock pool here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	caller_id  TEXT,
	status     TEXT NOT NULL,
	knowledge  JSONB NOT NULL,
	questions  JSONB NOT NULL,
	answers    JSONB NOT NULL,
	scores     JSONB NOT NULL DEFAULT '[]'::jsonb,
	crawl      JSONB,
	provenance JSONB NOT NULL,
	warnings   JSONB,
	phases     JSONB,
	tokens     JSONB NOT NULL,
	cost_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_domain ON analyses(domain, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_caller ON analyses(caller_id, domain, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	cols, err := marshalRecord(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses
		 (id, domain, caller_id, status, knowledge, questions, answers, scores, crawl,
		  provenance, warnings, phases, tokens, cost_usd, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (id) DO UPDATE SET
		   status = $4, knowledge = $5, questions = $6, answers = $7, scores = $8,
		   crawl = $9, provenance = $10, warnings = $11, phases = $12, tokens = $13,
		   cost_usd = $14, error = $15, updated_at = $17`,
		rec.ID, rec.Domain, textOrNil(rec.CallerID), string(rec.Status),
		[]byte(cols.knowledge), []byte(cols.questions), []byte(cols.answers), []byte(cols.scores),
		jsonbOrNil(cols.crawl), []byte(cols.provenance), jsonbOrNil(cols.warnings),
		jsonbOrNil(cols.phases), []byte(cols.tokens),
		rec.CostUSD, textOrNil(rec.Error), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save analysis %s", rec.ID)
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx, selectAnalysisPG+` WHERE id = $1`, id)
	rec, err := scanAnalysisPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) LatestForDomain(ctx context.Context, domain string) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		selectAnalysisPG+` WHERE domain = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`,
		domain, string(model.StatusPersisted),
	)
	rec, err := scanAnalysisPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest for domain %s", domain)
	}
	return rec, nil
}

func (s *PostgresStore) LatestForCaller(ctx context.Context, domain, callerID string, since time.Time) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		selectAnalysisPG+` WHERE domain = $1 AND caller_id = $2 AND status = $3 AND created_at > $4
		 ORDER BY created_at DESC LIMIT 1`,
		domain, callerID, string(model.StatusPersisted), since.UTC(),
	)
	rec, err := scanAnalysisPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest for caller %s on %s", callerID, domain)
	}
	return rec, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error) {
	query := selectAnalysisPG + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Domain != "" {
		query += fmt.Sprintf(` AND domain = $%d`, argIdx)
		args = append(args, filter.Domain)
		argIdx++
	}
	if filter.CallerID != "" {
		query += fmt.Sprintf(` AND caller_id = $%d`, argIdx)
		args = append(args, filter.CallerID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var recs []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysisPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

// SetKnowledgeField patches one free-text knowledge field in place via
// jsonb_set, so concurrent patches resolve last-write-wins per field.
func (s *PostgresStore) SetKnowledgeField(ctx context.Context, analysisID, field, value string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET knowledge = jsonb_set(knowledge, ARRAY[$2], to_jsonb($3::text)), updated_at = $4 WHERE id = $1`,
		analysisID, field, value, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set knowledge field %s", field)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "analysis %s", analysisID)
	}
	return nil
}

func (s *PostgresStore) AppendEvidence(ctx context.Context, analysisID string, item model.EvidenceItem) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET knowledge = jsonb_set(knowledge, '{evidence_items}',
		   COALESCE(knowledge->'evidence_items', '[]'::jsonb) || $2::jsonb), updated_at = $3
		 WHERE id = $1`,
		analysisID, itemJSON, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append evidence to %s", analysisID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "analysis %s", analysisID)
	}
	return nil
}

func (s *PostgresStore) DeleteEvidence(ctx context.Context, analysisID, evidenceID string) error {
	// The WHERE clause requires the item to be present, so a zero row
	// count means either the analysis or the evidence id is missing.
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET knowledge = jsonb_set(knowledge, '{evidence_items}',
		   COALESCE((SELECT jsonb_agg(e) FROM jsonb_array_elements(knowledge->'evidence_items') e
		             WHERE e->>'id' <> $2), '[]'::jsonb)), updated_at = $3
		 WHERE id = $1
		   AND knowledge->'evidence_items' @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		analysisID, evidenceID, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete evidence %s", evidenceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "evidence %s in analysis %s", evidenceID, analysisID)
	}
	return nil
}

func (s *PostgresStore) AppendScore(ctx context.Context, analysisID string, report model.ScoreReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal score")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET scores = scores || $2::jsonb, updated_at = $3 WHERE id = $1`,
		analysisID, reportJSON, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append score to %s", analysisID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "analysis %s", analysisID)
	}
	return nil
}

// helpers

const selectAnalysisPG = `SELECT id, domain, caller_id, status, knowledge, questions, answers, scores,
	crawl, provenance, warnings, phases, tokens, cost_usd, error, created_at, updated_at FROM analyses`

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonbOrNil(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}

func scanAnalysisPG(row pgx.Row) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var callerID, errMsg *string
	var knowledge, questions, answers, scores, provenance, tokens []byte
	var crawl, warnings, phases *[]byte

	err := row.Scan(&rec.ID, &rec.Domain, &callerID, &rec.Status,
		&knowledge, &questions, &answers, &scores, &crawl,
		&provenance, &warnings, &phases, &tokens,
		&rec.CostUSD, &errMsg, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if callerID != nil {
		rec.CallerID = *callerID
	}
	if errMsg != nil {
		rec.Error = *errMsg
	}

	for _, f := range []struct {
		src []byte
		dst any
	}{
		{knowledge, &rec.Knowledge},
		{questions, &rec.Questions},
		{answers, &rec.Answers},
		{scores, &rec.Scores},
		{provenance, &rec.Provenance},
		{tokens, &rec.Tokens},
	} {
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, err
		}
	}

	if crawl != nil {
		rec.Crawl = &model.CrawlBundle{}
		if err := json.Unmarshal(*crawl, rec.Crawl); err != nil {
			return nil, err
		}
	}
	if warnings != nil {
		if err := json.Unmarshal(*warnings, &rec.Warnings); err != nil {
			return nil, err
		}
	}
	if phases != nil {
		if err := json.Unmarshal(*phases, &rec.Phases); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

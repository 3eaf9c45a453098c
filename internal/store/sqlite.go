package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	caller_id  TEXT,
	status     TEXT NOT NULL,
	knowledge  TEXT NOT NULL,
	questions  TEXT NOT NULL,
	answers    TEXT NOT NULL,
	scores     TEXT NOT NULL DEFAULT '[]',
	crawl      TEXT,
	provenance TEXT NOT NULL,
	warnings   TEXT,
	phases     TEXT,
	tokens     TEXT NOT NULL,
	cost_usd   REAL NOT NULL DEFAULT 0,
	error      TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_domain ON analyses(domain, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_caller ON analyses(caller_id, domain, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	cols, err := marshalRecord(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses
		 (id, domain, caller_id, status, knowledge, questions, answers, scores, crawl,
		  provenance, warnings, phases, tokens, cost_usd, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status, knowledge = excluded.knowledge,
		   questions = excluded.questions, answers = excluded.answers,
		   scores = excluded.scores, crawl = excluded.crawl,
		   provenance = excluded.provenance, warnings = excluded.warnings,
		   phases = excluded.phases, tokens = excluded.tokens,
		   cost_usd = excluded.cost_usd, error = excluded.error,
		   updated_at = excluded.updated_at`,
		rec.ID, rec.Domain, nullStr(rec.CallerID), string(rec.Status),
		cols.knowledge, cols.questions, cols.answers, cols.scores, cols.crawl,
		cols.provenance, cols.warnings, cols.phases, cols.tokens,
		rec.CostUSD, nullStr(rec.Error), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save analysis %s", rec.ID)
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		selectAnalysis+` WHERE id = ?`, id,
	)
	rec, err := scanAnalysis(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) LatestForDomain(ctx context.Context, domain string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		selectAnalysis+` WHERE domain = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		domain, string(model.StatusPersisted),
	)
	rec, err := scanAnalysis(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest for domain %s", domain)
	}
	return rec, nil
}

func (s *SQLiteStore) LatestForCaller(ctx context.Context, domain, callerID string, since time.Time) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		selectAnalysis+` WHERE domain = ? AND caller_id = ? AND status = ? AND created_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		domain, callerID, string(model.StatusPersisted), since.UTC(),
	)
	rec, err := scanAnalysis(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest for caller %s on %s", callerID, domain)
	}
	return rec, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error) {
	query := selectAnalysis + ` WHERE 1=1`
	var args []any

	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.CallerID != "" {
		query += ` AND caller_id = ?`
		args = append(args, filter.CallerID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var recs []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

// SetKnowledgeField patches one free-text knowledge field in place via
// json_set, so concurrent patches resolve last-write-wins per field.
func (s *SQLiteStore) SetKnowledgeField(ctx context.Context, analysisID, field, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET knowledge = json_set(knowledge, ?, ?), updated_at = ? WHERE id = ?`,
		"$."+field, value, time.Now().UTC(), analysisID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set knowledge field %s", field)
	}
	return checkRowsAffected(res, "analysis", analysisID)
}

func (s *SQLiteStore) AppendEvidence(ctx context.Context, analysisID string, item model.EvidenceItem) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET knowledge = json_insert(knowledge, '$.evidence_items[#]', json(?)), updated_at = ?
		 WHERE id = ?`,
		string(itemJSON), time.Now().UTC(), analysisID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append evidence to %s", analysisID)
	}
	return checkRowsAffected(res, "analysis", analysisID)
}

// DeleteEvidence removes one evidence item by id. The array filter has no
// single-statement form in SQLite, so it runs read-modify-write inside a
// transaction.
func (s *SQLiteStore) DeleteEvidence(ctx context.Context, analysisID, evidenceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete evidence")
	}
	defer tx.Rollback()

	var knowledgeJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT knowledge FROM analyses WHERE id = ?`, analysisID,
	).Scan(&knowledgeJSON)
	if err == sql.ErrNoRows {
		return eris.Wrapf(ErrNotFound, "analysis %s", analysisID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: load knowledge for %s", analysisID)
	}

	var kr model.KnowledgeRepresentation
	if err := json.Unmarshal([]byte(knowledgeJSON), &kr); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal knowledge")
	}

	kept := kr.EvidenceItems[:0]
	found := false
	for _, item := range kr.EvidenceItems {
		if item.ID == evidenceID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return eris.Wrapf(ErrNotFound, "evidence %s", evidenceID)
	}
	kr.EvidenceItems = kept

	updated, err := json.Marshal(kr)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal knowledge")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE analyses SET knowledge = ?, updated_at = ? WHERE id = ?`,
		string(updated), time.Now().UTC(), analysisID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete evidence %s", evidenceID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete evidence")
}

func (s *SQLiteStore) AppendScore(ctx context.Context, analysisID string, report model.ScoreReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal score")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET scores = json_insert(scores, '$[#]', json(?)), updated_at = ? WHERE id = ?`,
		string(reportJSON), time.Now().UTC(), analysisID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append score to %s", analysisID)
	}
	return checkRowsAffected(res, "analysis", analysisID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const selectAnalysis = `SELECT id, domain, caller_id, status, knowledge, questions, answers, scores,
	crawl, provenance, warnings, phases, tokens, cost_usd, error, created_at, updated_at FROM analyses`

// recordColumns holds the JSON-encoded columns of one analysis row.
type recordColumns struct {
	knowledge  string
	questions  string
	answers    string
	scores     string
	crawl      sql.NullString
	provenance string
	warnings   sql.NullString
	phases     sql.NullString
	tokens     string
}

func marshalRecord(rec *model.AnalysisRecord) (*recordColumns, error) {
	// Evidence appends rely on evidence_items and scores always being
	// JSON arrays, never null.
	kr := rec.Knowledge
	if kr.EvidenceItems == nil {
		kr.EvidenceItems = []model.EvidenceItem{}
	}
	scores := rec.Scores
	if scores == nil {
		scores = []model.ScoreReport{}
	}

	var cols recordColumns
	for _, f := range []struct {
		dst *string
		src any
	}{
		{&cols.knowledge, kr},
		{&cols.questions, rec.Questions},
		{&cols.answers, rec.Answers},
		{&cols.scores, scores},
		{&cols.provenance, rec.Provenance},
		{&cols.tokens, rec.Tokens},
	} {
		b, err := json.Marshal(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = string(b)
	}

	if rec.Crawl != nil {
		b, err := json.Marshal(rec.Crawl)
		if err != nil {
			return nil, err
		}
		cols.crawl = nullStr(string(b))
	}
	if len(rec.Warnings) > 0 {
		b, err := json.Marshal(rec.Warnings)
		if err != nil {
			return nil, err
		}
		cols.warnings = nullStr(string(b))
	}
	if len(rec.Phases) > 0 {
		b, err := json.Marshal(rec.Phases)
		if err != nil {
			return nil, err
		}
		cols.phases = nullStr(string(b))
	}
	return &cols, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var callerID, crawl, warnings, phases, errMsg sql.NullString
	var knowledge, questions, answers, scores, provenance, tokens string

	err := row.Scan(&rec.ID, &rec.Domain, &callerID, &rec.Status,
		&knowledge, &questions, &answers, &scores, &crawl,
		&provenance, &warnings, &phases, &tokens,
		&rec.CostUSD, &errMsg, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.CallerID = callerID.String
	rec.Error = errMsg.String

	for _, f := range []struct {
		src string
		dst any
	}{
		{knowledge, &rec.Knowledge},
		{questions, &rec.Questions},
		{answers, &rec.Answers},
		{scores, &rec.Scores},
		{provenance, &rec.Provenance},
		{tokens, &rec.Tokens},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, err
		}
	}

	if crawl.Valid {
		rec.Crawl = &model.CrawlBundle{}
		if err := json.Unmarshal([]byte(crawl.String), rec.Crawl); err != nil {
			return nil, err
		}
	}
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &rec.Warnings); err != nil {
			return nil, err
		}
	}
	if phases.Valid {
		if err := json.Unmarshal([]byte(phases.String), &rec.Phases); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

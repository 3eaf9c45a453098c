package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// ErrNotFound is returned when a lookup matches no record. Callers check it
// with errors.Is.
var ErrNotFound = eris.New("not found")

// AnalysisFilter specifies criteria for listing analyses.
type AnalysisFilter struct {
	Domain   string               `json:"domain,omitempty"`
	CallerID string               `json:"caller_id,omitempty"`
	Status   model.AnalysisStatus `json:"status,omitempty"`
	Since    time.Time            `json:"since,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis records.
type Store interface {
	// Records
	SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error)
	// LatestForDomain returns the newest persisted analysis for a
	// normalized domain, regardless of age.
	LatestForDomain(ctx context.Context, domain string) (*model.AnalysisRecord, error)
	// LatestForCaller returns the caller's newest persisted analysis for
	// a domain created after the given cutoff.
	LatestForCaller(ctx context.Context, domain, callerID string, since time.Time) (*model.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error)

	// Field-level updates against the stored record. These write through
	// the database's JSON functions so concurrent edits settle last-write-wins
	// without read-modify-write races on the whole record.
	SetKnowledgeField(ctx context.Context, analysisID, field, value string) error
	AppendEvidence(ctx context.Context, analysisID string, item model.EvidenceItem) error
	DeleteEvidence(ctx context.Context, analysisID, evidenceID string) error
	AppendScore(ctx context.Context, analysisID string, report model.ScoreReport) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/pkg/salesforce"
)

// SyncResult describes what a single sync wrote.
type SyncResult struct {
	RecordID       string `json:"record_id"`
	Created        bool   `json:"created"`
	AccountID      string `json:"account_id,omitempty"`
	AccountUpdated bool   `json:"account_updated"`
}

// analysisRef carries just the record ID from an existence query.
type analysisRef struct {
	ID string `json:"Id" salesforce:"Id"`
}

// Sync upserts the summary record for one persisted analysis, keyed by
// domain, then refreshes the matching Account's rollup fields. The Account
// rollup is best effort: a missing or stale Account never blocks the upsert.
func (s *Syncer) Sync(ctx context.Context, rec *model.AnalysisRecord) (*SyncResult, error) {
	if rec.Status != model.StatusPersisted {
		return nil, eris.Errorf("crm: analysis %s is %s, only persisted analyses sync", rec.ID, rec.Status)
	}
	score := rec.CurrentScore()
	if score == nil {
		return nil, eris.Errorf("crm: analysis %s has no score", rec.ID)
	}

	fields := summaryFields(rec, score)
	result := &SyncResult{}

	existingID, err := s.findByDomain(ctx, rec.Domain)
	if err != nil {
		return nil, err
	}
	if existingID == "" {
		id, err := s.client.InsertOne(ctx, analysisObject, fields)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("crm: insert summary for %s", rec.Domain))
		}
		result.RecordID = id
		result.Created = true
	} else {
		if err := s.client.UpdateOne(ctx, analysisObject, existingID, fields); err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("crm: update summary for %s", rec.Domain))
		}
		result.RecordID = existingID
	}

	s.rollupAccount(ctx, rec, score, result)

	zap.L().Info("crm: synced analysis",
		zap.String("domain", rec.Domain),
		zap.String("analysis_id", rec.ID),
		zap.String("record_id", result.RecordID),
		zap.Bool("created", result.Created),
		zap.Bool("account_updated", result.AccountUpdated),
	)
	return result, nil
}

// findByDomain returns the existing summary record ID for a domain, or ""
// when none exists.
func (s *Syncer) findByDomain(ctx context.Context, domain string) (string, error) {
	soql := fmt.Sprintf("SELECT Id FROM %s WHERE %s = '%s' LIMIT 1",
		analysisObject, fieldDomain, salesforce.EscapeSoql(domain))

	var refs []analysisRef
	if err := s.client.Query(ctx, soql, &refs); err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("crm: find summary for %s", domain))
	}
	if len(refs) == 0 {
		return "", nil
	}
	return refs[0].ID, nil
}

// rollupAccount refreshes the visibility fields on the Account matching the
// domain. Lookup and update failures are logged, not returned.
func (s *Syncer) rollupAccount(ctx context.Context, rec *model.AnalysisRecord, score *model.ScoreReport, result *SyncResult) {
	// Accounts store full URLs, so match the domain anywhere in Website.
	acct, err := salesforce.FindAccountByWebsite(ctx, s.client, "%"+rec.Domain+"%")
	if err != nil {
		zap.L().Warn("crm: account lookup failed",
			zap.String("domain", rec.Domain),
			zap.Error(err),
		)
		return
	}
	if acct == nil {
		return
	}

	fields := accountRollupFields(rec, score)
	if err := salesforce.UpdateAccount(ctx, s.client, acct.ID, fields); err != nil {
		zap.L().Warn("crm: account rollup failed",
			zap.String("domain", rec.Domain),
			zap.String("account_id", acct.ID),
			zap.Error(err),
		)
		return
	}

	result.AccountID = acct.ID
	result.AccountUpdated = true
}

// accountRollupFields maps an analysis score onto the Account rollup fields.
func accountRollupFields(rec *model.AnalysisRecord, score *model.ScoreReport) map[string]any {
	return map[string]any{
		accountScoreField:   score.Overall,
		accountGradeField:   score.Grade,
		accountCheckedField: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// summaryFields maps an analysis and its current score onto the custom
// object's field values.
func summaryFields(rec *model.AnalysisRecord, score *model.ScoreReport) map[string]any {
	return map[string]any{
		"Name":            rec.Domain,
		fieldDomain:       rec.Domain,
		fieldAnalysisID:   rec.ID,
		fieldOverall:      score.Overall,
		fieldGrade:        score.Grade,
		fieldAIC:          score.AIC,
		fieldCES:          score.CES,
		fieldMTS:          score.MTS,
		fieldScoreVersion: score.Version,
		fieldSimulated:    rec.Answers.SimulatedCount(),
		fieldAnswerCount:  len(rec.Answers.Answers),
		fieldCost:         rec.CostUSD,
		fieldTokens:       rec.Tokens.InputTokens + rec.Tokens.OutputTokens,
		fieldAnalyzedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

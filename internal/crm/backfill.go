package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/pkg/salesforce"
)

// queryChunk caps domains per SOQL IN clause, matching the Collections API
// batch size.
const queryChunk = 200

// BatchResult summarizes a backfill pass.
type BatchResult struct {
	Created         int `json:"created"`
	Updated         int `json:"updated"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
	AccountsUpdated int `json:"accounts_updated"`
}

// analysisSummary carries the ID and domain of an existing summary record.
type analysisSummary struct {
	ID     string `json:"Id" salesforce:"Id"`
	Domain string `json:"Domain__c" salesforce:"Domain__c"`
}

// SyncAll upserts summaries for a batch of analyses, one record per domain.
// Only persisted, scored analyses sync; when a domain appears more than once
// the newest run wins. Existing records update in bulk through the
// Collections API, new domains insert one at a time, and the Accounts behind
// the synced domains get their rollup fields refreshed in one bulk pass.
// Per-record failures are counted and logged, not returned.
func (s *Syncer) SyncAll(ctx context.Context, recs []model.AnalysisRecord) (*BatchResult, error) {
	result := &BatchResult{}

	latest := latestPerDomain(recs)
	result.Skipped = len(recs) - len(latest)
	if len(latest) == 0 {
		return result, nil
	}

	domains := make([]string, 0, len(latest))
	for d := range latest {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	existing, err := s.findAllByDomain(ctx, domains)
	if err != nil {
		return result, err
	}

	var updates []salesforce.CollectionRecord
	domainByID := make(map[string]string)
	synced := make([]string, 0, len(domains))
	for _, domain := range domains {
		rec := latest[domain]
		fields := summaryFields(&rec, rec.CurrentScore())

		id, ok := existing[domain]
		if !ok {
			if _, err := s.client.InsertOne(ctx, analysisObject, fields); err != nil {
				zap.L().Warn("crm: backfill insert failed",
					zap.String("domain", domain),
					zap.Error(err),
				)
				result.Failed++
				continue
			}
			result.Created++
			synced = append(synced, domain)
			continue
		}
		domainByID[id] = domain
		updates = append(updates, salesforce.CollectionRecord{ID: id, Fields: fields})
	}

	if len(updates) > 0 {
		results, err := s.client.UpdateCollection(ctx, analysisObject, updates)
		if err != nil {
			return result, eris.Wrap(err, "crm: backfill batch update")
		}
		for _, r := range results {
			if r.Success {
				result.Updated++
				synced = append(synced, domainByID[r.ID])
				continue
			}
			zap.L().Warn("crm: backfill update rejected",
				zap.String("record_id", r.ID),
				zap.Strings("errors", r.Errors),
			)
			result.Failed++
		}
	}

	result.AccountsUpdated = s.rollupAccounts(ctx, latest, synced)

	zap.L().Info("crm: backfill complete",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("accounts_updated", result.AccountsUpdated),
	)
	return result, nil
}

// rollupAccounts refreshes the rollup fields on the Accounts behind the
// synced domains, pushing every update through one bulk pass. Lookup and
// update failures are logged, never returned; the backfill outcome does not
// depend on Account hygiene.
func (s *Syncer) rollupAccounts(ctx context.Context, latest map[string]model.AnalysisRecord, synced []string) int {
	var updates []salesforce.AccountUpdate
	for _, domain := range synced {
		rec, ok := latest[domain]
		if !ok {
			continue
		}
		acct, err := salesforce.FindAccountByWebsite(ctx, s.client, "%"+domain+"%")
		if err != nil {
			zap.L().Warn("crm: account lookup failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
			continue
		}
		if acct == nil {
			continue
		}
		updates = append(updates, salesforce.AccountUpdate{
			ID:     acct.ID,
			Fields: accountRollupFields(&rec, rec.CurrentScore()),
		})
	}
	if len(updates) == 0 {
		return 0
	}

	results, err := salesforce.BulkUpdateAccounts(ctx, s.client, updates)
	if err != nil {
		zap.L().Warn("crm: bulk account rollup failed", zap.Error(err))
	}

	n := 0
	for _, r := range results {
		if r.Success {
			n++
			continue
		}
		zap.L().Warn("crm: account rollup rejected",
			zap.String("account_id", r.ID),
			zap.Strings("errors", r.Errors),
		)
	}
	return n
}

// latestPerDomain keeps the newest persisted, scored analysis per domain.
func latestPerDomain(recs []model.AnalysisRecord) map[string]model.AnalysisRecord {
	latest := make(map[string]model.AnalysisRecord)
	for _, rec := range recs {
		if rec.Status != model.StatusPersisted || rec.CurrentScore() == nil {
			continue
		}
		prev, ok := latest[rec.Domain]
		if !ok || rec.CreatedAt.After(prev.CreatedAt) {
			latest[rec.Domain] = rec
		}
	}
	return latest
}

// findAllByDomain maps domains to existing summary record IDs, querying in
// chunks.
func (s *Syncer) findAllByDomain(ctx context.Context, domains []string) (map[string]string, error) {
	found := make(map[string]string, len(domains))

	for start := 0; start < len(domains); start += queryChunk {
		end := min(start+queryChunk, len(domains))

		quoted := make([]string, 0, end-start)
		for _, d := range domains[start:end] {
			quoted = append(quoted, "'"+salesforce.EscapeSoql(d)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, %s FROM %s WHERE %s IN (%s)",
			fieldDomain, analysisObject, fieldDomain, strings.Join(quoted, ", "))

		var refs []analysisSummary
		if err := s.client.Query(ctx, soql, &refs); err != nil {
			return nil, eris.Wrap(err, "crm: list existing summaries")
		}
		for _, r := range refs {
			found[r.Domain] = r.ID
		}
	}
	return found, nil
}

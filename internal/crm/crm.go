// Package crm pushes persisted analysis summaries into Salesforce.
//
// Each domain gets one AI_Visibility_Analysis__c record holding the current
// score; when a matching Account exists its rollup fields are refreshed as
// well. Sync failures are reported to the caller for logging only and never
// change the outcome of an analysis run.
package crm

import (
	"context"
	"fmt"
	"os"
	"strings"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/pkg/salesforce"
)

// analysisObject is the custom object holding one visibility summary per domain.
const analysisObject = "AI_Visibility_Analysis__c"

// Custom object field API names.
const (
	fieldDomain       = "Domain__c"
	fieldAnalysisID   = "Analysis_Id__c"
	fieldOverall      = "Overall_Score__c"
	fieldGrade        = "Grade__c"
	fieldAIC          = "AIC_Score__c"
	fieldCES          = "CES_Score__c"
	fieldMTS          = "MTS_Score__c"
	fieldScoreVersion = "Score_Version__c"
	fieldSimulated    = "Simulated_Answers__c"
	fieldAnswerCount  = "Total_Answers__c"
	fieldCost         = "Cost_USD__c"
	fieldTokens       = "Tokens_Used__c"
	fieldAnalyzedAt   = "Analyzed_At__c"
)

// Account rollup field API names.
const (
	accountScoreField   = "AI_Visibility_Score__c"
	accountGradeField   = "AI_Visibility_Grade__c"
	accountCheckedField = "Last_Visibility_Check__c"
)

// writtenFields are every custom-object field the sync writes. Preflight
// verifies they exist so a misconfigured org fails at startup, not mid-run.
var writtenFields = []string{
	fieldDomain, fieldAnalysisID, fieldOverall, fieldGrade,
	fieldAIC, fieldCES, fieldMTS, fieldScoreVersion,
	fieldSimulated, fieldAnswerCount, fieldCost, fieldTokens, fieldAnalyzedAt,
}

// rollupFields are the Account fields refreshed on sync.
var rollupFields = []string{accountScoreField, accountGradeField, accountCheckedField}

// defaultAPIRate caps outbound SF calls per second. Salesforce enforces
// org-wide daily API limits.
const defaultAPIRate = 5.0

// Connect authenticates with the JWT bearer flow and returns a rate-limited
// Salesforce client.
func Connect(cfg config.SalesforceConfig) (salesforce.Client, error) {
	pemData, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "crm: read JWT private key")
	}

	sf, err := gosf.Init(gosf.Creds{
		Domain:         cfg.LoginURL,
		Username:       cfg.Username,
		ConsumerKey:    cfg.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "crm: salesforce login")
	}

	return salesforce.NewClient(sf, salesforce.WithRateLimit(defaultAPIRate)), nil
}

// Syncer writes analysis summaries to Salesforce.
type Syncer struct {
	client salesforce.Client
}

// NewSyncer creates a Syncer backed by the given Salesforce client.
func NewSyncer(client salesforce.Client) *Syncer {
	return &Syncer{client: client}
}

// Preflight verifies the org schema before any sync runs. A missing custom
// object or summary field is an error; missing Account rollup fields only
// disable the rollup, so they are logged and tolerated.
func (s *Syncer) Preflight(ctx context.Context) error {
	desc, err := s.client.DescribeSObject(ctx, analysisObject)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("crm: describe %s", analysisObject))
	}

	var missing []string
	for _, f := range writtenFields {
		if !desc.HasField(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("crm: %s is missing fields: %s", analysisObject, strings.Join(missing, ", "))
	}

	acct, err := s.client.DescribeSObject(ctx, "Account")
	if err != nil {
		zap.L().Warn("crm: account describe failed, skipping rollup field check", zap.Error(err))
		return nil
	}
	for _, f := range rollupFields {
		if !acct.HasField(f) {
			zap.L().Warn("crm: account is missing rollup field", zap.String("field", f))
		}
	}
	return nil
}

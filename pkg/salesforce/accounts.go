package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account is the slice of the Salesforce Account object the sync reads and
// writes back to.
type Account struct {
	ID          string `json:"Id" salesforce:"Id"`
	Name        string `json:"Name" salesforce:"Name"`
	Website     string `json:"Website" salesforce:"Website"`
	Industry    string `json:"Industry" salesforce:"Industry"`
	Description string `json:"Description" salesforce:"Description"`
	Type        string `json:"Type" salesforce:"Type"`
}

// accountFields are the columns Account lookups select.
var accountFields = []string{
	"Id", "Name", "Website", "Industry", "Description", "Type",
}

// FindAccountByWebsite returns the first Account whose Website matches the
// given LIKE pattern, nil when none does.
func FindAccountByWebsite(ctx context.Context, c Client, website string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Website LIKE '%s' LIMIT 1",
		strings.Join(accountFields, ", "),
		EscapeSoql(website),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrapf(err, "sf: find account by website %s", website)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// UpdateAccount writes fields onto one Account record.
func UpdateAccount(ctx context.Context, c Client, accountID string, fields map[string]any) error {
	if accountID == "" {
		return eris.New("sf: account id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Account", accountID, fields); err != nil {
		return eris.Wrapf(err, "sf: update account %s", accountID)
	}
	return nil
}

// AccountUpdate pairs an Account ID with the fields to write.
type AccountUpdate struct {
	ID     string
	Fields map[string]any
}

// BulkUpdateAccounts pushes updates through the Collections API in chunks
// of maxBatchSize. A failed chunk stops the walk; the results accumulated
// so far come back alongside the error.
func BulkUpdateAccounts(ctx context.Context, c Client, updates []AccountUpdate) ([]CollectionResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	var all []CollectionResult
	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))

		batch := updates[start:end]
		records := make([]CollectionRecord, len(batch))
		for i, u := range batch {
			records[i] = CollectionRecord(u)
		}

		results, err := c.UpdateCollection(ctx, "Account", records)
		if err != nil {
			return all, eris.Wrapf(err, "sf: bulk update accounts batch %d-%d", start, end)
		}
		all = append(all, results...)
	}
	return all, nil
}

// EscapeSoql escapes single quotes in SOQL string literals.
func EscapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

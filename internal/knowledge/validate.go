package knowledge

import (
	"fmt"
	"strings"

	"github.com/radius-labs/visibility-cli/internal/model"
)

const (
	minOverviewChars = 50
	minTotalWords    = 100
)

// placeholderPhrases are stock filler strings that mean the model punted on a
// field instead of grounding it. Any one of them fails the whole pass.
var placeholderPhrases = []string{
	"please describe",
	"please edit",
	"not available",
	"coming soon",
	"lorem ipsum",
	"placeholder",
}

// Validate rejects generated knowledge that is too thin or padded with
// placeholder filler. A rejected pass falls back to the demo profile rather
// than persisting junk.
func Validate(kr *model.KnowledgeRepresentation) error {
	if len(strings.TrimSpace(kr.Overview)) < minOverviewChars {
		return &model.SchemaViolationError{
			Stage:  "synthesis",
			Detail: fmt.Sprintf("overview too short: %d chars, need %d", len(strings.TrimSpace(kr.Overview)), minOverviewChars),
		}
	}
	if strings.TrimSpace(kr.ProductsAndServices) == "" {
		return &model.SchemaViolationError{Stage: "synthesis", Detail: "products_and_services is empty"}
	}

	var joined strings.Builder
	for _, text := range kr.TextFields() {
		joined.WriteString(text)
		joined.WriteString(" ")
	}
	lowered := strings.ToLower(joined.String())
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lowered, phrase) {
			return &model.SchemaViolationError{
				Stage:  "synthesis",
				Detail: fmt.Sprintf("placeholder text %q in generated fields", phrase),
			}
		}
	}

	if words := len(strings.Fields(joined.String())); words < minTotalWords {
		return &model.SchemaViolationError{
			Stage:  "synthesis",
			Detail: fmt.Sprintf("generated fields total %d words, need %d", words, minTotalWords),
		}
	}
	return nil
}

package knowledge

import (
	"fmt"
	"time"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// DemoProfile builds the placeholder knowledge representation used when
// synthesis is impossible. Every field is deterministic for a given domain,
// marked missing, and Generated stays false so downstream consumers can tell
// this apart from real output.
func DemoProfile(domain string) model.KnowledgeRepresentation {
	brand := model.BrandLabel(domain)
	if brand == "" {
		brand = "The company"
	}
	return model.KnowledgeRepresentation{
		Overview:            fmt.Sprintf("%s is a company operating at %s. The company provides products and services in its industry sector.", brand, domain),
		ProductsAndServices: fmt.Sprintf("%s offers products and services to its customers. Visit %s for current offerings.", brand, domain),
		TargetCustomers:     "Businesses and individuals seeking solutions in this sector.",
		Positioning:         fmt.Sprintf("%s serves its market with its own approach to product and service delivery.", brand),
		BrandTone:           "professional",
		Dos: []string{
			"Use clear, specific language",
			"Focus on outcomes and value",
		},
		Confidence: model.ConfidenceLow,
		FieldConfidence: map[string]model.FieldConfidence{
			"overview":              model.FieldMissing,
			"products_and_services": model.FieldMissing,
			"target_customers":      model.FieldMissing,
			"positioning":           model.FieldMissing,
			"brand_tone":            model.FieldMissing,
		},
		Generated:   false,
		GeneratedAt: time.Now().UTC(),
	}
}

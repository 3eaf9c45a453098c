package knowledge

import (
	"encoding/json"
	"strings"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// krWire is the JSON shape the synthesis prompt asks for. It is decoded
// separately from the domain type so a malformed response never half-fills a
// knowledge representation.
type krWire struct {
	Overview            string            `json:"overview"`
	ProductsAndServices string            `json:"products_and_services"`
	TargetCustomers     string            `json:"target_customers"`
	Positioning         string            `json:"positioning"`
	BrandTone           string            `json:"brand_tone"`
	PreferredWords      []string          `json:"preferred_words"`
	AvoidedWords        []string          `json:"avoided_words"`
	Dos                 []string          `json:"dos"`
	Donts               []string          `json:"donts"`
	FieldConfidence     map[string]string `json:"field_confidence"`
}

// parseKR decodes a model response into a knowledge representation. Decode
// failures surface as schema violations so callers can distinguish "the model
// went off-script" from transport errors.
func parseKR(text string) (*model.KnowledgeRepresentation, error) {
	var wire krWire
	if err := json.Unmarshal([]byte(cleanJSON(text)), &wire); err != nil {
		return nil, &model.SchemaViolationError{Stage: "synthesis", Detail: err.Error()}
	}

	return &model.KnowledgeRepresentation{
		Overview:            strings.TrimSpace(wire.Overview),
		ProductsAndServices: strings.TrimSpace(wire.ProductsAndServices),
		TargetCustomers:     strings.TrimSpace(wire.TargetCustomers),
		Positioning:         strings.TrimSpace(wire.Positioning),
		BrandTone:           strings.TrimSpace(wire.BrandTone),
		PreferredWords:      trimAll(wire.PreferredWords),
		AvoidedWords:        trimAll(wire.AvoidedWords),
		Dos:                 trimAll(wire.Dos),
		Donts:               trimAll(wire.Donts),
		FieldConfidence:     parseFieldConfidence(wire.FieldConfidence),
	}, nil
}

// parseFieldConfidence keeps only the grades the model was asked for. Unknown
// values would otherwise leak into stored records.
func parseFieldConfidence(raw map[string]string) map[string]model.FieldConfidence {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]model.FieldConfidence, len(raw))
	for field, grade := range raw {
		switch fc := model.FieldConfidence(strings.ToLower(strings.TrimSpace(grade))); fc {
		case model.FieldVerified, model.FieldPartial, model.FieldMissing:
			out[field] = fc
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

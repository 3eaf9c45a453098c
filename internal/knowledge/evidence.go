package knowledge

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/store"
)

// AppendEvidence validates and attaches a trust signal to the knowledge
// representation, assigning an ID and timestamp when the caller left them
// empty.
func AppendEvidence(kr *model.KnowledgeRepresentation, item model.EvidenceItem) (model.EvidenceItem, error) {
	if err := item.Validate(); err != nil {
		return model.EvidenceItem{}, eris.Wrap(err, "knowledge: invalid evidence item")
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = model.NewEvidenceID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	kr.EvidenceItems = append(kr.EvidenceItems, item)
	return item, nil
}

// DeleteEvidence removes an evidence item by ID. Missing IDs report
// store.ErrNotFound so transport layers map them to 404 like any other
// missing resource.
func DeleteEvidence(kr *model.KnowledgeRepresentation, id string) error {
	for i, item := range kr.EvidenceItems {
		if item.ID == id {
			kr.EvidenceItems = append(kr.EvidenceItems[:i], kr.EvidenceItems[i+1:]...)
			return nil
		}
	}
	return eris.Wrapf(store.ErrNotFound, "knowledge: evidence %s", id)
}

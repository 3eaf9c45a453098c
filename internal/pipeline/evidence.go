package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/knowledge"
	"github.com/radius-labs/visibility-cli/internal/model"
)

// AddEvidence validates and appends a trust signal to a stored analysis,
// returning the item with its assigned id. A missing analysis reports
// store.ErrNotFound.
func (e *Engine) AddEvidence(ctx context.Context, analysisID string, item model.EvidenceItem) (*model.EvidenceItem, error) {
	rec, err := e.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: evidence load %s", analysisID)
	}

	accepted, err := knowledge.AppendEvidence(&rec.Knowledge, item)
	if err != nil {
		return nil, err
	}
	if err := e.store.AppendEvidence(ctx, analysisID, accepted); err != nil {
		return nil, eris.Wrapf(err, "pipeline: append evidence to %s", analysisID)
	}

	zap.L().Info("pipeline: evidence added",
		zap.String("analysis_id", analysisID),
		zap.String("evidence_id", accepted.ID),
		zap.String("type", string(accepted.Type)))
	return &accepted, nil
}

// DeleteEvidence removes one evidence item. A missing analysis or item id
// reports store.ErrNotFound, never silent success.
func (e *Engine) DeleteEvidence(ctx context.Context, analysisID, evidenceID string) error {
	if err := e.store.DeleteEvidence(ctx, analysisID, evidenceID); err != nil {
		return eris.Wrapf(err, "pipeline: delete evidence %s from %s", evidenceID, analysisID)
	}
	zap.L().Info("pipeline: evidence deleted",
		zap.String("analysis_id", analysisID),
		zap.String("evidence_id", evidenceID))
	return nil
}

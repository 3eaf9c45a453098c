package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// CachedStore wraps a Store with the in-memory fallback cache. Successful
// persists populate the cache; reads that fail against the store (other than
// a clean not-found) are retried against the cache before the error
// propagates.
type CachedStore struct {
	inner Store
	cache *FallbackCache
}

// NewCachedStore wraps inner with a fallback cache of the given size.
func NewCachedStore(inner Store, size int) *CachedStore {
	return &CachedStore{inner: inner, cache: NewFallbackCache(size)}
}

func (s *CachedStore) SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	if err := s.inner.SaveAnalysis(ctx, rec); err != nil {
		return err
	}
	s.cache.Put(rec)
	return nil
}

func (s *CachedStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	rec, err := s.inner.GetAnalysis(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		if cached := s.cache.Get(id); cached != nil {
			zap.L().Warn("store unreachable, serving analysis from fallback cache",
				zap.String("analysis_id", id), zap.Error(err))
			return cached, nil
		}
	}
	return rec, err
}

func (s *CachedStore) LatestForDomain(ctx context.Context, domain string) (*model.AnalysisRecord, error) {
	rec, err := s.inner.LatestForDomain(ctx, domain)
	if err != nil && !errors.Is(err, ErrNotFound) {
		if cached := s.cache.LatestForDomain(domain); cached != nil {
			zap.L().Warn("store unreachable, serving latest analysis from fallback cache",
				zap.String("domain", domain), zap.Error(err))
			return cached, nil
		}
	}
	return rec, err
}

func (s *CachedStore) LatestForCaller(ctx context.Context, domain, callerID string, since time.Time) (*model.AnalysisRecord, error) {
	rec, err := s.inner.LatestForCaller(ctx, domain, callerID, since)
	if err != nil && !errors.Is(err, ErrNotFound) {
		if cached := s.cache.LatestForCaller(domain, callerID, since); cached != nil {
			zap.L().Warn("store unreachable, serving caller analysis from fallback cache",
				zap.String("domain", domain), zap.Error(err))
			return cached, nil
		}
	}
	return rec, err
}

func (s *CachedStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error) {
	return s.inner.ListAnalyses(ctx, filter)
}

func (s *CachedStore) SetKnowledgeField(ctx context.Context, analysisID, field, value string) error {
	if err := s.inner.SetKnowledgeField(ctx, analysisID, field, value); err != nil {
		return err
	}
	s.cache.Drop(analysisID)
	return nil
}

func (s *CachedStore) AppendEvidence(ctx context.Context, analysisID string, item model.EvidenceItem) error {
	if err := s.inner.AppendEvidence(ctx, analysisID, item); err != nil {
		return err
	}
	s.cache.Drop(analysisID)
	return nil
}

func (s *CachedStore) DeleteEvidence(ctx context.Context, analysisID, evidenceID string) error {
	if err := s.inner.DeleteEvidence(ctx, analysisID, evidenceID); err != nil {
		return err
	}
	s.cache.Drop(analysisID)
	return nil
}

func (s *CachedStore) AppendScore(ctx context.Context, analysisID string, report model.ScoreReport) error {
	if err := s.inner.AppendScore(ctx, analysisID, report); err != nil {
		return err
	}
	s.cache.Drop(analysisID)
	return nil
}

func (s *CachedStore) Migrate(ctx context.Context) error {
	return s.inner.Migrate(ctx)
}

func (s *CachedStore) Close() error {
	return s.inner.Close()
}

package storage

import (
	"sort"
	"sync"

	"audio-analyzer/pkg/models"
)

type MemoryStore interface {
	StoreAnalysis(analysis *models.Analysis) error
	GetAnalysis(id string) (*models.Analysis, error)
	ListAnalyses(limit int) ([]*models.Analysis, error)
	UpdateStatus(id string, status models.ProcessingStatus) error
	DeleteAnalysis(id string) error
}

type memoryStore struct {
	analyses map[string]*models.Analysis
	mu       sync.RWMutex
}

func NewMemoryStore() MemoryStore {
	return &memoryStore{
		analyses: make(map[string]*models.Analysis),
	}
}

func (s *memoryStore) StoreAnalysis(analysis *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *analysis
	s.analyses[analysis.ID] = &stored
	return nil
}

func (s *memoryStore) GetAnalysis(id string) (*models.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	analysis, exists := s.analyses[id]
	if !exists {
		return nil, ErrAnalysisNotFound
	}

	copied := *analysis
	return &copied, nil
}

// ListAnalyses returns the newest analyses first. A non-positive limit means
// no limit.
func (s *memoryStore) ListAnalyses(limit int) ([]*models.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	analyses := make([]*models.Analysis, 0, len(s.analyses))
	for _, analysis := range s.analyses {
		copied := *analysis
		analyses = append(analyses, &copied)
	}
	sortNewestFirst(analyses)

	if limit > 0 && len(analyses) > limit {
		analyses = analyses[:limit]
	}
	return analyses, nil
}

func (s *memoryStore) UpdateStatus(id string, status models.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	analysis, exists := s.analyses[id]
	if !exists {
		return ErrAnalysisNotFound
	}

	analysis.Status = status
	return nil
}

// DeleteAnalysis removes the analysis; deleting a missing ID is not an error.
func (s *memoryStore) DeleteAnalysis(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.analyses, id)
	return nil
}

func sortNewestFirst(analyses []*models.Analysis) {
	sort.Slice(analyses, func(i, j int) bool {
		if analyses[i].Timestamp.Equal(analyses[j].Timestamp) {
			return analyses[i].ID < analyses[j].ID
		}
		return analyses[i].Timestamp.After(analyses[j].Timestamp)
	})
}

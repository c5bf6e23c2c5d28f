// Package overlay holds the records the user created or loaded during this session.
package overlay

import (
	"sync"

	"attraction-map/models"
)

// Store is an insertion-ordered, append-only set of records keyed by id.
// One goroutine writes; any number may read.
type Store struct {
	mu      sync.RWMutex
	records []models.Record
	index   map[string]int
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Add appends rec. It returns false, and changes nothing, if the id is already present.
func (s *Store) Add(rec models.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[rec.ID]; ok {
		return false
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return true
}

// All returns a copy of the records in insertion order.
func (s *Store) All() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) FindByID(id string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Record{}, false
	}
	return s.records[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

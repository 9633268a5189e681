package task

import (
	"fmt"
	"sync"
)

// store holds all task records behind a single mutex. Reads copy out so
// callers never observe a record mid-transition.
type store struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newStore() *store {
	return &store{records: make(map[string]*Record)}
}

// insert adds a fresh record. A duplicate id is a programmer error, not a
// runtime condition: identifiers are generated, never supplied.
func (s *store) insert(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		panic(fmt.Sprintf("task: duplicate id %s", rec.ID))
	}
	s.records[rec.ID] = rec
}

func (s *store) get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// update applies fn to the record under the lock. A missing id is ignored:
// the record may have been cleaned while its job was still in flight.
func (s *store) update(id string, fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		fn(rec)
	}
}

// list returns copies of all records matching filter (nil matches all).
// Order is unspecified.
func (s *store) list(filter func(*Record) bool) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter == nil || filter(rec) {
			out = append(out, *rec)
		}
	}
	return out
}

// deleteWhere removes all records matching pred and returns how many.
func (s *store) deleteWhere(pred func(*Record) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.records {
		if pred(rec) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

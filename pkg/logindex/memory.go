package logindex

import "sync"

// MemoryStorage is an in-memory Storage used for tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*IndexedRecord
}

// NewMemoryStorage creates a new in-memory log index.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]*IndexedRecord)}
}

// Store persists an indexed record in memory.
func (s *MemoryStorage) Store(r *IndexedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.records[r.ID] = &copied
	return nil
}

// Query retrieves indexed records matching the filters.
func (s *MemoryStorage) Query(q *Query) ([]*IndexedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*IndexedRecord
	for _, r := range s.records {
		if matches(r, q) {
			copied := *r
			results = append(results, &copied)
		}
	}

	start := q.Offset
	if start > len(results) {
		return []*IndexedRecord{}, nil
	}
	end := len(results)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return results[start:end], nil
}

// Count returns the number of records matching the filters.
func (s *MemoryStorage) Count(q *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, r := range s.records {
		if matches(r, q) {
			count++
		}
	}
	return count, nil
}

// Delete removes records matching the filters, returning the count deleted.
func (s *MemoryStorage) Delete(q *Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, r := range s.records {
		if matches(r, q) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStorage) Close() error { return nil }

func matches(r *IndexedRecord, q *Query) bool {
	if q.Service != "" && r.Service != q.Service {
		return false
	}
	if q.ConfigName != "" && r.ConfigName != q.ConfigName {
		return false
	}
	if q.Blocked != nil && r.Blocked != *q.Blocked {
		return false
	}
	if q.MinStatus > 0 && r.StatusCode < q.MinStatus {
		return false
	}
	if q.MaxStatus > 0 && r.StatusCode > q.MaxStatus {
		return false
	}
	if q.StartTime != nil && r.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.Timestamp.After(*q.EndTime) {
		return false
	}
	return true
}

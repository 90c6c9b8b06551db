package logsource

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Querier used by tests and local runs. Records
// are kept per (source, stream) and served in timestamp order.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey][]Record
}

type memoryKey struct {
	source   Source
	streamID string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey][]Record)}
}

// Add appends records to a stream. Records may arrive in any order; Query
// sorts before serving.
func (s *MemoryStore) Add(source Source, streamID string, recs ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{source: source, streamID: streamID}
	s.records[key] = append(s.records[key], recs...)
}

// Query implements Querier.
func (s *MemoryStore) Query(ctx context.Context, source Source, streamID string, start, end int64, predicate string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UnavailableError{Source: source, Err: err}
	}
	if start > end {
		return nil, ErrInvalidRange
	}

	s.mu.RLock()
	all := s.records[memoryKey{source: source, streamID: streamID}]
	s.mu.RUnlock()

	var out []Record
	for _, r := range all {
		if r.Timestamp < start || r.Timestamp >= end {
			continue
		}
		if predicate == PredicateServerError && !matchesServerError(r.Message) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// matchesServerError approximates the backend's status-class filter: any
// whitespace-delimited column that is a three-digit code starting with '5'.
func matchesServerError(message string) bool {
	for _, col := range strings.Fields(message) {
		if len(col) == 3 && col[0] == '5' && isDigit(col[1]) && isDigit(col[2]) {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

package resilience

import (
	"context"
	"sync"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
)

// memoryStateStore keeps breaker records in a map under one mutex. Suitable
// for single-instance deployments and tests; multi-instance deployments use
// the Redis store so every instance sees the same circuit.
type memoryStateStore struct {
	mu      sync.Mutex
	records map[string]models.BreakerRecord
}

// NewMemoryStateStore creates an in-process breaker state store.
func NewMemoryStateStore() service.BreakerStateStore {
	return &memoryStateStore{
		records: make(map[string]models.BreakerRecord),
	}
}

// Load returns the operation's record, or the initial closed record when the
// operation has never recorded an outcome. The initial record is not
// persisted; the first CompareAndSwap from version zero does that.
func (s *memoryStateStore) Load(ctx context.Context, operation string) (models.BreakerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[operation]; ok {
		return rec, nil
	}
	return models.NewBreakerRecord(operation), nil
}

// CompareAndSwap writes next if the stored version still matches
// expected.Version. An absent record counts as version zero.
func (s *memoryStateStore) CompareAndSwap(ctx context.Context, operation string, expected, next models.BreakerRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[operation]
	if !ok {
		current = models.NewBreakerRecord(operation)
	}
	if current.Version != expected.Version {
		return false, nil
	}

	s.records[operation] = next
	return true, nil
}

// Snapshot returns a copy of all recorded operations.
func (s *memoryStateStore) Snapshot(ctx context.Context) (map[string]models.BreakerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.BreakerRecord, len(s.records))
	for op, rec := range s.records {
		out[op] = rec
	}
	return out, nil
}

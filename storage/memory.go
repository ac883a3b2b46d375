package storage

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStorage implements RunStore using an in-memory map.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		runs: make(map[string]RunRecord),
	}
}

// Save stores a run.
func (s *InMemoryStorage) Save(ctx context.Context, run *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepare(run)
	s.runs[run.ID] = copyRun(*run)
	return nil
}

// Load returns a run by id.
func (s *InMemoryStorage) Load(ctx context.Context, id string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return RunRecord{}, ErrRunNotFound
	}
	return copyRun(run), nil
}

// List returns runs newest first.
func (s *InMemoryStorage) List(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, copyRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Delete removes a run.
func (s *InMemoryStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	return nil
}

// Close is a no-op.
func (s *InMemoryStorage) Close() error {
	return nil
}

// copyRun copies the slices so callers cannot mutate stored runs.
func copyRun(run RunRecord) RunRecord {
	run.Result.Plan = append(run.Result.Plan[:0:0], run.Result.Plan...)
	run.Result.Results = append(run.Result.Results[:0:0], run.Result.Results...)
	run.Result.Calls = append(run.Result.Calls[:0:0], run.Result.Calls...)
	return run
}

// Verify InMemoryStorage implements RunStore
var _ RunStore = (*InMemoryStorage)(nil)

// In-memory document store.
//
// Information Hiding:
// - Slice storage hidden from users
// - Thread-safe access via RWMutex
// - Suitable for tests and demos

package datastore

import (
	"context"
	"sync"
)

// Memory implements Store and Seeder over an in-process slice.
// Data is lost when the process terminates.
type Memory struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemory creates a store holding docs.
func NewMemory(docs ...Document) *Memory {
	m := &Memory{}
	_, _ = m.Insert(context.Background(), docs...)
	return m
}

// Insert appends copies of docs.
func (m *Memory) Insert(ctx context.Context, docs ...Document) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range docs {
		m.docs = append(m.docs, project(d, nil))
	}
	return len(docs), nil
}

// FindOne returns the first matching document in insertion order.
func (m *Memory) FindOne(ctx context.Context, query Query, projection []string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.docs {
		ok, err := matches(d, query)
		if err != nil {
			return nil, err
		}
		if ok {
			return StripInternal(project(d, projection)), nil
		}
	}
	return nil, ErrNotFound
}

// Find returns all matching documents, sorted and limited per opts.
func (m *Memory) Find(ctx context.Context, query Query, opts FindOptions) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var found []Document
	for _, d := range m.docs {
		ok, err := matches(d, query)
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		if ok {
			found = append(found, d)
		}
	}
	m.mu.RUnlock()

	sortDocuments(found, opts.SortField, opts.Descending)
	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}

	out := make([]Document, len(found))
	for i, d := range found {
		out[i] = StripInternal(project(d, opts.Projection))
	}
	return out, nil
}

// Probe reports whether the store holds any document.
func (m *Memory) Probe(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs) > 0, nil
}

// Close is a no-op.
func (m *Memory) Close(ctx context.Context) error {
	return nil
}

var (
	_ Store  = (*Memory)(nil)
	_ Seeder = (*Memory)(nil)
)

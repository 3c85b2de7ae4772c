package db

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process. Values are normalized through JSON
// on write so reads look the same as from the SQL backends.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]map[string]any
	writes int
	err    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]map[string]any)}
}

// WithError makes every subsequent call fail with err.
func (m *MemoryStore) WithError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Writes reports how many successful Set/Create/Update calls were applied.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Document{}, m.err
	}
	data, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneData(data)}, nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	return m.mergeLocked(collection, id, fields)
}

func (m *MemoryStore) Create(_ context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.docs[collection][id]; ok {
		return ErrAlreadyExists
	}
	return m.mergeLocked(collection, id, fields)
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.docs[collection][id]; !ok {
		return ErrNotFound
	}
	return m.mergeLocked(collection, id, fields)
}

func (m *MemoryStore) Query(_ context.Context, collection string, filters []Filter, limit int) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Document
	for _, id := range ids {
		data := m.docs[collection][id]
		if !matches(data, filters) {
			continue
		}
		out = append(out, Document{ID: id, Data: cloneData(data)})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) mergeLocked(collection, id string, fields Fields) error {
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]map[string]any)
	}
	doc := m.docs[collection][id]
	if doc == nil {
		doc = make(map[string]any)
		m.docs[collection][id] = doc
	}
	for k, v := range normalized {
		doc[k] = v
	}
	m.writes++
	return nil
}

func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		want, err := normalizeValue(f.Value)
		if err != nil || !reflect.DeepEqual(data[f.Field], want) {
			return false
		}
	}
	return true
}

func normalize(fields Fields) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

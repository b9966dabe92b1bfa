package usersync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemorySource is an in-process Source for tests of packages built on
// usersync.
type MemorySource[T any] struct {
	mu     sync.Mutex
	docs   map[string]map[string]T
	subs   map[string]map[int]chan struct{}
	nextID int
	writes int
}

// NewMemorySource creates an empty source
func NewMemorySource[T any]() *MemorySource[T] {
	return &MemorySource[T]{
		docs: make(map[string]map[string]T),
		subs: make(map[string]map[int]chan struct{}),
	}
}

// Subscribe implements Source. Snapshots are ordered by document id.
func (m *MemorySource[T]) Subscribe(ctx context.Context, uid string, onSnapshot func([]T)) error {
	changed := make(chan struct{}, 1)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[uid] == nil {
		m.subs[uid] = make(map[int]chan struct{})
	}
	m.subs[uid][id] = changed
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs[uid], id)
		m.mu.Unlock()
	}()

	onSnapshot(m.Snapshot(uid))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			onSnapshot(m.Snapshot(uid))
		}
	}
}

// Snapshot returns the current documents of uid
func (m *MemorySource[T]) Snapshot(uid string) []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.docs[uid]))
	for id := range m.docs[uid] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.docs[uid][id])
	}
	return out
}

// Writes returns the number of successful writes
func (m *MemorySource[T]) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemorySource[T]) notifyLocked(uid string) {
	m.writes++
	for _, ch := range m.subs[uid] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Put implements Source
func (m *MemorySource[T]) Put(ctx context.Context, uid, id string, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[uid] == nil {
		m.docs[uid] = make(map[string]T)
	}
	m.docs[uid][id] = v
	m.notifyLocked(uid)
	return nil
}

// Patch implements Source. Field names are matched against the json names of T.
func (m *MemorySource[T]) Patch(ctx context.Context, uid, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.docs[uid][id]
	if !ok {
		return fmt.Errorf("document %s/%s: %w", uid, id, ErrNotFound)
	}

	raw, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return err
	}
	for k, v := range fields {
		merged[k] = v
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return err
	}
	var next T
	if err := json.Unmarshal(raw, &next); err != nil {
		return err
	}

	m.docs[uid][id] = next
	m.notifyLocked(uid)
	return nil
}

// Remove implements Source
func (m *MemorySource[T]) Remove(ctx context.Context, uid, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[uid], id)
	m.notifyLocked(uid)
	return nil
}

// Clear removes every document of uid
func (m *MemorySource[T]) Clear(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, uid)
	m.notifyLocked(uid)
}

package runs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory, thread-safe Repository implementation.
type Memory struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]*Run
	order []uuid.UUID // insertion order, oldest first
}

// NewMemory creates an empty in-memory run store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[uuid.UUID]*Run)}
}

// Save implements Repository.
func (m *Memory) Save(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; !exists {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

// Get implements Repository.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run, nil
}

// ListByAgent implements Repository.
func (m *Memory) ListByAgent(_ context.Context, agentID string, limit int) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Run
	for i := len(m.order) - 1; i >= 0; i-- {
		run := m.runs[m.order[i]]
		if agentID != "" && run.AgentID != agentID {
			continue
		}
		out = append(out, run)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Delete implements Repository.
func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return ErrNotFound
	}
	delete(m.runs, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

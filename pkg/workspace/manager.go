package workspace

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Manager holds the workspaces of a process keyed by workspace id; they are created on demand
type Manager struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	deps       Dependencies
}

// NewManager creates a workspace manager sharing deps across workspaces
func NewManager(deps Dependencies) *Manager {
	return &Manager{workspaces: make(map[string]*Workspace), deps: deps}
}

// Get returns the workspace of id, creating it when absent
func (m *Manager) Get(id string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.workspaces[id]; ok {
		return w
	}
	w := New(id, m.deps)
	m.workspaces[id] = w
	m.deps.Logger.WithField("workspace_id", id).Info("Created workspace")
	return w
}

// IDs returns the ids of every open workspace, sorted
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Drop closes and forgets the workspace of id. It reports whether one existed.
func (m *Manager) Drop(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	w, ok := m.workspaces[id]
	delete(m.workspaces, id)
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, w.Close(ctx)
}

// Close closes every workspace
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		all = append(all, w)
	}
	m.mu.Unlock()

	var errs []error
	for _, w := range all {
		if err := w.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

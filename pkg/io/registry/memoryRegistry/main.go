package memoryregistry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/xpanvictor/quil-bridge/pkg/io/registry"
)

type mmrRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]registry.Entry
}

// Insert implements registry.SessionRegistry.
func (m *mmrRegistry) Insert(entry registry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[entry.ID()]; exists {
		return fmt.Errorf("session %s already registered", entry.ID())
	}
	m.sessions[entry.ID()] = entry
	return nil
}

// Remove implements registry.SessionRegistry.
func (m *mmrRegistry) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; !exists {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Get implements registry.SessionRegistry.
func (m *mmrRegistry) Get(id uuid.UUID) (registry.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	return e, ok
}

// Count implements registry.SessionRegistry.
func (m *mmrRegistry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats implements registry.SessionRegistry.
func (m *mmrRegistry) Stats() registry.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := registry.Stats{
		ActiveSessions: len(m.sessions),
		Sessions:       make([]registry.SessionStats, 0, len(m.sessions)),
	}
	for id, e := range m.sessions {
		stats.Sessions = append(stats.Sessions, registry.SessionStats{
			SessionID:   id.String(),
			ConnectedAt: e.ConnectedAt(),
			LastActive:  e.LastActive(),
		})
	}
	return stats
}

// CloseAll implements registry.SessionRegistry.
func (m *mmrRegistry) CloseAll() error {
	// entries remove themselves on Close, so close outside the lock
	m.mu.Lock()
	entries := make([]registry.Entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = make(map[uuid.UUID]registry.Entry)
	m.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", e.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func New() registry.SessionRegistry {
	return &mmrRegistry{
		sessions: make(map[uuid.UUID]registry.Entry),
	}
}

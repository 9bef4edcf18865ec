package registry

import (
	"time"

	"github.com/google/uuid"
)

// Entry is anything the registry can track and close on shutdown.
type Entry interface {
	ID() uuid.UUID
	ConnectedAt() time.Time
	// LastActive is when the device last sent anything.
	LastActive() time.Time
	Close() error
}

// SessionRegistry is the process-wide table of live device sessions. It is
// the only state shared across sessions.
type SessionRegistry interface {
	Insert(entry Entry) error
	Remove(id uuid.UUID) bool
	Get(id uuid.UUID) (Entry, bool)
	Count() int
	Stats() Stats
	// CloseAll closes and removes every entry.
	CloseAll() error
}

type Stats struct {
	ActiveSessions int            `json:"activeSessions"`
	Sessions       []SessionStats `json:"sessions"`
}

type SessionStats struct {
	SessionID   string    `json:"sessionId"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastActive  time.Time `json:"lastActive"`
}

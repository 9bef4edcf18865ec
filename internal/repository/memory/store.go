// Package memory persists short conversation summaries per device so later
// sessions can pick up where earlier ones stopped.
package memory

import (
	"context"
	"time"
)

type Summary struct {
	SessionID string    `json:"sessionId"`
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store loads and saves summaries. Load returns (nil, nil) when nothing is
// stored for the session.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Summary, error)
	Save(ctx context.Context, sessionID, summary string) error
}

type noopStore struct{}

// NewNoop returns a store that remembers nothing.
func NewNoop() Store { return noopStore{} }

func (noopStore) Load(context.Context, string) (*Summary, error) { return nil, nil }
func (noopStore) Save(context.Context, string, string) error     { return nil }

package handlers

import (
	"time"

	"github.com/xpanvictor/quil-bridge/pkg/system"
)

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the health probe body. Field names are capitalised to
// match what deployed dashboards already parse.
type HealthResponse struct {
	Status         string        `json:"Status"`
	Service        string        `json:"Service"`
	Mode           string        `json:"Mode"`
	ActiveSessions int           `json:"ActiveSessions"`
	Timestamp      time.Time     `json:"Timestamp"`
	System         *system.Stats `json:"System,omitempty"`
}

type StatsResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// MemoryGetResponse carries a null summary when none is stored.
type MemoryGetResponse struct {
	Summary *string `json:"summary"`
}

type MemorySaveRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Summary   string `json:"summary" binding:"required"`
}

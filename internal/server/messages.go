package server

import (
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/history"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/pipeline"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/screen"
)

// Message is the envelope shared by every WebSocket message.
type Message struct {
	Type string `json:"type"`
}

// StateMessage carries a newly committed render state.
type StateMessage struct {
	Type  string        `json:"type"`
	State StateResponse `json:"state"`
}

// MatchMessage carries a newly recorded history event.
type MatchMessage struct {
	Type  string        `json:"type"`
	Event history.Event `json:"event"`
}

// ModeMessage is sent by viewers to switch the render mode.
type ModeMessage struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StateResponse is the JSON form of a session's committed state.
type StateResponse struct {
	pipeline.RenderState
	Session string           `json:"session"`
	Mode    overlay.Mode     `json:"mode"`
	Slot    screen.SlotStats `json:"slot"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	Namespace string       `json:"namespace"`
	Language  string       `json:"lang"`
	Mode      overlay.Mode `json:"mode"`
	Version   uint64       `json:"version"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

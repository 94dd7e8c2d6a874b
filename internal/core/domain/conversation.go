package domain

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged message sent to a chat model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one saved exchange of a conversation session.
type Turn struct {
	SessionID string    `json:"session_id"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}

// MemorySnapshot is the persisted state of a session's memory: a running
// summary of folded turns plus the turns still kept verbatim.
type MemorySnapshot struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
	Buffer    []Turn `json:"buffer"`
}

// Reply is the orchestrator's answer together with the evidence it was given.
type Reply struct {
	SessionID string         `json:"session_id,omitempty"`
	Reply     string         `json:"reply"`
	Retrieved []RankedResult `json:"retrieved"`
}

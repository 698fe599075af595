package model

import "time"

// Update types pushed to connected planning clients.
const (
	UpdateLearningApplied = "learning_applied"
	UpdateSuggestionUsed  = "suggestion_used"
	UpdateQueryAmbiguous  = "query_ambiguous"
)

// Update is one realtime message pushed over the websocket.
type Update struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

package store

import "time"

// Variation pattern kinds
const (
	VariationColloquial = "colloquial"
	VariationSynonym    = "synonym"
)

// VariationPattern is a learned surface-form rewrite mined from corrections.
type VariationPattern struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Count       int       `json:"count"`
	Confidence  float64   `json:"confidence"`
	FeedbackIDs []string  `json:"feedback_ids,omitempty"`
	LastUsed    time.Time `json:"last_used"`
}

// IntentPattern is a learned query-pattern → intent rule.
type IntentPattern struct {
	ID          string    `json:"id"`
	Pattern     string    `json:"pattern"`
	Intent      string    `json:"intent"`
	SubType     string    `json:"sub_type,omitempty"`
	Count       int       `json:"count"`
	Confidence  float64   `json:"confidence"`
	FeedbackIDs []string  `json:"feedback_ids,omitempty"`
	LastUsed    time.Time `json:"last_used"`
}

// EntityPattern is a learned context-window → entity rule.
type EntityPattern struct {
	ID             string    `json:"id"`
	ContextPattern string    `json:"context_pattern"`
	EntityType     string    `json:"entity_type"`
	EntityValue    string    `json:"entity_value"`
	Count          int       `json:"count"`
	Confidence     float64   `json:"confidence"`
	FeedbackIDs    []string  `json:"feedback_ids,omitempty"`
	LastUsed       time.Time `json:"last_used"`
}

// FeedbackMemory is the rule-table snapshot persisted in the global bucket.
type FeedbackMemory struct {
	Variations   []VariationPattern `json:"variations"`
	Intents      []IntentPattern    `json:"intents"`
	Entities     []EntityPattern    `json:"entities"`
	Promoted     map[string]bool    `json:"promoted,omitempty"`
	LastSyncTime time.Time          `json:"last_sync_time"`
}

package store

import "time"

// Classification method constants
const (
	MethodPattern  = "pattern"
	MethodLLM      = "llm"
	MethodFallback = "fallback"
)

// Canonical intent names used across the understanding pipeline
const (
	IntentCapacityQuery       = "capacity_query"
	IntentMaintenanceQuery    = "maintenance_query"
	IntentInfrastructureQuery = "infrastructure_query"
	IntentStandStatusQuery    = "stand_status_query"
	IntentScenarioQuery       = "scenario_query"
	IntentComparisonQuery     = "comparison_query"
	IntentUnknown             = "unknown"
)

// Entity type constants (the parser registry recognizes exactly these)
const (
	EntityTerminal        = "terminal"
	EntityStand           = "stand"
	EntityPier            = "pier"
	EntityTimePeriod      = "time_period"
	EntityDate            = "date"
	EntityCapacityMetric  = "capacity_metric"
	EntityMaintenanceType = "maintenance_type"
	EntityAircraftType    = "aircraft_type"
	EntityAirline         = "airline"
	TypeBoolean           = "boolean"
)

// RawQuery is the immutable record created when a query is submitted.
type RawQuery struct {
	QueryID    string    `json:"query_id"`
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// NormalizationStep records one transformation applied to the query surface.
type NormalizationStep struct {
	Step   string `json:"step"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// NormalizedQuery is the variation handler's output.
type NormalizedQuery struct {
	QueryID        string              `json:"query_id"`
	Text           string              `json:"text"`
	WasTransformed bool                `json:"was_transformed"`
	Confidence     float64             `json:"confidence"`
	Steps          []NormalizationStep `json:"steps,omitempty"`
}

// IntentCandidate is one ranked classification candidate.
type IntentCandidate struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// ParsedQuery is the combined classifier + parser output for one query.
// A clarified query reuses this shape with ClarifiedAxes populated.
type ParsedQuery struct {
	QueryID          string             `json:"query_id"`
	Intent           string             `json:"intent"`
	SubType          string             `json:"sub_type,omitempty"`
	IntentConfidence float64            `json:"intent_confidence"`
	Method           string             `json:"method"`
	Entities         map[string]string  `json:"entities"`
	EntityConfidence map[string]float64 `json:"entity_confidence,omitempty"`
	Parameters       map[string]any     `json:"parameters"`
	MissingRequired  []string           `json:"missing_required,omitempty"`
	Contextual       map[string]bool    `json:"contextual,omitempty"`
	PossibleIntents  []IntentCandidate  `json:"possible_intents,omitempty"`
	Relationship     string             `json:"relationship,omitempty"`
	ClarifiedAxes    map[string]bool    `json:"clarified_axes,omitempty"`
}

// Clone returns a deep copy so disambiguation never mutates the original parse.
func (p *ParsedQuery) Clone() *ParsedQuery {
	if p == nil {
		return nil
	}
	out := *p
	out.Entities = copyStringMap(p.Entities)
	out.EntityConfidence = copyFloatMap(p.EntityConfidence)
	out.Parameters = copyAnyMap(p.Parameters)
	out.MissingRequired = append([]string(nil), p.MissingRequired...)
	out.Contextual = copyBoolMap(p.Contextual)
	out.PossibleIntents = append([]IntentCandidate(nil), p.PossibleIntents...)
	out.ClarifiedAxes = copyBoolMap(p.ClarifiedAxes)
	return &out
}

// Ambiguity axis constants
const (
	AmbiguityIntent       = "intent"
	AmbiguityEntity       = "entity"
	AmbiguityRelationship = "relationship"
)

// Option is a single disambiguation choice. Kind discriminates which of the
// axis-specific fields are meaningful.
type Option struct {
	Kind         string `json:"kind"`
	Label        string `json:"label"`
	Intent       string `json:"intent,omitempty"`
	SubType      string `json:"sub_type,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
	EntityValue  string `json:"entity_value,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	// ImpliedIntent lets a relationship choice re-route the intent.
	ImpliedIntent string `json:"implied_intent,omitempty"`
}

// Ambiguity describes one detected uncertainty along a single axis.
type Ambiguity struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	Options    []Option `json:"options"`
	EntityType string   `json:"entity_type,omitempty"`
}

// AmbiguityReport is the disambiguator's verdict for one parse.
type AmbiguityReport struct {
	QueryID     string      `json:"query_id"`
	IsAmbiguous bool        `json:"is_ambiguous"`
	Ambiguities []Ambiguity `json:"ambiguities,omitempty"`
}

// Suggestion types and sources
const (
	SuggestionEntity       = "entity"
	SuggestionIntent       = "intent"
	SuggestionRelationship = "relationship"
	SuggestionGeneral      = "general"

	SourceTemplate = "template"
	SourceContext  = "context"
	SourceLLM      = "llm"
)

// Suggestion is one follow-up question offered after a clear parse.
type Suggestion struct {
	ID         string     `json:"id"`
	QueryID    string     `json:"query_id"`
	Type       string     `json:"type"`
	Text       string     `json:"text"`
	Source     string     `json:"source"`
	Confidence float64    `json:"confidence"`
	Used       bool       `json:"used"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Feedback axis constants
const (
	FeedbackIntent    = "intent"
	FeedbackEntity    = "entity"
	FeedbackVariation = "variation"
	FeedbackGeneral   = "general"
)

// FeedbackCorrection carries what the user says the right interpretation was.
type FeedbackCorrection struct {
	Intent   string            `json:"intent,omitempty"`
	Entities map[string]string `json:"entities,omitempty"`
	Query    string            `json:"query,omitempty"`
}

// FeedbackRecord is one explicit user correction, never mutated after Applied
// is set.
type FeedbackRecord struct {
	FeedbackID   string              `json:"feedback_id"`
	QueryID      string              `json:"query_id"`
	SessionID    string              `json:"session_id"`
	Query        string              `json:"query"`
	ParsedIntent string              `json:"parsed_intent,omitempty"`
	Rating       int                 `json:"rating"`
	FeedbackType string              `json:"feedback_type,omitempty"`
	Comments     string              `json:"comments,omitempty"`
	Correction   *FeedbackCorrection `json:"correction,omitempty"`
	Applied      bool                `json:"applied"`
	Timestamp    time.Time           `json:"timestamp"`
}

// EntityMention is a recency-ordered trace of entities seen in a session.
type EntityMention struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	QueryID   string    `json:"query_id"`
	Timestamp time.Time `json:"timestamp"`
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyBoolMap(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

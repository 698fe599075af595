package disambiguation

import (
	"context"
	"errors"
	"time"

	"airport-capacity-be/pkg/store"
)

const maxHistoryEntries = 10

var ErrUnknownQuery = errors.New("disambiguation: no stored request for query")

// UserResponse carries the user's selections, one slot per ambiguity axis.
type UserResponse struct {
	Intent       *IntentChoice       `json:"intent,omitempty"`
	Entity       *EntityChoice       `json:"entity,omitempty"`
	Relationship *RelationshipChoice `json:"relationship,omitempty"`
}

type IntentChoice struct {
	Intent  string `json:"intent"`
	SubType string `json:"subType,omitempty"`
}

type EntityChoice struct {
	EntityType  string `json:"entityType"`
	EntityValue string `json:"entityValue"`
}

type RelationshipChoice struct {
	Relationship  string `json:"relationship"`
	ImpliedIntent string `json:"impliedIntent,omitempty"`
}

// Result is the outcome of applying a user response to an ambiguous parse.
type Result struct {
	QueryID              string            `json:"queryId"`
	ClarifiedQuery       *store.ParsedQuery `json:"clarifiedQuery"`
	AllResolved          bool              `json:"allResolved"`
	RemainingAmbiguities []store.Ambiguity `json:"remainingAmbiguities,omitempty"`
}

type historyEntry struct {
	QueryID    string    `json:"queryId"`
	ResolvedAt time.Time `json:"resolvedAt"`
	Resolved   bool      `json:"resolved"`
}

// ProcessDisambiguation merges a user's selections back into the parse the
// report was raised for. When parsed is nil the original parse is loaded from
// working memory. Applying the same response twice yields the same result.
func (d *Disambiguator) ProcessDisambiguation(ctx context.Context, report store.AmbiguityReport, resp UserResponse, parsed *store.ParsedQuery, sessionID string) (*Result, error) {
	d.mu.RLock()
	cfg := d.cfg
	d.mu.RUnlock()

	if parsed == nil {
		if d.memory == nil || sessionID == "" {
			return nil, ErrUnknownQuery
		}
		var stored storedRequest
		if !d.memory.GetSessionData(sessionID, requestKey(report.QueryID), &stored) || stored.Parsed == nil {
			return nil, ErrUnknownQuery
		}
		parsed = stored.Parsed
		if len(report.Ambiguities) == 0 {
			report = stored.Report
		}
	}

	clarified := parsed.Clone()
	if clarified.ClarifiedAxes == nil {
		clarified.ClarifiedAxes = make(map[string]bool)
	}

	var remaining []store.Ambiguity
	for _, amb := range report.Ambiguities {
		switch amb.Type {
		case store.AmbiguityIntent:
			if resp.Intent == nil || resp.Intent.Intent == "" {
				remaining = append(remaining, amb)
				continue
			}
			clarified.Intent = resp.Intent.Intent
			clarified.SubType = resp.Intent.SubType
			clarified.IntentConfidence = 1.0
			clarified.Method = store.MethodPattern
			clarified.ClarifiedAxes["intent"] = true
		case store.AmbiguityEntity:
			if resp.Entity == nil || resp.Entity.EntityType != amb.EntityType || resp.Entity.EntityValue == "" {
				remaining = append(remaining, amb)
				continue
			}
			d.applyEntityChoice(clarified, resp.Entity)
		case store.AmbiguityRelationship:
			if resp.Relationship == nil || resp.Relationship.Relationship == "" {
				remaining = append(remaining, amb)
				continue
			}
			clarified.Relationship = resp.Relationship.Relationship
			if resp.Relationship.ImpliedIntent != "" {
				clarified.Intent = resp.Relationship.ImpliedIntent
				clarified.IntentConfidence = 0.9
			}
			clarified.ClarifiedAxes["relationship"] = true
		}
	}

	result := &Result{
		QueryID:              report.QueryID,
		ClarifiedQuery:       clarified,
		AllResolved:          len(remaining) == 0,
		RemainingAmbiguities: remaining,
	}

	if sessionID != "" && d.memory != nil {
		d.memory.StoreSessionData(sessionID, resultKey(report.QueryID), result)
		if cfg.StoreDisambiguationHistory {
			d.appendHistory(sessionID, historyEntry{QueryID: report.QueryID, ResolvedAt: time.Now(), Resolved: result.AllResolved})
		}
	}
	return result, nil
}

func (d *Disambiguator) applyEntityChoice(clarified *store.ParsedQuery, choice *EntityChoice) {
	if clarified.Entities == nil {
		clarified.Entities = make(map[string]string)
	}
	if clarified.EntityConfidence == nil {
		clarified.EntityConfidence = make(map[string]float64)
	}
	clarified.Entities[choice.EntityType] = choice.EntityValue
	clarified.EntityConfidence[choice.EntityType] = 1.0
	delete(clarified.Contextual, choice.EntityType)

	// re-bind the matching schema parameter and clear it from the missing list
	if d.schemas != nil {
		for _, param := range d.schemas.Schema(clarified.Intent) {
			if param.Type != choice.EntityType {
				continue
			}
			if clarified.Parameters == nil {
				clarified.Parameters = make(map[string]any)
			}
			clarified.Parameters[param.Name] = choice.EntityValue
			clarified.MissingRequired = removeString(clarified.MissingRequired, param.Name)
		}
	}
	clarified.ClarifiedAxes["entity"] = true
}

func (d *Disambiguator) appendHistory(sessionID string, entry historyEntry) {
	var history []historyEntry
	d.memory.GetSessionData(sessionID, "disambiguation_history", &history)
	// newest first, drop a previous entry for the same query
	out := []historyEntry{entry}
	for _, prev := range history {
		if prev.QueryID == entry.QueryID {
			continue
		}
		out = append(out, prev)
		if len(out) >= maxHistoryEntries {
			break
		}
	}
	d.memory.StoreSessionData(sessionID, "disambiguation_history", out)
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, item := range list {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}

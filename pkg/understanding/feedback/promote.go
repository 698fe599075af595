package feedback

import (
	"fmt"

	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding/intent"
	"airport-capacity-be/pkg/understanding/parser"
)

// VariationRules is the normalization-table slice the learner promotes into.
type VariationRules interface {
	AddColloquialMapping(from, to string)
	AddSynonym(from, to string)
}

// IntentRules is the classifier slice the learner promotes into.
type IntentRules interface {
	AddIntentPattern(intentName, pattern string, subs []intent.SubPattern) error
}

// EntityRules is the parser slice the learner promotes into.
type EntityRules interface {
	AddEntityDefinition(name, entityType string, patterns []string, normalize parser.Normalizer) error
}

// ApplyResults reports how many patterns were promoted on each axis.
type ApplyResults struct {
	VariationsApplied int `json:"variationsApplied"`
	IntentsApplied    int `json:"intentsApplied"`
	EntitiesApplied   int `json:"entitiesApplied"`
	Skipped           int `json:"skipped"`
}

// ApplyFeedbackLearning promotes every mined pattern at or above the
// confidence floor into the live rule tables. A pattern that fails to compile
// is logged and skipped; the rest still apply. Promoted pattern IDs are
// remembered so a repeated apply does not duplicate table entries.
func (l *Learner) ApplyFeedbackLearning(sessionID string) ApplyResults {
	l.mu.RLock()
	cfg := l.cfg
	l.mu.RUnlock()

	snapshot := l.RuleSnapshot()
	var results ApplyResults
	var applied []string

	for _, p := range snapshot.Variations {
		if p.Confidence < cfg.MinFeedbackConfidence || l.variation == nil || snapshot.Promoted[p.ID] {
			continue
		}
		switch p.Kind {
		case store.VariationColloquial:
			l.variation.AddColloquialMapping(p.From, p.To)
		case store.VariationSynonym:
			l.variation.AddSynonym(p.From, p.To)
		default:
			continue
		}
		applied = append(applied, p.ID)
		results.VariationsApplied++
	}

	for _, p := range snapshot.Intents {
		if p.Confidence < cfg.MinFeedbackConfidence || l.intents == nil || snapshot.Promoted[p.ID] {
			continue
		}
		if err := l.intents.AddIntentPattern(p.Intent, wildcardRegex(p.Pattern), nil); err != nil {
			l.logger.Warn("FeedbackLearner", "Corrupt intent pattern skipped", map[string]interface{}{
				"patternId": p.ID,
				"error":     err.Error(),
			})
			l.recordCorruption()
			results.Skipped++
			continue
		}
		applied = append(applied, p.ID)
		results.IntentsApplied++
	}

	for _, p := range snapshot.Entities {
		if p.Confidence < cfg.MinFeedbackConfidence || l.entities == nil || snapshot.Promoted[p.ID] {
			continue
		}
		name := fmt.Sprintf("learned_%s_%s", p.EntityType, p.ID)
		if err := l.entities.AddEntityDefinition(name, p.EntityType, []string{wildcardRegex(p.ContextPattern)}, nil); err != nil {
			l.logger.Warn("FeedbackLearner", "Corrupt entity pattern skipped", map[string]interface{}{
				"patternId": p.ID,
				"error":     err.Error(),
			})
			l.recordCorruption()
			results.Skipped++
			continue
		}
		applied = append(applied, p.ID)
		results.EntitiesApplied++
	}

	l.mu.Lock()
	if l.rules.Promoted == nil {
		l.rules.Promoted = make(map[string]bool, len(applied))
	}
	for _, id := range applied {
		l.rules.Promoted[id] = true
	}
	l.metrics.PatternsPromoted += len(applied)
	l.mu.Unlock()

	l.saveMemory()
	l.logger.Info("FeedbackLearner", "Feedback learning applied", map[string]interface{}{
		"sessionId":  sessionID,
		"variations": results.VariationsApplied,
		"intents":    results.IntentsApplied,
		"entities":   results.EntitiesApplied,
		"skipped":    results.Skipped,
	})
	return results
}

func (l *Learner) recordCorruption() {
	l.mu.Lock()
	l.metrics.CorruptedPatterns++
	l.mu.Unlock()
}

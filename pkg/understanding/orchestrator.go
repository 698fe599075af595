package understanding

import (
	"context"
	"sync"
	"time"

	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/pkg/memory"
	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding/disambiguation"
	"airport-capacity-be/pkg/understanding/feedback"
	"airport-capacity-be/pkg/understanding/intent"
	"airport-capacity-be/pkg/understanding/parser"
	"airport-capacity-be/pkg/understanding/suggestion"
	"airport-capacity-be/pkg/understanding/variation"
)

// Flags switch whole pipeline stages on or off.
type Flags struct {
	EnableVariationHandling  bool
	EnableDisambiguation     bool
	EnableRelatedQuestions   bool
	EnableFeedbackProcessing bool
}

func DefaultFlags() Flags {
	return Flags{
		EnableVariationHandling:  true,
		EnableDisambiguation:     true,
		EnableRelatedQuestions:   true,
		EnableFeedbackProcessing: true,
	}
}

// Options carries a partial runtime reconfiguration; nil fields are left
// untouched. Fanned out to the owning component.
type Options struct {
	EnableVariationHandling  *bool                  `json:"enableVariationHandling,omitempty"`
	EnableDisambiguation     *bool                  `json:"enableDisambiguation,omitempty"`
	EnableRelatedQuestions   *bool                  `json:"enableRelatedQuestions,omitempty"`
	EnableFeedbackProcessing *bool                  `json:"enableFeedbackProcessing,omitempty"`
	Variation                *variation.Config      `json:"-"`
	Intent                   *intent.Config         `json:"-"`
	Parser                   *parser.Config         `json:"-"`
	Disambiguation           *disambiguation.Config `json:"-"`
	Suggestion               *suggestion.Config     `json:"-"`
	Feedback                 *feedback.Config       `json:"-"`
}

// QueryResult is the orchestrated outcome for one raw query.
type QueryResult struct {
	NormalizedQuery store.NormalizedQuery `json:"normalizedQuery"`
	WasProcessed    bool                  `json:"wasProcessed"`
	Ambiguous       bool                  `json:"ambiguous"`
	Ambiguities     []store.Ambiguity     `json:"ambiguities,omitempty"`
	Suggestions     []store.Suggestion    `json:"suggestions"`
	ProcessingSteps []string              `json:"processingSteps"`
}

// MetricsSnapshot merges the per-component counters.
type MetricsSnapshot struct {
	TotalQueries     int                `json:"totalQueries"`
	AmbiguousQueries int                `json:"ambiguousQueries"`
	IntentPatterns   int                `json:"intentPatterns"`
	Suggestions      suggestion.Metrics `json:"suggestions"`
	Feedback         feedback.Metrics   `json:"feedback"`
}

// Orchestrator is the single entry point for query understanding. It chains
// normalization, ambiguity checking, and suggestion generation, and delegates
// resolution, usage tracking, and feedback to the owning components. None of
// its operations return transport errors for pipeline-internal failures; a
// dead LLM degrades to patterns and deterministic tables.
type Orchestrator struct {
	mu    sync.RWMutex
	flags Flags

	variation     *variation.Handler
	classifier    *intent.Classifier
	parser        *parser.Parser
	disambiguator *disambiguation.Disambiguator
	suggestions   *suggestion.Generator
	learner       *feedback.Learner
	memory        *memory.Store
	logger        logger.ILogger

	totalQueries     int
	ambiguousQueries int
}

func NewOrchestrator(
	flags Flags,
	variationHandler *variation.Handler,
	classifier *intent.Classifier,
	queryParser *parser.Parser,
	disambiguator *disambiguation.Disambiguator,
	suggestions *suggestion.Generator,
	learner *feedback.Learner,
	mem *memory.Store,
	log logger.ILogger,
) *Orchestrator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Orchestrator{
		flags:         flags,
		variation:     variationHandler,
		classifier:    classifier,
		parser:        queryParser,
		disambiguator: disambiguator,
		suggestions:   suggestions,
		learner:       learner,
		memory:        mem,
		logger:        log,
	}
}

// Parser exposes the bound parser for callers that run intent and entity
// extraction themselves before handing the parse back to ProcessQuery.
func (o *Orchestrator) Parser() *parser.Parser {
	return o.parser
}

// ProcessQuery normalizes rawText, checks a supplied parse for ambiguity, and
// generates follow-up suggestions when the parse is clear. parsed may be nil:
// the caller then gets normalization only and can run the parser on the
// normalized text itself.
func (o *Orchestrator) ProcessQuery(ctx context.Context, rawText string, parsed *store.ParsedQuery, sessionID string) QueryResult {
	o.mu.RLock()
	flags := o.flags
	o.mu.RUnlock()

	started := time.Now()
	result := QueryResult{Suggestions: []store.Suggestion{}}

	if flags.EnableVariationHandling && o.variation != nil {
		result.NormalizedQuery = o.variation.ProcessQuery(rawText)
		if parsed != nil {
			result.NormalizedQuery.QueryID = parsed.QueryID
		}
		result.WasProcessed = true
		result.ProcessingSteps = append(result.ProcessingSteps, "variation")
	} else {
		result.NormalizedQuery = store.NormalizedQuery{Text: rawText, Confidence: 1.0}
	}

	if parsed != nil && flags.EnableDisambiguation && o.disambiguator != nil {
		report := o.disambiguator.CheckAmbiguity(ctx, parsed, result.NormalizedQuery.Text, sessionID)
		result.Ambiguous = report.IsAmbiguous
		result.Ambiguities = report.Ambiguities
		result.ProcessingSteps = append(result.ProcessingSteps, "disambiguation")
	}

	if parsed != nil && !result.Ambiguous && flags.EnableRelatedQuestions && o.suggestions != nil {
		result.Suggestions = o.suggestions.GenerateSuggestions(ctx, parsed, sessionID)
		result.ProcessingSteps = append(result.ProcessingSteps, "suggestions")
	}

	if parsed != nil && sessionID != "" {
		o.recordSessionState(sessionID, parsed)
	}

	o.mu.Lock()
	o.totalQueries++
	if result.Ambiguous {
		o.ambiguousQueries++
	}
	o.mu.Unlock()

	o.logger.Debug("Orchestrator", "Query processed", map[string]interface{}{
		"sessionId": sessionID,
		"ambiguous": result.Ambiguous,
		"durationMs": time.Since(started).Milliseconds(),
	})
	return result
}

// recordSessionState updates the context fields later queries inherit from.
// Re-processing the same queryId leaves the session untouched.
func (o *Orchestrator) recordSessionState(sessionID string, parsed *store.ParsedQuery) {
	if o.memory == nil {
		return
	}
	sessCtx := o.memory.GetSessionContext(sessionID)
	if last, ok := sessCtx[store.ContextLastQueryID].(string); ok && last == parsed.QueryID {
		return
	}

	o.memory.UpdateSessionContextField(sessionID, store.ContextLastQueryID, parsed.QueryID)
	if parsed.Intent != "" && parsed.Intent != store.IntentUnknown {
		o.memory.UpdateSessionContextField(sessionID, store.ContextLastIntent, parsed.Intent)
	}
	if terminal, ok := parsed.Entities[store.EntityTerminal]; ok && !parsed.Contextual[store.EntityTerminal] {
		o.memory.UpdateSessionContextField(sessionID, store.ContextLastTerminal, terminal)
	}
	if stand, ok := parsed.Entities[store.EntityStand]; ok && !parsed.Contextual[store.EntityStand] {
		o.memory.UpdateSessionContextField(sessionID, store.ContextLastStand, stand)
	}

	now := time.Now()
	for entityType, value := range parsed.Entities {
		if parsed.Contextual[entityType] {
			continue
		}
		o.memory.RecordEntityMention(sessionID, store.EntityMention{
			Type:      entityType,
			Value:     value,
			QueryID:   parsed.QueryID,
			Timestamp: now,
		})
	}
}

// ProcessDisambiguation applies a user's clarification selections.
func (o *Orchestrator) ProcessDisambiguation(ctx context.Context, report store.AmbiguityReport, resp disambiguation.UserResponse, parsed *store.ParsedQuery, sessionID string) (*disambiguation.Result, error) {
	return o.disambiguator.ProcessDisambiguation(ctx, report, resp, parsed, sessionID)
}

// TrackSuggestionUsage marks a stored suggestion as used.
func (o *Orchestrator) TrackSuggestionUsage(suggestionID, sessionID string) bool {
	if o.suggestions == nil {
		return false
	}
	return o.suggestions.TrackSuggestionUsage(suggestionID, sessionID)
}

// SubmitFeedback records a correction and queues it for learning.
func (o *Orchestrator) SubmitFeedback(ctx context.Context, record store.FeedbackRecord) (string, error) {
	o.mu.RLock()
	enabled := o.flags.EnableFeedbackProcessing
	o.mu.RUnlock()
	if !enabled || o.learner == nil {
		return "", feedback.ErrInvalidFeedback
	}
	return o.learner.SubmitFeedback(ctx, record)
}

// ApplyFeedbackLearning promotes confident mined patterns into the live
// normalization, intent, and entity tables.
func (o *Orchestrator) ApplyFeedbackLearning(sessionID string) feedback.ApplyResults {
	if o.learner == nil {
		return feedback.ApplyResults{}
	}
	return o.learner.ApplyFeedbackLearning(sessionID)
}

// Metrics merges per-component counters into one snapshot.
func (o *Orchestrator) Metrics() MetricsSnapshot {
	o.mu.RLock()
	snap := MetricsSnapshot{
		TotalQueries:     o.totalQueries,
		AmbiguousQueries: o.ambiguousQueries,
	}
	o.mu.RUnlock()

	if o.classifier != nil {
		builtin, learned := o.classifier.PatternCount()
		snap.IntentPatterns = builtin + learned
	}
	if o.suggestions != nil {
		snap.Suggestions = o.suggestions.Metrics()
	}
	if o.learner != nil {
		snap.Feedback = o.learner.Metrics()
	}
	return snap
}

// UpdateConfig applies a partial reconfiguration and fans component configs
// out to their owners.
func (o *Orchestrator) UpdateConfig(opts Options) {
	o.mu.Lock()
	if opts.EnableVariationHandling != nil {
		o.flags.EnableVariationHandling = *opts.EnableVariationHandling
	}
	if opts.EnableDisambiguation != nil {
		o.flags.EnableDisambiguation = *opts.EnableDisambiguation
	}
	if opts.EnableRelatedQuestions != nil {
		o.flags.EnableRelatedQuestions = *opts.EnableRelatedQuestions
	}
	if opts.EnableFeedbackProcessing != nil {
		o.flags.EnableFeedbackProcessing = *opts.EnableFeedbackProcessing
	}
	o.mu.Unlock()

	if opts.Variation != nil && o.variation != nil {
		o.variation.UpdateConfig(*opts.Variation)
	}
	if opts.Intent != nil && o.classifier != nil {
		o.classifier.UpdateConfig(*opts.Intent)
	}
	if opts.Parser != nil && o.parser != nil {
		o.parser.UpdateConfig(*opts.Parser)
	}
	if opts.Disambiguation != nil && o.disambiguator != nil {
		o.disambiguator.UpdateConfig(*opts.Disambiguation)
	}
	if opts.Suggestion != nil && o.suggestions != nil {
		o.suggestions.UpdateConfig(*opts.Suggestion)
	}
	if opts.Feedback != nil && o.learner != nil {
		o.learner.UpdateConfig(*opts.Feedback)
	}
}

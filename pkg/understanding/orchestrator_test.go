package understanding

import (
	"context"
	"errors"
	"testing"
	"time"

	repository "airport-capacity-be/internal/repository/memory"
	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/memory"
	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding/disambiguation"
	"airport-capacity-be/pkg/understanding/feedback"
	"airport-capacity-be/pkg/understanding/intent"
	"airport-capacity-be/pkg/understanding/parser"
	"airport-capacity-be/pkg/understanding/suggestion"
	"airport-capacity-be/pkg/understanding/variation"

	"github.com/stretchr/testify/assert"
)

// failingProvider simulates a dead model backend for every call.
type failingProvider struct{}

func (failingProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("provider unavailable")
}

func (failingProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("provider unavailable")
}

type pipeline struct {
	orchestrator *Orchestrator
	variation    *variation.Handler
	memory       *memory.Store
}

func newPipeline() *pipeline {
	facade := llm.NewFacade(failingProvider{}, time.Second, nil)
	mem := memory.NewStore(repository.NewWorkingRepository(), memory.DefaultConfig(), nil)

	vh := variation.NewHandler(variation.DefaultConfig(), nil)
	cls := intent.NewClassifier(intent.DefaultConfig(), facade, nil)
	queryParser := parser.NewParser(parser.DefaultConfig(), vh, cls, facade, nil)
	disambiguator := disambiguation.NewDisambiguator(disambiguation.DefaultConfig(), facade, queryParser, mem, nil)
	suggestions := suggestion.NewGenerator(suggestion.DefaultConfig(), facade, mem, nil)
	learner := feedback.NewLearner(feedback.DefaultConfig(), facade, mem, vh, cls, queryParser, nil)

	return &pipeline{
		orchestrator: NewOrchestrator(DefaultFlags(), vh, cls, queryParser, disambiguator, suggestions, learner, mem, nil),
		variation:    vh,
		memory:       mem,
	}
}

func (p *pipeline) parse(queryID, text, sessionID string) (*store.ParsedQuery, store.NormalizedQuery) {
	return p.orchestrator.Parser().ParseQuery(context.Background(), queryID, text, p.memory.GetSessionContext(sessionID))
}

func TestProcessQueryClear(t *testing.T) {
	p := newPipeline()

	parsed, _ := p.parse("q-1", "Whats the capacity of T1?", "session-1")
	result := p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")

	assert.Equal(t, "what is the capacity of Terminal 1?", result.NormalizedQuery.Text)
	assert.True(t, result.WasProcessed)
	assert.False(t, result.Ambiguous)
	assert.Len(t, result.Suggestions, 3)

	sTexts := make([]string, 0, 3)
	for _, s := range result.Suggestions {
		sTexts = append(sTexts, s.Text)
	}
	assert.Contains(t, sTexts, "Show maintenance schedule for Terminal 1")
	assert.Equal(t, []string{"variation", "disambiguation", "suggestions"}, result.ProcessingSteps)

	sessCtx := p.memory.GetSessionContext("session-1")
	assert.Equal(t, store.IntentCapacityQuery, sessCtx[store.ContextLastIntent])
	assert.Equal(t, "Terminal 1", sessCtx[store.ContextLastTerminal])
	assert.Equal(t, "q-1", sessCtx[store.ContextLastQueryID])
}

func TestProcessQueryContextualFollowUp(t *testing.T) {
	p := newPipeline()

	parsed, _ := p.parse("q-1", "Whats the capacity of T1?", "session-1")
	p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")

	followUp, _ := p.parse("q-2", "what about the peak capacity?", "session-1")
	assert.Equal(t, "Terminal 1", followUp.Entities[store.EntityTerminal])
	assert.True(t, followUp.Contextual[store.EntityTerminal])

	result := p.orchestrator.ProcessQuery(context.Background(), "what about the peak capacity?", followUp, "session-1")
	assert.False(t, result.Ambiguous)
	assert.NotEmpty(t, result.Suggestions)

	// inherited entities never re-enter the mention trail
	mentions := p.memory.GetEntityMentions("session-1", 10)
	terminalMentions := 0
	for _, m := range mentions {
		if m.Type == store.EntityTerminal {
			terminalMentions++
		}
	}
	assert.Equal(t, 1, terminalMentions)
}

func TestProcessQueryDeterministicFallback(t *testing.T) {
	p := newPipeline()

	raw := "Completely novel utterance with no familiar words"
	parsed, _ := p.parse("q-1", raw, "session-1")
	assert.Equal(t, store.IntentUnknown, parsed.Intent)
	assert.LessOrEqual(t, parsed.IntentConfidence, 0.5)
	assert.Equal(t, store.MethodFallback, parsed.Method)

	result := p.orchestrator.ProcessQuery(context.Background(), raw, parsed, "session-1")
	assert.False(t, result.Ambiguous)
	assert.Empty(t, result.Suggestions)
}

func TestProcessQueryDisambiguationFlow(t *testing.T) {
	p := newPipeline()

	raw := "what is the capacity of the terminal"
	parsed, _ := p.parse("q-1", raw, "session-1")
	assert.Contains(t, parsed.MissingRequired, "terminal")

	result := p.orchestrator.ProcessQuery(context.Background(), raw, parsed, "session-1")
	assert.True(t, result.Ambiguous)
	assert.Empty(t, result.Suggestions)
	assert.NotContains(t, result.ProcessingSteps, "suggestions")
	assert.Equal(t, store.AmbiguityEntity, result.Ambiguities[0].Type)

	// resolve from working memory alone, the way the HTTP layer does
	resolved, err := p.orchestrator.ProcessDisambiguation(context.Background(), store.AmbiguityReport{QueryID: "q-1"}, disambiguation.UserResponse{
		Entity: &disambiguation.EntityChoice{EntityType: store.EntityTerminal, EntityValue: "Terminal 2"},
	}, nil, "session-1")
	assert.NoError(t, err)
	assert.True(t, resolved.AllResolved)
	assert.Equal(t, "Terminal 2", resolved.ClarifiedQuery.Entities[store.EntityTerminal])
	assert.Empty(t, resolved.ClarifiedQuery.MissingRequired)

	metrics := p.orchestrator.Metrics()
	assert.Equal(t, 1, metrics.TotalQueries)
	assert.Equal(t, 1, metrics.AmbiguousQueries)
}

func TestFeedbackLearningLoop(t *testing.T) {
	p := newPipeline()

	for i := 0; i < 3; i++ {
		_, err := p.orchestrator.SubmitFeedback(context.Background(), store.FeedbackRecord{
			QueryID:   "q-1",
			SessionID: "session-1",
			Query:     "gimme stands",
			Rating:    2,
			Correction: &store.FeedbackCorrection{
				Query: "show stands",
			},
		})
		assert.NoError(t, err)
	}

	results := p.orchestrator.ApplyFeedbackLearning("session-1")
	assert.GreaterOrEqual(t, results.VariationsApplied, 1)

	normalized := p.variation.ProcessQuery("gimme stands")
	assert.Equal(t, "show stands", normalized.Text)
}

func TestSuggestionUsageViaOrchestrator(t *testing.T) {
	p := newPipeline()

	parsed, _ := p.parse("q-1", "Whats the capacity of T1?", "session-1")
	result := p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")
	assert.NotEmpty(t, result.Suggestions)

	assert.True(t, p.orchestrator.TrackSuggestionUsage(result.Suggestions[0].ID, "session-1"))
	assert.False(t, p.orchestrator.TrackSuggestionUsage("unknown-id", "session-1"))

	metrics := p.orchestrator.Metrics()
	assert.Equal(t, 1, metrics.Suggestions.TotalSuggestionsUsed)
}

func TestFlags(t *testing.T) {
	t.Run("variation off passes text through", func(t *testing.T) {
		p := newPipeline()
		off := false
		p.orchestrator.UpdateConfig(Options{EnableVariationHandling: &off})

		result := p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", nil, "session-1")
		assert.Equal(t, "Whats the capacity of T1?", result.NormalizedQuery.Text)
		assert.False(t, result.WasProcessed)
		assert.Empty(t, result.ProcessingSteps)
	})

	t.Run("suggestions off yields none for a clear parse", func(t *testing.T) {
		p := newPipeline()
		off := false
		p.orchestrator.UpdateConfig(Options{EnableRelatedQuestions: &off})

		parsed, _ := p.parse("q-1", "Whats the capacity of T1?", "session-1")
		result := p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")
		assert.False(t, result.Ambiguous)
		assert.Empty(t, result.Suggestions)
	})

	t.Run("disambiguation off never reports ambiguity", func(t *testing.T) {
		p := newPipeline()
		off := false
		p.orchestrator.UpdateConfig(Options{EnableDisambiguation: &off})

		parsed, _ := p.parse("q-1", "what is the capacity of the terminal", "session-1")
		result := p.orchestrator.ProcessQuery(context.Background(), "what is the capacity of the terminal", parsed, "session-1")
		assert.False(t, result.Ambiguous)
	})

	t.Run("feedback off rejects submissions", func(t *testing.T) {
		p := newPipeline()
		off := false
		p.orchestrator.UpdateConfig(Options{EnableFeedbackProcessing: &off})

		_, err := p.orchestrator.SubmitFeedback(context.Background(), store.FeedbackRecord{
			QueryID: "q-1", Query: "anything", Rating: 3,
		})
		assert.ErrorIs(t, err, feedback.ErrInvalidFeedback)
	})
}

func TestRecordSessionStateIdempotent(t *testing.T) {
	p := newPipeline()

	parsed, _ := p.parse("q-1", "Whats the capacity of T1?", "session-1")
	p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")
	p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")

	mentions := p.memory.GetEntityMentions("session-1", 10)
	assert.Len(t, mentions, 1)
}

func TestMetricsSnapshot(t *testing.T) {
	p := newPipeline()

	parsed, _ := p.parse("q-1", "Whats the capacity of T1?", "session-1")
	p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")

	snap := p.orchestrator.Metrics()
	assert.Equal(t, 1, snap.TotalQueries)
	assert.Zero(t, snap.AmbiguousQueries)
	assert.GreaterOrEqual(t, snap.IntentPatterns, 6)
	assert.Equal(t, 3, snap.Suggestions.TotalSuggestionsGenerated)
}

func TestConfigFanOut(t *testing.T) {
	p := newPipeline()

	// raise the suggestion cap and confirm the generator picks it up
	cfg := suggestion.DefaultConfig()
	cfg.MaxSuggestions = 5
	p.orchestrator.UpdateConfig(Options{Suggestion: &cfg})

	parsed, _ := p.parse("q-1", "Whats the capacity of T1?", "session-1")
	result := p.orchestrator.ProcessQuery(context.Background(), "Whats the capacity of T1?", parsed, "session-1")
	assert.Len(t, result.Suggestions, 5)
}

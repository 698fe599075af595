package suggestion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"airport-capacity-be/pkg/memory"
	"airport-capacity-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

type stubFacade struct {
	response string
	err      error
	calls    int
}

func (s *stubFacade) ProcessQuery(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.response, s.err
}

type fakeMemory struct {
	data     map[string]json.RawMessage
	mentions []store.EntityMention
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{data: make(map[string]json.RawMessage)}
}

func (f *fakeMemory) StoreSessionData(sessionID, key string, value any) {
	blob, _ := json.Marshal(value)
	f.data[sessionID+"/"+key] = blob
}

func (f *fakeMemory) GetSessionData(sessionID, key string, out any) bool {
	blob, ok := f.data[sessionID+"/"+key]
	if !ok {
		return false
	}
	return json.Unmarshal(blob, out) == nil
}

func (f *fakeMemory) GetEntityMentions(sessionID string, limit int) []store.EntityMention {
	if limit > 0 && len(f.mentions) > limit {
		return f.mentions[:limit]
	}
	return f.mentions
}

func capacityParse(queryID string) *store.ParsedQuery {
	return &store.ParsedQuery{
		QueryID:          queryID,
		Intent:           store.IntentCapacityQuery,
		IntentConfidence: 0.85,
		Method:           store.MethodPattern,
		Entities:         map[string]string{store.EntityTerminal: "Terminal 1"},
		Parameters:       map[string]any{"terminal": "Terminal 1"},
	}
}

func texts(suggestions []store.Suggestion) []string {
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.Text
	}
	return out
}

func TestGenerateSuggestions(t *testing.T) {
	t.Run("entity templates are filled and prioritized", func(t *testing.T) {
		g := NewGenerator(DefaultConfig(), nil, nil, nil)

		got := g.GenerateSuggestions(context.Background(), capacityParse("q-1"), "")
		assert.Len(t, got, 3)
		assert.Contains(t, texts(got), "Show maintenance schedule for Terminal 1")
		assert.Contains(t, texts(got), "What is the capacity of Terminal 1?")
		for _, s := range got {
			assert.NotEmpty(t, s.ID)
			assert.Equal(t, "q-1", s.QueryID)
			assert.False(t, s.Used)
			assert.GreaterOrEqual(t, s.Confidence, 0.6)
		}
	})

	t.Run("per-type diversity cap", func(t *testing.T) {
		g := NewGenerator(DefaultConfig(), nil, nil, nil)

		got := g.GenerateSuggestions(context.Background(), capacityParse("q-2"), "")
		perType := make(map[string]int)
		for _, s := range got {
			perType[s.Type]++
		}
		for suggestionType, n := range perType {
			assert.LessOrEqual(t, n, 2, "type %s over the diversity cap", suggestionType)
		}
	})

	t.Run("diversity cap holds with a larger selection budget", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxSuggestions = 6
		g := NewGenerator(cfg, nil, nil, nil)

		got := g.GenerateSuggestions(context.Background(), capacityParse("q-6"), "")
		perType := make(map[string]int)
		for _, s := range got {
			perType[s.Type]++
		}
		for suggestionType, n := range perType {
			assert.LessOrEqual(t, n, 2, "type %s over the diversity cap", suggestionType)
		}
	})

	t.Run("no duplicate texts", func(t *testing.T) {
		g := NewGenerator(DefaultConfig(), nil, nil, nil)

		got := g.GenerateSuggestions(context.Background(), capacityParse("q-3"), "")
		seen := make(map[string]bool)
		for _, s := range got {
			key := strings.ToLower(s.Text)
			assert.False(t, seen[key], "duplicate suggestion %q", s.Text)
			seen[key] = true
		}
	})

	t.Run("unknown intent produces nothing", func(t *testing.T) {
		g := NewGenerator(DefaultConfig(), nil, nil, nil)

		parsed := capacityParse("q-4")
		parsed.Intent = store.IntentUnknown
		assert.Nil(t, g.GenerateSuggestions(context.Background(), parsed, ""))

		parsed.Intent = ""
		assert.Nil(t, g.GenerateSuggestions(context.Background(), parsed, ""))
		assert.Nil(t, g.GenerateSuggestions(context.Background(), nil, ""))
	})

	t.Run("context mentions become comparison follow-ups", func(t *testing.T) {
		mem := newFakeMemory()
		mem.mentions = []store.EntityMention{{Type: store.EntityTerminal, Value: "Terminal 2", QueryID: "q-old"}}
		cfg := DefaultConfig()
		cfg.MaxSuggestions = 8
		g := NewGenerator(cfg, nil, mem, nil)

		got := g.GenerateSuggestions(context.Background(), capacityParse("q-5"), "session-1")
		var pool []store.Suggestion
		assert.True(t, mem.GetSessionData("session-1", memory.KeySuggestions, &pool))
		assert.Contains(t, texts(pool), "Compare Terminal 1 with Terminal 2")
		assert.NotEmpty(t, got)
	})
}

func TestGenerateSuggestionsLLM(t *testing.T) {
	sparseParse := func(queryID string) *store.ParsedQuery {
		return &store.ParsedQuery{
			QueryID:          queryID,
			Intent:           store.IntentInfrastructureQuery,
			IntentConfidence: 0.85,
			Entities:         map[string]string{},
		}
	}

	t.Run("llm candidates outrank templates", func(t *testing.T) {
		facade := &stubFacade{response: `[{"text": "Which piers serve wide-body traffic?", "type": "entity", "confidence": 0.9}]`}
		g := NewGenerator(DefaultConfig(), facade, nil, nil)

		got := g.GenerateSuggestions(context.Background(), sparseParse("q-1"), "")
		assert.Equal(t, 1, facade.calls)
		assert.Equal(t, "Which piers serve wide-body traffic?", got[0].Text)
		assert.Equal(t, store.SourceLLM, got[0].Source)
	})

	t.Run("llm failure still yields template suggestions", func(t *testing.T) {
		facade := &stubFacade{err: errors.New("provider down")}
		g := NewGenerator(DefaultConfig(), facade, nil, nil)

		got := g.GenerateSuggestions(context.Background(), sparseParse("q-2"), "")
		assert.Len(t, got, 3)
		for _, s := range got {
			assert.NotEqual(t, store.SourceLLM, s.Source)
		}
	})

	t.Run("invalid llm type defaults to general", func(t *testing.T) {
		facade := &stubFacade{response: `[{"text": "Anything else I can check?", "type": "banana", "confidence": 0.95}]`}
		g := NewGenerator(DefaultConfig(), facade, nil, nil)

		got := g.GenerateSuggestions(context.Background(), sparseParse("q-3"), "")
		assert.Equal(t, store.SuggestionGeneral, got[0].Type)
	})

	t.Run("rich pool skips the llm", func(t *testing.T) {
		facade := &stubFacade{response: `[]`}
		g := NewGenerator(DefaultConfig(), facade, nil, nil)

		g.GenerateSuggestions(context.Background(), capacityParse("q-4"), "")
		assert.Zero(t, facade.calls)
	})
}

func TestTrackSuggestionUsage(t *testing.T) {
	t.Run("marks used and records history", func(t *testing.T) {
		mem := newFakeMemory()
		g := NewGenerator(DefaultConfig(), nil, mem, nil)

		got := g.GenerateSuggestions(context.Background(), capacityParse("q-1"), "session-1")
		target := got[0].ID

		assert.True(t, g.TrackSuggestionUsage(target, "session-1"))

		var stored []store.Suggestion
		assert.True(t, mem.GetSessionData("session-1", memory.KeySuggestions, &stored))
		for _, s := range stored {
			if s.ID == target {
				assert.True(t, s.Used)
				assert.NotNil(t, s.UsedAt)
			}
		}

		var history []store.Suggestion
		assert.True(t, mem.GetSessionData("session-1", memory.KeySuggestionHistory, &history))
		assert.Equal(t, target, history[0].ID)

		metrics := g.Metrics()
		assert.Equal(t, 1, metrics.TotalSuggestionsUsed)
		assert.Equal(t, 3, metrics.TotalSuggestionsGenerated)
		assert.InDelta(t, 1.0/3.0, metrics.SuggestionUsageRate, 1e-9)
	})

	t.Run("second use is a no-op that reports success", func(t *testing.T) {
		mem := newFakeMemory()
		g := NewGenerator(DefaultConfig(), nil, mem, nil)

		got := g.GenerateSuggestions(context.Background(), capacityParse("q-2"), "session-1")
		target := got[0].ID

		assert.True(t, g.TrackSuggestionUsage(target, "session-1"))
		assert.True(t, g.TrackSuggestionUsage(target, "session-1"))

		var history []store.Suggestion
		mem.GetSessionData("session-1", memory.KeySuggestionHistory, &history)
		assert.Len(t, history, 1)
		assert.Equal(t, 1, g.Metrics().TotalSuggestionsUsed)
	})

	t.Run("unknown id", func(t *testing.T) {
		mem := newFakeMemory()
		g := NewGenerator(DefaultConfig(), nil, mem, nil)

		g.GenerateSuggestions(context.Background(), capacityParse("q-3"), "session-1")
		assert.False(t, g.TrackSuggestionUsage("not-a-suggestion", "session-1"))
		assert.False(t, g.TrackSuggestionUsage("", "session-1"))
		assert.False(t, g.TrackSuggestionUsage("whatever", ""))
	})
}

func TestPersistCap(t *testing.T) {
	mem := newFakeMemory()
	g := NewGenerator(DefaultConfig(), nil, mem, nil)

	// repeated generation across distinct queries keeps only the newest 20
	for i := 0; i < 10; i++ {
		parsed := capacityParse("q-loop")
		g.GenerateSuggestions(context.Background(), parsed, "session-1")
	}

	var stored []store.Suggestion
	assert.True(t, mem.GetSessionData("session-1", memory.KeySuggestions, &stored))
	assert.LessOrEqual(t, len(stored), 20)
}

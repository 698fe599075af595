package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding/intent"
	"airport-capacity-be/pkg/understanding/variation"

	"github.com/stretchr/testify/assert"
)

type stubExtractor struct {
	entities map[string]llm.EntityValue
	err      error
	requests []llm.ExtractRequest
}

func (s *stubExtractor) ExtractEntities(ctx context.Context, text string, req llm.ExtractRequest, timeout time.Duration) (map[string]llm.EntityValue, error) {
	s.requests = append(s.requests, req)
	return s.entities, s.err
}

func newTestParser(facade LLMExtractor) *Parser {
	vh := variation.NewHandler(variation.DefaultConfig(), nil)
	cls := intent.NewClassifier(intent.DefaultConfig(), nil, nil)
	return NewParser(DefaultConfig(), vh, cls, facade, nil)
}

func TestParseQueryFullChain(t *testing.T) {
	p := newTestParser(&stubExtractor{err: errors.New("provider down")})

	parsed, normalized := p.ParseQuery(context.Background(), "q-1", "Whats the capacity of T1?", nil)

	assert.Equal(t, "what is the capacity of Terminal 1?", normalized.Text)
	assert.Equal(t, "q-1", normalized.QueryID)
	assert.Equal(t, "q-1", parsed.QueryID)
	assert.Equal(t, store.IntentCapacityQuery, parsed.Intent)
	assert.Equal(t, store.MethodPattern, parsed.Method)
	assert.Equal(t, 0.85, parsed.IntentConfidence)
	assert.Equal(t, "Terminal 1", parsed.Entities[store.EntityTerminal])
	assert.Equal(t, 0.9, parsed.EntityConfidence[store.EntityTerminal])
	assert.Equal(t, "Terminal 1", parsed.Parameters["terminal"])
	assert.Equal(t, false, parsed.Parameters["historical"])
	assert.Empty(t, parsed.MissingRequired)
}

func TestParseQueryPatternEntities(t *testing.T) {
	p := newTestParser(nil)

	t.Run("stand via gate wording", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-1", "maintenance for gate a5", nil)
		assert.Equal(t, "Stand A5", parsed.Entities[store.EntityStand])
	})

	t.Run("pier letter", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-2", "how many stands does concourse b have", nil)
		assert.Equal(t, "Pier B", parsed.Entities[store.EntityPier])
	})

	t.Run("iso date passthrough", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-3", "capacity of Terminal 1 on 2026-03-15", nil)
		assert.Equal(t, "2026-03-15", parsed.Entities[store.EntityDate])
	})

	t.Run("written date normalized", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-4", "capacity of Terminal 1 on March 3rd, 2026", nil)
		assert.Equal(t, "2026-03-03", parsed.Entities[store.EntityDate])
	})

	t.Run("aircraft type canonical form", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-5", "which stands take widebody aircraft in Terminal 2", nil)
		assert.Equal(t, "wide-body", parsed.Entities[store.EntityAircraftType])
	})

	t.Run("airline canonicalized", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-6", "compare british airways traffic between Terminal 1 and Terminal 2", nil)
		assert.Equal(t, "British Airways", parsed.Entities[store.EntityAirline])
	})
}

func TestParseQueryHistoricalFlag(t *testing.T) {
	p := newTestParser(nil)

	parsed, _ := p.ParseQuery(context.Background(), "q-1", "capacity of Terminal 1 last week", nil)
	assert.Equal(t, "last week", parsed.Entities[store.EntityTimePeriod])
	assert.Equal(t, true, parsed.Parameters["historical"])

	parsed, _ = p.ParseQuery(context.Background(), "q-2", "capacity of Terminal 1 past 3 hours", nil)
	assert.Equal(t, "past 3 hours", parsed.Entities[store.EntityTimePeriod])
	assert.Equal(t, true, parsed.Parameters["historical"])

	parsed, _ = p.ParseQuery(context.Background(), "q-3", "capacity of Terminal 1 tomorrow", nil)
	assert.Equal(t, false, parsed.Parameters["historical"])
}

func TestParseQueryMissingRequired(t *testing.T) {
	p := newTestParser(nil)

	parsed, _ := p.ParseQuery(context.Background(), "q-1", "show the maintenance schedule", nil)
	assert.Equal(t, store.IntentMaintenanceQuery, parsed.Intent)
	assert.Contains(t, parsed.MissingRequired, "stand")
}

func TestParseQueryLLMPhase(t *testing.T) {
	t.Run("LLM fills types patterns missed", func(t *testing.T) {
		facade := &stubExtractor{entities: map[string]llm.EntityValue{
			store.EntityTerminal: {Value: "Terminal 2", Confidence: 0.75},
		}}
		p := newTestParser(facade)

		parsed, _ := p.ParseQuery(context.Background(), "q-1", "capacity of the north terminal", nil)
		assert.Equal(t, "Terminal 2", parsed.Entities[store.EntityTerminal])
		assert.Equal(t, 0.75, parsed.EntityConfidence[store.EntityTerminal])
		assert.Equal(t, "Terminal 2", parsed.Parameters["terminal"])
	})

	t.Run("pattern results are authoritative", func(t *testing.T) {
		facade := &stubExtractor{entities: map[string]llm.EntityValue{
			store.EntityTerminal: {Value: "Terminal 9", Confidence: 0.99},
		}}
		p := newTestParser(facade)

		parsed, _ := p.ParseQuery(context.Background(), "q-1", "capacity of Terminal 1", nil)
		assert.Equal(t, "Terminal 1", parsed.Entities[store.EntityTerminal])
		assert.NotContains(t, facade.requests[0].TargetTypes, store.EntityTerminal)
	})

	t.Run("low confidence values discarded", func(t *testing.T) {
		facade := &stubExtractor{entities: map[string]llm.EntityValue{
			store.EntityTerminal: {Value: "Terminal 3", Confidence: 0.4},
		}}
		p := newTestParser(facade)

		parsed, _ := p.ParseQuery(context.Background(), "q-1", "capacity of the north terminal", nil)
		assert.NotContains(t, parsed.Entities, store.EntityTerminal)
		assert.Contains(t, parsed.MissingRequired, "terminal")
	})

	t.Run("LLM failure leaves pattern results standing", func(t *testing.T) {
		facade := &stubExtractor{err: errors.New("timeout")}
		p := newTestParser(facade)

		parsed, _ := p.ParseQuery(context.Background(), "q-1", "capacity of Terminal 1", nil)
		assert.Equal(t, "Terminal 1", parsed.Entities[store.EntityTerminal])
	})
}

func TestParseQueryContextualInheritance(t *testing.T) {
	p := newTestParser(nil)

	sessionContext := map[string]any{
		store.ContextLastIntent:   store.IntentCapacityQuery,
		store.ContextLastTerminal: "Terminal 1",
	}

	t.Run("terminal inherited for capacity follow-up", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-1", "what about the peak capacity?", sessionContext)
		assert.Equal(t, store.IntentCapacityQuery, parsed.Intent)
		assert.Equal(t, "Terminal 1", parsed.Entities[store.EntityTerminal])
		assert.Equal(t, contextualEntityConfidence, parsed.EntityConfidence[store.EntityTerminal])
		assert.True(t, parsed.Contextual[store.EntityTerminal])
		assert.NotContains(t, parsed.MissingRequired, "terminal")
	})

	t.Run("explicit entity beats context", func(t *testing.T) {
		parsed, _ := p.ParseQuery(context.Background(), "q-2", "capacity of Terminal 2", sessionContext)
		assert.Equal(t, "Terminal 2", parsed.Entities[store.EntityTerminal])
		assert.Nil(t, parsed.Contextual)
	})

	t.Run("contextual parsing can be disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.UseContextualParsing = false
		p.UpdateConfig(cfg)
		defer p.UpdateConfig(DefaultConfig())

		parsed, _ := p.ParseQuery(context.Background(), "q-3", "what about the peak capacity?", sessionContext)
		assert.NotContains(t, parsed.Entities, store.EntityTerminal)
	})
}

func TestAddEntityDefinition(t *testing.T) {
	p := newTestParser(nil)

	t.Run("learned definition extracts", func(t *testing.T) {
		err := p.AddEntityDefinition("learned_terminal_x", store.EntityTerminal, []string{`(?i)\bnorth terminal\b`}, func(string) string { return "Terminal 5" })
		assert.NoError(t, err)

		parsed, _ := p.ParseQuery(context.Background(), "q-1", "capacity of the north terminal", nil)
		assert.Equal(t, "Terminal 5", parsed.Entities[store.EntityTerminal])
	})

	t.Run("corrupt pattern rejected", func(t *testing.T) {
		err := p.AddEntityDefinition("bad", store.EntityStand, []string{`(?i)\bstand (`}, nil)
		assert.Error(t, err)
	})
}

func TestNormalizersIdempotent(t *testing.T) {
	for _, def := range builtinEntityDefinitions() {
		if def.Normalize == nil {
			continue
		}
		for _, sample := range []string{"1", "Terminal 1", "a5", "Stand A5", "b", "Pier B", "last week", "2026-03-15", "wide-body", "British Airways"} {
			once := def.Normalize(sample)
			assert.Equal(t, once, def.Normalize(once), "normalizer %s must be idempotent for %q", def.Name, sample)
		}
	}
}

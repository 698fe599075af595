package intent

import (
	"context"
	"errors"
	"testing"

	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

type stubLLM struct {
	result *llm.IntentResult
	err    error
	calls  int
}

func (s *stubLLM) ClassifyIntent(ctx context.Context, text string, sessionContext map[string]any) (*llm.IntentResult, error) {
	s.calls++
	return s.result, s.err
}

func TestClassifyIntentPatterns(t *testing.T) {
	c := NewClassifier(DefaultConfig(), nil, nil)

	cases := []struct {
		name   string
		query  string
		intent string
	}{
		{"capacity", "what is the capacity of Terminal 1?", store.IntentCapacityQuery},
		{"maintenance", "show maintenance schedule for stand a5", store.IntentMaintenanceQuery},
		{"infrastructure", "how many stands does pier b have", store.IntentInfrastructureQuery},
		{"stand status", "is stand a1 available right now", store.IntentStandStatusQuery},
		{"scenario", "what if we close pier c for a week", store.IntentScenarioQuery},
		{"comparison", "compare Terminal 1 versus Terminal 2", store.IntentComparisonQuery},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := c.ClassifyIntent(context.Background(), tc.query, nil)
			assert.Equal(t, tc.intent, result.Intent)
			assert.Equal(t, store.MethodPattern, result.Method)
			assert.Equal(t, 0.85, result.Confidence)
		})
	}
}

func TestClassifyIntentSubTypes(t *testing.T) {
	c := NewClassifier(DefaultConfig(), nil, nil)

	result := c.ClassifyIntent(context.Background(), "what was the capacity of Terminal 1 yesterday", nil)
	assert.Equal(t, store.IntentCapacityQuery, result.Intent)
	assert.Equal(t, "historical", result.SubType)

	result = c.ClassifyIntent(context.Background(), "projected capacity for next week", nil)
	assert.Equal(t, "forecast", result.SubType)
}

func TestClassifyIntentCandidates(t *testing.T) {
	c := NewClassifier(DefaultConfig(), nil, nil)

	// Matches both the maintenance and capacity tables
	result := c.ClassifyIntent(context.Background(), "how does maintenance affect capacity", nil)
	assert.Len(t, result.Candidates, 2)
	intents := []string{result.Candidates[0].Intent, result.Candidates[1].Intent}
	assert.Contains(t, intents, store.IntentCapacityQuery)
	assert.Contains(t, intents, store.IntentMaintenanceQuery)
}

func TestClassifyIntentLLMPhase(t *testing.T) {
	t.Run("LLM used when no pattern matches", func(t *testing.T) {
		facade := &stubLLM{result: &llm.IntentResult{Intent: store.IntentCapacityQuery, Confidence: 0.8}}
		c := NewClassifier(DefaultConfig(), facade, nil)

		result := c.ClassifyIntent(context.Background(), "how busy are we looking", nil)
		assert.Equal(t, store.IntentCapacityQuery, result.Intent)
		assert.Equal(t, store.MethodLLM, result.Method)
		assert.Equal(t, 1, facade.calls)
	})

	t.Run("pattern hit skips the LLM", func(t *testing.T) {
		facade := &stubLLM{result: &llm.IntentResult{Intent: store.IntentScenarioQuery, Confidence: 0.99}}
		c := NewClassifier(DefaultConfig(), facade, nil)

		result := c.ClassifyIntent(context.Background(), "capacity of Terminal 1", nil)
		assert.Equal(t, store.IntentCapacityQuery, result.Intent)
		assert.Zero(t, facade.calls)
	})

	t.Run("low LLM confidence falls through", func(t *testing.T) {
		facade := &stubLLM{result: &llm.IntentResult{Intent: store.IntentCapacityQuery, Confidence: 0.4}}
		c := NewClassifier(DefaultConfig(), facade, nil)

		result := c.ClassifyIntent(context.Background(), "how busy are we looking", nil)
		assert.Equal(t, store.IntentUnknown, result.Intent)
		assert.Equal(t, store.MethodFallback, result.Method)
		assert.Equal(t, 0.3, result.Confidence)
	})

	t.Run("LLM error falls through", func(t *testing.T) {
		facade := &stubLLM{err: errors.New("provider down")}
		c := NewClassifier(DefaultConfig(), facade, nil)

		result := c.ClassifyIntent(context.Background(), "how busy are we looking", nil)
		assert.Equal(t, store.IntentUnknown, result.Intent)
		assert.Equal(t, store.MethodFallback, result.Method)
	})
}

func TestClassifyIntentEmptyText(t *testing.T) {
	facade := &stubLLM{result: &llm.IntentResult{Intent: store.IntentCapacityQuery, Confidence: 0.9}}
	c := NewClassifier(DefaultConfig(), facade, nil)

	result := c.ClassifyIntent(context.Background(), "   ", nil)
	assert.Equal(t, store.IntentUnknown, result.Intent)
	assert.Zero(t, result.Confidence)
	assert.Zero(t, facade.calls)
}

func TestAddIntentPattern(t *testing.T) {
	t.Run("learned pattern wins over builtin", func(t *testing.T) {
		c := NewClassifier(DefaultConfig(), nil, nil)
		err := c.AddIntentPattern(store.IntentStandStatusQuery, `(?i)\bcapacity\b.*\bstand a1\b`, nil)
		assert.NoError(t, err)

		result := c.ClassifyIntent(context.Background(), "capacity at stand a1", nil)
		assert.Equal(t, store.IntentStandStatusQuery, result.Intent)
	})

	t.Run("corrupt pattern rejected", func(t *testing.T) {
		c := NewClassifier(DefaultConfig(), nil, nil)
		builtin, learned := c.PatternCount()

		err := c.AddIntentPattern(store.IntentCapacityQuery, `\b(capacity\b`, nil)
		assert.Error(t, err)

		afterBuiltin, afterLearned := c.PatternCount()
		assert.Equal(t, builtin, afterBuiltin)
		assert.Equal(t, learned, afterLearned)
	})

	t.Run("pattern count tracks learned rules", func(t *testing.T) {
		c := NewClassifier(DefaultConfig(), nil, nil)
		assert.NoError(t, c.AddIntentPattern(store.IntentCapacityQuery, `(?i)\bhow full\b`, nil))

		builtin, learned := c.PatternCount()
		assert.Equal(t, 6, builtin)
		assert.Equal(t, 1, learned)
	})
}

func TestUpdateConfig(t *testing.T) {
	facade := &stubLLM{result: &llm.IntentResult{Intent: store.IntentCapacityQuery, Confidence: 0.9}}
	c := NewClassifier(DefaultConfig(), facade, nil)

	cfg := DefaultConfig()
	cfg.UsePatternMatching = false
	c.UpdateConfig(cfg)

	result := c.ClassifyIntent(context.Background(), "capacity of Terminal 1", nil)
	assert.Equal(t, store.MethodLLM, result.Method)
	assert.Equal(t, 1, facade.calls)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadUnderstandingDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 0.6, cfg.Understanding.SuggestionConfidenceThreshold)
	assert.True(t, cfg.Understanding.UseContextualParsing)
	assert.True(t, cfg.Understanding.EnableEntityNormalization)
	assert.True(t, cfg.Understanding.StoreDisambiguationHistory)
	assert.True(t, cfg.Understanding.PrioritizeSimilarEntities)
}

func TestLoadUnderstandingOverrides(t *testing.T) {
	t.Setenv("SUGGESTION_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("USE_CONTEXTUAL_PARSING", "false")
	t.Setenv("ENABLE_ENTITY_NORMALIZATION", "false")
	t.Setenv("STORE_DISAMBIGUATION_HISTORY", "false")
	t.Setenv("PRIORITIZE_SIMILAR_ENTITIES", "false")

	cfg := Load()

	assert.Equal(t, 0.75, cfg.Understanding.SuggestionConfidenceThreshold)
	assert.False(t, cfg.Understanding.UseContextualParsing)
	assert.False(t, cfg.Understanding.EnableEntityNormalization)
	assert.False(t, cfg.Understanding.StoreDisambiguationHistory)
	assert.False(t, cfg.Understanding.PrioritizeSimilarEntities)
}

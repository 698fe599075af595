package service

import (
	"testing"

	"airport-capacity-be/internal/model"
	"airport-capacity-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestUpdateFor(t *testing.T) {
	t.Run("promoted event becomes learning update", func(t *testing.T) {
		event := events.NewBaseEvent("understanding."+events.TypePatternsPromoted, map[string]interface{}{
			"sessionId": "session-1",
			"intents":   1,
		})

		update, ok := updateFor(event)
		assert.True(t, ok)
		assert.Equal(t, model.UpdateLearningApplied, update.Type)
		assert.Equal(t, "session-1", update.SessionID)
		assert.Equal(t, 1, update.Metadata["intents"])
	})

	t.Run("suggestion usage becomes suggestion update", func(t *testing.T) {
		event := events.NewBaseEvent(events.TypeSuggestionUsed, map[string]interface{}{
			"suggestionId": "sug-1",
		})

		update, ok := updateFor(event)
		assert.True(t, ok)
		assert.Equal(t, model.UpdateSuggestionUsed, update.Type)
	})

	t.Run("feedback submissions stay internal", func(t *testing.T) {
		event := events.NewBaseEvent("understanding."+events.TypeFeedbackReceived, map[string]interface{}{})

		_, ok := updateFor(event)
		assert.False(t, ok)
	})

	t.Run("unknown events are dropped", func(t *testing.T) {
		event := events.NewBaseEvent("understanding.SOMETHING_ELSE", map[string]interface{}{})

		_, ok := updateFor(event)
		assert.False(t, ok)
	})
}

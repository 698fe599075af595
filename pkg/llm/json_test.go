package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		got := ExtractJSON(`{"intent": "capacity_query", "confidence": 0.9}`)
		assert.Equal(t, `{"intent": "capacity_query", "confidence": 0.9}`, got)
	})

	t.Run("object wrapped in prose", func(t *testing.T) {
		raw := "Sure, here is the classification:\n{\"intent\": \"maintenance_query\"}\nHope that helps!"
		assert.Equal(t, `{"intent": "maintenance_query"}`, ExtractJSON(raw))
	})

	t.Run("markdown fence", func(t *testing.T) {
		raw := "```json\n{\"entities\": {\"terminal\": {\"value\": \"Terminal 1\"}}}\n```"
		assert.Equal(t, `{"entities": {"terminal": {"value": "Terminal 1"}}}`, ExtractJSON(raw))
	})

	t.Run("array payload", func(t *testing.T) {
		raw := "Options: [{\"text\": \"Terminal 1\"}, {\"text\": \"Terminal 2\"}]"
		assert.Equal(t, `[{"text": "Terminal 1"}, {"text": "Terminal 2"}]`, ExtractJSON(raw))
	})

	t.Run("braces inside string values", func(t *testing.T) {
		raw := `{"text": "use {terminal} as a placeholder"}`
		assert.Equal(t, raw, ExtractJSON(raw))
	})

	t.Run("escaped quotes inside strings", func(t *testing.T) {
		raw := `{"text": "she said \"closed\" today"}`
		assert.Equal(t, raw, ExtractJSON(raw))
	})

	t.Run("unbalanced payload", func(t *testing.T) {
		assert.Equal(t, "", ExtractJSON(`{"intent": "capacity_query"`))
	})

	t.Run("no JSON at all", func(t *testing.T) {
		assert.Equal(t, "", ExtractJSON("I could not produce a structured answer."))
	})
}

package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOpenAIProviderModelName(t *testing.T) {
	p := NewOpenAIProvider("test-key", "")
	assert.Equal(t, "gpt-4o-mini", p.modelName)

	p = NewOpenAIProvider("test-key", "gpt-4")
	assert.Equal(t, "gpt-4", p.modelName)
}

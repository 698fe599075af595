package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	response string
	err      error
	prompts  []string
}

func (s *stubProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	if len(history) > 0 {
		s.prompts = append(s.prompts, history[len(history)-1].Content)
	}
	return s.response, s.err
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func TestClassifyIntent(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		provider := &stubProvider{response: `{"intent": "Capacity_Query ", "sub_type": "historical", "confidence": 0.92}`}
		f := NewFacade(provider, time.Second, nil)

		result, err := f.ClassifyIntent(context.Background(), "capacity yesterday", nil)
		assert.NoError(t, err)
		assert.Equal(t, "capacity_query", result.Intent)
		assert.Equal(t, "historical", result.SubType)
		assert.Equal(t, 0.92, result.Confidence)
	})

	t.Run("confidence clamped to unit range", func(t *testing.T) {
		provider := &stubProvider{response: `{"intent": "capacity_query", "confidence": 1.7}`}
		f := NewFacade(provider, time.Second, nil)

		result, err := f.ClassifyIntent(context.Background(), "capacity", nil)
		assert.NoError(t, err)
		assert.Equal(t, 1.0, result.Confidence)
	})

	t.Run("empty intent rejected", func(t *testing.T) {
		provider := &stubProvider{response: `{"intent": "", "confidence": 0.9}`}
		f := NewFacade(provider, time.Second, nil)

		_, err := f.ClassifyIntent(context.Background(), "capacity", nil)
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("non JSON response", func(t *testing.T) {
		provider := &stubProvider{response: "the user wants capacity information"}
		f := NewFacade(provider, time.Second, nil)

		_, err := f.ClassifyIntent(context.Background(), "capacity", nil)
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("session state reaches the prompt", func(t *testing.T) {
		provider := &stubProvider{response: `{"intent": "capacity_query", "confidence": 0.9}`}
		f := NewFacade(provider, time.Second, nil)

		_, err := f.ClassifyIntent(context.Background(), "what about tomorrow", map[string]any{
			"lastIntent":   "capacity_query",
			"lastTerminal": "Terminal 1",
		})
		assert.NoError(t, err)
		assert.Contains(t, provider.prompts[0], "LAST_TERMINAL: Terminal 1")
	})
}

func TestExtractEntities(t *testing.T) {
	t.Run("entities decoded and clamped", func(t *testing.T) {
		provider := &stubProvider{response: `{"entities": {"terminal": {"value": "Terminal 2", "confidence": 0.8}, "time_period": {"value": "tomorrow", "confidence": -0.2}}}`}
		f := NewFacade(provider, time.Second, nil)

		got, err := f.ExtractEntities(context.Background(), "capacity of Terminal 2 tomorrow", ExtractRequest{
			Intent:      "capacity_query",
			TargetTypes: []string{"terminal", "time_period"},
		}, 0)
		assert.NoError(t, err)
		assert.Equal(t, EntityValue{Value: "Terminal 2", Confidence: 0.8}, got["terminal"])
		assert.Equal(t, 0.0, got["time_period"].Confidence)
	})

	t.Run("already extracted entities excluded from prompt", func(t *testing.T) {
		provider := &stubProvider{response: `{"entities": {}}`}
		f := NewFacade(provider, time.Second, nil)

		_, err := f.ExtractEntities(context.Background(), "capacity of Terminal 1", ExtractRequest{
			TargetTypes: []string{"time_period"},
			Existing:    map[string]string{"terminal": "Terminal 1"},
		}, time.Second)
		assert.NoError(t, err)
		assert.Contains(t, provider.prompts[0], "terminal: Terminal 1 (do NOT re-extract)")
	})
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("deadline maps to timeout", func(t *testing.T) {
		provider := &stubProvider{err: context.DeadlineExceeded}
		f := NewFacade(provider, time.Second, nil)

		_, err := f.ClassifyIntent(context.Background(), "capacity", nil)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("transport failure maps to unavailable", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("connection refused")}
		f := NewFacade(provider, time.Second, nil)

		_, err := f.ProcessQuery(context.Background(), "anything")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

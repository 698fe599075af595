package intent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/store"
)

type Config struct {
	UsePatternMatching    bool
	UseLLMClassification  bool
	EnableFallbackIntents bool
	ConfidenceThreshold   float64
}

func DefaultConfig() Config {
	return Config{
		UsePatternMatching:    true,
		UseLLMClassification:  true,
		EnableFallbackIntents: true,
		ConfidenceThreshold:   0.7,
	}
}

// Result is the classification outcome. Candidates lists every distinct
// pattern hit so the disambiguator can compare the top two.
type Result struct {
	Intent     string
	SubType    string
	Confidence float64
	Method     string
	Candidates []store.IntentCandidate
}

// SubPattern maps a nested regex to a sub-type label.
type SubPattern struct {
	Pattern string
	SubType string
}

type subPattern struct {
	re      *regexp.Regexp
	subType string
}

type patternEntry struct {
	re          *regexp.Regexp
	intent      string
	subPatterns []subPattern
	learned     bool
}

// LLMClassifier is the slice of the LLM facade the classifier needs.
type LLMClassifier interface {
	ClassifyIntent(ctx context.Context, text string, sessionContext map[string]any) (*llm.IntentResult, error)
}

// Classifier is the hybrid pattern + LLM intent classifier. Patterns are
// evaluated in insertion order with the latest match winning, so rules learned
// from feedback override the builtins they refine.
type Classifier struct {
	mu       sync.RWMutex
	cfg      Config
	patterns []patternEntry
	facade   LLMClassifier
	logger   logger.ILogger
}

func NewClassifier(cfg Config, facade LLMClassifier, log logger.ILogger) *Classifier {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Classifier{cfg: cfg, facade: facade, logger: log}
	c.registerBuiltins()
	return c
}

const patternConfidence = 0.85

func (c *Classifier) registerBuiltins() {
	c.mustRegister(store.IntentCapacityQuery,
		`(?i)\b(capacity|utili[sz]ation|peak (hour|demand)|how many (flights|aircraft|passengers|movements))\b`,
		[]SubPattern{
			{`(?i)\b(yesterday|last|previous|past|historical)\b`, "historical"},
			{`(?i)\b(tomorrow|next|forecast|projected)\b`, "forecast"},
		})
	c.mustRegister(store.IntentMaintenanceQuery,
		`(?i)\b(maintenance|repair|out of service|closed for)\b`,
		[]SubPattern{
			{`(?i)\b(schedule|planned|upcoming)\b`, "schedule"},
			{`(?i)\b(impact|affect|effect)\b`, "impact"},
		})
	c.mustRegister(store.IntentInfrastructureQuery,
		`(?i)\b(how many (stands|piers|terminals)|list (the )?(stands|piers|terminals)|layout|infrastructure)\b`, nil)
	c.mustRegister(store.IntentStandStatusQuery,
		`(?i)\bstand\b.*\b(status|available|availability|occupied|free|open)\b|\b(status|availability) of\b.*\bstand\b`, nil)
	c.mustRegister(store.IntentScenarioQuery,
		`(?i)\b(what if|scenario|suppose|hypothetical|simulate)\b`, nil)
	c.mustRegister(store.IntentComparisonQuery,
		`(?i)\b(compare|versus|difference between)\b|\bvs\.?\b`, nil)
}

func (c *Classifier) mustRegister(intentName, pattern string, subs []SubPattern) {
	if err := c.addPattern(intentName, pattern, subs, false); err != nil {
		panic(err)
	}
}

// AddIntentPattern appends a learned pattern to the table. The feedback
// learner is the only caller; a pattern that fails to compile is rejected so
// corrupt rules never enter the active table.
func (c *Classifier) AddIntentPattern(intentName, pattern string, subs []SubPattern) error {
	return c.addPattern(intentName, pattern, subs, true)
}

func (c *Classifier) addPattern(intentName, pattern string, subs []SubPattern, learned bool) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("intent pattern %q: %w", pattern, err)
	}
	entry := patternEntry{re: re, intent: intentName, learned: learned}
	for _, s := range subs {
		subRe, err := regexp.Compile(s.Pattern)
		if err != nil {
			return fmt.Errorf("sub pattern %q: %w", s.Pattern, err)
		}
		entry.subPatterns = append(entry.subPatterns, subPattern{re: subRe, subType: s.SubType})
	}
	c.mu.Lock()
	c.patterns = append(c.patterns, entry)
	c.mu.Unlock()
	return nil
}

// ClassifyIntent runs the pattern phase, then the LLM phase, then the
// fallback, in that order.
func (c *Classifier) ClassifyIntent(ctx context.Context, text string, sessionContext map[string]any) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Intent: store.IntentUnknown, Confidence: 0, Method: store.MethodFallback}
	}

	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	if cfg.UsePatternMatching {
		if result, ok := c.classifyByPattern(text); ok {
			return result
		}
	}

	if cfg.UseLLMClassification && c.facade != nil {
		if result, ok := c.classifyByLLM(ctx, text, sessionContext, cfg.ConfidenceThreshold); ok {
			return result
		}
	}

	if cfg.EnableFallbackIntents {
		return Result{Intent: store.IntentUnknown, Confidence: 0.3, Method: store.MethodFallback}
	}
	return Result{Intent: store.IntentUnknown, Confidence: 0, Method: store.MethodFallback}
}

func (c *Classifier) classifyByPattern(text string) (Result, bool) {
	c.mu.RLock()
	patterns := c.patterns
	c.mu.RUnlock()

	var winner *patternEntry
	seen := make(map[string]bool)
	var candidates []store.IntentCandidate

	for i := range patterns {
		entry := &patterns[i]
		if !entry.re.MatchString(text) {
			continue
		}
		// Latest registration wins, so learned knowledge overrides defaults
		winner = entry
		if !seen[entry.intent] {
			seen[entry.intent] = true
			candidates = append(candidates, store.IntentCandidate{Intent: entry.intent, Confidence: patternConfidence})
		}
	}
	if winner == nil {
		return Result{}, false
	}

	// Equal-confidence candidates order by lexicographically smallest name
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Intent < candidates[j].Intent
	})

	result := Result{
		Intent:     winner.intent,
		Confidence: patternConfidence,
		Method:     store.MethodPattern,
		Candidates: candidates,
	}
	for _, sub := range winner.subPatterns {
		if sub.re.MatchString(text) {
			result.SubType = sub.subType
			break
		}
	}
	return result, true
}

func (c *Classifier) classifyByLLM(ctx context.Context, text string, sessionContext map[string]any, threshold float64) (Result, bool) {
	classified, err := c.facade.ClassifyIntent(ctx, text, sessionContext)
	if err != nil {
		c.logger.Warn("IntentClassifier", "LLM classification failed, continuing to fallback", map[string]interface{}{"error": err.Error()})
		return Result{}, false
	}
	if classified.Confidence < threshold {
		c.logger.Debug("IntentClassifier", "LLM confidence below threshold", map[string]interface{}{
			"intent":     classified.Intent,
			"confidence": classified.Confidence,
		})
		return Result{}, false
	}
	return Result{
		Intent:     classified.Intent,
		SubType:    classified.SubType,
		Confidence: classified.Confidence,
		Method:     store.MethodLLM,
		Candidates: []store.IntentCandidate{{Intent: classified.Intent, Confidence: classified.Confidence}},
	}, true
}

// UpdateConfig swaps the tunables at runtime.
func (c *Classifier) UpdateConfig(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// PatternCount reports builtin+learned table size, used by metrics.
func (c *Classifier) PatternCount() (builtin, learned int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.patterns {
		if p.learned {
			learned++
		} else {
			builtin++
		}
	}
	return builtin, learned
}

package variation

import (
	"regexp"
	"strings"
	"sync"

	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/pkg/store"
)

// Step names recorded in the normalization trace
const (
	StepLowercaseTrim = "lowercase_trim"
	StepColloquial    = "colloquial"
	StepAbbreviation  = "abbreviation"
	StepSynonym       = "synonym"
	StepWhitespace    = "whitespace"
)

type Config struct {
	MinFeedbackConfidence float64
}

func DefaultConfig() Config {
	return Config{MinFeedbackConfidence: 0.7}
}

type rule struct {
	from string
	to   string
	re   *regexp.Regexp
}

func newRule(from, to string) rule {
	return rule{
		from: from,
		to:   to,
		re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(from) + `\b`),
	}
}

// Handler canonicalizes query surface forms. The transform order is fixed:
// lowercase/trim, colloquial expansion, abbreviation expansion, synonym
// canonicalization, whitespace collapse. Learned rules are appended by the
// feedback learner; a builtin rule always wins on a `from` collision.
type Handler struct {
	mu                sync.RWMutex
	cfg               Config
	colloquial        []rule
	abbreviations     []abbrevRule
	synonyms          []rule
	learnedColloquial []rule
	learnedSynonyms   []rule
	logger            logger.ILogger
}

// abbrevRule expands a short form via regex so numbered forms like "t1" can
// produce their canonical expansion with a capture.
type abbrevRule struct {
	re          *regexp.Regexp
	replacement string
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func NewHandler(cfg Config, log logger.ILogger) *Handler {
	if cfg.MinFeedbackConfidence <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{
		cfg:           cfg,
		colloquial:    builtinColloquial(),
		abbreviations: builtinAbbreviations(),
		synonyms:      builtinSynonyms(),
		logger:        log,
	}
}

func builtinColloquial() []rule {
	pairs := [][2]string{
		{"whats", "what is"},
		{"what's", "what is"},
		{"hows", "how is"},
		{"how's", "how is"},
		{"wheres", "where is"},
		{"where's", "where is"},
		{"whens", "when is"},
		{"when's", "when is"},
		{"whos", "who is"},
		{"who's", "who is"},
		{"isnt", "is not"},
		{"arent", "are not"},
		{"dont", "do not"},
		{"doesnt", "does not"},
		{"cant", "cannot"},
		{"wont", "will not"},
		{"wanna", "want to"},
		{"gonna", "going to"},
		{"lemme", "let me"},
	}
	rules := make([]rule, len(pairs))
	for i, p := range pairs {
		rules[i] = newRule(p[0], p[1])
	}
	return rules
}

func builtinAbbreviations() []abbrevRule {
	return []abbrevRule{
		{regexp.MustCompile(`\bt(\d+)\b`), "Terminal $1"},
		{regexp.MustCompile(`\bterm (\d+)\b`), "Terminal $1"},
		// Keeps the canonical capitalized form stable across repeated passes
		{regexp.MustCompile(`\bterminal (\d+)\b`), "Terminal $1"},
		{regexp.MustCompile(`\bwb\b`), "wide-body"},
		{regexp.MustCompile(`\bnb\b`), "narrow-body"},
		{regexp.MustCompile(`\bpax\b`), "passengers"},
		{regexp.MustCompile(`\bmaint\b`), "maintenance"},
		{regexp.MustCompile(`\bintl\b`), "international"},
		{regexp.MustCompile(`\ba/c\b`), "aircraft"},
	}
}

func builtinSynonyms() []rule {
	pairs := [][2]string{
		{"gates", "stands"},
		{"gate", "stand"},
		{"concourses", "piers"},
		{"concourse", "pier"},
		{"parking position", "stand"},
		{"parking positions", "stands"},
		{"throughput", "capacity"},
		{"repairs", "maintenance"},
		{"repair work", "maintenance"},
	}
	rules := make([]rule, len(pairs))
	for i, p := range pairs {
		rules[i] = newRule(p[0], p[1])
	}
	return rules
}

// ProcessQuery normalizes one query, returning the canonical text plus a
// trace of which steps changed it.
func (h *Handler) ProcessQuery(text string) store.NormalizedQuery {
	h.mu.RLock()
	defer h.mu.RUnlock()

	original := strings.TrimSpace(text)
	result := store.NormalizedQuery{Text: original, Confidence: 1.0}
	if original == "" {
		return result
	}

	current := original

	// (a) lowercase + trim
	next := strings.ToLower(current)
	current = h.recordStep(&result, StepLowercaseTrim, current, next)

	// (b) colloquial contraction expansion
	next = applyRules(current, h.colloquial)
	next = applyRules(next, h.learnedColloquial)
	current = h.recordStep(&result, StepColloquial, current, next)

	// (c) abbreviation expansion
	next = current
	for _, a := range h.abbreviations {
		next = a.re.ReplaceAllString(next, a.replacement)
	}
	current = h.recordStep(&result, StepAbbreviation, current, next)

	// (d) synonym canonicalization
	next = applyRules(current, h.synonyms)
	next = applyRules(next, h.learnedSynonyms)
	current = h.recordStep(&result, StepSynonym, current, next)

	// (e) whitespace collapse
	next = strings.TrimSpace(whitespaceRe.ReplaceAllString(current, " "))
	current = h.recordStep(&result, StepWhitespace, current, next)

	result.Text = current
	result.WasTransformed = current != original
	result.Confidence = confidenceFor(len(result.Steps))
	return result
}

func (h *Handler) recordStep(result *store.NormalizedQuery, step, before, after string) string {
	if before != after {
		result.Steps = append(result.Steps, store.NormalizationStep{Step: step, Before: before, After: after})
	}
	return after
}

func applyRules(text string, rules []rule) string {
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.to)
	}
	return text
}

// confidenceFor is 1.0 for untouched text, 0.9 for a single deterministic
// transform, minus 0.05 per additional step, floored at 0.6.
func confidenceFor(steps int) float64 {
	if steps == 0 {
		return 1.0
	}
	c := 0.9 - 0.05*float64(steps-1)
	if c < 0.6 {
		c = 0.6
	}
	return c
}

// AddColloquialMapping appends a learned colloquial expansion unless a builtin
// already claims the same surface form.
func (h *Handler) AddColloquialMapping(from, to string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasBuiltinFrom(from) || hasFrom(h.learnedColloquial, from) {
		return
	}
	h.learnedColloquial = append(h.learnedColloquial, newRule(from, to))
	h.logger.Info("VariationHandler", "Learned colloquial mapping", map[string]interface{}{"from": from, "to": to})
}

// AddSynonym appends a learned synonym rewrite unless a builtin already
// claims the same surface form.
func (h *Handler) AddSynonym(from, to string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasBuiltinFrom(from) || hasFrom(h.learnedSynonyms, from) {
		return
	}
	h.learnedSynonyms = append(h.learnedSynonyms, newRule(from, to))
	h.logger.Info("VariationHandler", "Learned synonym", map[string]interface{}{"from": from, "to": to})
}

// ApplyLearnedPatterns promotes confident variation patterns in bulk.
func (h *Handler) ApplyLearnedPatterns(patterns []store.VariationPattern) int {
	h.mu.RLock()
	minConfidence := h.cfg.MinFeedbackConfidence
	h.mu.RUnlock()

	applied := 0
	for _, p := range patterns {
		if p.Confidence < minConfidence {
			continue
		}
		switch p.Kind {
		case store.VariationColloquial:
			h.AddColloquialMapping(p.From, p.To)
			applied++
		case store.VariationSynonym:
			h.AddSynonym(p.From, p.To)
			applied++
		}
	}
	return applied
}

// UpdateConfig swaps the tunables at runtime.
func (h *Handler) UpdateConfig(cfg Config) {
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

func (h *Handler) hasBuiltinFrom(from string) bool {
	if hasFrom(h.colloquial, from) || hasFrom(h.synonyms, from) {
		return true
	}
	return false
}

func hasFrom(rules []rule, from string) bool {
	for _, r := range rules {
		if r.from == from {
			return true
		}
	}
	return false
}

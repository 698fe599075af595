package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding/intent"
	"airport-capacity-be/pkg/understanding/variation"
)

type Config struct {
	EntityConfidenceThreshold float64
	UseContextualParsing      bool
	EnableEntityNormalization bool
	EntityExtractionTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		EntityConfidenceThreshold: 0.6,
		UseContextualParsing:      true,
		EnableEntityNormalization: true,
		EntityExtractionTimeout:   5 * time.Second,
	}
}

const (
	patternEntityConfidence    = 0.9
	contextualEntityConfidence = 0.7
)

var historicalRe = regexp.MustCompile(`(?i)\b(yesterday|last|previous|past)\b`)

// LLMExtractor is the slice of the LLM facade the parser needs.
type LLMExtractor interface {
	ExtractEntities(ctx context.Context, text string, req llm.ExtractRequest, timeout time.Duration) (map[string]llm.EntityValue, error)
}

// Parser composes normalization, classification, two-phase entity extraction,
// and parameter binding into one ParsedQuery. Pattern-sourced entities are
// authoritative: the LLM phase only fills types the patterns missed.
type Parser struct {
	mu         sync.RWMutex
	cfg        Config
	defs       []EntityDefinition
	schemas    map[string]store.ParameterSchema
	variation  *variation.Handler
	classifier *intent.Classifier
	facade     LLMExtractor
	logger     logger.ILogger
}

func NewParser(cfg Config, vh *variation.Handler, cls *intent.Classifier, facade LLMExtractor, log logger.ILogger) *Parser {
	if cfg.EntityConfidenceThreshold <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Parser{
		cfg:        cfg,
		defs:       builtinEntityDefinitions(),
		schemas:    defaultSchemas(),
		variation:  vh,
		classifier: cls,
		facade:     facade,
		logger:     log,
	}
}

// ParseQuery runs the full chain for one query. The normalized record is
// returned alongside the parse so callers can surface the trace.
func (p *Parser) ParseQuery(ctx context.Context, queryID, text string, sessionContext map[string]any) (*store.ParsedQuery, store.NormalizedQuery) {
	normalized := p.variation.ProcessQuery(text)
	normalized.QueryID = queryID

	classified := p.classifier.ClassifyIntent(ctx, normalized.Text, sessionContext)

	parsed := &store.ParsedQuery{
		QueryID:          queryID,
		Intent:           classified.Intent,
		SubType:          classified.SubType,
		IntentConfidence: classified.Confidence,
		Method:           classified.Method,
		Entities:         make(map[string]string),
		EntityConfidence: make(map[string]float64),
		Parameters:       make(map[string]any),
		PossibleIntents:  classified.Candidates,
	}

	p.mu.RLock()
	cfg := p.cfg
	schema := p.schemas[parsed.Intent]
	p.mu.RUnlock()

	// Phase 1: deterministic pattern extraction
	p.extractByPattern(normalized.Text, parsed, cfg)

	// Phase 2: LLM fills schema types the patterns missed
	p.extractByLLM(ctx, normalized.Text, schema, parsed, sessionContext, cfg)

	// Bind entities to the intent's parameter schema
	p.bindParameters(normalized.Text, schema, parsed)

	// Contextual inheritance from session memory
	if cfg.UseContextualParsing && sessionContext != nil {
		p.inheritFromContext(parsed, schema, sessionContext)
	}

	// Derived flags
	if parsed.Intent == store.IntentCapacityQuery {
		if period, ok := parsed.Entities[store.EntityTimePeriod]; ok && historicalRe.MatchString(period) {
			parsed.Parameters["historical"] = true
		}
	}

	return parsed, normalized
}

func (p *Parser) extractByPattern(text string, parsed *store.ParsedQuery, cfg Config) {
	p.mu.RLock()
	defs := p.defs
	p.mu.RUnlock()

	for _, def := range defs {
		if _, found := parsed.Entities[def.Type]; found {
			continue
		}
		for _, re := range def.Patterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			value := m[0]
			if len(m) > 1 && m[1] != "" {
				value = m[1]
			}
			if cfg.EnableEntityNormalization && def.Normalize != nil {
				value = def.Normalize(value)
			}
			parsed.Entities[def.Type] = value
			parsed.EntityConfidence[def.Type] = patternEntityConfidence
			break
		}
	}
}

func (p *Parser) extractByLLM(ctx context.Context, text string, schema store.ParameterSchema, parsed *store.ParsedQuery, sessionContext map[string]any, cfg Config) {
	if p.facade == nil {
		return
	}

	var targets []string
	for _, param := range schema {
		if param.Type == store.TypeBoolean {
			continue
		}
		if _, found := parsed.Entities[param.Type]; found {
			continue
		}
		targets = append(targets, param.Type)
	}
	if len(targets) == 0 {
		return
	}

	extracted, err := p.facade.ExtractEntities(ctx, text, llm.ExtractRequest{
		Intent:         parsed.Intent,
		TargetTypes:    targets,
		Existing:       parsed.Entities,
		SessionContext: sessionContext,
	}, cfg.EntityExtractionTimeout)
	if err != nil {
		p.logger.Warn("QueryParser", "LLM entity extraction failed, pattern results stand", map[string]interface{}{"error": err.Error()})
		return
	}

	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}

	for entityType, ev := range extracted {
		// Pattern results are authoritative and unknown types are discarded
		if !targetSet[entityType] {
			continue
		}
		if _, found := parsed.Entities[entityType]; found {
			continue
		}
		if ev.Confidence < cfg.EntityConfidenceThreshold || ev.Value == "" {
			continue
		}
		value := ev.Value
		if cfg.EnableEntityNormalization {
			value = p.normalizeKnownType(entityType, value)
		}
		parsed.Entities[entityType] = value
		parsed.EntityConfidence[entityType] = ev.Confidence
	}
}

func (p *Parser) normalizeKnownType(entityType, value string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, def := range p.defs {
		if def.Type == entityType && def.Normalize != nil {
			return def.Normalize(value)
		}
	}
	return value
}

func (p *Parser) bindParameters(text string, schema store.ParameterSchema, parsed *store.ParsedQuery) {
	for _, param := range schema {
		if value, found := parsed.Entities[param.Type]; found && param.Type != store.TypeBoolean {
			parsed.Parameters[param.Name] = value
			continue
		}
		if param.Type == store.TypeBoolean {
			parsed.Parameters[param.Name] = booleanProbe(param.Name, text)
			continue
		}
		if param.Required {
			parsed.MissingRequired = append(parsed.MissingRequired, param.Name)
		}
	}
}

// booleanProbe tests a keyword regex derived from the parameter name against
// the normalized query.
func booleanProbe(name, text string) bool {
	tokens := strings.Split(name, "_")
	keyword := tokens[len(tokens)-1]
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func (p *Parser) inheritFromContext(parsed *store.ParsedQuery, schema store.ParameterSchema, sessionContext map[string]any) {
	inherit := func(entityType, contextField, paramName string) {
		if _, found := parsed.Entities[entityType]; found {
			return
		}
		raw, ok := sessionContext[contextField]
		if !ok {
			return
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			return
		}
		parsed.Entities[entityType] = value
		parsed.EntityConfidence[entityType] = contextualEntityConfidence
		if parsed.Contextual == nil {
			parsed.Contextual = make(map[string]bool)
		}
		parsed.Contextual[entityType] = true
		parsed.Parameters[paramName] = value
		parsed.MissingRequired = removeString(parsed.MissingRequired, paramName)
	}

	switch parsed.Intent {
	case store.IntentCapacityQuery:
		inherit(store.EntityTerminal, store.ContextLastTerminal, "terminal")
	case store.IntentMaintenanceQuery:
		inherit(store.EntityStand, store.ContextLastStand, "stand")
	}
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// AddEntityDefinition appends a learned definition to the registry. The
// feedback learner promotes entity patterns through here with an identity
// normalizer.
func (p *Parser) AddEntityDefinition(name, entityType string, patterns []string, normalize Normalizer) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("entity pattern %q: %w", pat, err)
		}
		compiled = append(compiled, re)
	}
	if normalize == nil {
		normalize = identity
	}
	p.mu.Lock()
	p.defs = append(p.defs, EntityDefinition{
		Name:      name,
		Type:      entityType,
		Patterns:  compiled,
		Normalize: normalize,
		Learned:   true,
	})
	p.mu.Unlock()
	return nil
}

// UpdateParameterSchema replaces an intent's schema wholesale.
func (p *Parser) UpdateParameterSchema(intentName string, schema store.ParameterSchema) {
	p.mu.Lock()
	p.schemas[intentName] = schema
	p.mu.Unlock()
}

// Schema returns the parameter schema for an intent.
func (p *Parser) Schema(intentName string) store.ParameterSchema {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.schemas[intentName]
}

// UpdateConfig swaps the tunables at runtime.
func (p *Parser) UpdateConfig(cfg Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// EntityTypes lists every type known to the registry.
func (p *Parser) EntityTypes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool)
	var types []string
	for _, def := range p.defs {
		if !seen[def.Type] {
			seen[def.Type] = true
			types = append(types, def.Type)
		}
	}
	return types
}

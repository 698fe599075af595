package suggestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/memory"
	"airport-capacity-be/pkg/store"
)

type Config struct {
	MaxSuggestions            int
	MinConfidenceThreshold    float64
	PrioritizeSimilarEntities bool
	UseLLMGeneration          bool
	StoreSuggestions          bool
}

func DefaultConfig() Config {
	return Config{
		MaxSuggestions:            3,
		MinConfidenceThreshold:    0.6,
		PrioritizeSimilarEntities: true,
		UseLLMGeneration:          true,
		StoreSuggestions:          true,
	}
}

const (
	maxStoredSuggestions = 20
	maxUsageHistory      = 10

	templateConfidence = 0.8
	relatedConfidence  = 0.7
	contextConfidence  = 0.65
	generalConfidence  = 0.6
)

// Metrics counts what the generator did over its lifetime.
type Metrics struct {
	TotalSuggestionsGenerated int     `json:"totalSuggestionsGenerated"`
	TotalSuggestionsUsed      int     `json:"totalSuggestionsUsed"`
	SuggestionUsageRate       float64 `json:"suggestionUsageRate"`
}

// LLMGenerator is the facade slice used for personalized suggestions.
type LLMGenerator interface {
	ProcessQuery(ctx context.Context, prompt string) (string, error)
}

// SessionMemory is the working-memory slice the generator reads and writes.
type SessionMemory interface {
	StoreSessionData(sessionID, key string, value any)
	GetSessionData(sessionID, key string, out any) bool
	GetEntityMentions(sessionID string, limit int) []store.EntityMention
}

// Generator produces ranked follow-up questions after a clear parse and
// tracks which of them users actually click.
type Generator struct {
	mu      sync.RWMutex
	cfg     Config
	facade  LLMGenerator
	memory  SessionMemory
	logger  logger.ILogger
	metrics Metrics
}

func NewGenerator(cfg Config, facade LLMGenerator, mem SessionMemory, log logger.ILogger) *Generator {
	if cfg.MaxSuggestions <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Generator{cfg: cfg, facade: facade, memory: mem, logger: log}
}

// GenerateSuggestions walks the template, context, and LLM sources in order
// and returns at most MaxSuggestions ranked follow-ups. Unknown intents get
// no suggestions. Never returns an error; a dead LLM just means fewer
// candidates.
func (g *Generator) GenerateSuggestions(ctx context.Context, parsed *store.ParsedQuery, sessionID string) []store.Suggestion {
	g.mu.RLock()
	cfg := g.cfg
	g.mu.RUnlock()

	if parsed == nil || parsed.Intent == "" || parsed.Intent == store.IntentUnknown {
		return nil
	}

	pool := g.collectCandidates(ctx, parsed, sessionID, cfg)
	selected := rank(pool, cfg)

	now := time.Now()
	for i := range selected {
		selected[i].ID = uuid.NewString()
		selected[i].QueryID = parsed.QueryID
		selected[i].Used = false
		selected[i].CreatedAt = now
	}

	g.mu.Lock()
	g.metrics.TotalSuggestionsGenerated += len(selected)
	g.metrics.SuggestionUsageRate = usageRate(g.metrics)
	g.mu.Unlock()

	if cfg.StoreSuggestions && sessionID != "" && g.memory != nil && len(selected) > 0 {
		g.persist(sessionID, selected)
	}
	return selected
}

func (g *Generator) collectCandidates(ctx context.Context, parsed *store.ParsedQuery, sessionID string, cfg Config) []store.Suggestion {
	var pool []store.Suggestion
	seen := make(map[string]bool)
	add := func(s store.Suggestion) {
		key := strings.ToLower(strings.TrimSpace(s.Text))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		pool = append(pool, s)
	}

	// 1. entity templates for every bound entity
	for entityType := range parsed.Entities {
		for _, tpl := range entityTemplates[entityType] {
			add(store.Suggestion{
				Type:       store.SuggestionEntity,
				Text:       fillTemplate(tpl, parsed.Entities),
				Source:     store.SourceTemplate,
				Confidence: templateConfidence,
			})
		}
	}
	if len(parsed.Entities) >= 2 {
		if text := crossEntityText(parsed.Entities); text != "" {
			add(store.Suggestion{
				Type:       store.SuggestionRelationship,
				Text:       text,
				Source:     store.SourceTemplate,
				Confidence: relatedConfidence,
			})
		}
	}

	// 2. intent templates plus the static relation map
	for _, tpl := range intentTemplates[parsed.Intent] {
		add(store.Suggestion{
			Type:       store.SuggestionIntent,
			Text:       fillTemplate(tpl, parsed.Entities),
			Source:     store.SourceTemplate,
			Confidence: templateConfidence,
		})
	}
	for _, related := range relatedIntents[parsed.Intent] {
		if text := relatedIntentTexts[related]; text != "" {
			add(store.Suggestion{
				Type:       store.SuggestionIntent,
				Text:       text,
				Source:     store.SourceTemplate,
				Confidence: relatedConfidence,
			})
		}
	}

	// 3. relationship templates against recently mentioned entities
	if sessionID != "" && g.memory != nil {
		for _, mention := range g.memory.GetEntityMentions(sessionID, 5) {
			if current, ok := parsed.Entities[mention.Type]; ok && current == mention.Value {
				continue
			}
			for entityType, value := range parsed.Entities {
				if entityType == mention.Type && value != mention.Value {
					add(store.Suggestion{
						Type:       store.SuggestionRelationship,
						Text:       fmt.Sprintf("Compare %s with %s", value, mention.Value),
						Source:     store.SourceContext,
						Confidence: contextConfidence,
					})
				}
			}
		}
	}

	// 4. general pool, at most two
	generalAdded := 0
	for _, text := range generalTemplates {
		if generalAdded >= 2 {
			break
		}
		before := len(pool)
		add(store.Suggestion{
			Type:       store.SuggestionGeneral,
			Text:       text,
			Source:     store.SourceTemplate,
			Confidence: generalConfidence,
		})
		if len(pool) > before {
			generalAdded++
		}
	}

	// 5. personalized LLM fill
	if cfg.UseLLMGeneration && g.facade != nil && len(pool) < cfg.MaxSuggestions*2 {
		for _, s := range g.generateViaLLM(ctx, parsed, sessionID, cfg) {
			add(s)
		}
	}
	return pool
}

func crossEntityText(entities map[string]string) string {
	types := make([]string, 0, len(entities))
	for entityType := range entities {
		types = append(types, entityType)
	}
	sort.Strings(types)
	first, second := entities[types[0]], entities[types[1]]
	if first == "" || second == "" {
		return ""
	}
	return fmt.Sprintf("How does %s relate to %s?", first, second)
}

func (g *Generator) generateViaLLM(ctx context.Context, parsed *store.ParsedQuery, sessionID string, cfg Config) []store.Suggestion {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You suggest follow-up questions for an airport capacity planning assistant.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<current_query>\n")
	prompt.WriteString(fmt.Sprintf("intent: %s\n", parsed.Intent))
	for entityType, value := range parsed.Entities {
		prompt.WriteString(fmt.Sprintf("%s: %s\n", entityType, value))
	}
	prompt.WriteString("</current_query>\n")

	if sessionID != "" && g.memory != nil {
		mentions := g.memory.GetEntityMentions(sessionID, 5)
		if len(mentions) > 0 {
			prompt.WriteString("\n<recent_entities>\n")
			for _, m := range mentions {
				prompt.WriteString(fmt.Sprintf("%s: %s\n", m.Type, m.Value))
			}
			prompt.WriteString("</recent_entities>\n")
		}
	}

	prompt.WriteString("\n<output_format>\n")
	prompt.WriteString("Respond with ONLY a valid JSON array:\n")
	prompt.WriteString(`[{"text": "...", "type": "entity|intent|relationship|general", "confidence": 0.0}]`)
	prompt.WriteString("\n</output_format>")

	raw, err := g.facade.ProcessQuery(ctx, prompt.String())
	if err != nil {
		g.logger.Warn("SuggestionGenerator", "LLM suggestion generation failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	payload := llm.ExtractJSON(raw)
	if payload == "" {
		return nil
	}

	var decoded []struct {
		Text       string  `json:"text"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		g.logger.Warn("SuggestionGenerator", "LLM suggestion payload malformed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var out []store.Suggestion
	for _, item := range decoded {
		if item.Text == "" {
			continue
		}
		suggestionType := item.Type
		switch suggestionType {
		case store.SuggestionEntity, store.SuggestionIntent, store.SuggestionRelationship, store.SuggestionGeneral:
		default:
			suggestionType = store.SuggestionGeneral
		}
		conf := item.Confidence
		if conf <= 0 || conf > 1 {
			conf = relatedConfidence
		}
		out = append(out, store.Suggestion{
			Type:       suggestionType,
			Text:       item.Text,
			Source:     store.SourceLLM,
			Confidence: conf,
		})
	}
	return out
}

var sourceRank = map[string]int{
	store.SourceLLM:      3,
	store.SourceTemplate: 2,
	store.SourceContext:  1,
}

// rank filters by confidence, orders the pool, then selects with a per-type
// diversity cap of two. The cap holds even when it leaves the selection
// short of MaxSuggestions.
func rank(pool []store.Suggestion, cfg Config) []store.Suggestion {
	filtered := pool[:0]
	for _, s := range pool {
		if s.Confidence >= cfg.MinConfidenceThreshold {
			filtered = append(filtered, s)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Confidence != filtered[j].Confidence {
			return filtered[i].Confidence > filtered[j].Confidence
		}
		if cfg.PrioritizeSimilarEntities {
			iEntity := filtered[i].Type == store.SuggestionEntity
			jEntity := filtered[j].Type == store.SuggestionEntity
			if iEntity != jEntity {
				return iEntity
			}
		}
		return sourceRank[filtered[i].Source] > sourceRank[filtered[j].Source]
	})

	var selected []store.Suggestion
	perType := make(map[string]int)
	for _, s := range filtered {
		if len(selected) >= cfg.MaxSuggestions {
			break
		}
		if perType[s.Type] >= 2 {
			continue
		}
		perType[s.Type]++
		selected = append(selected, s)
	}
	return selected
}

func (g *Generator) persist(sessionID string, fresh []store.Suggestion) {
	var existing []store.Suggestion
	g.memory.GetSessionData(sessionID, memory.KeySuggestions, &existing)
	combined := append(append([]store.Suggestion{}, fresh...), existing...)
	if len(combined) > maxStoredSuggestions {
		combined = combined[:maxStoredSuggestions]
	}
	g.memory.StoreSessionData(sessionID, memory.KeySuggestions, combined)
}

// TrackSuggestionUsage flips a stored suggestion to used and prepends it to
// the session's usage history. Unknown ids return false. A second call for
// the same id is a no-op that still returns true.
func (g *Generator) TrackSuggestionUsage(suggestionID, sessionID string) bool {
	if g.memory == nil || sessionID == "" || suggestionID == "" {
		return false
	}

	var suggestions []store.Suggestion
	if !g.memory.GetSessionData(sessionID, memory.KeySuggestions, &suggestions) {
		return false
	}

	for i := range suggestions {
		if suggestions[i].ID != suggestionID {
			continue
		}
		if suggestions[i].Used {
			return true
		}
		now := time.Now()
		suggestions[i].Used = true
		suggestions[i].UsedAt = &now
		g.memory.StoreSessionData(sessionID, memory.KeySuggestions, suggestions)

		var history []store.Suggestion
		g.memory.GetSessionData(sessionID, memory.KeySuggestionHistory, &history)
		history = append([]store.Suggestion{suggestions[i]}, history...)
		if len(history) > maxUsageHistory {
			history = history[:maxUsageHistory]
		}
		g.memory.StoreSessionData(sessionID, memory.KeySuggestionHistory, history)

		g.mu.Lock()
		g.metrics.TotalSuggestionsUsed++
		g.metrics.SuggestionUsageRate = usageRate(g.metrics)
		g.mu.Unlock()
		return true
	}
	return false
}

func usageRate(m Metrics) float64 {
	if m.TotalSuggestionsGenerated == 0 {
		return 0
	}
	return float64(m.TotalSuggestionsUsed) / float64(m.TotalSuggestionsGenerated)
}

// Metrics returns a snapshot of the usage counters.
func (g *Generator) Metrics() Metrics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metrics
}

// UpdateConfig swaps the tunables at runtime.
func (g *Generator) UpdateConfig(cfg Config) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
}

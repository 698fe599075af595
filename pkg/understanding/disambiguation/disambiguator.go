package disambiguation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/store"
)

type Config struct {
	IntentConfidenceThreshold float64
	EntityConfidenceThreshold float64
	MaxDisambiguationOptions  int
	StoreDisambiguationHistory bool
}

func DefaultConfig() Config {
	return Config{
		IntentConfidenceThreshold:  0.7,
		EntityConfidenceThreshold:  0.6,
		MaxDisambiguationOptions:   3,
		StoreDisambiguationHistory: true,
	}
}

// SchemaSource exposes the parser's per-intent parameter schemas so the
// missing-entity check derives from the same required list the parser binds.
type SchemaSource interface {
	Schema(intentName string) store.ParameterSchema
}

// OptionGenerator is the slice of the LLM facade used to draft options.
type OptionGenerator interface {
	ProcessQuery(ctx context.Context, prompt string) (string, error)
}

// SessionMemory is the working-memory slice the disambiguator needs for its
// side effects.
type SessionMemory interface {
	StoreSessionData(sessionID, key string, value any)
	GetSessionData(sessionID, key string, out any) bool
	GetSessionContext(sessionID string) map[string]any
	UpdateSessionContextField(sessionID, field string, value any)
}

// keyword families; a query matching two or more is intent-ambiguous
var keywordFamilies = map[string]*regexp.Regexp{
	"show":        regexp.MustCompile(`(?i)\b(show|display|list)\b`),
	"status":      regexp.MustCompile(`(?i)\b(status|condition)\b`),
	"maintenance": regexp.MustCompile(`(?i)\b(maintenance|repair)\b`),
	"capacity":    regexp.MustCompile(`(?i)\b(capacity|throughput)\b`),
}

var relationshipRe = regexp.MustCompile(`(?i)\b(between|impact|compare)\b`)

// generic surface references per entity type
var surfaceReferences = map[string]*regexp.Regexp{
	store.EntityTerminal:   regexp.MustCompile(`(?i)\bterminal\b`),
	store.EntityStand:      regexp.MustCompile(`(?i)\b(stand|gate)\b`),
	store.EntityPier:       regexp.MustCompile(`(?i)\b(pier|concourse)\b`),
	store.EntityTimePeriod: regexp.MustCompile(`(?i)\bwhen\b`),
}

// Disambiguator detects intent, entity, and relationship ambiguity and turns
// user selections into clarified parses. Option drafting goes through the LLM
// facade but always degrades to the deterministic tables, so a report is
// usable even when the model is down.
type Disambiguator struct {
	mu      sync.RWMutex
	cfg     Config
	facade  OptionGenerator
	schemas SchemaSource
	memory  SessionMemory
	logger  logger.ILogger
}

func NewDisambiguator(cfg Config, facade OptionGenerator, schemas SchemaSource, mem SessionMemory, log logger.ILogger) *Disambiguator {
	if cfg.MaxDisambiguationOptions <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Disambiguator{cfg: cfg, facade: facade, schemas: schemas, memory: mem, logger: log}
}

// CheckAmbiguity inspects a parse against its surface text. When a sessionID
// is supplied the request is recorded for the follow-up resolution call.
func (d *Disambiguator) CheckAmbiguity(ctx context.Context, parsed *store.ParsedQuery, queryText, sessionID string) store.AmbiguityReport {
	d.mu.RLock()
	cfg := d.cfg
	d.mu.RUnlock()

	report := store.AmbiguityReport{QueryID: parsed.QueryID}

	if amb, ok := d.checkIntentAmbiguity(ctx, parsed, queryText, cfg); ok {
		report.Ambiguities = append(report.Ambiguities, amb)
	}
	report.Ambiguities = append(report.Ambiguities, d.checkEntityAmbiguity(ctx, parsed, queryText, cfg)...)
	if amb, ok := d.checkRelationshipAmbiguity(ctx, parsed, queryText, cfg); ok {
		report.Ambiguities = append(report.Ambiguities, amb)
	}

	report.IsAmbiguous = len(report.Ambiguities) > 0

	if sessionID != "" && d.memory != nil && report.IsAmbiguous {
		d.memory.StoreSessionData(sessionID, requestKey(parsed.QueryID), storedRequest{Report: report, Parsed: parsed})
	}
	return report
}

func (d *Disambiguator) checkIntentAmbiguity(ctx context.Context, parsed *store.ParsedQuery, queryText string, cfg Config) (store.Ambiguity, bool) {
	matched := 0
	for _, re := range keywordFamilies {
		if re.MatchString(queryText) {
			matched++
		}
	}

	// A fallback parse with no candidates and no keyword signals offers
	// nothing to choose between; asking would be noise.
	if parsed.Intent == store.IntentUnknown && len(parsed.PossibleIntents) == 0 && matched == 0 {
		return store.Ambiguity{}, false
	}

	ambiguous := parsed.IntentConfidence < cfg.IntentConfidenceThreshold

	if !ambiguous && len(parsed.PossibleIntents) >= 2 {
		gap := parsed.PossibleIntents[0].Confidence - parsed.PossibleIntents[1].Confidence
		ambiguous = gap < 0.2 && parsed.PossibleIntents[0].Intent != parsed.PossibleIntents[1].Intent
	}

	if !ambiguous {
		ambiguous = matched >= 2
	}

	if !ambiguous {
		return store.Ambiguity{}, false
	}

	return store.Ambiguity{
		Type:    store.AmbiguityIntent,
		Message: "I'm not sure what you want to know. Which of these is closest?",
		Options: d.intentOptions(ctx, parsed, queryText, cfg),
	}, true
}

func (d *Disambiguator) checkEntityAmbiguity(ctx context.Context, parsed *store.ParsedQuery, queryText string, cfg Config) []store.Ambiguity {
	var out []store.Ambiguity
	if d.schemas == nil {
		return nil
	}

	for _, param := range d.schemas.Schema(parsed.Intent) {
		if !param.Required || param.Type == store.TypeBoolean {
			continue
		}
		if _, bound := parsed.Entities[param.Type]; !bound {
			re, known := surfaceReferences[param.Type]
			if !known || !re.MatchString(queryText) {
				continue
			}
			out = append(out, store.Ambiguity{
				Type:       store.AmbiguityEntity,
				EntityType: param.Type,
				Message:    fmt.Sprintf("Which %s do you mean?", strings.ReplaceAll(param.Type, "_", " ")),
				Options:    d.entityOptions(ctx, param.Type, queryText, cfg),
			})
			continue
		}
		if conf, ok := parsed.EntityConfidence[param.Type]; ok && conf < cfg.EntityConfidenceThreshold {
			out = append(out, store.Ambiguity{
				Type:       store.AmbiguityEntity,
				EntityType: param.Type,
				Message:    fmt.Sprintf("Did you mean %s %q?", strings.ReplaceAll(param.Type, "_", " "), parsed.Entities[param.Type]),
				Options:    d.entityOptions(ctx, param.Type, queryText, cfg),
			})
		}
	}
	return out
}

func (d *Disambiguator) checkRelationshipAmbiguity(ctx context.Context, parsed *store.ParsedQuery, queryText string, cfg Config) (store.Ambiguity, bool) {
	if parsed.Relationship != "" || len(parsed.Entities) < 2 || !relationshipRe.MatchString(queryText) {
		return store.Ambiguity{}, false
	}
	return store.Ambiguity{
		Type:    store.AmbiguityRelationship,
		Message: "How should these be related?",
		Options: d.relationshipOptions(ctx, parsed, cfg),
	}, true
}

type storedRequest struct {
	Report store.AmbiguityReport `json:"report"`
	Parsed *store.ParsedQuery    `json:"parsed"`
}

func requestKey(queryID string) string {
	return "disambiguation:" + queryID + ":request"
}

func resultKey(queryID string) string {
	return "disambiguation:" + queryID + ":result"
}

// --- option generation ---

func (d *Disambiguator) intentOptions(ctx context.Context, parsed *store.ParsedQuery, queryText string, cfg Config) []store.Option {
	if opts := d.generateOptionsViaLLM(ctx, store.AmbiguityIntent, queryText, "", cfg); len(opts) >= 2 {
		return opts
	}

	var opts []store.Option
	seen := make(map[string]bool)
	add := func(intentName, label string) {
		if intentName == "" || intentName == store.IntentUnknown || seen[intentName] || len(opts) >= cfg.MaxDisambiguationOptions {
			return
		}
		seen[intentName] = true
		opts = append(opts, store.Option{Kind: store.AmbiguityIntent, Label: label, Intent: intentName})
	}

	for _, cand := range parsed.PossibleIntents {
		add(cand.Intent, intentLabel(cand.Intent))
	}
	for family, re := range keywordFamilies {
		if re.MatchString(queryText) {
			intentName := familyIntents[family]
			add(intentName, intentLabel(intentName))
		}
	}
	add(store.IntentCapacityQuery, intentLabel(store.IntentCapacityQuery))
	add(store.IntentMaintenanceQuery, intentLabel(store.IntentMaintenanceQuery))
	return opts
}

var familyIntents = map[string]string{
	"show":        store.IntentInfrastructureQuery,
	"status":      store.IntentStandStatusQuery,
	"maintenance": store.IntentMaintenanceQuery,
	"capacity":    store.IntentCapacityQuery,
}

var intentLabels = map[string]string{
	store.IntentCapacityQuery:       "Capacity and utilization figures",
	store.IntentMaintenanceQuery:    "Maintenance schedules and impact",
	store.IntentInfrastructureQuery: "Airport infrastructure overview",
	store.IntentStandStatusQuery:    "Current stand status",
	store.IntentScenarioQuery:       "A what-if scenario",
	store.IntentComparisonQuery:     "A comparison",
}

func intentLabel(intentName string) string {
	if label, ok := intentLabels[intentName]; ok {
		return label
	}
	return strings.ReplaceAll(intentName, "_", " ")
}

// deterministic per-type option tables, used whenever the model cannot help
var entityOptionTable = map[string][]store.Option{
	store.EntityTerminal: {
		{Kind: store.AmbiguityEntity, Label: "Terminal 1", EntityType: store.EntityTerminal, EntityValue: "Terminal 1"},
		{Kind: store.AmbiguityEntity, Label: "Terminal 2", EntityType: store.EntityTerminal, EntityValue: "Terminal 2"},
		{Kind: store.AmbiguityEntity, Label: "All terminals", EntityType: store.EntityTerminal, EntityValue: "all"},
	},
	store.EntityStand: {
		{Kind: store.AmbiguityEntity, Label: "Stand A1", EntityType: store.EntityStand, EntityValue: "Stand A1"},
		{Kind: store.AmbiguityEntity, Label: "Stand B2", EntityType: store.EntityStand, EntityValue: "Stand B2"},
		{Kind: store.AmbiguityEntity, Label: "All stands", EntityType: store.EntityStand, EntityValue: "all"},
	},
	store.EntityPier: {
		{Kind: store.AmbiguityEntity, Label: "Pier A", EntityType: store.EntityPier, EntityValue: "Pier A"},
		{Kind: store.AmbiguityEntity, Label: "Pier B", EntityType: store.EntityPier, EntityValue: "Pier B"},
		{Kind: store.AmbiguityEntity, Label: "All piers", EntityType: store.EntityPier, EntityValue: "all"},
	},
	store.EntityTimePeriod: {
		{Kind: store.AmbiguityEntity, Label: "Today", EntityType: store.EntityTimePeriod, EntityValue: "today"},
		{Kind: store.AmbiguityEntity, Label: "This week", EntityType: store.EntityTimePeriod, EntityValue: "this week"},
		{Kind: store.AmbiguityEntity, Label: "Peak hours", EntityType: store.EntityTimePeriod, EntityValue: "peak hours"},
	},
}

func (d *Disambiguator) entityOptions(ctx context.Context, entityType, queryText string, cfg Config) []store.Option {
	if opts := d.generateOptionsViaLLM(ctx, store.AmbiguityEntity, queryText, entityType, cfg); len(opts) >= 2 {
		return opts
	}
	opts := entityOptionTable[entityType]
	if len(opts) > cfg.MaxDisambiguationOptions {
		opts = opts[:cfg.MaxDisambiguationOptions]
	}
	return opts
}

func (d *Disambiguator) relationshipOptions(ctx context.Context, parsed *store.ParsedQuery, cfg Config) []store.Option {
	opts := []store.Option{
		{Kind: store.AmbiguityRelationship, Label: "Compare them side by side", Relationship: "comparison", ImpliedIntent: store.IntentComparisonQuery},
		{Kind: store.AmbiguityRelationship, Label: "Show how one impacts the other", Relationship: "impact", ImpliedIntent: store.IntentCapacityQuery},
		{Kind: store.AmbiguityRelationship, Label: "Show both together", Relationship: "combined"},
	}
	if len(opts) > cfg.MaxDisambiguationOptions {
		opts = opts[:cfg.MaxDisambiguationOptions]
	}
	return opts
}

// generateOptionsViaLLM asks the facade for a structured option list. Any
// failure, timeout, or malformed payload returns nil so the deterministic
// tables take over.
func (d *Disambiguator) generateOptionsViaLLM(ctx context.Context, ambiguityType, queryText, entityType string, cfg Config) []store.Option {
	if d.facade == nil {
		return nil
	}

	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You draft clarification choices for an airport capacity planning assistant.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(queryText)
	prompt.WriteString("\n</user_query>\n\n")
	prompt.WriteString(fmt.Sprintf("<ambiguity type=%q entity_type=%q/>\n\n", ambiguityType, entityType))
	prompt.WriteString("<output_format>\n")
	prompt.WriteString(fmt.Sprintf("Respond with ONLY a valid JSON array of at most %d options:\n", cfg.MaxDisambiguationOptions))
	switch ambiguityType {
	case store.AmbiguityIntent:
		prompt.WriteString(`[{"label": "...", "intent": "capacity_query"}]`)
	case store.AmbiguityEntity:
		prompt.WriteString(`[{"label": "...", "entity_value": "Terminal 1"}]`)
	default:
		prompt.WriteString(`[{"label": "...", "relationship": "comparison", "implied_intent": ""}]`)
	}
	prompt.WriteString("\n</output_format>")

	raw, err := d.facade.ProcessQuery(ctx, prompt.String())
	if err != nil {
		d.logger.Warn("Disambiguator", "Option generation failed, using deterministic options", map[string]interface{}{"error": err.Error()})
		return nil
	}

	payload := llm.ExtractJSON(raw)
	if payload == "" {
		return nil
	}
	var decoded []struct {
		Label         string `json:"label"`
		Intent        string `json:"intent"`
		EntityValue   string `json:"entity_value"`
		Relationship  string `json:"relationship"`
		ImpliedIntent string `json:"implied_intent"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		d.logger.Warn("Disambiguator", "Option payload malformed, using deterministic options", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var opts []store.Option
	for _, item := range decoded {
		if item.Label == "" || len(opts) >= cfg.MaxDisambiguationOptions {
			continue
		}
		opt := store.Option{Kind: ambiguityType, Label: item.Label}
		switch ambiguityType {
		case store.AmbiguityIntent:
			if item.Intent == "" {
				continue
			}
			opt.Intent = item.Intent
		case store.AmbiguityEntity:
			if item.EntityValue == "" {
				continue
			}
			opt.EntityType = entityType
			opt.EntityValue = item.EntityValue
		default:
			if item.Relationship == "" {
				continue
			}
			opt.Relationship = item.Relationship
			opt.ImpliedIntent = item.ImpliedIntent
		}
		opts = append(opts, opt)
	}
	return opts
}

// UpdateConfig swaps the tunables at runtime.
func (d *Disambiguator) UpdateConfig(cfg Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

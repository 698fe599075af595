package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
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
	LearningEnabled       bool
	MinFeedbackConfidence float64
	FeedbackHistoryLimit  int
	SimilarityFraction    float64
}

func DefaultConfig() Config {
	return Config{
		LearningEnabled:       true,
		MinFeedbackConfidence: 0.7,
		FeedbackHistoryLimit:  100,
		SimilarityFraction:    0.2,
	}
}

const (
	initialConfidence   = 0.7
	syntheticConfidence = 0.6
	confidenceStep      = 0.05
	confidenceCap       = 0.95
)

var (
	ErrInvalidFeedback = errors.New("feedback: queryId, query and a rating of 1-5 are required")
)

// colloquial markers that flag a correction as a phrasing fix rather than a
// single-word synonym
var colloquialMarkers = []string{"whats", "hows", "wheres", "dont", "cant", "wont", "gonna", "wanna", "gimme", "lemme"}

// IssueClassifier is the facade slice used for the general-feedback branch.
type IssueClassifier interface {
	ProcessQuery(ctx context.Context, prompt string) (string, error)
}

// SessionMemory is the working-memory slice the learner persists through.
type SessionMemory interface {
	StoreSessionData(sessionID, key string, value any)
	GetSessionData(sessionID, key string, out any) bool
}

// Dispatcher hands a validated feedback record off for asynchronous learning.
type Dispatcher func(record store.FeedbackRecord)

// Metrics counts feedback ingestion and pattern mining.
type Metrics struct {
	TotalFeedback     int `json:"totalFeedback"`
	PatternsMined     int `json:"patternsMined"`
	PatternsPromoted  int `json:"patternsPromoted"`
	CorruptedPatterns int `json:"corruptedPatterns"`
}

// Learner ingests user corrections, mines rule patterns from them, and
// promotes confident patterns into the variation, intent, and entity tables.
// It is the only writer of the feedback memory snapshot.
type Learner struct {
	mu        sync.RWMutex
	cfg       Config
	facade    IssueClassifier
	memory    SessionMemory
	variation VariationRules
	intents   IntentRules
	entities  EntityRules
	dispatch  Dispatcher
	logger    logger.ILogger

	rules   store.FeedbackMemory
	metrics Metrics
}

func NewLearner(cfg Config, facade IssueClassifier, mem SessionMemory, variation VariationRules, intents IntentRules, entities EntityRules, log logger.ILogger) *Learner {
	if cfg.FeedbackHistoryLimit <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	l := &Learner{
		cfg:       cfg,
		facade:    facade,
		memory:    mem,
		variation: variation,
		intents:   intents,
		entities:  entities,
		logger:    log,
	}
	l.loadMemory()
	return l
}

// SetDispatcher installs an asynchronous learning hook. Without one,
// learning runs inline on submit.
func (l *Learner) SetDispatcher(d Dispatcher) {
	l.mu.Lock()
	l.dispatch = d
	l.mu.Unlock()
}

// SubmitFeedback validates and persists one feedback record, then hands it to
// the learning pipeline when learning is enabled.
func (l *Learner) SubmitFeedback(ctx context.Context, record store.FeedbackRecord) (string, error) {
	if record.QueryID == "" || strings.TrimSpace(record.Query) == "" || record.Rating < 1 || record.Rating > 5 {
		return "", ErrInvalidFeedback
	}

	record.FeedbackID = uuid.NewString()
	record.Timestamp = time.Now()

	l.mu.RLock()
	cfg := l.cfg
	dispatch := l.dispatch
	l.mu.RUnlock()

	if l.memory != nil {
		if record.SessionID != "" {
			l.memory.StoreSessionData(record.SessionID, "feedback:"+record.FeedbackID, record)
		}
		var index []store.FeedbackRecord
		l.memory.GetSessionData(memory.GlobalBucket, memory.KeyFeedbackList, &index)
		index = append([]store.FeedbackRecord{record}, index...)
		if len(index) > cfg.FeedbackHistoryLimit {
			index = index[:cfg.FeedbackHistoryLimit]
		}
		l.memory.StoreSessionData(memory.GlobalBucket, memory.KeyFeedbackList, index)
	}

	l.mu.Lock()
	l.metrics.TotalFeedback++
	l.mu.Unlock()

	if cfg.LearningEnabled {
		if dispatch != nil {
			dispatch(record)
		} else {
			l.ProcessForLearning(ctx, record)
		}
	}
	return record.FeedbackID, nil
}

// ProcessForLearning picks the correction axis and mines a pattern from it.
// General feedback is routed by asking the LLM what went wrong.
func (l *Learner) ProcessForLearning(ctx context.Context, record store.FeedbackRecord) {
	axis := l.selectAxis(record)
	switch axis {
	case store.FeedbackIntent:
		l.learnIntent(record, initialConfidence)
	case store.FeedbackEntity:
		l.learnEntities(record, initialConfidence)
	case store.FeedbackVariation:
		l.learnVariation(record, initialConfidence)
	default:
		l.learnFromGeneral(ctx, record)
	}
	l.saveMemory()
}

func (l *Learner) selectAxis(record store.FeedbackRecord) string {
	corr := record.Correction
	if corr == nil {
		return store.FeedbackGeneral
	}
	if corr.Intent != "" && corr.Intent != record.ParsedIntent {
		return store.FeedbackIntent
	}
	if len(corr.Entities) > 0 {
		return store.FeedbackEntity
	}
	if corr.Query != "" && !strings.EqualFold(strings.TrimSpace(corr.Query), strings.TrimSpace(record.Query)) {
		return store.FeedbackVariation
	}
	return store.FeedbackGeneral
}

// learnFromGeneral asks the LLM to diagnose the complaint, then re-enters the
// matched branch with a synthetic, lower-confidence correction.
func (l *Learner) learnFromGeneral(ctx context.Context, record store.FeedbackRecord) {
	if l.facade == nil {
		return
	}

	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You diagnose why an airport capacity assistant misunderstood a query.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString(fmt.Sprintf("<query>%s</query>\n", record.Query))
	prompt.WriteString(fmt.Sprintf("<parsed_intent>%s</parsed_intent>\n", record.ParsedIntent))
	prompt.WriteString(fmt.Sprintf("<user_comment>%s</user_comment>\n\n", record.Comments))
	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString(`{"primaryIssue": "intent|entity|variation|other", "suggestedIntent": "", "suggestedQuery": ""}`)
	prompt.WriteString("\n</output_format>")

	raw, err := l.facade.ProcessQuery(ctx, prompt.String())
	if err != nil {
		l.logger.Warn("FeedbackLearner", "General feedback diagnosis failed", map[string]interface{}{"feedbackId": record.FeedbackID, "error": err.Error()})
		return
	}
	payload := llm.ExtractJSON(raw)
	if payload == "" {
		return
	}
	var diag struct {
		PrimaryIssue    string `json:"primaryIssue"`
		SuggestedIntent string `json:"suggestedIntent"`
		SuggestedQuery  string `json:"suggestedQuery"`
	}
	if err := json.Unmarshal([]byte(payload), &diag); err != nil {
		l.logger.Warn("FeedbackLearner", "General feedback diagnosis malformed", map[string]interface{}{"feedbackId": record.FeedbackID, "error": err.Error()})
		return
	}

	synthetic := record
	switch diag.PrimaryIssue {
	case store.FeedbackIntent:
		if diag.SuggestedIntent == "" {
			return
		}
		synthetic.Correction = &store.FeedbackCorrection{Intent: diag.SuggestedIntent}
		l.learnIntent(synthetic, syntheticConfidence)
	case store.FeedbackVariation:
		if diag.SuggestedQuery == "" {
			return
		}
		synthetic.Correction = &store.FeedbackCorrection{Query: diag.SuggestedQuery}
		l.learnVariation(synthetic, syntheticConfidence)
	default:
		// entity diagnoses need a concrete value the model rarely supplies
	}
}

func (l *Learner) learnVariation(record store.FeedbackRecord, base float64) {
	corrected := ""
	if record.Correction != nil {
		corrected = strings.TrimSpace(record.Correction.Query)
	}
	original := strings.TrimSpace(record.Query)
	if corrected == "" || strings.EqualFold(original, corrected) {
		return
	}

	kind, from, to := classifyVariation(strings.ToLower(original), strings.ToLower(corrected))
	if kind == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rules.Variations {
		p := &l.rules.Variations[i]
		if p.Kind != kind {
			continue
		}
		if similar(p.From, from, l.cfg.SimilarityFraction) && similar(p.To, to, l.cfg.SimilarityFraction) {
			mergePattern(&p.Count, &p.Confidence, &p.FeedbackIDs, record.FeedbackID)
			p.LastUsed = time.Now()
			return
		}
	}
	l.rules.Variations = append(l.rules.Variations, store.VariationPattern{
		ID:          uuid.NewString(),
		Kind:        kind,
		From:        from,
		To:          to,
		Count:       1,
		Confidence:  base,
		FeedbackIDs: []string{record.FeedbackID},
		LastUsed:    time.Now(),
	})
	l.metrics.PatternsMined++
}

// classifyVariation decides whether a correction is a one-word synonym swap
// or a colloquial phrasing rewrite.
func classifyVariation(original, corrected string) (kind, from, to string) {
	origWords := strings.Fields(original)
	corrWords := strings.Fields(corrected)

	if len(origWords) == len(corrWords) {
		diffIdx := -1
		for i := range origWords {
			if origWords[i] != corrWords[i] {
				if diffIdx >= 0 {
					diffIdx = -2
					break
				}
				diffIdx = i
			}
		}
		if diffIdx >= 0 {
			return store.VariationSynonym, origWords[diffIdx], corrWords[diffIdx]
		}
	}

	for _, marker := range colloquialMarkers {
		for _, w := range origWords {
			if strings.Trim(w, "?!.,") == marker {
				return store.VariationColloquial, original, corrected
			}
		}
	}
	return "", "", ""
}

func (l *Learner) learnIntent(record store.FeedbackRecord, base float64) {
	if record.Correction == nil || record.Correction.Intent == "" {
		return
	}
	pattern := strings.ToLower(strings.TrimSpace(record.Query))
	if pattern == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rules.Intents {
		p := &l.rules.Intents[i]
		if p.Intent != record.Correction.Intent {
			continue
		}
		if similar(p.Pattern, pattern, l.cfg.SimilarityFraction) {
			mergePattern(&p.Count, &p.Confidence, &p.FeedbackIDs, record.FeedbackID)
			p.LastUsed = time.Now()
			return
		}
	}
	l.rules.Intents = append(l.rules.Intents, store.IntentPattern{
		ID:          uuid.NewString(),
		Pattern:     pattern,
		Intent:      record.Correction.Intent,
		Count:       1,
		Confidence:  base,
		FeedbackIDs: []string{record.FeedbackID},
		LastUsed:    time.Now(),
	})
	l.metrics.PatternsMined++
}

func (l *Learner) learnEntities(record store.FeedbackRecord, base float64) {
	if record.Correction == nil {
		return
	}
	for entityType, value := range record.Correction.Entities {
		if value == "" {
			continue
		}
		contextPattern := entityContextWindow(record.Query, value)
		if contextPattern == "" {
			continue
		}

		l.mu.Lock()
		merged := false
		for i := range l.rules.Entities {
			p := &l.rules.Entities[i]
			if p.EntityType != entityType || p.EntityValue != value {
				continue
			}
			if similar(p.ContextPattern, contextPattern, l.cfg.SimilarityFraction) {
				mergePattern(&p.Count, &p.Confidence, &p.FeedbackIDs, record.FeedbackID)
				p.LastUsed = time.Now()
				merged = true
				break
			}
		}
		if !merged {
			l.rules.Entities = append(l.rules.Entities, store.EntityPattern{
				ID:             uuid.NewString(),
				ContextPattern: contextPattern,
				EntityType:     entityType,
				EntityValue:    value,
				Count:          1,
				Confidence:     base,
				FeedbackIDs:    []string{record.FeedbackID},
				LastUsed:       time.Now(),
			})
			l.metrics.PatternsMined++
		}
		l.mu.Unlock()
	}
}

// entityContextWindow cuts up to two words either side of the mention and
// replaces the mention itself with a wildcard slot.
func entityContextWindow(query, value string) string {
	lower := strings.ToLower(query)
	idx := strings.Index(lower, strings.ToLower(value))
	if idx < 0 {
		return ""
	}

	before := strings.Fields(lower[:idx])
	after := strings.Fields(lower[idx+len(value):])
	if len(before) > 2 {
		before = before[len(before)-2:]
	}
	if len(after) > 2 {
		after = after[:2]
	}

	parts := append(append([]string{}, before...), "(.*?)")
	parts = append(parts, after...)
	return strings.Join(parts, " ")
}

func mergePattern(count *int, confidence *float64, ids *[]string, feedbackID string) {
	*count++
	*confidence += confidenceStep
	if *confidence > confidenceCap {
		*confidence = confidenceCap
	}
	for _, id := range *ids {
		if id == feedbackID {
			return
		}
	}
	*ids = append(*ids, feedbackID)
}

// wildcardRegex escapes a stored pattern and turns its (.*?) slots back into
// real capture groups.
func wildcardRegex(pattern string) string {
	escaped := regexp.QuoteMeta(pattern)
	return strings.ReplaceAll(escaped, regexp.QuoteMeta("(.*?)"), "(.*?)")
}

func (l *Learner) loadMemory() {
	if l.memory == nil {
		return
	}
	var snapshot store.FeedbackMemory
	if l.memory.GetSessionData(memory.GlobalBucket, memory.KeyFeedbackMemory, &snapshot) {
		l.mu.Lock()
		l.rules = snapshot
		l.mu.Unlock()
	}
}

func (l *Learner) saveMemory() {
	if l.memory == nil {
		return
	}
	l.mu.Lock()
	l.rules.LastSyncTime = time.Now()
	snapshot := l.rules
	l.mu.Unlock()
	l.memory.StoreSessionData(memory.GlobalBucket, memory.KeyFeedbackMemory, snapshot)
}

// RuleSnapshot returns a copy of the current mined rule tables.
func (l *Learner) RuleSnapshot() store.FeedbackMemory {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := l.rules
	out.Variations = append([]store.VariationPattern(nil), l.rules.Variations...)
	out.Intents = append([]store.IntentPattern(nil), l.rules.Intents...)
	out.Entities = append([]store.EntityPattern(nil), l.rules.Entities...)
	if len(l.rules.Promoted) > 0 {
		out.Promoted = make(map[string]bool, len(l.rules.Promoted))
		for id := range l.rules.Promoted {
			out.Promoted[id] = true
		}
	}
	return out
}

// Metrics returns a snapshot of the learner's counters.
func (l *Learner) Metrics() Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.metrics
}

// UpdateConfig swaps the tunables at runtime.
func (l *Learner) UpdateConfig(cfg Config) {
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
}

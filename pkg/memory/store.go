package memory

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/pkg/store"
)

// GlobalBucket holds cross-session data: learned patterns and the feedback
// index. Everything else is session-scoped.
const GlobalBucket = "global"

// Well-known working-memory keys
const (
	KeyContext           = "context"
	KeyEntityMentions    = "entity_mentions"
	KeySuggestions       = "suggestions"
	KeySuggestionHistory = "suggestion_history"
	KeyFeedbackList      = "feedback_list"
	KeyFeedbackMemory    = "feedback_memory"
)

const maxEntityMentions = 50

// Config carries the per-bucket TTLs.
type Config struct {
	SessionTTL    time.Duration
	SuggestionTTL time.Duration
	FeedbackTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{
		SessionTTL:    30 * time.Minute,
		SuggestionTTL: 30 * time.Minute,
		FeedbackTTL:   24 * time.Hour,
	}
}

// Store is the session-scoped working memory every pipeline component shares.
// It is strictly best-effort: a failing backend degrades reads to misses and
// drops writes with a warning, never failing a query.
type Store struct {
	kv     KV
	cfg    Config
	logger logger.ILogger
}

func NewStore(kv KV, cfg Config, log logger.ILogger) *Store {
	if cfg.SessionTTL <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{kv: kv, cfg: cfg, logger: log}
}

// StoreSessionData upserts one value under (session, key).
func (s *Store) StoreSessionData(sessionID, key string, value any) {
	blob, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("WorkingMemory", "Marshal failed, write dropped", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := s.kv.Put(sessionID, key, blob, s.ttlFor(sessionID, key)); err != nil {
		s.logger.Warn("WorkingMemory", "Write dropped, backend unavailable", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// GetSessionData reads (session, key) into out. Returns false on miss, expiry,
// or backend failure.
func (s *Store) GetSessionData(sessionID, key string, out any) bool {
	blob, err := s.kv.Get(sessionID, key)
	if err != nil {
		s.logger.Warn("WorkingMemory", "Read failed, treating as miss", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if blob == nil {
		return false
	}
	if err := json.Unmarshal(blob, out); err != nil {
		s.logger.Warn("WorkingMemory", "Stored value corrupt, treating as miss", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return true
}

// DeleteSessionData removes one key.
func (s *Store) DeleteSessionData(sessionID, key string) {
	if err := s.kv.Delete(sessionID, key); err != nil {
		s.logger.Warn("WorkingMemory", "Delete failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// GetSessionContext returns the merged context map, or nil when absent.
func (s *Store) GetSessionContext(sessionID string) map[string]any {
	var ctx map[string]any
	if !s.GetSessionData(sessionID, KeyContext, &ctx) {
		return nil
	}
	return ctx
}

// UpdateSessionContextField merges a single field into the session context.
func (s *Store) UpdateSessionContextField(sessionID, field string, value any) {
	ctx := s.GetSessionContext(sessionID)
	if ctx == nil {
		ctx = make(map[string]any)
	}
	ctx[field] = value
	ctx["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
	s.StoreSessionData(sessionID, KeyContext, ctx)
}

// RecordEntityMention prepends a mention to the session's recency list,
// bounded so long sessions cannot grow without limit.
func (s *Store) RecordEntityMention(sessionID string, mention store.EntityMention) {
	var mentions []store.EntityMention
	s.GetSessionData(sessionID, KeyEntityMentions, &mentions)
	mentions = append([]store.EntityMention{mention}, mentions...)
	if len(mentions) > maxEntityMentions {
		mentions = mentions[:maxEntityMentions]
	}
	s.StoreSessionData(sessionID, KeyEntityMentions, mentions)
}

// GetEntityMentions returns up to limit mentions, newest first.
func (s *Store) GetEntityMentions(sessionID string, limit int) []store.EntityMention {
	var mentions []store.EntityMention
	if !s.GetSessionData(sessionID, KeyEntityMentions, &mentions) {
		return nil
	}
	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].Timestamp.After(mentions[j].Timestamp)
	})
	if limit > 0 && len(mentions) > limit {
		mentions = mentions[:limit]
	}
	return mentions
}

func (s *Store) ttlFor(bucket, key string) time.Duration {
	if bucket == GlobalBucket {
		return 0 // learned state never expires on its own
	}
	switch {
	case strings.HasPrefix(key, "suggestion"):
		return s.cfg.SuggestionTTL
	case strings.HasPrefix(key, "feedback"):
		return s.cfg.FeedbackTTL
	default:
		return s.cfg.SessionTTL
	}
}

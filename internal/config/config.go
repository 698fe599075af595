package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App           AppConfig
	Memory        MemoryConfig
	Ai            AIConfig
	Understanding UnderstandingConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	LearningTopic      string
}

type MemoryConfig struct {
	Backend       string // "gocache" or "redis"
	SessionTTL    time.Duration
	SuggestionTTL time.Duration
	FeedbackTTL   time.Duration
}

type AIConfig struct {
	LLMProvider   string // "ollama", "openai"
	LLMModel      string // e.g. "llama3", "gpt-4o-mini"
	OllamaBaseURL string
	OpenAIAPIKey  string
	LLMTimeout    time.Duration
}

type UnderstandingConfig struct {
	IntentConfidenceThreshold     float64
	EntityConfidenceThreshold     float64
	SuggestionConfidenceThreshold float64
	MinFeedbackConfidence         float64
	MaxSuggestions                int
	MaxDisambiguationOptions      int
	FeedbackHistoryLimit          int
	EnableVariationHandling       bool
	EnableDisambiguation          bool
	EnableRelatedQuestions        bool
	EnableFeedbackProcessing      bool
	UseContextualParsing          bool
	EnableEntityNormalization     bool
	StoreDisambiguationHistory    bool
	PrioritizeSimilarEntities     bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			LearningTopic:      getEnv("FEEDBACK_LEARNING_TOPIC_NAME", "FEEDBACK_LEARNING"),
		},
		Memory: MemoryConfig{
			Backend:       getEnv("MEMORY_BACKEND", "gocache"),
			SessionTTL:    getEnvAsDuration("MEMORY_SESSION_TTL", 30*time.Minute),
			SuggestionTTL: getEnvAsDuration("MEMORY_SUGGESTION_TTL", 30*time.Minute),
			FeedbackTTL:   getEnvAsDuration("MEMORY_FEEDBACK_TTL", 24*time.Hour),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			LLMTimeout:    getEnvAsDuration("LLM_TIMEOUT", 5*time.Second),
		},
		Understanding: UnderstandingConfig{
			IntentConfidenceThreshold:     getEnvAsFloat("INTENT_CONFIDENCE_THRESHOLD", 0.7),
			EntityConfidenceThreshold:     getEnvAsFloat("ENTITY_CONFIDENCE_THRESHOLD", 0.6),
			SuggestionConfidenceThreshold: getEnvAsFloat("SUGGESTION_CONFIDENCE_THRESHOLD", 0.6),
			MinFeedbackConfidence:         getEnvAsFloat("MIN_FEEDBACK_CONFIDENCE", 0.7),
			MaxSuggestions:                getEnvAsInt("MAX_SUGGESTIONS", 3),
			MaxDisambiguationOptions:      getEnvAsInt("MAX_DISAMBIGUATION_OPTIONS", 3),
			FeedbackHistoryLimit:          getEnvAsInt("FEEDBACK_HISTORY_LIMIT", 100),
			EnableVariationHandling:       getEnvAsBool("ENABLE_VARIATION_HANDLING", true),
			EnableDisambiguation:          getEnvAsBool("ENABLE_DISAMBIGUATION", true),
			EnableRelatedQuestions:        getEnvAsBool("ENABLE_RELATED_QUESTIONS", true),
			EnableFeedbackProcessing:      getEnvAsBool("ENABLE_FEEDBACK_PROCESSING", true),
			UseContextualParsing:          getEnvAsBool("USE_CONTEXTUAL_PARSING", true),
			EnableEntityNormalization:     getEnvAsBool("ENABLE_ENTITY_NORMALIZATION", true),
			StoreDisambiguationHistory:    getEnvAsBool("STORE_DISAMBIGUATION_HISTORY", true),
			PrioritizeSimilarEntities:     getEnvAsBool("PRIORITIZE_SIMILAR_ENTITIES", true),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

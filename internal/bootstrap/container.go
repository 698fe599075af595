package bootstrap

import (
	"context"
	"log"

	"airport-capacity-be/internal/config"
	"airport-capacity-be/internal/controller"
	"airport-capacity-be/internal/metrics"
	"airport-capacity-be/internal/pkg/logger"
	gocachememory "airport-capacity-be/internal/repository/memory"
	redismemory "airport-capacity-be/internal/repository/redis"
	"airport-capacity-be/internal/service"
	"airport-capacity-be/internal/websocket"
	"airport-capacity-be/pkg/llm"
	"airport-capacity-be/pkg/llm/factory"
	pkgmemory "airport-capacity-be/pkg/memory"
	pkgnats "airport-capacity-be/pkg/nats"
	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding"
	"airport-capacity-be/pkg/understanding/disambiguation"
	"airport-capacity-be/pkg/understanding/feedback"
	"airport-capacity-be/pkg/understanding/intent"
	"airport-capacity-be/pkg/understanding/parser"
	"airport-capacity-be/pkg/understanding/suggestion"
	"airport-capacity-be/pkg/understanding/variation"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	UnderstandingController controller.IUnderstandingController

	// Background services (exposed for main.go to run)
	ConsumerService    service.IConsumerService
	EventBridgeService service.IEventBridgeService

	// WebSockets & metrics
	WebSocketHub       *websocket.Hub
	PrometheusRegistry *prometheus.Registry
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. LLM provider
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	facade := llm.NewFacade(llmProvider, cfg.Ai.LLMTimeout, sysLogger)

	// 4. Infrastructure
	// Redis (shared by the session backend and websocket fan-out)
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb = redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		if cfg.Memory.Backend == "redis" {
			log.Printf("[WARN] Falling back to in-process working memory")
			cfg.Memory.Backend = "gocache"
		}
	}

	// Working memory backend
	var kv pkgmemory.KV
	if cfg.Memory.Backend == "redis" {
		kv = redismemory.NewWorkingRepository(rdb)
		log.Printf("[INFO] Using Working Memory backend: REDIS")
	} else {
		kv = gocachememory.NewWorkingRepository()
		log.Printf("[INFO] Using Working Memory backend: GOCACHE")
	}
	workingMemory := pkgmemory.NewStore(kv, pkgmemory.Config{
		SessionTTL:    cfg.Memory.SessionTTL,
		SuggestionTTL: cfg.Memory.SuggestionTTL,
		FeedbackTTL:   cfg.Memory.FeedbackTTL,
	}, sysLogger)

	// NATS
	natsPub, err := pkgnats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pkgnats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewZapLogger("logs/updates.log", cfg.App.Environment == "production")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// Prometheus
	promRegistry := prometheus.NewRegistry()
	promMetrics := metrics.New(promRegistry)

	// 5. Understanding pipeline
	variationHandler := variation.NewHandler(variation.Config{
		MinFeedbackConfidence: cfg.Understanding.MinFeedbackConfidence,
	}, sysLogger)

	classifier := intent.NewClassifier(intent.Config{
		UsePatternMatching:    true,
		UseLLMClassification:  true,
		EnableFallbackIntents: true,
		ConfidenceThreshold:   cfg.Understanding.IntentConfidenceThreshold,
	}, facade, sysLogger)

	queryParser := parser.NewParser(parser.Config{
		EntityConfidenceThreshold: cfg.Understanding.EntityConfidenceThreshold,
		UseContextualParsing:      cfg.Understanding.UseContextualParsing,
		EnableEntityNormalization: cfg.Understanding.EnableEntityNormalization,
		EntityExtractionTimeout:   cfg.Ai.LLMTimeout,
	}, variationHandler, classifier, facade, sysLogger)

	disambiguator := disambiguation.NewDisambiguator(disambiguation.Config{
		IntentConfidenceThreshold:  cfg.Understanding.IntentConfidenceThreshold,
		EntityConfidenceThreshold:  cfg.Understanding.EntityConfidenceThreshold,
		MaxDisambiguationOptions:   cfg.Understanding.MaxDisambiguationOptions,
		StoreDisambiguationHistory: cfg.Understanding.StoreDisambiguationHistory,
	}, facade, queryParser, workingMemory, sysLogger)

	suggestionGenerator := suggestion.NewGenerator(suggestion.Config{
		MaxSuggestions:            cfg.Understanding.MaxSuggestions,
		MinConfidenceThreshold:    cfg.Understanding.SuggestionConfidenceThreshold,
		PrioritizeSimilarEntities: cfg.Understanding.PrioritizeSimilarEntities,
		UseLLMGeneration:          true,
		StoreSuggestions:          true,
	}, facade, workingMemory, sysLogger)

	learner := feedback.NewLearner(feedback.Config{
		LearningEnabled:       cfg.Understanding.EnableFeedbackProcessing,
		MinFeedbackConfidence: cfg.Understanding.MinFeedbackConfidence,
		FeedbackHistoryLimit:  cfg.Understanding.FeedbackHistoryLimit,
		SimilarityFraction:    0.2,
	}, facade, workingMemory, variationHandler, classifier, queryParser, sysLogger)

	orchestrator := understanding.NewOrchestrator(understanding.Flags{
		EnableVariationHandling:  cfg.Understanding.EnableVariationHandling,
		EnableDisambiguation:     cfg.Understanding.EnableDisambiguation,
		EnableRelatedQuestions:   cfg.Understanding.EnableRelatedQuestions,
		EnableFeedbackProcessing: cfg.Understanding.EnableFeedbackProcessing,
	}, variationHandler, classifier, queryParser, disambiguator, suggestionGenerator, learner, workingMemory, sysLogger)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.App.LearningTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.App.LearningTopic, learner)
	eventBridgeService := service.NewEventBridgeService(natsSub, wsHub)

	// Feedback mining goes through the queue so submit stays fast.
	learner.SetDispatcher(func(record store.FeedbackRecord) {
		if err := publisherService.PublishFeedback(record); err != nil {
			sysLogger.Warn("Bootstrap", "Feedback dispatch failed, mining inline", map[string]interface{}{"error": err.Error()})
			learner.ProcessForLearning(context.Background(), record)
		}
	})

	understandingService := service.NewUnderstandingService(
		orchestrator,
		workingMemory,
		publisherService,
		natsPub,
		wsHub,
		promMetrics,
		sysLogger,
	)

	// 7. Controllers
	return &Container{
		UnderstandingController: controller.NewUnderstandingController(understandingService),
		ConsumerService:         consumerService,
		EventBridgeService:      eventBridgeService,
		WebSocketHub:            wsHub,
		PrometheusRegistry:      promRegistry,
	}
}

package service

import (
	"context"
	"errors"
	"time"

	"airport-capacity-be/internal/dto"
	"airport-capacity-be/internal/metrics"
	"airport-capacity-be/internal/model"
	"airport-capacity-be/internal/pkg/logger"
	"airport-capacity-be/internal/websocket"
	"airport-capacity-be/pkg/events"
	"airport-capacity-be/pkg/memory"
	pkgnats "airport-capacity-be/pkg/nats"
	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding"
	"airport-capacity-be/pkg/understanding/feedback"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IUnderstandingService interface {
	ProcessQuery(ctx context.Context, req *dto.ProcessQueryRequest) (*dto.ProcessQueryResponse, error)
	Disambiguate(ctx context.Context, req *dto.DisambiguateRequest) (*dto.DisambiguateResponse, error)
	SubmitFeedback(ctx context.Context, req *dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error)
	TrackSuggestion(ctx context.Context, suggestionID, contextID string) (*dto.TrackSuggestionResponse, error)
	ApplyLearning(ctx context.Context, contextID string) (*dto.ApplyLearningResponse, error)
	Metrics() *dto.MetricsResponse
}

type understandingService struct {
	orchestrator *understanding.Orchestrator
	memory       *memory.Store
	publisher    IPublisherService
	natsPub      *pkgnats.Publisher
	wsHub        *websocket.Hub
	prom         *metrics.Metrics
	logger       logger.ILogger
}

func NewUnderstandingService(
	orchestrator *understanding.Orchestrator,
	mem *memory.Store,
	publisher IPublisherService,
	natsPub *pkgnats.Publisher,
	wsHub *websocket.Hub,
	prom *metrics.Metrics,
	sysLogger logger.ILogger,
) IUnderstandingService {
	return &understandingService{
		orchestrator: orchestrator,
		memory:       mem,
		publisher:    publisher,
		natsPub:      natsPub,
		wsHub:        wsHub,
		prom:         prom,
		logger:       sysLogger,
	}
}

// ProcessQuery runs the full understanding chain: normalization, intent and
// entity extraction, ambiguity check, suggestion generation. A missing
// contextId starts a fresh session whose id is echoed back.
func (s *understandingService) ProcessQuery(ctx context.Context, req *dto.ProcessQueryRequest) (*dto.ProcessQueryResponse, error) {
	started := time.Now()

	sessionID := req.ContextID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	queryID := uuid.NewString()

	sessCtx := s.memory.GetSessionContext(sessionID)
	parsed, normalized := s.orchestrator.Parser().ParseQuery(ctx, queryID, req.Query, sessCtx)
	result := s.orchestrator.ProcessQuery(ctx, req.Query, parsed, sessionID)

	if result.WasProcessed {
		normalized = result.NormalizedQuery
	}

	if s.prom != nil {
		s.prom.QueriesTotal.WithLabelValues(parsed.Intent).Inc()
		if result.Ambiguous {
			s.prom.AmbiguousTotal.Inc()
		}
		s.prom.QueryDuration.Observe(time.Since(started).Seconds())
	}

	if result.Ambiguous && s.wsHub != nil {
		s.wsHub.Send(sessionID, model.Update{
			Type:      model.UpdateQueryAmbiguous,
			SessionID: sessionID,
			Title:     "Clarification needed",
			Message:   "Your last question needs clarification before it can be answered.",
			Metadata:  map[string]any{"queryId": queryID},
			CreatedAt: time.Now(),
		})
	}

	return &dto.ProcessQueryResponse{
		QueryID:         queryID,
		SessionID:       sessionID,
		NormalizedQuery: normalized,
		ParsedQuery:     parsed,
		Ambiguous:       result.Ambiguous,
		Ambiguities:     result.Ambiguities,
		Suggestions:     result.Suggestions,
		ProcessingSteps: result.ProcessingSteps,
	}, nil
}

func (s *understandingService) Disambiguate(ctx context.Context, req *dto.DisambiguateRequest) (*dto.DisambiguateResponse, error) {
	report := store.AmbiguityReport{QueryID: req.QueryID}
	result, err := s.orchestrator.ProcessDisambiguation(ctx, report, req.Response, nil, req.ContextID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "no pending disambiguation for this query")
	}

	return &dto.DisambiguateResponse{
		QueryID:              result.QueryID,
		ClarifiedQuery:       result.ClarifiedQuery,
		AllResolved:          result.AllResolved,
		RemainingAmbiguities: result.RemainingAmbiguities,
	}, nil
}

func (s *understandingService) SubmitFeedback(ctx context.Context, req *dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error) {
	record := store.FeedbackRecord{
		QueryID:      req.QueryID,
		SessionID:    req.ContextID,
		Query:        req.Query,
		ParsedIntent: req.ParsedIntent,
		Rating:       req.Rating,
		FeedbackType: req.FeedbackType,
		Comments:     req.Comments,
		Correction:   req.Correction,
	}

	feedbackID, err := s.orchestrator.SubmitFeedback(ctx, record)
	if err != nil {
		if errors.Is(err, feedback.ErrInvalidFeedback) {
			return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return nil, err
	}

	if s.prom != nil {
		s.prom.FeedbackTotal.Inc()
	}
	s.publishEvent(ctx, events.TypeFeedbackReceived, map[string]interface{}{
		"feedbackId": feedbackID,
		"queryId":    req.QueryID,
		"rating":     req.Rating,
	})

	return &dto.SubmitFeedbackResponse{FeedbackID: feedbackID}, nil
}

func (s *understandingService) TrackSuggestion(ctx context.Context, suggestionID, contextID string) (*dto.TrackSuggestionResponse, error) {
	ok := s.orchestrator.TrackSuggestionUsage(suggestionID, contextID)
	if ok {
		if s.prom != nil {
			s.prom.SuggestionsUsed.Inc()
		}
		s.publishEvent(ctx, events.TypeSuggestionUsed, map[string]interface{}{
			"suggestionId": suggestionID,
			"sessionId":    contextID,
		})
	}
	return &dto.TrackSuggestionResponse{OK: ok}, nil
}

func (s *understandingService) ApplyLearning(ctx context.Context, contextID string) (*dto.ApplyLearningResponse, error) {
	results := s.orchestrator.ApplyFeedbackLearning(contextID)

	promoted := results.VariationsApplied + results.IntentsApplied + results.EntitiesApplied
	if s.prom != nil && promoted > 0 {
		s.prom.PatternsPromoted.Add(float64(promoted))
	}
	s.publishEvent(ctx, events.TypePatternsPromoted, map[string]interface{}{
		"sessionId":  contextID,
		"variations": results.VariationsApplied,
		"intents":    results.IntentsApplied,
		"entities":   results.EntitiesApplied,
	})

	if s.wsHub != nil && promoted > 0 {
		s.wsHub.Broadcast(model.Update{
			Type:      model.UpdateLearningApplied,
			Title:     "Assistant updated",
			Message:   "The assistant learned from recent feedback.",
			Metadata:  map[string]any{"promoted": promoted},
			CreatedAt: time.Now(),
		})
	}

	return &dto.ApplyLearningResponse{Results: results}, nil
}

func (s *understandingService) Metrics() *dto.MetricsResponse {
	return &dto.MetricsResponse{Metrics: s.orchestrator.Metrics()}
}

// publishEvent is best-effort; a missing or unreachable broker never fails
// the request.
func (s *understandingService) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.natsPub == nil {
		return
	}
	if err := s.natsPub.Publish(ctx, events.NewBaseEvent(eventType, data)); err != nil {
		s.logger.Warn("UnderstandingService", "Event publish failed", map[string]interface{}{"type": eventType, "error": err.Error()})
	}
}

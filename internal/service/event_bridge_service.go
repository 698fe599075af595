package service

import (
	"context"
	"log"
	"strings"

	"airport-capacity-be/internal/model"
	"airport-capacity-be/internal/websocket"
	"airport-capacity-be/pkg/events"
	pkgnats "airport-capacity-be/pkg/nats"
)

type IEventBridgeService interface {
	Consume(ctx context.Context) error
}

// eventBridgeService relays understanding events published by other instances
// onto this instance's websocket hub, so planning clients see learning and
// suggestion activity cluster-wide.
type eventBridgeService struct {
	subscriber *pkgnats.Subscriber
	hub        *websocket.Hub
}

func NewEventBridgeService(subscriber *pkgnats.Subscriber, hub *websocket.Hub) IEventBridgeService {
	return &eventBridgeService{subscriber: subscriber, hub: hub}
}

func (es *eventBridgeService) Consume(ctx context.Context) error {
	if es.subscriber == nil {
		return nil
	}
	return es.subscriber.Subscribe("understanding.>", "understanding-updates", es.handleEvent)
}

func (es *eventBridgeService) handleEvent(ctx context.Context, event events.Event) error {
	update, ok := updateFor(event)
	if !ok {
		return nil
	}
	es.hub.Broadcast(update)
	return nil
}

// updateFor maps a bus event onto a client update. Feedback submissions stay
// internal; anything unrecognized is dropped.
func updateFor(event events.Event) (model.Update, bool) {
	eventType := event.EventType()
	if i := strings.LastIndex(eventType, "."); i >= 0 {
		eventType = eventType[i+1:]
	}

	update := model.Update{
		Metadata:  event.Payload(),
		CreatedAt: event.Timestamp(),
	}
	if sid, ok := event.Payload()["sessionId"].(string); ok {
		update.SessionID = sid
	}

	switch eventType {
	case events.TypePatternsPromoted:
		update.Type = model.UpdateLearningApplied
		update.Title = "Assistant updated"
		update.Message = "The assistant learned from recent feedback."
	case events.TypeSuggestionUsed:
		update.Type = model.UpdateSuggestionUsed
		update.Title = "Suggestion used"
		update.Message = "A suggested follow-up query was run."
	case events.TypeFeedbackReceived:
		return model.Update{}, false
	default:
		log.Printf("[INFO] Ignoring unknown understanding event %s", eventType)
		return model.Update{}, false
	}
	return update, true
}

package service

import (
	"context"
	"encoding/json"
	"log"

	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding/feedback"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the learning queue and runs pattern mining on each
// feedback record off the request path.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	learner   *feedback.Learner
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	learner *feedback.Learner,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		learner:   learner,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var record store.FeedbackRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		log.Printf("[ERROR] Failed to unmarshal feedback message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Mining patterns from feedback %s (query %s)", record.FeedbackID, record.QueryID)
	cs.learner.ProcessForLearning(ctx, record)
	msg.Ack()
}

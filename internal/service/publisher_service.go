package service

import (
	"encoding/json"
	"fmt"

	"airport-capacity-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IPublisherService interface {
	PublishFeedback(record store.FeedbackRecord) error
}

// publisherService pushes accepted feedback onto the in-process learning
// queue so pattern mining never blocks the request path.
type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (ps *publisherService) PublishFeedback(record store.FeedbackRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback record: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	return ps.pubSub.Publish(ps.topicName, msg)
}

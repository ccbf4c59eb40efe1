package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/chatid-bot/internal/messaging"
	"go.uber.org/zap"
)

// NewPublishDecision creates the typed publish function for decision events.
func NewPublishDecision(publisher message.Publisher) messaging.Publish[DecisionEvent] {
	return messaging.NewPublishFunc[DecisionEvent](publisher, TopicDecision)
}

// NewConsumer creates a consumer that hands decision events to store.
func NewConsumer(subscriber message.Subscriber, store Store, logger *zap.Logger) *messaging.Consumer[DecisionEvent] {
	return messaging.NewConsumer[DecisionEvent](subscriber, TopicDecision, store.SaveDecision, logger)
}

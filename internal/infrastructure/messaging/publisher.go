package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
	"go.uber.org/zap"
)

// Metadata keys set on every published message
const (
	MetadataEventType   = "event_type"
	MetadataRequestID   = "request_id"
	MetadataRequestType = "request_type"
)

// EventPublisher implements port.EventPublisher over a watermill publisher
type EventPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *zap.Logger
}

// NewEventPublisher creates a publisher writing JSON events to topic
func NewEventPublisher(publisher message.Publisher, topic string, logger *zap.Logger) *EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &EventPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// Publish serializes the event and publishes it under its own id
func (p *EventPublisher) Publish(ctx context.Context, evt *event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata.Set(MetadataEventType, string(evt.Type))
	msg.Metadata.Set(MetadataRequestID, evt.RequestID)
	msg.Metadata.Set(MetadataRequestType, evt.RequestType)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_type", string(evt.Type)),
			zap.String("request_id", evt.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the underlying publisher
func (p *EventPublisher) Close() error {
	return p.publisher.Close()
}

var _ port.EventPublisher = (*EventPublisher)(nil)

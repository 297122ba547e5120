package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
	"go.uber.org/zap"
)

// ActivityLogger consumes status-change events and writes one structured log line each.
// It runs as a background worker.
type ActivityLogger struct {
	subscriber message.Subscriber
	topic      string
	logger     *zap.Logger

	handled atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewActivityLogger creates a subscriber on topic
func NewActivityLogger(subscriber message.Subscriber, topic string, logger *zap.Logger) *ActivityLogger {
	if topic == "" {
		topic = DefaultTopic
	}
	return &ActivityLogger{
		subscriber: subscriber,
		topic:      topic,
		logger:     logger,
	}
}

// Name returns the worker name
func (a *ActivityLogger) Name() string {
	return "ActivityLogger"
}

// Start subscribes and consumes in the background until ctx is done or Stop is called
func (a *ActivityLogger) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done != nil {
		return fmt.Errorf("%s already started", a.Name())
	}

	ctx, cancel := context.WithCancel(ctx)
	messages, err := a.subscriber.Subscribe(ctx, a.topic)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", a.topic, err)
	}

	a.cancel = cancel
	a.done = make(chan struct{})
	go a.consume(messages, a.done)
	return nil
}

// Stop cancels the subscription and waits for the consumer to drain
func (a *ActivityLogger) Stop() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Handled returns how many events were logged
func (a *ActivityLogger) Handled() int64 {
	return a.handled.Load()
}

func (a *ActivityLogger) consume(messages <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		var evt event.Event
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			a.logger.Error("Dropping undecodable event",
				zap.String("message_id", msg.UUID),
				zap.Error(err))
			msg.Ack()
			continue
		}

		a.logger.Info("Request activity",
			zap.String("event_type", string(evt.Type)),
			zap.String("request_id", evt.RequestID),
			zap.String("request_type", evt.RequestType),
			zap.String("actor_id", evt.ActorID),
			zap.String("status", evt.Status),
			zap.Int("stage_index", evt.StageIndex),
			zap.String("stage_name", evt.StageName),
			zap.Int64("version", evt.Version))
		a.handled.Add(1)
		msg.Ack()
	}
}

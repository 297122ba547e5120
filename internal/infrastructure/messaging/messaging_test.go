package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEvent() *event.Event {
	evt := event.NewEvent(event.TypeRequestApproved, "req-1", map[string]interface{}{"amount_cents": 1500})
	evt.RequestType = "timesheet"
	evt.ActorID = "carol"
	evt.Status = "APPROVED"
	evt.Version = 3
	return evt
}

func TestEventPublisher_PublishesJSONWithMetadata(t *testing.T) {
	pubSub := NewGoChannel(NewZapAdapter(zap.NewNop()))
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), DefaultTopic)
	require.NoError(t, err)

	publisher := NewEventPublisher(pubSub, "", zap.NewNop())
	evt := testEvent()
	require.NoError(t, publisher.Publish(context.Background(), evt))

	var msg *message.Message
	select {
	case msg = <-messages:
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	msg.Ack()

	assert.Equal(t, evt.ID, msg.UUID)
	assert.Equal(t, string(event.TypeRequestApproved), msg.Metadata.Get(MetadataEventType))
	assert.Equal(t, "req-1", msg.Metadata.Get(MetadataRequestID))
	assert.Equal(t, "timesheet", msg.Metadata.Get(MetadataRequestType))

	var decoded event.Event
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, evt.RequestID, decoded.RequestID)
	assert.Equal(t, int64(3), decoded.Version)
	assert.Equal(t, "carol", decoded.ActorID)
}

func TestActivityLogger_ConsumesUntilStopped(t *testing.T) {
	pubSub := NewGoChannel(NewZapAdapter(zap.NewNop()))
	defer pubSub.Close()

	activity := NewActivityLogger(pubSub, DefaultTopic, zap.NewNop())
	require.NoError(t, activity.Start(context.Background()))
	assert.Error(t, activity.Start(context.Background()))

	publisher := NewEventPublisher(pubSub, DefaultTopic, zap.NewNop())
	for i := 0; i < 3; i++ {
		require.NoError(t, publisher.Publish(context.Background(), testEvent()))
	}
	require.NoError(t, pubSub.Publish(DefaultTopic, message.NewMessage("bad", []byte("not json"))))

	assert.Eventually(t, func() bool { return activity.Handled() == 3 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, activity.Stop())
	require.NoError(t, activity.Stop())
	assert.Equal(t, "ActivityLogger", activity.Name())
}

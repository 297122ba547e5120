package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const msgTypeText = "text"

// messageCreator sends one IM message body to a receiver
type messageCreator interface {
	Create(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error)
}

// imMessageCreator wraps the SDK message resource
type imMessageCreator struct {
	client *lark.Client
}

func (c imMessageCreator) Create(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(body).
		Build()
	return c.client.Im.Message.Create(ctx, req)
}

// Messenger implements port.MessageSender over the Lark IM API
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: imMessageCreator{client: sdk.GetClient()},
		logger:   logger,
	}
}

// SendText sends a plain-text message
func (m *Messenger) SendText(ctx context.Context, receiveIDType, receiveID, text string) error {
	if receiveID == "" {
		return fmt.Errorf("receive id cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(receiveID).
		MsgType(msgTypeText).
		Content(string(content)).
		Build()

	resp, err := m.messages.Create(ctx, receiveIDType, body)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id_type", receiveIDType),
		zap.String("receive_id", receiveID))
	return nil
}

// LogSender stands in for Lark when it is disabled and only logs what would be sent
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that writes messages to the log
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendText logs the message and never fails
func (s *LogSender) SendText(ctx context.Context, receiveIDType, receiveID, text string) error {
	s.logger.Info("Lark disabled, message not sent",
		zap.String("receive_id_type", receiveIDType),
		zap.String("receive_id", receiveID),
		zap.String("text", text))
	return nil
}

var (
	_ port.MessageSender = (*Messenger)(nil)
	_ port.MessageSender = (*LogSender)(nil)
)

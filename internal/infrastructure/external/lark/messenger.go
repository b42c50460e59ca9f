// Package lark posts back-office notifications to Lark chats.
package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/travel-backoffice/internal/application/port"
)

const defaultRequestTimeout = 10 * time.Second

// Lark rejects dedupe keys longer than this
const maxDedupeKey = 50

// Config holds the app credentials used to post messages
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL overrides the open platform endpoint, e.g. for Lark Suite outside China
	BaseURL        string
	RequestTimeout time.Duration
}

// APIError is a response the open platform answered with a non-zero code
type APIError struct {
	Code      int
	Msg       string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark api error %d: %s (request %s)", e.Code, e.Msg, e.RequestID)
}

// Messenger implements port.MessageSender with the IM v1 API
type Messenger struct {
	client *lark.Client
	logger *zap.Logger
}

// NewMessenger builds the SDK client from cfg
func NewMessenger(cfg Config, logger *zap.Logger) (*Messenger, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("lark app id and secret are required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelWarn),
		lark.WithEnableTokenCache(true),
		lark.WithReqTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &Messenger{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		logger: logger,
	}, nil
}

// Send posts msg as a text message to a group chat
func (m *Messenger) Send(ctx context.Context, msg port.ChatMessage) error {
	if msg.ChatID == "" {
		return errors.New("chat id is required")
	}
	if msg.Text == "" {
		return errors.New("message text is required")
	}

	content, err := textContent(msg.Text)
	if err != nil {
		return err
	}

	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(msg.ChatID).
		MsgType("text").
		Content(content)
	if key := dedupeKey(msg.DedupeKey); key != "" {
		body = body.Uuid(key)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(body.Build()).
		Build()

	resp, err := m.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send to chat %s: %w", msg.ChatID, err)
	}
	if !resp.Success() {
		return &APIError{Code: resp.Code, Msg: resp.Msg, RequestID: resp.RequestId()}
	}

	if resp.Data != nil && resp.Data.MessageId != nil {
		m.logger.Debug("Notification posted",
			zap.String("chat_id", msg.ChatID),
			zap.String("message_id", *resp.Data.MessageId))
	}
	return nil
}

func textContent(text string) (string, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(data), nil
}

func dedupeKey(key string) string {
	if len(key) > maxDedupeKey {
		return key[:maxDedupeKey]
	}
	return key
}

var _ port.MessageSender = (*Messenger)(nil)

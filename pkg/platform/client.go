package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultEndpoint = "https://api.line.me/v2/bot"
	requestTimeout  = 10 * time.Second
)

// Message is one outbound text message, optionally with quick-reply
// buttons.
type Message struct {
	Type       string        `json:"type"`
	Text       string        `json:"text"`
	QuickReply *quickReplies `json:"quickReply,omitempty"`
}

// QuickReply is a single tappable suggestion under a message.
type QuickReply struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type quickReplies struct {
	Items []quickReplyItem `json:"items"`
}

type quickReplyItem struct {
	Type   string         `json:"type"`
	Action map[string]any `json:"action"`
}

// TextMessage builds a plain text message with optional quick replies.
func TextMessage(text string, qrs ...QuickReply) Message {
	msg := Message{Type: "text", Text: text}

	if len(qrs) > 0 {
		items := make([]quickReplyItem, 0, len(qrs))
		for _, qr := range qrs {
			items = append(items, quickReplyItem{
				Type: "action",
				Action: map[string]any{
					"type":  "message",
					"label": qr.Label,
					"text":  qr.Text,
				},
			})
		}

		msg.QuickReply = &quickReplies{Items: items}
	}

	return msg
}

// Sender is the outbound capability the pipeline depends on. Reply
// consumes a single-use reply token; Push addresses a user id directly.
// They are distinct capabilities, never interchangeable.
type Sender interface {
	Reply(ctx context.Context, replyToken string, messages []Message) error
	Push(ctx context.Context, userID string, messages []Message) error
}

// Client is the HTTP messaging-API sender.
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(accessToken, endpoint string, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &Client{
		endpoint:    endpoint,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger.With("module", "platform_client"),
	}
}

func (c *Client) Reply(ctx context.Context, replyToken string, messages []Message) error {
	if replyToken == "" {
		return errors.New("reply token is required")
	}

	return c.post(ctx, "/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   messages,
	})
}

func (c *Client) Push(ctx context.Context, userID string, messages []Message) error {
	if userID == "" {
		return errors.New("user id is required")
	}

	return c.post(ctx, "/message/push", map[string]any{
		"to":       userID,
		"messages": messages,
	})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging api request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WarnContext(ctx, "Messaging API rejected request",
			"path", path,
			"status", resp.StatusCode,
			"detail", string(detail))

		return fmt.Errorf("messaging api returned status %d", resp.StatusCode)
	}

	return nil
}

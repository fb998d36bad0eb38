package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/replyflow/replyflow/pkg/models"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultTimeout    = 30 * time.Second
	maxRetryAttempts  = 3
	initialBackoff    = 500 * time.Millisecond
	sentimentTaskHint = "判断下面这条顾客消息的情绪，只回答 positive、neutral 或 negative 中的一个词。"
	intentTaskHint    = "判断下面这条顾客消息的意图，只回答一个简短的意图标签，例如 ask_price、ask_refund、chitchat。"
	languageTaskHint  = "判断下面这条消息使用的语言，只回答 ISO 639-1 语言代码，例如 zh、en、ja。"
)

// OpenAIClient implements Client against the OpenAI chat completions API.
type OpenAIClient struct {
	client  openai.Client
	logger  *slog.Logger
	timeout time.Duration
}

func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		logger:  logger.With("module", "generation"),
		timeout: defaultTimeout,
	}, nil
}

// Complete runs one chat completion. Retryable failures back off
// exponentially up to maxRetryAttempts; auth and context-length errors
// fail immediately so the caller can fall back.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := buildMessages(req)
	model := req.Model

	if model == "" {
		model = defaultModel
	}

	var result string

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		completion, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(model),
			Messages: messages,
		})
		if err != nil {
			class := Classify(err)
			c.logger.WarnContext(ctx, "Generation call failed",
				"model", model,
				"class", string(class),
				"error", err)

			if class != ClassRetryable {
				return backoff.Permanent(err)
			}

			return err
		}

		if len(completion.Choices) == 0 {
			return backoff.Permanent(errors.New("completion returned no choices"))
		}

		result = strings.TrimSpace(completion.Choices[0].Message.Content)

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialBackoff

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, maxRetryAttempts-1), ctx))
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return result, nil
}

func (c *OpenAIClient) Sentiment(ctx context.Context, model, text string) (string, error) {
	return c.task(ctx, model, sentimentTaskHint, text)
}

func (c *OpenAIClient) Intent(ctx context.Context, model, text string) (string, error) {
	return c.task(ctx, model, intentTaskHint, text)
}

func (c *OpenAIClient) Language(ctx context.Context, model, text string) (string, error) {
	return c.task(ctx, model, languageTaskHint, text)
}

func (c *OpenAIClient) task(ctx context.Context, model, hint, text string) (string, error) {
	out, err := c.Complete(ctx, Request{
		Model:        model,
		SystemPrompt: hint,
		UserText:     text,
	})
	if err != nil {
		return "", err
	}

	return strings.ToLower(strings.TrimSpace(out)), nil
}

func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)

	system := req.SystemPrompt
	if req.Knowledge != "" {
		system += "\n\n参考资料：\n" + req.Knowledge
	}

	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	for _, msg := range req.History {
		switch msg.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Text))
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Text))
		}
	}

	messages = append(messages, openai.UserMessage(req.UserText))

	return messages
}

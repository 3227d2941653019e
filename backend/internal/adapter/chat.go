package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "cogbot/backend/pkg/errors"
	"cogbot/backend/pkg/logger"
)

const maxAttempts = 3

// ChatAdapter talks to an OpenAI-compatible chat completion API such as Perplexity
type ChatAdapter struct {
	client     *openai.Client
	configured bool
	backoff    time.Duration
	logger     *zap.Logger
}

// Message is one chat turn
type Message struct {
	Role    string
	Content string
}

// NewChatAdapter creates an adapter for the API at baseURL.
// With an empty apiKey the adapter reports itself unconfigured.
func NewChatAdapter(baseURL, apiKey string, timeout time.Duration) *ChatAdapter {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/")
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &ChatAdapter{
		client:     openai.NewClientWithConfig(config),
		configured: apiKey != "",
		backoff:    time.Second,
		logger:     logger.Get(),
	}
}

// Configured reports whether an API key was provided
func (a *ChatAdapter) Configured() bool {
	return a.configured
}

// Complete sends messages to model and returns the first choice's content.
// Transient failures (5xx, 429, transport errors) are retried with a linear backoff.
func (a *ChatAdapter) Complete(ctx context.Context, model string, maxTokens int, messages []Message) (string, error) {
	if !a.configured {
		return "", apperrors.ErrChatNotConfigured
	}

	req := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var resp openai.ChatCompletionResponse
	var err error
	attempt := 0
	for attempt < maxAttempts {
		if attempt > 0 {
			backoff := time.Duration(attempt) * a.backoff
			a.logger.Warn("Retrying chat completion",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", apperrors.NewChatCompletionFailed(model, attempt, false, ctx.Err())
			case <-time.After(backoff):
			}
		}
		attempt++

		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("Chat completion failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.String("model", model),
		)
		if !retryable(err) {
			break
		}
	}

	if err != nil {
		return "", apperrors.NewChatCompletionFailed(model, attempt, retryable(err), err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", apperrors.ErrChatNoResponse
	}

	a.logger.Debug("Chat completion received",
		zap.String("model", model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

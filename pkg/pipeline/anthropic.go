package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/metrics"
)

const defaultLLMTimeout = 60 * time.Second

// AnthropicLLMClient implements LLMClient using the Anthropic API.
type AnthropicLLMClient struct {
	log     *slog.Logger
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// NewAnthropicLLMClient creates a new Anthropic-based LLM client. The
// API key is read from the environment by the SDK.
func NewAnthropicLLMClient(log *slog.Logger, model anthropic.Model, timeout time.Duration) *AnthropicLLMClient {
	if timeout == 0 {
		timeout = defaultLLMTimeout
	}
	return &AnthropicLLMClient{
		log:     log,
		client:  anthropic.NewClient(),
		model:   model,
		timeout: timeout,
	}
}

// Complete sends the request to Claude and returns the response text.
// A per-call timeout bounds the blocking I/O so a stalled service
// surfaces as a stage-local failure instead of hanging the pipeline.
func (c *AnthropicLLMClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: req.System},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	duration := time.Since(start)
	metrics.LLMCallDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.LLMCalls.WithLabelValues("error").Inc()
		c.log.Error("llm: completion failed", "duration", duration, "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	metrics.LLMCalls.WithLabelValues("ok").Inc()
	c.log.Debug("llm: completion done", "duration", duration, "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

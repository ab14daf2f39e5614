package llmclient

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicChat implements chat completion and streaming over the
// Anthropic Messages API.
type AnthropicChat struct {
	client anthropic.Client
}

// NewAnthropicChat builds a chat client using apiKey (empty uses the
// ANTHROPIC_API_KEY environment variable the SDK reads by default).
func NewAnthropicChat(apiKey string) *AnthropicChat {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicChat{client: anthropic.NewClient(opts...)}
}

func convertMessages(messages []Message) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	var sdkMessages []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case "system":
			if m.Content != "" {
				systemPrompts = append(systemPrompts, m.Content)
			}
		case "user":
			if m.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case "assistant":
			if m.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}

	return strings.Join(systemPrompts, "\n\n"), sdkMessages
}

func buildParams(messages []Message, opts Options) anthropic.MessageNewParams {
	systemPrompt, sdkMessages := convertMessages(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(opts.Model),
		Messages:    sdkMessages,
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	return params
}

// Complete sends messages and waits for the full reply.
func (c *AnthropicChat) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	params := buildParams(messages, opts)

	var lastErr error
	retries := opts.MaxRetries
	if retries < 1 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			var out strings.Builder
			for _, block := range message.Content {
				if block.Type == "text" {
					out.WriteString(block.Text)
				}
			}
			return out.String(), nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("anthropic completion failed after %d attempts: %w", retries, lastErr)
}

// Stream opens a live token stream, forwarding text deltas as they arrive.
// Once bytes have been delivered there is no retry (spec §4.4).
func (c *AnthropicChat) Stream(ctx context.Context, messages []Message, opts Options) (<-chan Chunk, error) {
	cancel := func() {}
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	params := buildParams(messages, opts)
	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		defer cancel()
		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" {
				continue
			}
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				select {
				case out <- Chunk{Text: event.Delta.Text}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil && err != io.EOF {
			out <- Chunk{Err: fmt.Errorf("anthropic stream error: %w", err)}
		}
	}()
	return out, nil
}

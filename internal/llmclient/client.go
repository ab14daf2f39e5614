// Package llmclient implements the LLM Client (spec §4.4): a stateless
// request/stream interface to an external chat-completion service, plus an
// image-generation interface. Generalized from the teacher's
// internal/llm/adapter.go Adapter interface (which wrapped a bespoke
// HTTP-to-Gemini client) onto github.com/anthropics/anthropic-sdk-go for
// chat/streaming (grounded on teradata-labs/loom's
// pkg/llm/bedrock/client_sdk.go streaming loop) and
// github.com/openai/openai-go for image generation (grounded on
// MrWong99/glyphoxa's dependency on that SDK).
package llmclient

import (
	"context"
	"time"
)

// Message is one turn in the chat history sent to the model.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Options configures a single Complete/Stream call (spec §4.4).
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// Chunk is one piece of a streamed reply.
type Chunk struct {
	Text string
	Err  error
}

// Adapter is the contract the Session Runtime depends on.
type Adapter interface {
	// Complete makes a single blocking call and returns the full reply text.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)

	// Stream opens a lazy, finite, non-restartable sequence of text chunks.
	// The channel is closed when the reply ends or ctx is canceled; a final
	// Chunk with a non-nil Err precedes closure on failure.
	Stream(ctx context.Context, messages []Message, opts Options) (<-chan Chunk, error)

	// GenerateImage requests a single image and returns its URL. Retry and
	// timeout policy belongs to the implementation (ImageGenerator: up to 3
	// retries, 30s per call).
	GenerateImage(ctx context.Context, prompt string, size string, quality string) (string, error)
}

// DefaultOptions returns the engine's baseline LLM call configuration.
func DefaultOptions(model string) Options {
	return Options{
		Model:       model,
		Temperature: 0.9,
		MaxTokens:   2048,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
	}
}

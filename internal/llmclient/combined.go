package llmclient

import "context"

// Combined composes a chat adapter with an image generator into the full
// Adapter contract (spec §4.4).
type Combined struct {
	Chat  *AnthropicChat
	Image *ImageGenerator
}

// New builds the default production Adapter.
func New(anthropicAPIKey, openAIAPIKey, openAIImageModel string) *Combined {
	return &Combined{
		Chat:  NewAnthropicChat(anthropicAPIKey),
		Image: NewImageGenerator(openAIAPIKey, openAIImageModel),
	}
}

func (c *Combined) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	return c.Chat.Complete(ctx, messages, opts)
}

func (c *Combined) Stream(ctx context.Context, messages []Message, opts Options) (<-chan Chunk, error) {
	return c.Chat.Stream(ctx, messages, opts)
}

func (c *Combined) GenerateImage(ctx context.Context, prompt, size, quality string) (string, error) {
	return c.Image.GenerateImage(ctx, prompt, size, quality)
}

var _ Adapter = (*Combined)(nil)

package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ImageGenerator implements spec §4.4's generateImage interface over the
// OpenAI Images API, with retries and a per-call timeout (spec §4.4,
// ~30s default, bounded by maxRetries). Grounded on MrWong99/glyphoxa's
// dependency on github.com/openai/openai-go.
type ImageGenerator struct {
	client     openai.Client
	model      string
	maxRetries int
	timeout    time.Duration
}

// NewImageGenerator builds an image generator using apiKey and model.
func NewImageGenerator(apiKey, model string) *ImageGenerator {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &ImageGenerator{
		client:     openai.NewClient(opts...),
		model:      model,
		maxRetries: 3,
		timeout:    30 * time.Second,
	}
}

// GenerateImage requests a single image and returns its URL.
func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt, size, quality string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(g.model),
	}
	if size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}
	if quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(quality)
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		resp, err := g.client.Images.Generate(ctx, params)
		if err == nil && len(resp.Data) > 0 {
			if resp.Data[0].URL != "" {
				return resp.Data[0].URL, nil
			}
			lastErr = fmt.Errorf("image response contained no URL")
			continue
		}
		lastErr = err
	}
	return "", fmt.Errorf("image generation failed after %d attempts: %w", g.maxRetries, lastErr)
}

package llmclient

import "context"

// Fake is an in-memory Adapter used by tests across packages that depend on
// the Session Runtime without calling a real LLM.
type Fake struct {
	// Replies is popped in FIFO order by Complete/Stream; the last entry
	// repeats once exhausted.
	Replies []string
	Calls   int

	// Images is popped in FIFO order by GenerateImage.
	Images []string
	ImageErr error
	CompleteErr error
}

func (f *Fake) next() string {
	if len(f.Replies) == 0 {
		return ""
	}
	idx := f.Calls - 1
	if idx >= len(f.Replies) {
		idx = len(f.Replies) - 1
	}
	return f.Replies[idx]
}

func (f *Fake) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	f.Calls++
	if f.CompleteErr != nil {
		return "", f.CompleteErr
	}
	return f.next(), nil
}

func (f *Fake) Stream(ctx context.Context, messages []Message, opts Options) (<-chan Chunk, error) {
	f.Calls++
	out := make(chan Chunk, 8)
	if f.CompleteErr != nil {
		go func() {
			out <- Chunk{Err: f.CompleteErr}
			close(out)
		}()
		return out, nil
	}
	text := f.next()
	go func() {
		defer close(out)
		// Simulate token-by-token delivery in small fixed-width slices.
		const width = 8
		for i := 0; i < len(text); i += width {
			end := i + width
			if end > len(text) {
				end = len(text)
			}
			select {
			case out <- Chunk{Text: text[i:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *Fake) GenerateImage(ctx context.Context, prompt, size, quality string) (string, error) {
	if f.ImageErr != nil {
		return "", f.ImageErr
	}
	if len(f.Images) == 0 {
		return "https://example.invalid/image.png", nil
	}
	url := f.Images[0]
	f.Images = f.Images[1:]
	return url, nil
}

var _ Adapter = (*Fake)(nil)

// ABOUTME: Generator backed by the llm client, used for both the vision and text stages.
// ABOUTME: Translates a Prompt into a unified llm.Request with optional system and image parts.

package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389-research/calquity/llm"
)

// LLMGenerator completes prompts through an llm.Client.
type LLMGenerator struct {
	Client    *llm.Client
	Provider  string
	Model     string
	MaxTokens int
}

var errEmptyCompletion = errors.New("generator returned no text")

// Generate sends p as one completion request and returns the reply text.
// Client failures carry their llm.Kind so rejected attempts say why.
func (g *LLMGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.Client.Complete(ctx, g.request(p))
	if err != nil {
		return "", fmt.Errorf("%s error: %w", llm.KindOf(err), err)
	}
	text := resp.TextContent()
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func (g *LLMGenerator) request(p Prompt) llm.Request {
	req := llm.Request{
		Model:       g.Model,
		Provider:    g.Provider,
		Temperature: p.Temperature,
	}
	if g.MaxTokens > 0 {
		req.MaxTokens = llm.IntPtr(g.MaxTokens)
	}
	if p.System != "" {
		req.Messages = append(req.Messages, llm.SystemMessage(p.System))
	}
	if p.ImageBase64 != "" {
		req.Messages = append(req.Messages, llm.UserMessageWithParts(
			llm.TextPart(p.User),
			llm.ImageBase64Part(p.ImageBase64, "image/png"),
		))
	} else {
		req.Messages = append(req.Messages, llm.UserMessage(p.User))
	}
	return req
}

// ABOUTME: OpenAI Chat Completions adapter with base URL support for compatible providers.
// ABOUTME: Backs the vision and text generators against Groq or any OpenAI-compatible endpoint.

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultGroqBaseURL is the OpenAI-compatible endpoint used when no base URL is configured.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAICompatAdapter implements ProviderAdapter using the OpenAI Chat
// Completions API. It supports custom base URLs (Groq, OpenRouter, Cerebras,
// local gateways) and image content parts for vision models.
type OpenAICompatAdapter struct {
	client openai.Client
	name   string
	model  string
	vision bool
}

// OpenAICompatOption configures an OpenAICompatAdapter.
type OpenAICompatOption func(*openAICompatConfig)

type openAICompatConfig struct {
	name    string
	baseURL string
	vision  bool
	reqOpts []option.RequestOption
}

// WithCompatName overrides the provider name reported by the adapter.
func WithCompatName(name string) OpenAICompatOption {
	return func(c *openAICompatConfig) { c.name = name }
}

// WithCompatBaseURL sets the API base URL.
func WithCompatBaseURL(url string) OpenAICompatOption {
	return func(c *openAICompatConfig) { c.baseURL = url }
}

// WithVision marks the configured model as able to accept image parts.
func WithVision() OpenAICompatOption {
	return func(c *openAICompatConfig) { c.vision = true }
}

// WithCompatRequestOptions passes raw openai-go request options through, e.g.
// option.WithHTTPClient in tests.
func WithCompatRequestOptions(opts ...option.RequestOption) OpenAICompatOption {
	return func(c *openAICompatConfig) { c.reqOpts = append(c.reqOpts, opts...) }
}

// NewOpenAICompatAdapter creates a Chat Completions adapter for model. Requests
// that name no model use it.
func NewOpenAICompatAdapter(apiKey, model string, opts ...OpenAICompatOption) *OpenAICompatAdapter {
	cfg := openAICompatConfig{name: "groq", baseURL: DefaultGroqBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	reqOpts = append(reqOpts, cfg.reqOpts...)

	return &OpenAICompatAdapter{
		client: openai.NewClient(reqOpts...),
		name:   cfg.name,
		model:  model,
		vision: cfg.vision,
	}
}

// Name returns the provider name for this adapter.
func (a *OpenAICompatAdapter) Name() string { return a.name }

// SupportsImages reports whether the configured model accepts image parts.
func (a *OpenAICompatAdapter) SupportsImages() bool { return a.vision }

// Close releases resources held by the adapter.
func (a *OpenAICompatAdapter) Close() error { return nil }

// Complete sends a chat completion request and returns the unified response.
// Retries are left to RetryMiddleware; the SDK's own retries are disabled.
func (a *OpenAICompatAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.HasImage() && !a.vision {
		return nil, &Error{
			Kind:     KindInvalidRequest,
			Provider: a.name,
			Message:  fmt.Sprintf("model %q does not accept image input", a.modelFor(req)),
		}
	}

	params := a.convertRequest(req)
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.translateError(err)
	}
	return a.convertResponse(resp), nil
}

func (a *OpenAICompatAdapter) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return a.model
}

// convertRequest converts a unified Request into ChatCompletionNewParams.
func (a *OpenAICompatAdapter) convertRequest(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: a.modelFor(req),
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.TextContent()))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.TextContent()))
		default:
			messages = append(messages, convertCompatUserMessage(msg))
		}
	}
	params.Messages = messages
	return params
}

// convertCompatUserMessage uses the plain string form for text-only messages
// and the content-part array when an image is attached.
func convertCompatUserMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	if !msg.HasImage() {
		return openai.UserMessage(msg.TextContent())
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Content))
	for _, part := range msg.Content {
		switch part.Kind {
		case ContentText:
			parts = append(parts, openai.TextContentPart(part.Text))
		case ContentImage:
			if part.Image == nil {
				continue
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: part.Image.DataURL(),
			}))
		}
	}
	return openai.UserMessage(parts)
}

// convertResponse converts a ChatCompletion into the unified Response.
func (a *OpenAICompatAdapter) convertResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.name,
		Message:  Message{Role: RoleAssistant},
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		result.FinishReason = FinishOther
		return result
	}

	choice := resp.Choices[0]
	switch choice.FinishReason {
	case "stop":
		result.FinishReason = FinishStop
	case "length":
		result.FinishReason = FinishLength
	default:
		result.FinishReason = FinishOther
	}
	if choice.Message.Content != "" {
		result.Message.Content = []ContentPart{TextPart(choice.Message.Content)}
	}
	return result
}

// translateError classifies openai-go failures so RetryMiddleware can tell
// transient failures from permanent ones.
func (a *OpenAICompatAdapter) translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ErrorFromStatus(apiErr.StatusCode, apiErr.Error(), a.name, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError("chat completion timed out", err)
	}
	kind := KindTransient
	if errors.Is(err, context.Canceled) {
		kind = KindOther
	}
	return &Error{Kind: kind, Provider: a.name, Message: "chat completion failed", Cause: err}
}

// Compile-time interface assertions.
var (
	_ ProviderAdapter = (*OpenAICompatAdapter)(nil)
	_ VisionCapable   = (*OpenAICompatAdapter)(nil)
)

// ABOUTME: Adapter that wraps a mux/llm.Client as a text-only ProviderAdapter.
// ABOUTME: Lets the text generation stage run on Anthropic, OpenAI, or Gemini through mux.

package llm

import (
	"context"
	"fmt"
	"strings"

	muxllm "github.com/2389-research/mux/llm"
)

// MuxAdapter wraps a mux/llm.Client as a ProviderAdapter. mux carries no image
// blocks, so requests with image parts are refused rather than silently
// stripped.
type MuxAdapter struct {
	client muxllm.Client
	name   string
	model  string
}

// NewMuxAdapter creates a MuxAdapter with the given provider name and mux client.
// model is used for requests that name none.
func NewMuxAdapter(name, model string, client muxllm.Client) *MuxAdapter {
	return &MuxAdapter{name: name, model: model, client: client}
}

// NewAnthropicMuxAdapter builds a MuxAdapter backed by mux's Anthropic client.
func NewAnthropicMuxAdapter(apiKey, model string) *MuxAdapter {
	return NewMuxAdapter("anthropic", model, muxllm.NewAnthropicClient(apiKey, model))
}

// NewOpenAIMuxAdapter builds a MuxAdapter backed by mux's OpenAI client.
func NewOpenAIMuxAdapter(apiKey, model string) *MuxAdapter {
	return NewMuxAdapter("openai", model, muxllm.NewOpenAIClient(apiKey, model))
}

// NewGeminiMuxAdapter builds a MuxAdapter backed by mux's Gemini client.
func NewGeminiMuxAdapter(ctx context.Context, apiKey, model string) (*MuxAdapter, error) {
	client, err := muxllm.NewGeminiClient(ctx, apiKey, model)
	if err != nil {
		return nil, configError("creating gemini client", err)
	}
	return NewMuxAdapter("gemini", model, client), nil
}

// Name returns the provider name for this adapter.
func (a *MuxAdapter) Name() string {
	return a.name
}

// Close is a no-op; mux clients hold no closable resources.
func (a *MuxAdapter) Close() error {
	return nil
}

// Complete sends a completion request through the mux client. Rate limit
// failures come back as KindRateLimit so RetryMiddleware can back off.
func (a *MuxAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.HasImage() {
		return nil, &Error{Kind: KindInvalidRequest, Provider: a.name, Message: "image input is not supported through mux"}
	}

	muxResp, err := a.client.CreateMessage(ctx, a.convertRequest(req))
	if err != nil {
		return nil, a.translateError(err)
	}
	return convertMuxResponse(muxResp, a.name), nil
}

// convertRequest translates a Request into a mux Request. System messages are
// joined into the mux System field.
func (a *MuxAdapter) convertRequest(req Request) *muxllm.Request {
	var system []string
	msgs := make([]muxllm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.TextContent())
		case RoleAssistant:
			msgs = append(msgs, muxllm.Message{Role: muxllm.RoleAssistant, Content: msg.TextContent()})
		default:
			msgs = append(msgs, muxllm.Message{Role: muxllm.RoleUser, Content: msg.TextContent()})
		}
	}

	model := req.Model
	if model == "" {
		model = a.model
	}
	muxReq := &muxllm.Request{
		Model:       model,
		Messages:    msgs,
		System:      strings.Join(system, "\n\n"),
		Temperature: req.Temperature,
	}
	if req.MaxTokens != nil {
		muxReq.MaxTokens = *req.MaxTokens
	}
	return muxReq
}

// translateError classifies mux errors. The underlying SDKs only surface the
// status code in the error text, so classification is by message.
func (a *MuxAdapter) translateError(err error) error {
	msg := strings.ToLower(err.Error())
	out := &Error{Kind: KindOther, Provider: a.name, Message: "mux completion", Cause: err}
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit"):
		out.Kind = KindRateLimit
		out.StatusCode = 429
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		out.Kind = KindAuth
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503") || strings.Contains(msg, "529") || strings.Contains(msg, "overloaded"):
		out.Kind = KindServer
	}
	return out
}

// convertMuxResponse translates a mux Response into a Response, keeping text
// blocks only.
func convertMuxResponse(resp *muxllm.Response, providerName string) *Response {
	var parts []ContentPart
	for _, block := range resp.Content {
		if block.Type == muxllm.ContentTypeText {
			parts = append(parts, TextPart(block.Text))
		}
	}
	return &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: providerName,
		Message: Message{
			Role:    RoleAssistant,
			Content: parts,
		},
		FinishReason: mapStopReason(resp.StopReason),
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

func mapStopReason(reason muxllm.StopReason) string {
	switch reason {
	case muxllm.StopReasonEndTurn:
		return FinishStop
	case muxllm.StopReasonMaxTokens:
		return FinishLength
	default:
		return FinishOther
	}
}

var _ ProviderAdapter = (*MuxAdapter)(nil)

// String helps when adapters appear in log fields.
func (a *MuxAdapter) String() string {
	return fmt.Sprintf("mux(%s/%s)", a.name, a.model)
}

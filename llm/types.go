// ABOUTME: Core data model for the generator-facing LLM client used by the visualization stages.
// ABOUTME: Defines Message, ContentPart (text and image), Request, Response, and token Usage.

package llm

import "strings"

// Role represents who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind discriminates the type of content in a ContentPart.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
)

// ImageData holds an image either by URL or as base64-encoded bytes.
type ImageData struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// DataURL returns the image as a URL suitable for chat-completions style APIs.
// Inline base64 data is wrapped in a data: URL; a plain URL is returned as-is.
func (d ImageData) DataURL() string {
	if d.Base64 == "" {
		return d.URL
	}
	mediaType := d.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + d.Base64
}

// ContentPart is a single piece of content within a message.
// Kind determines which field is populated.
type ContentPart struct {
	Kind  ContentKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Image *ImageData  `json:"image,omitempty"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ImageBase64Part creates an image ContentPart from base64 data.
func ImageBase64Part(b64, mediaType string) ContentPart {
	return ContentPart{Kind: ContentImage, Image: &ImageData{Base64: b64, MediaType: mediaType}}
}

// Message is the fundamental unit of conversation.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// TextContent returns concatenated text from all text content parts.
func (m *Message) TextContent() string {
	var b strings.Builder
	for _, part := range m.Content {
		if part.Kind == ContentText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// HasImage reports whether any part of the message carries an image.
func (m *Message) HasImage() bool {
	for _, part := range m.Content {
		if part.Kind == ContentImage && part.Image != nil {
			return true
		}
	}
	return false
}

// SystemMessage creates a system role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

// UserMessage creates a user role message with text.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// UserMessageWithParts creates a user role message with multiple content parts.
func UserMessageWithParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Content: parts}
}

// AssistantMessage creates an assistant role message with text.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// Usage tracks token consumption for a single LLM call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Request is the unified input for a completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Provider    string    `json:"provider,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// HasImage reports whether any message in the request carries an image part.
func (r Request) HasImage() bool {
	for i := range r.Messages {
		if r.Messages[i].HasImage() {
			return true
		}
	}
	return false
}

// Float64Ptr returns a pointer to a float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// IntPtr returns a pointer to an int value.
func IntPtr(v int) *int {
	return &v
}

// Finish reasons normalized across providers.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishOther  = "other"
)

// Response is the unified output of a completion call.
type Response struct {
	ID           string  `json:"id"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
	Usage        Usage   `json:"usage"`
}

// TextContent returns the concatenated text from the response message.
func (r *Response) TextContent() string {
	return r.Message.TextContent()
}

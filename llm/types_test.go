// ABOUTME: Tests for the generator-facing LLM data model.
// ABOUTME: Validates message construction, image parts, data URLs, and request helpers.

package llm

import "testing"

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		wantRole Role
		wantText string
	}{
		{"SystemMessage", SystemMessage("emit one JSON object"), RoleSystem, "emit one JSON object"},
		{"UserMessage", UserMessage("What was Q3 revenue?"), RoleUser, "What was Q3 revenue?"},
		{"AssistantMessage", AssistantMessage("{}"), RoleAssistant, "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Role != tt.wantRole {
				t.Errorf("got role %q, want %q", tt.msg.Role, tt.wantRole)
			}
			if tt.msg.TextContent() != tt.wantText {
				t.Errorf("got text %q, want %q", tt.msg.TextContent(), tt.wantText)
			}
			if tt.msg.HasImage() {
				t.Error("text message should not report an image")
			}
		})
	}
}

func TestUserMessageWithImage(t *testing.T) {
	msg := UserMessageWithParts(TextPart("describe "), ImageBase64Part("iVBORw0K", ""), TextPart("this page"))
	if !msg.HasImage() {
		t.Fatal("expected HasImage to be true")
	}
	if msg.TextContent() != "describe this page" {
		t.Errorf("TextContent() = %q", msg.TextContent())
	}
	req := Request{Messages: []Message{SystemMessage("rules"), msg}}
	if !req.HasImage() {
		t.Error("expected request to report an image")
	}
}

func TestImageDataURL(t *testing.T) {
	tests := []struct {
		name string
		img  ImageData
		want string
	}{
		{"base64 default media type", ImageData{Base64: "AAAA"}, "data:image/png;base64,AAAA"},
		{"base64 explicit media type", ImageData{Base64: "AAAA", MediaType: "image/jpeg"}, "data:image/jpeg;base64,AAAA"},
		{"plain url", ImageData{URL: "https://example.com/p.png"}, "https://example.com/p.png"},
	}
	for _, tt := range tests {
		if got := tt.img.DataURL(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestImagePartWithoutDataIsIgnored(t *testing.T) {
	msg := Message{Role: RoleUser, Content: []ContentPart{{Kind: ContentImage}}}
	if msg.HasImage() {
		t.Error("image part with nil data should not count")
	}
}

func TestPointerHelpers(t *testing.T) {
	if *Float64Ptr(0.2) != 0.2 {
		t.Error("Float64Ptr mismatch")
	}
	if *IntPtr(1024) != 1024 {
		t.Error("IntPtr mismatch")
	}
}

func TestResponseTextContent(t *testing.T) {
	resp := &Response{Message: AssistantMessage(`{"component":"InfoCard"}`)}
	if resp.TextContent() != `{"component":"InfoCard"}` {
		t.Errorf("TextContent() = %q", resp.TextContent())
	}
}

// ABOUTME: Renders a conversation snapshot as a Markdown transcript or a standalone HTML page.
// ABOUTME: HTML goes through goldmark, which drops raw HTML embedded in message text.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/2389-research/calquity/conversation"
)

// Markdown renders every message of s in conversation order.
func Markdown(s conversation.State) string {
	var b strings.Builder
	b.WriteString("# Conversation\n")

	for _, m := range s.Messages {
		b.WriteString("\n")
		switch m.Kind {
		case conversation.KindUserText:
			fmt.Fprintf(&b, "**You:** %s\n", m.Content)
		case conversation.KindAIText:
			fmt.Fprintf(&b, "**Assistant:**\n\n%s\n", m.Content)
			if len(m.Citations) > 0 {
				b.WriteString("\nSources:\n\n")
				for _, c := range m.Citations {
					fmt.Fprintf(&b, "- %s\n", c.String())
				}
			}
		case conversation.KindToolProgress:
			fmt.Fprintf(&b, "> _%s_\n", m.Content)
		case conversation.KindVisualization:
			writeVisualization(&b, m)
		}
	}

	if s.Error != "" {
		fmt.Fprintf(&b, "\n**Error:** %s\n", s.Error)
	}
	return b.String()
}

func writeVisualization(b *strings.Builder, m conversation.ChatMessage) {
	if m.Visualization == nil {
		return
	}
	data, err := json.MarshalIndent(*m.Visualization, "", "  ")
	if err != nil {
		fmt.Fprintf(b, "_visualization unavailable: %v_\n", err)
		return
	}
	fmt.Fprintf(b, "**Visualization (%s):**\n\n```json\n%s\n```\n", m.Visualization.Kind(), data)
}

// HTML renders s as a complete HTML document.
func HTML(s conversation.State) (string, error) {
	var body bytes.Buffer
	if err := goldmark.New().Convert([]byte(Markdown(s)), &body); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	title := "Conversation"
	if len(s.Messages) > 0 && s.Messages[0].Kind == conversation.KindUserText {
		title = s.Messages[0].Content
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// Write saves s to path, as HTML when the extension is .html or .htm and as
// Markdown otherwise.
func Write(path string, s conversation.State) error {
	var out string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		rendered, err := HTML(s)
		if err != nil {
			return err
		}
		out = rendered
	default:
		out = Markdown(s)
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

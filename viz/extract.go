// ABOUTME: Pulls JSON object candidates out of free-form generator text.
// ABOUTME: Balanced-brace scanning honors strings; a first-{ to last-} span is the last resort.

package viz

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first complete JSON object in text. If no
// balanced object exists it falls back to the span from the first '{' to the
// last '}'.
func ExtractJSONObject(text string) (string, bool) {
	if objs := scanObjects(text); len(objs) > 0 {
		return objs[0], true
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Candidates returns every top-level JSON object in text, in order. A
// top-level JSON array of objects is flattened into its elements.
func Candidates(text string) []string {
	trimmed := strings.TrimSpace(stripFence(text))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			out := make([]string, 0, len(items))
			for _, item := range items {
				s := strings.TrimSpace(string(item))
				if strings.HasPrefix(s, "{") {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	if objs := scanObjects(text); len(objs) > 0 {
		return objs
	}
	if obj, ok := ExtractJSONObject(text); ok {
		return []string{obj}
	}
	return nil
}

// stripFence removes a surrounding ```json fence if present.
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return text
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}

// scanObjects finds balanced top-level {...} spans, skipping braces inside
// JSON strings. A '{' that never closes is treated as prose and scanning
// resumes just after it.
func scanObjects(text string) []string {
	var out []string
	for from := 0; from < len(text); {
		objs, open := scanFrom(text, from)
		out = append(out, objs...)
		if open < 0 {
			break
		}
		from = open + 1
	}
	return out
}

// scanFrom scans text[from:] and also returns the offset of a top-level '{'
// still open at the end of text, or -1.
func scanFrom(text string, from int) ([]string, int) {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := from; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
				start = -1
			}
		}
	}
	if depth > 0 {
		return out, start
	}
	return out, -1
}
